package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-farm-market/internal/auth"
	"github.com/ariefcatur/go-farm-market/internal/booking"
	"github.com/ariefcatur/go-farm-market/internal/config"
	"github.com/ariefcatur/go-farm-market/internal/httpx"
	kafkax "github.com/ariefcatur/go-farm-market/internal/kafka"
	"github.com/ariefcatur/go-farm-market/internal/metrics"
	"github.com/ariefcatur/go-farm-market/internal/notify"
	"github.com/ariefcatur/go-farm-market/internal/orders"
	"github.com/ariefcatur/go-farm-market/internal/postgres"
	"github.com/ariefcatur/go-farm-market/internal/produce"
	"github.com/ariefcatur/go-farm-market/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer (all topics through one async writer)
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	emitter := &notify.Emitter{Producer: prod, Service: cfg.ServiceName}

	// Repos & services
	reservations := &orders.ReservationRepo{DB: db}
	orderRepo := &orders.Repo{DB: db}
	produceRepo := &produce.Repo{DB: db}
	svc := booking.NewService(reservations, orderRepo, emitter, slog.Default())

	a := auth.New(cfg.JWTSecret)
	m := metrics.NewServerMetrics("api")
	router := httpx.NewRouter(m)
	router.Route("/api", func(r chi.Router) {
		(&httpx.OrdersHandler{Booking: svc, Repo: orderRepo, Auth: a}).Register(r)
		(&httpx.ProduceHandler{Repo: produceRepo, Events: emitter, Redis: rdb, Auth: a}).Register(r)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush queued events
	cancel()
	prod.WaitClosed()
}
