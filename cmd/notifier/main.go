package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-farm-market/internal/config"
	"github.com/ariefcatur/go-farm-market/internal/events"
	"github.com/ariefcatur/go-farm-market/internal/fanout"
	kafkax "github.com/ariefcatur/go-farm-market/internal/kafka"
	"github.com/ariefcatur/go-farm-market/internal/mailer"
	"github.com/ariefcatur/go-farm-market/internal/postgres"
	"github.com/ariefcatur/go-farm-market/internal/redisx"
	"github.com/ariefcatur/go-farm-market/internal/users"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &fanout.Service{
		Redis:       rdb,
		Users:       &users.Repo{DB: db},
		Mail:        &mailer.Mailer{Addr: cfg.SMTPAddr, From: cfg.SMTPFrom},
		Compose:     mailer.Compose,
		ServiceName: cfg.ServiceName + "-notifier",
	}

	group := getenv("NOTIFIER_GROUP", "notifier-svc")
	workers := mustAtoi(os.Getenv("NOTIFIER_WORKERS"), "4")

	topics := append(events.Topics(), events.TopicEmail)
	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range topics {
		cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, topic, workers)
		log.Printf("notifier consumer started: group=%s topic=%s workers=%d", group, topic, workers)
		g.Go(func() error {
			return cons.Start(gctx, svc.Handle)
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Println("shutting down consumers...")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			log.Printf("consumer exit: %v", err)
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
