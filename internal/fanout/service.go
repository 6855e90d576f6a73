// Package fanout turns the Kafka event stream into what clients actually
// see: Redis pub/sub messages for the socket edge and notification mail.
// Everything here is best-effort; a failed delivery is logged and committed,
// never replayed against the order flow.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-farm-market/internal/events"
	kafkax "github.com/ariefcatur/go-farm-market/internal/kafka"
	"github.com/ariefcatur/go-farm-market/internal/redisx"
	"github.com/ariefcatur/go-farm-market/internal/users"
)

type userGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*users.User, error)
}

type mailSender interface {
	Send(to, subject, body string) error
}

type composer func(recipientName string, p events.EmailPayload) (subject, body string)

type Service struct {
	Redis       *redis.Client
	Users       userGetter
	Mail        mailSender
	Compose     composer
	ServiceName string
}

// push is what the socket edge re-emits verbatim to connected clients.
type push struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Handle is the consumer handler for every market topic.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	var env events.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Printf("fanout: bad envelope on %s: %v", m.Topic, err)
		return nil // poison message, commit and move on
	}

	// dedup by event id so a redelivered message is not re-pushed
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	switch env.EventType {
	case events.EventNewOrder:
		p, err := kafkax.UnwrapPayload[events.OrderPayload](env.Payload)
		if err != nil {
			return nil
		}
		s.publish(ctx, redisx.ChannelUser(p.FarmerID), env.EventType, env.Payload)
	case events.EventOrderUpdated:
		p, err := kafkax.UnwrapPayload[events.OrderPayload](env.Payload)
		if err != nil {
			return nil
		}
		s.publish(ctx, redisx.ChannelUser(p.BuyerID), env.EventType, env.Payload)
	case events.EventNewProduce, events.EventProduceUpdated, events.EventProduceRemoved:
		s.publish(ctx, redisx.ChannelRole("buyer"), env.EventType, env.Payload)
	case events.EventEmailRequested:
		s.email(ctx, env.Payload)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, channel, event string, data json.RawMessage) {
	b := kafkax.MustMarshal(push{Event: event, Data: data})
	if err := s.Redis.Publish(ctx, channel, b).Err(); err != nil {
		log.Printf("fanout: publish %s: %v", channel, err)
	}
}

func (s *Service) email(ctx context.Context, raw json.RawMessage) {
	p, err := kafkax.UnwrapPayload[events.EmailPayload](raw)
	if err != nil {
		return
	}
	rid, err := uuid.Parse(p.RecipientID)
	if err != nil {
		return
	}
	u, err := s.Users.Get(ctx, rid)
	if err != nil {
		log.Printf("fanout: resolve recipient %s: %v", p.RecipientID, err)
		return
	}
	subject, body := s.Compose(u.Name, p)
	if err := s.Mail.Send(u.Email, subject, body); err != nil {
		log.Printf("fanout: send mail to %s: %v", u.Email, err)
	}
}
