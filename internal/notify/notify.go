// Package notify is the fire-and-forget notification port. Failures are
// logged and never roll back the state transition that triggered them.
package notify

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-farm-market/internal/events"
	kafkax "github.com/ariefcatur/go-farm-market/internal/kafka"
)

// Notifier is injected into the booking service and the produce handlers.
// Both operations are best-effort and must never block or fail the caller.
type Notifier interface {
	Notify(eventType, correlationID string, payload any)
	EmailEvent(kind, recipientID string, p events.EmailPayload)
}

type publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

var topicFor = map[string]string{
	events.EventNewOrder:       events.TopicOrderCreated,
	events.EventOrderUpdated:   events.TopicOrderUpdated,
	events.EventNewProduce:     events.TopicProduceCreated,
	events.EventProduceUpdated: events.TopicProduceUpdated,
	events.EventProduceRemoved: events.TopicProduceRemoved,
}

// Emitter publishes envelopes to Kafka through the async producer.
type Emitter struct {
	Producer publisher
	Service  string
}

var _ Notifier = (*Emitter)(nil)

func (e *Emitter) Notify(eventType, correlationID string, payload any) {
	topic, ok := topicFor[eventType]
	if !ok {
		return
	}
	e.publish(topic, eventType, correlationID, payload)
}

func (e *Emitter) EmailEvent(kind, recipientID string, p events.EmailPayload) {
	p.Kind = kind
	p.RecipientID = recipientID
	e.publish(events.TopicEmail, events.EventEmailRequested, p.OrderID, p)
}

func (e *Emitter) publish(topic, eventType, correlationID string, payload any) {
	env := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.Service,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	e.Producer.Publish(topic, events.PartitionKey(correlationID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
