package notify

import (
	"encoding/json"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-farm-market/internal/events"
)

type published struct {
	topic   string
	key     []byte
	value   []byte
	headers []kafkago.Header
}

type fakePublisher struct {
	msgs []published
}

func (f *fakePublisher) Publish(topic string, key, value []byte, headers ...kafkago.Header) {
	f.msgs = append(f.msgs, published{topic: topic, key: key, value: value, headers: headers})
}

func TestNotifyEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	e := &Emitter{Producer: pub, Service: "market-api"}

	payload := events.OrderPayload{OrderID: "ord-1", Quantity: 3, Status: "pending"}
	e.Notify(events.EventNewOrder, "ord-1", payload)

	require.Len(t, pub.msgs, 1)
	msg := pub.msgs[0]
	assert.Equal(t, events.TopicOrderCreated, msg.topic)
	assert.Equal(t, []byte("ord-1"), msg.key)

	var env events.Envelope
	require.NoError(t, json.Unmarshal(msg.value, &env))
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, events.EventNewOrder, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "market-api", env.Producer)
	assert.Equal(t, "ord-1", env.CorrelationID)
	assert.WithinDuration(t, time.Now().UTC(), env.OccurredAt, time.Minute)

	var got events.OrderPayload
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, payload, got)

	require.Len(t, msg.headers, 2)
	assert.Equal(t, "x-event-type", msg.headers[0].Key)
	assert.Equal(t, []byte(events.EventNewOrder), msg.headers[0].Value)
}

func TestNotifyTopicRouting(t *testing.T) {
	tests := []struct {
		eventType string
		topic     string
	}{
		{events.EventNewOrder, events.TopicOrderCreated},
		{events.EventOrderUpdated, events.TopicOrderUpdated},
		{events.EventNewProduce, events.TopicProduceCreated},
		{events.EventProduceUpdated, events.TopicProduceUpdated},
		{events.EventProduceRemoved, events.TopicProduceRemoved},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			pub := &fakePublisher{}
			e := &Emitter{Producer: pub, Service: "market-api"}
			e.Notify(tt.eventType, "id-1", struct{}{})
			require.Len(t, pub.msgs, 1)
			assert.Equal(t, tt.topic, pub.msgs[0].topic)
		})
	}
}

func TestNotifyUnknownEventDropped(t *testing.T) {
	pub := &fakePublisher{}
	e := &Emitter{Producer: pub, Service: "market-api"}
	e.Notify("somethingElse", "id-1", struct{}{})
	assert.Empty(t, pub.msgs)
}

func TestEmailEvent(t *testing.T) {
	pub := &fakePublisher{}
	e := &Emitter{Producer: pub, Service: "market-api"}

	e.EmailEvent(events.EmailKindOrderConfirmation, "user-1", events.EmailPayload{
		OrderID: "ord-9", ProduceName: "Carrots", Quantity: 2, Unit: "kg", TotalPrice: "4.00",
	})

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, events.TopicEmail, pub.msgs[0].topic)

	var env events.Envelope
	require.NoError(t, json.Unmarshal(pub.msgs[0].value, &env))
	assert.Equal(t, events.EventEmailRequested, env.EventType)

	var p events.EmailPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, events.EmailKindOrderConfirmation, p.Kind)
	assert.Equal(t, "user-1", p.RecipientID)
	assert.Equal(t, "ord-9", p.OrderID)
}
