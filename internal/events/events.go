package events

import (
	"encoding/json"
	"time"
)

// Event types mirror what the socket edge re-emits to clients.
const (
	EventNewOrder       = "newOrder"
	EventOrderUpdated   = "orderUpdated"
	EventNewProduce     = "newProduce"
	EventProduceUpdated = "produceUpdated"
	EventProduceRemoved = "produceRemoved"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderPayload struct {
	OrderID     string    `json:"order_id"`
	BuyerID     string    `json:"buyer_id"`
	FarmerID    string    `json:"farmer_id"`
	ProduceID   string    `json:"produce_id"`
	ProduceName string    `json:"produce_name"`
	Quantity    int       `json:"quantity"`
	Unit        string    `json:"unit"`
	TotalPrice  string    `json:"total_price"`
	Status      string    `json:"status"`
	PickupDate  time.Time `json:"pickup_date"`
}

type ProducePayload struct {
	ProduceID         string    `json:"produce_id"`
	FarmerID          string    `json:"farmer_id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	QuantityAvailable int       `json:"quantity_available"`
	Unit              string    `json:"unit"`
	PricePerUnit      string    `json:"price_per_unit"`
	Status            string    `json:"status"`
	AvailableDate     time.Time `json:"available_date"`
}

type ProduceRemovedPayload struct {
	ProduceID string `json:"produce_id"`
}

// Email kinds the mail dispatcher understands.
const (
	EventEmailRequested = "emailRequested"

	EmailKindOrderConfirmation = "order_confirmation"
	EmailKindStatusUpdate      = "order_status_update"
)

type EmailPayload struct {
	Kind        string `json:"kind"`
	RecipientID string `json:"recipient_id"`
	OrderID     string `json:"order_id"`
	ProduceName string `json:"produce_name,omitempty"`
	Quantity    int    `json:"quantity,omitempty"`
	Unit        string `json:"unit,omitempty"`
	TotalPrice  string `json:"total_price,omitempty"`
	Status      string `json:"status,omitempty"`
}
