package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/farm-market/internal/models"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced         = "OrderPlaced"
	EventOrderStatusChanged  = "OrderStatusChanged"
	EventPaymentStatusChange = "PaymentStatusChanged"
	EventListingCreated      = "ListingCreated"
	EventListingUpdated      = "ListingUpdated"
	EventListingDeleted      = "ListingDeleted"
)

const (
	TopicOrderPlaced    = "market.order.placed"
	TopicOrderStatus    = "market.order.status"
	TopicListingChanged = "market.listing.changed"
)

var topics = map[string]string{
	EventOrderPlaced:         TopicOrderPlaced,
	EventOrderStatusChanged:  TopicOrderStatus,
	EventPaymentStatusChange: TopicOrderStatus,
	EventListingCreated:      TopicListingChanged,
	EventListingUpdated:      TopicListingChanged,
	EventListingDeleted:      TopicListingChanged,
}

// TopicFor returns the topic an event type is published on.
func TopicFor(eventType string) (string, bool) {
	t, ok := topics[eventType]
	return t, ok
}

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

// NewEnvelope wraps payload in a version 1 envelope. correlationID is the
// order or listing id and doubles as the partition key.
func NewEnvelope(producer, eventType, correlationID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       b,
	}, nil
}

// UnwrapPayload decodes an envelope payload into T.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

type OrderPlacedPayload struct {
	OrderID       string               `json:"order_id"`
	CustomerID    string               `json:"customer_id"`
	Items         []models.OrderLine   `json:"items"`
	TotalAmount   decimal.Decimal      `json:"total_amount"`
	Currency      string               `json:"currency"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
}

type OrderStatusPayload struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type ListingPayload struct {
	ItemID   string `json:"item_id"`
	SellerID string `json:"seller_id,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Publisher accepts envelopes for delivery. Implementations must not block
// past ctx.
type Publisher interface {
	Publish(ctx context.Context, ev Envelope) error
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Envelope) error { return nil }

func UnmarshalEnvelope(b []byte, out *Envelope) error {
	return json.Unmarshal(b, out)
}
