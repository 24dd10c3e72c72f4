package market

import (
	"context"
	"fmt"
	"time"

	"github.com/safar/farm-market/internal/events"
	"github.com/safar/farm-market/internal/models"
	"github.com/shopspring/decimal"
)

// OrderRequest is the buyer's order form for a single listing.
type OrderRequest struct {
	Quantity      decimal.Decimal        `json:"quantity"`
	Delivery      models.DeliveryDetails `json:"delivery"`
	PaymentMethod models.PaymentMethod   `json:"paymentMethod"`
}

var one = decimal.NewFromInt(1)

// PlaceOrder orders req.Quantity of item for buyer.
//
// The quantity is bounded by item as the caller last saw it. Nothing
// re-checks it at write time, and the listing's quantity and status are
// left as they are unless the store reserves stock itself.
func (s *Service) PlaceOrder(ctx context.Context, buyer Actor, item models.MarketplaceItem, req OrderRequest) (*models.Order, error) {
	if buyer.ID == "" {
		return nil, &ValidationError{Field: "customerId", Message: "is required"}
	}
	if req.Quantity.LessThan(one) {
		return nil, &ValidationError{Field: "quantity", Message: "must be at least 1"}
	}
	if !req.Quantity.Equal(req.Quantity.Truncate(models.QuantityPlaces)) {
		return nil, &ValidationError{Field: "quantity", Message: fmt.Sprintf("must have at most %d decimal places", models.QuantityPlaces)}
	}
	if req.Quantity.GreaterThan(item.Quantity) {
		return nil, &ValidationError{Field: "quantity", Message: "exceeds listed quantity " + item.Quantity.String()}
	}
	if err := s.check(req.Delivery); err != nil {
		return nil, err
	}
	if !req.PaymentMethod.Valid() {
		return nil, &ValidationError{Field: "paymentMethod", Message: "unknown payment method"}
	}

	order, err := s.orders.CreateOrder(ctx, BuildOrder(buyer, item, req, time.Now().UTC()))
	if err != nil {
		return nil, err
	}

	s.announce(ctx, events.EventOrderPlaced, order.ID, events.OrderPlacedPayload{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		Items:         order.Items,
		TotalAmount:   order.TotalAmount,
		Currency:      models.Currency,
		PaymentMethod: order.PaymentMethod,
	})
	return order, nil
}

// BuildOrder turns an order form into a pending order draft. The total is
// price times quantity, unrounded.
func BuildOrder(buyer Actor, item models.MarketplaceItem, req OrderRequest, now time.Time) models.OrderDraft {
	return models.OrderDraft{
		CustomerID: buyer.ID,
		Items: []models.OrderLine{{
			ItemID:    item.ID,
			Name:      item.Name,
			Quantity:  req.Quantity,
			Unit:      item.Unit,
			UnitPrice: item.Price,
		}},
		TotalAmount:     item.Price.Mul(req.Quantity),
		Status:          models.OrderStatusPending,
		DeliveryAddress: req.Delivery.Address,
		OrderDate:       now,
		DeliveryDetails: req.Delivery,
		PaymentMethod:   req.PaymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
	}
}
