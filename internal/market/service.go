package market

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/safar/farm-market/internal/events"
	"github.com/safar/farm-market/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Actor is the signed-in user a flow runs on behalf of.
type Actor struct {
	ID   string
	Name string
}

type ItemStore interface {
	ListItems(ctx context.Context) ([]models.MarketplaceItem, error)
	GetItem(ctx context.Context, id string) (*models.MarketplaceItem, error)
	CreateItem(ctx context.Context, draft models.ItemDraft) (*models.MarketplaceItem, error)
	UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (bool, error)
	DeleteItem(ctx context.Context, id string) (bool, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, draft models.OrderDraft) (*models.Order, error)
	ListOrders(ctx context.Context, customerID string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) (bool, error)
}

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Service runs the listing and order flows against the stores and announces
// every successful mutation.
type Service struct {
	items     ItemStore
	orders    OrderStore
	publisher events.Publisher
	producer  string
	validate  *validator.Validate
	logger    *zap.Logger
}

func NewService(items ItemStore, orders OrderStore, publisher events.Publisher, producer string, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		items:     items,
		orders:    orders,
		publisher: publisher,
		producer:  producer,
		validate:  newValidator(),
		logger:    logger,
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ListingInput is what a seller fills in. Seller, currency and status are
// not taken from the form.
type ListingInput struct {
	Name        string          `json:"name" validate:"required"`
	Category    models.Category `json:"category"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit" validate:"required"`
	Province    string          `json:"province" validate:"required"`
	District    string          `json:"district"`
	Images      []string        `json:"images"`
}

func (s *Service) ListItems(ctx context.Context) ([]models.MarketplaceItem, error) {
	return s.items.ListItems(ctx)
}

func (s *Service) GetItem(ctx context.Context, id string) (*models.MarketplaceItem, error) {
	return s.items.GetItem(ctx, id)
}

// CreateListing lists an item under seller's name, priced in ZMW and
// available.
func (s *Service) CreateListing(ctx context.Context, seller Actor, in ListingInput) (*models.MarketplaceItem, error) {
	if seller.ID == "" {
		return nil, &ValidationError{Field: "sellerId", Message: "is required"}
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	if !in.Category.Valid() {
		return nil, &ValidationError{Field: "category", Message: fmt.Sprintf("must be %s or %s", models.CategoryInputs, models.CategoryProduce)}
	}
	if err := checkAmount("price", in.Price, models.PricePlaces, models.MaxPrice); err != nil {
		return nil, err
	}
	if err := checkAmount("quantity", in.Quantity, models.QuantityPlaces, models.MaxQuantity); err != nil {
		return nil, err
	}

	images := in.Images
	if images == nil {
		images = []string{}
	}

	item, err := s.items.CreateItem(ctx, models.ItemDraft{
		SellerID:    seller.ID,
		SellerName:  seller.Name,
		Name:        in.Name,
		Category:    in.Category,
		Type:        in.Type,
		Description: in.Description,
		Price:       in.Price,
		Currency:    models.Currency,
		Quantity:    in.Quantity,
		Unit:        in.Unit,
		Location:    models.Location{Province: in.Province, District: in.District},
		Images:      images,
		Status:      models.ItemStatusAvailable,
	})
	if err != nil {
		return nil, err
	}

	s.announce(ctx, events.EventListingCreated, item.ID, events.ListingPayload{
		ItemID: item.ID, SellerID: item.SellerID, Name: item.Name,
	})
	return item, nil
}

// UpdateListing applies a partial update. Enum and amount checks run before
// the store is touched.
func (s *Service) UpdateListing(ctx context.Context, id string, patch models.ItemPatch) (bool, error) {
	if patch.Category != nil && !patch.Category.Valid() {
		return false, &ValidationError{Field: "category", Message: "unknown category"}
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return false, &ValidationError{Field: "status", Message: "unknown status"}
	}
	if patch.Price != nil {
		if err := checkAmount("price", *patch.Price, models.PricePlaces, models.MaxPrice); err != nil {
			return false, err
		}
	}
	if patch.Quantity != nil {
		if err := checkAmount("quantity", *patch.Quantity, models.QuantityPlaces, models.MaxQuantity); err != nil {
			return false, err
		}
	}

	ok, err := s.items.UpdateItem(ctx, id, patch)
	if err != nil || !ok {
		return ok, err
	}

	s.announce(ctx, events.EventListingUpdated, id, events.ListingPayload{ItemID: id})
	return true, nil
}

func (s *Service) DeleteListing(ctx context.Context, id string) (bool, error) {
	ok, err := s.items.DeleteItem(ctx, id)
	if err != nil || !ok {
		return ok, err
	}

	s.announce(ctx, events.EventListingDeleted, id, events.ListingPayload{ItemID: id})
	return true, nil
}

func (s *Service) ListOrders(ctx context.Context, buyer Actor) ([]models.Order, error) {
	return s.orders.ListOrders(ctx, buyer.ID)
}

// UpdateOrderStatus sets any known status regardless of the current one.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (bool, error) {
	if !status.Valid() {
		return false, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown order status %q", status)}
	}

	ok, err := s.orders.UpdateOrderStatus(ctx, id, status)
	if err != nil || !ok {
		return ok, err
	}

	s.announce(ctx, events.EventOrderStatusChanged, id, events.OrderStatusPayload{OrderID: id, Status: string(status)})
	return true, nil
}

func (s *Service) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) (bool, error) {
	if !status.Valid() {
		return false, &ValidationError{Field: "paymentStatus", Message: fmt.Sprintf("unknown payment status %q", status)}
	}

	ok, err := s.orders.UpdatePaymentStatus(ctx, id, status)
	if err != nil || !ok {
		return ok, err
	}

	s.announce(ctx, events.EventPaymentStatusChange, id, events.OrderStatusPayload{OrderID: id, Status: string(status)})
	return true, nil
}

// checkAmount rejects amounts the store would round or could not hold.
func checkAmount(field string, v decimal.Decimal, places int32, limit decimal.Decimal) error {
	switch {
	case v.IsNegative():
		return &ValidationError{Field: field, Message: "must not be negative"}
	case !v.Equal(v.Truncate(places)):
		return &ValidationError{Field: field, Message: fmt.Sprintf("must have at most %d decimal places", places)}
	case v.GreaterThanOrEqual(limit):
		return &ValidationError{Field: field, Message: "must be less than " + limit.String()}
	}
	return nil
}

// check runs struct tag validation and reports the first failing field.
func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: fe.Field(), Message: "is " + fe.Tag()}
	}
	return fmt.Errorf("validate: %w", err)
}

// announce publishes an event. Publishing is best effort: a failure is
// logged and never undoes the mutation it describes.
func (s *Service) announce(ctx context.Context, eventType, correlationID string, payload any) {
	ev, err := events.NewEnvelope(s.producer, eventType, correlationID, payload)
	if err == nil {
		err = s.publisher.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("event_type", eventType),
			zap.String("correlation_id", correlationID),
			zap.Error(err),
		)
	}
}
