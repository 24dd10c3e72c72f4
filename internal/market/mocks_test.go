package market

import (
	"context"
	"sync"

	"github.com/safar/farm-market/internal/events"
	"github.com/safar/farm-market/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockItemStore struct {
	mock.Mock
}

func (m *MockItemStore) ListItems(ctx context.Context) ([]models.MarketplaceItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MarketplaceItem), args.Error(1)
}

func (m *MockItemStore) GetItem(ctx context.Context, id string) (*models.MarketplaceItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MarketplaceItem), args.Error(1)
}

func (m *MockItemStore) CreateItem(ctx context.Context, draft models.ItemDraft) (*models.MarketplaceItem, error) {
	args := m.Called(ctx, draft)
	if fn, ok := args.Get(0).(func(context.Context, models.ItemDraft) *models.MarketplaceItem); ok {
		return fn(ctx, draft), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MarketplaceItem), args.Error(1)
}

func (m *MockItemStore) UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (bool, error) {
	args := m.Called(ctx, id, patch)
	return args.Bool(0), args.Error(1)
}

func (m *MockItemStore) DeleteItem(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) CreateOrder(ctx context.Context, draft models.OrderDraft) (*models.Order, error) {
	args := m.Called(ctx, draft)
	if fn, ok := args.Get(0).(func(context.Context, models.OrderDraft) *models.Order); ok {
		return fn(ctx, draft), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderStore) ListOrders(ctx context.Context, customerID string) ([]models.Order, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderStore) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (bool, error) {
	args := m.Called(ctx, id, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderStore) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) (bool, error) {
	args := m.Called(ctx, id, status)
	return args.Bool(0), args.Error(1)
}

// recordingPublisher keeps every published envelope.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Envelope
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.EventType
	}
	return out
}
