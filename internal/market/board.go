package market

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/safar/farm-market/internal/models"
	"go.uber.org/zap"
)

// Board is one viewer's local copy of the marketplace: the listings, the
// viewer's orders, the grid criteria and the order form. The copies may be
// stale. Every mutation goes through the Service first and is mirrored
// locally only on success; a failure is logged and leaves the board as it
// was.
type Board struct {
	svc    *Service
	viewer Actor
	logger *zap.Logger

	mu        sync.RWMutex
	items     []models.MarketplaceItem
	orders    []models.Order
	criteria  Criteria
	selected  *models.MarketplaceItem
	orderForm bool
}

func NewBoard(svc *Service, viewer Actor, logger *zap.Logger) *Board {
	return &Board{
		svc:      svc,
		viewer:   viewer,
		logger:   logger.With(zap.String("viewer_id", viewer.ID)),
		items:    []models.MarketplaceItem{},
		orders:   []models.Order{},
		criteria: Criteria{Category: All, Province: All, Sort: SortName},
	}
}

// Refresh reloads the listings and then the viewer's orders. A failed load
// keeps the previous copy.
func (b *Board) Refresh(ctx context.Context) {
	if b.viewer.ID == "" {
		return
	}

	items, err := b.svc.ListItems(ctx)
	if err != nil {
		b.logger.Error("Error loading marketplace items", zap.Error(err))
		return
	}
	b.mu.Lock()
	b.items = items
	b.mu.Unlock()

	orders, err := b.svc.ListOrders(ctx, b.viewer)
	if err != nil {
		b.logger.Error("Error loading orders", zap.Error(err))
		return
	}
	b.mu.Lock()
	b.orders = orders
	b.mu.Unlock()
}

func (b *Board) Items() []models.MarketplaceItem {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.items)
}

func (b *Board) Orders() []models.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.orders)
}

func (b *Board) SetCriteria(c Criteria) {
	b.mu.Lock()
	b.criteria = c
	b.mu.Unlock()
}

// Visible is the listing grid: the local listings narrowed and ordered by
// the current criteria.
func (b *Board) Visible() []models.MarketplaceItem {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Apply(b.items, b.criteria)
}

func (b *Board) Analytics() Analytics {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Summarize(b.orders)
}

func (b *Board) AddListing(ctx context.Context, in ListingInput) {
	if b.viewer.ID == "" {
		return
	}

	item, err := b.svc.CreateListing(ctx, b.viewer, in)
	if err != nil {
		b.logger.Error("Error adding marketplace item", zap.String("name", in.Name), zap.Error(err))
		return
	}

	b.mu.Lock()
	b.items = append(b.items, *item)
	b.mu.Unlock()
}

// UpdateListing merges patch into the local copy once the store accepts it.
func (b *Board) UpdateListing(ctx context.Context, id string, patch models.ItemPatch) {
	ok, err := b.svc.UpdateListing(ctx, id, patch)
	if err != nil || !ok {
		b.logger.Error("Error updating marketplace item", zap.String("item_id", id), zap.Error(err))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].ID == id {
			b.items[i] = patch.Apply(b.items[i])
		}
	}
}

func (b *Board) DeleteListing(ctx context.Context, id string) {
	ok, err := b.svc.DeleteListing(ctx, id)
	if err != nil || !ok {
		b.logger.Error("Error deleting marketplace item", zap.String("item_id", id), zap.Error(err))
		return
	}

	b.mu.Lock()
	b.items = slices.DeleteFunc(b.items, func(it models.MarketplaceItem) bool { return it.ID == id })
	b.mu.Unlock()
}

// OpenOrderForm selects item for ordering.
func (b *Board) OpenOrderForm(item models.MarketplaceItem) {
	b.mu.Lock()
	b.selected = &item
	b.orderForm = true
	b.mu.Unlock()
}

func (b *Board) CloseOrderForm() {
	b.mu.Lock()
	b.selected = nil
	b.orderForm = false
	b.mu.Unlock()
}

// OrderForm returns the selected listing and whether the form is open.
func (b *Board) OrderForm() (models.MarketplaceItem, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.orderForm || b.selected == nil {
		return models.MarketplaceItem{}, false
	}
	return *b.selected, true
}

// SubmitOrder places an order for the selected listing. On success the
// order is appended and the form closes; on failure the form stays open.
func (b *Board) SubmitOrder(ctx context.Context, req OrderRequest) {
	item, open := b.OrderForm()
	if !open || b.viewer.ID == "" {
		return
	}

	order, err := b.svc.PlaceOrder(ctx, b.viewer, item, req)
	if err != nil {
		b.logger.Error("Error placing order",
			zap.String("item_id", item.ID),
			zap.String("quantity", req.Quantity.String()),
			zap.Error(err),
		)
		return
	}

	b.mu.Lock()
	b.orders = append(b.orders, *order)
	b.selected = nil
	b.orderForm = false
	b.mu.Unlock()
}

// SetOrderStatus overwrites an order's status. Any status may follow any
// other.
func (b *Board) SetOrderStatus(ctx context.Context, id string, status models.OrderStatus) {
	ok, err := b.svc.UpdateOrderStatus(ctx, id, status)
	if err != nil || !ok {
		b.logger.Error("Error updating order status",
			zap.String("order_id", id),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return
	}

	now := time.Now().UTC()
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.orders {
		if b.orders[i].ID == id {
			b.orders[i].Status = status
			b.orders[i].UpdatedAt = now
		}
	}
}
