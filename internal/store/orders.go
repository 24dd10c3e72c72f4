package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/safar/farm-market/internal/database"
	"github.com/safar/farm-market/internal/models"
)

// CreateOrder inserts an order as given. The total and the line quantities
// are not checked against the listings; unless the store was built with
// WithReserveOnOrder, listings are left untouched.
func (s *Store) CreateOrder(ctx context.Context, draft models.OrderDraft) (*models.Order, error) {
	if draft.Status == "" {
		draft.Status = models.OrderStatusPending
	}
	if draft.PaymentStatus == "" {
		draft.PaymentStatus = models.PaymentStatusPending
	}
	if draft.OrderDate.IsZero() {
		draft.OrderDate = time.Now().UTC()
	}

	if !s.reserveOnOrder {
		return insertOrder(ctx, s.db, draft)
	}

	var order *models.Order
	err := database.WithRetry(ctx, s.db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		for _, line := range draft.Items {
			available, err := lockItemNoWait(ctx, tx, line.ItemID)
			if err != nil {
				return err
			}
			if available.LessThan(line.Quantity) {
				return database.ErrInsufficientQuantity
			}
			if err := DecrementQuantity(ctx, tx, line.ItemID, line.Quantity); err != nil {
				return err
			}
		}

		created, err := insertOrder(ctx, tx, draft)
		if err != nil {
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func insertOrder(ctx context.Context, q database.Querier, draft models.OrderDraft) (*models.Order, error) {
	cols, placeholders, args := orderInsert(draft)
	query := `INSERT INTO orders (` + strings.Join(cols, ", ") + `)
		VALUES (` + strings.Join(placeholders, ", ") + `)
		RETURNING ` + orderSelectList()

	order := &models.Order{}
	if err := q.QueryRowContext(ctx, query, args...).Scan(orderScanDest(order)...); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return order, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if !validID(id) {
		return nil, database.ErrOrderNotFound
	}

	order := &models.Order{}
	query := `SELECT ` + orderSelectList() + ` FROM orders WHERE id = $1`

	err := s.db.QueryRowContext(ctx, query, id).Scan(orderScanDest(order)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return order, nil
}

// ListOrders returns every order placed by a customer, oldest first.
func (s *Store) ListOrders(ctx context.Context, customerID string) ([]models.Order, error) {
	query := `SELECT ` + orderSelectList() + `
		FROM orders
		WHERE customer_id = $1
		ORDER BY order_date, id`

	rows, err := s.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

func (s *Store) ListOrdersPage(ctx context.Context, customerID, cursor string, limit int) (*OrderPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + orderSelectList() + `
		FROM orders
		WHERE customer_id = $1
		  AND (order_date, id) < ($2, $3::uuid)
		ORDER BY order_date DESC, id DESC
		LIMIT $4`

	rows, err := s.db.QueryContext(ctx, query, customerID, cursorData.OrderDate, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{OrderDate: last.OrderDate, ID: last.ID})
	}

	return &OrderPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func scanOrders(rows *sql.Rows) ([]models.Order, error) {
	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := rows.Scan(orderScanDest(&order)...); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// UpdateOrderStatus overwrites the status. Any status may follow any other;
// there is no transition table.
func (s *Store) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (bool, error) {
	return s.setOrderField(ctx, id, "status", string(status))
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) (bool, error) {
	return s.setOrderField(ctx, id, "paymentStatus", string(status))
}

// setOrderField overwrites one order field, named as in the JSON model.
func (s *Store) setOrderField(ctx context.Context, id, field, value string) (bool, error) {
	column, ok := OrderColumn(field)
	if !ok {
		return false, fmt.Errorf("unknown order field %q", field)
	}
	if !validID(id) {
		return false, database.ErrOrderNotFound
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE orders SET `+column+` = $1, updated_at = NOW() WHERE id = $2`,
		value, id)
	if err != nil {
		return false, fmt.Errorf("update order %s: %w", column, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, database.ErrOrderNotFound
	}

	return true, nil
}
