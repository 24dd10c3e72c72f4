package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/safar/farm-market/internal/database"
	"github.com/safar/farm-market/internal/models"
	"github.com/shopspring/decimal"
)

// Store is the Postgres-backed item and order store.
type Store struct {
	db             *sql.DB
	reserveOnOrder bool
}

type Option func(*Store)

// WithReserveOnOrder makes CreateOrder decrement each listing's quantity in
// the same transaction as the order insert.
func WithReserveOnOrder(enabled bool) Option {
	return func(s *Store) { s.reserveOnOrder = enabled }
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// validID reports whether id can name a row. Malformed ids are treated as
// missing rows instead of being sent to Postgres as invalid uuid text.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Store) ListItems(ctx context.Context) ([]models.MarketplaceItem, error) {
	query := `SELECT ` + itemSelectList() + `
		FROM marketplace_item
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []models.MarketplaceItem{}
	for rows.Next() {
		var item models.MarketplaceItem
		if err := rows.Scan(itemScanDest(&item)...); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*models.MarketplaceItem, error) {
	if !validID(id) {
		return nil, database.ErrItemNotFound
	}

	item := &models.MarketplaceItem{}
	query := `SELECT ` + itemSelectList() + ` FROM marketplace_item WHERE id = $1`

	err := s.db.QueryRowContext(ctx, query, id).Scan(itemScanDest(item)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrItemNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	return item, nil
}

// CreateItem inserts a listing and returns it as stored. Empty currency and
// status fall back to ZMW and available.
func (s *Store) CreateItem(ctx context.Context, draft models.ItemDraft) (*models.MarketplaceItem, error) {
	if draft.Currency == "" {
		draft.Currency = models.Currency
	}
	if draft.Status == "" {
		draft.Status = models.ItemStatusAvailable
	}

	cols, placeholders, args := itemInsert(draft)
	query := `INSERT INTO marketplace_item (` + strings.Join(cols, ", ") + `)
		VALUES (` + strings.Join(placeholders, ", ") + `)
		RETURNING ` + itemSelectList()

	item := &models.MarketplaceItem{}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(itemScanDest(item)...); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	return item, nil
}

// UpdateItem writes only the fields present in patch. An empty patch reports
// success without touching the row.
func (s *Store) UpdateItem(ctx context.Context, id string, patch models.ItemPatch) (bool, error) {
	if !validID(id) {
		return false, database.ErrItemNotFound
	}

	sets, args := itemAssignments(patch)
	if len(sets) == 0 {
		return true, nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE marketplace_item SET %s WHERE id = $%d`,
		strings.Join(sets, ", "), len(args))

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, database.ErrItemNotFound
	}

	return true, nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) (bool, error) {
	if !validID(id) {
		return false, database.ErrItemNotFound
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM marketplace_item WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, database.ErrItemNotFound
	}

	return true, nil
}

// lockItemNoWait takes a row lock on a listing, failing fast with
// ErrLockTimeout if another transaction holds it.
func lockItemNoWait(ctx context.Context, tx *sql.Tx, id string) (decimal.Decimal, error) {
	var quantity decimal.Decimal
	if !validID(id) {
		return quantity, database.ErrItemNotFound
	}

	err := tx.QueryRowContext(ctx,
		`SELECT quantity FROM marketplace_item WHERE id = $1 FOR UPDATE NOWAIT`,
		id).Scan(&quantity)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "55P03" {
			return quantity, database.ErrLockTimeout
		}
		if errors.Is(err, sql.ErrNoRows) {
			return quantity, database.ErrItemNotFound
		}
		return quantity, fmt.Errorf("lock item (nowait): %w", err)
	}

	return quantity, nil
}

// DecrementQuantity subtracts quantity from a listing only if enough remains.
func DecrementQuantity(ctx context.Context, q database.Querier, id string, quantity decimal.Decimal) error {
	result, err := q.ExecContext(ctx,
		`UPDATE marketplace_item
		 SET quantity = quantity - $1
		 WHERE id = $2
		   AND quantity >= $1`,
		quantity, id)
	if err != nil {
		return fmt.Errorf("decrement quantity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrInsufficientQuantity
	}

	return nil
}
