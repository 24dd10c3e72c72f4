package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/farm-market/internal/models"
)

// itemColumn binds one MarketplaceItem field path to its marketplace_item
// column. scan yields the destination for reading a row into an item; insert
// yields the value written on create (nil for store-assigned columns); patch
// yields the value for a partial update when the field is present.
type itemColumn struct {
	field  string
	column string
	scan   func(*models.MarketplaceItem) any
	insert func(models.ItemDraft) any
	patch  func(models.ItemPatch) (any, bool)
}

var itemColumns = []itemColumn{
	{
		field: "id", column: "id",
		scan: func(i *models.MarketplaceItem) any { return &i.ID },
	},
	{
		field: "sellerId", column: "seller_id",
		scan:   func(i *models.MarketplaceItem) any { return &i.SellerID },
		insert: func(d models.ItemDraft) any { return d.SellerID },
		patch:  func(p models.ItemPatch) (any, bool) { return deref(p.SellerID) },
	},
	{
		field: "sellerName", column: "seller_name",
		scan:   func(i *models.MarketplaceItem) any { return &i.SellerName },
		insert: func(d models.ItemDraft) any { return d.SellerName },
		patch:  func(p models.ItemPatch) (any, bool) { return deref(p.SellerName) },
	},
	{
		field: "name", column: "name",
		scan:   func(i *models.MarketplaceItem) any { return &i.Name },
		insert: func(d models.ItemDraft) any { return d.Name },
		patch:  func(p models.ItemPatch) (any, bool) { return deref(p.Name) },
	},
	{
		field: "category", column: "category",
		scan:   func(i *models.MarketplaceItem) any { return &i.Category },
		insert: func(d models.ItemDraft) any { return string(d.Category) },
		patch: func(p models.ItemPatch) (any, bool) {
			if p.Category == nil {
				return nil, false
			}
			return string(*p.Category), true
		},
	},
	{
		field: "type", column: "type",
		scan:   func(i *models.MarketplaceItem) any { return &i.Type },
		insert: func(d models.ItemDraft) any { return d.Type },
		patch:  func(p models.ItemPatch) (any, bool) { return deref(p.Type) },
	},
	{
		field: "description", column: "description",
		scan:   func(i *models.MarketplaceItem) any { return &i.Description },
		insert: func(d models.ItemDraft) any { return d.Description },
		patch:  func(p models.ItemPatch) (any, bool) { return deref(p.Description) },
	},
	{
		field: "price", column: "price",
		scan:   func(i *models.MarketplaceItem) any { return &i.Price },
		insert: func(d models.ItemDraft) any { return d.Price },
		patch:  func(p models.ItemPatch) (any, bool) { return deref(p.Price) },
	},
	{
		field: "currency", column: "currency",
		scan:   func(i *models.MarketplaceItem) any { return &i.Currency },
		insert: func(d models.ItemDraft) any { return d.Currency },
		patch:  func(p models.ItemPatch) (any, bool) { return deref(p.Currency) },
	},
	{
		field: "quantity", column: "quantity",
		scan:   func(i *models.MarketplaceItem) any { return &i.Quantity },
		insert: func(d models.ItemDraft) any { return d.Quantity },
		patch:  func(p models.ItemPatch) (any, bool) { return deref(p.Quantity) },
	},
	{
		field: "unit", column: "unit",
		scan:   func(i *models.MarketplaceItem) any { return &i.Unit },
		insert: func(d models.ItemDraft) any { return d.Unit },
		patch:  func(p models.ItemPatch) (any, bool) { return deref(p.Unit) },
	},
	{
		field: "location.province", column: "province",
		scan:   func(i *models.MarketplaceItem) any { return &i.Location.Province },
		insert: func(d models.ItemDraft) any { return d.Location.Province },
		patch: func(p models.ItemPatch) (any, bool) {
			if p.Location == nil {
				return nil, false
			}
			return deref(p.Location.Province)
		},
	},
	{
		field: "location.district", column: "district",
		scan:   func(i *models.MarketplaceItem) any { return &i.Location.District },
		insert: func(d models.ItemDraft) any { return d.Location.District },
		patch: func(p models.ItemPatch) (any, bool) {
			if p.Location == nil {
				return nil, false
			}
			return deref(p.Location.District)
		},
	},
	{
		field: "images", column: "images",
		scan:   func(i *models.MarketplaceItem) any { return pq.Array(&i.Images) },
		insert: func(d models.ItemDraft) any { return pq.Array(nonNil(d.Images)) },
		patch: func(p models.ItemPatch) (any, bool) {
			if p.Images == nil {
				return nil, false
			}
			return pq.Array(p.Images), true
		},
	},
	{
		field: "status", column: "status",
		scan:   func(i *models.MarketplaceItem) any { return &i.Status },
		insert: func(d models.ItemDraft) any { return string(d.Status) },
		patch: func(p models.ItemPatch) (any, bool) {
			if p.Status == nil {
				return nil, false
			}
			return string(*p.Status), true
		},
	},
	{
		field: "createdAt", column: "created_at",
		scan: func(i *models.MarketplaceItem) any { return &i.CreatedAt },
	},
}

// ItemColumn returns the marketplace_item column for a camelCase field path
// such as "location.province".
func ItemColumn(field string) (string, bool) {
	for _, c := range itemColumns {
		if c.field == field {
			return c.column, true
		}
	}
	return "", false
}

// ItemField is the inverse of ItemColumn.
func ItemField(column string) (string, bool) {
	for _, c := range itemColumns {
		if c.column == column {
			return c.field, true
		}
	}
	return "", false
}

func itemSelectList() string {
	cols := make([]string, len(itemColumns))
	for i, c := range itemColumns {
		cols[i] = c.column
	}
	return strings.Join(cols, ", ")
}

func itemScanDest(item *models.MarketplaceItem) []any {
	dest := make([]any, len(itemColumns))
	for i, c := range itemColumns {
		dest[i] = c.scan(item)
	}
	return dest
}

// itemInsert returns the insert column list, placeholders and values for a
// draft, skipping store-assigned columns.
func itemInsert(draft models.ItemDraft) (cols []string, placeholders []string, args []any) {
	for _, c := range itemColumns {
		if c.insert == nil {
			continue
		}
		cols = append(cols, c.column)
		args = append(args, c.insert(draft))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	return cols, placeholders, args
}

// itemAssignments returns "column = $n" fragments for every field present in
// the patch, numbering placeholders from 1.
func itemAssignments(patch models.ItemPatch) (sets []string, args []any) {
	for _, c := range itemColumns {
		if c.patch == nil {
			continue
		}
		v, ok := c.patch(patch)
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", c.column, len(args)))
	}
	return sets, args
}

func deref[T any](p *T) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// orderColumn is the orders counterpart of itemColumn.
type orderColumn struct {
	field  string
	column string
	scan   func(*models.Order) any
	insert func(models.OrderDraft) any
}

var orderColumns = []orderColumn{
	{
		field: "id", column: "id",
		scan: func(o *models.Order) any { return &o.ID },
	},
	{
		field: "customerId", column: "customer_id",
		scan:   func(o *models.Order) any { return &o.CustomerID },
		insert: func(d models.OrderDraft) any { return d.CustomerID },
	},
	{
		field: "items", column: "items",
		scan:   func(o *models.Order) any { return &orderLines{lines: &o.Items} },
		insert: func(d models.OrderDraft) any { return orderLines{lines: &d.Items} },
	},
	{
		field: "totalAmount", column: "total_amount",
		scan:   func(o *models.Order) any { return &o.TotalAmount },
		insert: func(d models.OrderDraft) any { return d.TotalAmount },
	},
	{
		field: "status", column: "status",
		scan:   func(o *models.Order) any { return &o.Status },
		insert: func(d models.OrderDraft) any { return string(d.Status) },
	},
	{
		field: "deliveryAddress", column: "delivery_address",
		scan:   func(o *models.Order) any { return &o.DeliveryAddress },
		insert: func(d models.OrderDraft) any { return d.DeliveryAddress },
	},
	{
		field: "orderDate", column: "order_date",
		scan:   func(o *models.Order) any { return &o.OrderDate },
		insert: func(d models.OrderDraft) any { return d.OrderDate },
	},
	{
		field: "deliveryDetails.fullName", column: "delivery_full_name",
		scan:   func(o *models.Order) any { return &o.DeliveryDetails.FullName },
		insert: func(d models.OrderDraft) any { return d.DeliveryDetails.FullName },
	},
	{
		field: "deliveryDetails.phone", column: "delivery_phone",
		scan:   func(o *models.Order) any { return &o.DeliveryDetails.Phone },
		insert: func(d models.OrderDraft) any { return d.DeliveryDetails.Phone },
	},
	{
		field: "deliveryDetails.address", column: "delivery_street",
		scan:   func(o *models.Order) any { return &o.DeliveryDetails.Address },
		insert: func(d models.OrderDraft) any { return d.DeliveryDetails.Address },
	},
	{
		field: "deliveryDetails.district", column: "delivery_district",
		scan:   func(o *models.Order) any { return &o.DeliveryDetails.District },
		insert: func(d models.OrderDraft) any { return d.DeliveryDetails.District },
	},
	{
		field: "deliveryDetails.province", column: "delivery_province",
		scan:   func(o *models.Order) any { return &o.DeliveryDetails.Province },
		insert: func(d models.OrderDraft) any { return d.DeliveryDetails.Province },
	},
	{
		field: "deliveryDetails.specialInstructions", column: "delivery_notes",
		scan:   func(o *models.Order) any { return &o.DeliveryDetails.SpecialInstructions },
		insert: func(d models.OrderDraft) any { return d.DeliveryDetails.SpecialInstructions },
	},
	{
		field: "paymentMethod", column: "payment_method",
		scan:   func(o *models.Order) any { return &o.PaymentMethod },
		insert: func(d models.OrderDraft) any { return string(d.PaymentMethod) },
	},
	{
		field: "paymentStatus", column: "payment_status",
		scan:   func(o *models.Order) any { return &o.PaymentStatus },
		insert: func(d models.OrderDraft) any { return string(d.PaymentStatus) },
	},
	{
		field: "updatedAt", column: "updated_at",
		scan: func(o *models.Order) any { return &o.UpdatedAt },
	},
}

// OrderColumn returns the orders column for a camelCase field path such as
// "deliveryDetails.phone".
func OrderColumn(field string) (string, bool) {
	for _, c := range orderColumns {
		if c.field == field {
			return c.column, true
		}
	}
	return "", false
}

func orderSelectList() string {
	cols := make([]string, len(orderColumns))
	for i, c := range orderColumns {
		cols[i] = c.column
	}
	return strings.Join(cols, ", ")
}

func orderScanDest(order *models.Order) []any {
	dest := make([]any, len(orderColumns))
	for i, c := range orderColumns {
		dest[i] = c.scan(order)
	}
	return dest
}

func orderInsert(draft models.OrderDraft) (cols []string, placeholders []string, args []any) {
	for _, c := range orderColumns {
		if c.insert == nil {
			continue
		}
		cols = append(cols, c.column)
		args = append(args, c.insert(draft))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	return cols, placeholders, args
}

// orderLines stores order lines in a JSONB column.
type orderLines struct {
	lines *[]models.OrderLine
}

func (l orderLines) Value() (driver.Value, error) {
	lines := []models.OrderLine{}
	if l.lines != nil && *l.lines != nil {
		lines = *l.lines
	}
	b, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("encode order lines: %w", err)
	}
	return string(b), nil
}

func (l *orderLines) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	case nil:
		*l.lines = []models.OrderLine{}
		return nil
	default:
		return fmt.Errorf("scan order lines: unsupported type %T", src)
	}
	var lines []models.OrderLine
	if err := json.Unmarshal(b, &lines); err != nil {
		return fmt.Errorf("decode order lines: %w", err)
	}
	if lines == nil {
		lines = []models.OrderLine{}
	}
	*l.lines = lines
	return nil
}
