package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency is the only currency listings are priced in.
const Currency = "ZMW"

// Storage precision of listing amounts. Prices are kept to the ngwee and
// quantities to a thousandth of a unit; both must stay below their max.
const (
	PricePlaces    = 2
	QuantityPlaces = 3
)

var (
	MaxPrice    = decimal.New(1, 10)
	MaxQuantity = decimal.New(1, 9)
)

type Category string

const (
	CategoryInputs  Category = "inputs"
	CategoryProduce Category = "produce"
)

func (c Category) Valid() bool {
	return c == CategoryInputs || c == CategoryProduce
}

type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusSold      ItemStatus = "sold"
	ItemStatusReserved  ItemStatus = "reserved"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusAvailable, ItemStatusSold, ItemStatusReserved:
		return true
	}
	return false
}

type Location struct {
	Province string `json:"province"`
	District string `json:"district"`
}

// MarketplaceItem is a listing: an agricultural input for sale or produce
// offered by a farmer. Seller fields are denormalized and not checked against
// any user table.
type MarketplaceItem struct {
	ID          string          `json:"id"`
	SellerID    string          `json:"sellerId"`
	SellerName  string          `json:"sellerName"`
	Name        string          `json:"name"`
	Category    Category        `json:"category"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	Location    Location        `json:"location"`
	Images      []string        `json:"images"`
	Status      ItemStatus      `json:"status"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ItemDraft is a listing before the store has assigned ID and CreatedAt.
type ItemDraft struct {
	SellerID    string          `json:"sellerId"`
	SellerName  string          `json:"sellerName"`
	Name        string          `json:"name"`
	Category    Category        `json:"category"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	Location    Location        `json:"location"`
	Images      []string        `json:"images"`
	Status      ItemStatus      `json:"status"`
}

// LocationPatch updates province and district independently.
type LocationPatch struct {
	Province *string `json:"province,omitempty"`
	District *string `json:"district,omitempty"`
}

// ItemPatch carries a partial listing update. Nil fields are left alone.
type ItemPatch struct {
	SellerID    *string          `json:"sellerId,omitempty"`
	SellerName  *string          `json:"sellerName,omitempty"`
	Name        *string          `json:"name,omitempty"`
	Category    *Category        `json:"category,omitempty"`
	Type        *string          `json:"type,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Currency    *string          `json:"currency,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	Unit        *string          `json:"unit,omitempty"`
	Location    *LocationPatch   `json:"location,omitempty"`
	Images      []string         `json:"images,omitempty"`
	Status      *ItemStatus      `json:"status,omitempty"`
}

// Apply returns a copy of item with the patch merged in, mirroring what a
// re-fetch would return after a successful update.
func (p ItemPatch) Apply(item MarketplaceItem) MarketplaceItem {
	if p.SellerID != nil {
		item.SellerID = *p.SellerID
	}
	if p.SellerName != nil {
		item.SellerName = *p.SellerName
	}
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.Type != nil {
		item.Type = *p.Type
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Price != nil {
		item.Price = *p.Price
	}
	if p.Currency != nil {
		item.Currency = *p.Currency
	}
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	if p.Unit != nil {
		item.Unit = *p.Unit
	}
	if p.Location != nil {
		if p.Location.Province != nil {
			item.Location.Province = *p.Location.Province
		}
		if p.Location.District != nil {
			item.Location.District = *p.Location.District
		}
	}
	if p.Images != nil {
		item.Images = append([]string(nil), p.Images...)
	}
	if p.Status != nil {
		item.Status = *p.Status
	}
	return item
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMobileMoney    PaymentMethod = "mobile_money"
	PaymentBankTransfer   PaymentMethod = "bank_transfer"
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentCredit         PaymentMethod = "credit"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMobileMoney, PaymentBankTransfer, PaymentCashOnDelivery, PaymentCredit:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

type DeliveryDetails struct {
	FullName            string `json:"fullName" validate:"required"`
	Phone               string `json:"phone" validate:"required"`
	Address             string `json:"address" validate:"required"`
	District            string `json:"district" validate:"required"`
	Province            string `json:"province" validate:"required"`
	SpecialInstructions string `json:"specialInstructions,omitempty"`
}

// OrderLine references a listing by id and snapshots what was ordered.
type OrderLine struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Order is a buyer's order. TotalAmount is computed by the caller and stored
// as given.
type Order struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customerId"`
	Items           []OrderLine     `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          OrderStatus     `json:"status"`
	DeliveryAddress string          `json:"deliveryAddress"`
	OrderDate       time.Time       `json:"orderDate"`
	DeliveryDetails DeliveryDetails `json:"deliveryDetails"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// OrderDraft is an order before the store has assigned ID.
type OrderDraft struct {
	CustomerID      string
	Items           []OrderLine
	TotalAmount     decimal.Decimal
	Status          OrderStatus
	DeliveryAddress string
	OrderDate       time.Time
	DeliveryDetails DeliveryDetails
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
}

// Provinces lists Zambia's provinces for filter pickers. Listings are not
// validated against it.
var Provinces = []string{
	"Central",
	"Copperbelt",
	"Eastern",
	"Luapula",
	"Lusaka",
	"Muchinga",
	"Northern",
	"North-Western",
	"Southern",
	"Western",
}
