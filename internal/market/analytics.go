package market

import (
	"github.com/safar/farm-market/internal/models"
	"github.com/shopspring/decimal"
)

// Analytics summarizes a buyer's orders. Delivered orders count as
// completed.
type Analytics struct {
	TotalOrders       int             `json:"totalOrders"`
	TotalValue        decimal.Decimal `json:"totalValue"`
	PendingOrders     int             `json:"pendingOrders"`
	CompletedOrders   int             `json:"completedOrders"`
	AverageOrderValue decimal.Decimal `json:"averageOrderValue"`
}

func Summarize(orders []models.Order) Analytics {
	a := Analytics{TotalOrders: len(orders)}
	for _, o := range orders {
		a.TotalValue = a.TotalValue.Add(o.TotalAmount)
		switch o.Status {
		case models.OrderStatusPending:
			a.PendingOrders++
		case models.OrderStatusDelivered:
			a.CompletedOrders++
		}
	}
	if a.TotalOrders > 0 {
		a.AverageOrderValue = a.TotalValue.DivRound(decimal.NewFromInt(int64(a.TotalOrders)), 2)
	}
	return a
}
