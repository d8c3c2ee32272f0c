package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ustabul/ustabul/internal/entity"
)

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID             int64            `json:"id"`
	Number         string           `json:"number"`
	CustomerID     int64            `json:"customer_id"`
	MasterID       *int64           `json:"master_id,omitempty"`
	CategoryID     int64            `json:"category_id"`
	Title          string           `json:"title"`
	Description    string           `json:"description"`
	District       string           `json:"district"`
	Address        string           `json:"address"`
	ScheduledAt    time.Time        `json:"scheduled_at"`
	Urgency        string           `json:"urgency"`
	EstimatedPrice decimal.Decimal  `json:"estimated_price"`
	FinalPrice     *decimal.Decimal `json:"final_price,omitempty"`
	Status         string           `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// FromOrder converts a persisted order into its transport shape.
func FromOrder(o *entity.Order) OrderResponse {
	resp := OrderResponse{
		ID:             o.ID,
		Number:         o.Number,
		CustomerID:     o.CustomerID,
		MasterID:       o.MasterID,
		CategoryID:     o.CategoryID,
		Title:          o.Title,
		Description:    o.Description,
		District:       o.District,
		Address:        o.Address,
		ScheduledAt:    o.ScheduledAt,
		Urgency:        string(o.Urgency),
		EstimatedPrice: o.EstimatedPrice,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
		CompletedAt:    o.CompletedAt,
	}
	if o.FinalPrice.Valid {
		price := o.FinalPrice.Decimal
		resp.FinalPrice = &price
	}
	return resp
}

// FromOrders maps a slice of orders into responses.
func FromOrders(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, FromOrder(&orders[i]))
	}
	return out
}
