package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// OrderStatus enumerates the lifecycle states of a service order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusAccepted   OrderStatus = "accepted"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Urgency classifies how soon the customer needs the work done.
type Urgency string

const (
	UrgencyPlanned Urgency = "planned"
	UrgencyToday   Urgency = "today"
	UrgencyUrgent  Urgency = "urgent"
)

// Priority maps an urgency onto its browse-listing sort weight.
// Urgent orders surface first, then same-day, then planned work.
func (u Urgency) Priority() int {
	switch u {
	case UrgencyUrgent:
		return 3
	case UrgencyToday:
		return 2
	case UrgencyPlanned:
		return 1
	default:
		return 0
	}
}

// Valid reports whether the urgency is one of the known values.
func (u Urgency) Valid() bool {
	return u.Priority() > 0
}

// Order represents a customer's posted service request.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID             int64               `bun:",pk,autoincrement"`
	Number         string              `bun:"number"`
	CustomerID     int64               `bun:"customer_id"`
	MasterID       *int64              `bun:"master_id"`
	CategoryID     int64               `bun:"category_id"`
	Title          string              `bun:"title"`
	Description    string              `bun:"description"`
	District       string              `bun:"district"`
	Address        string              `bun:"address"`
	ScheduledAt    time.Time           `bun:"scheduled_at"`
	Urgency        Urgency             `bun:"urgency"`
	EstimatedPrice decimal.Decimal     `bun:"estimated_price"`
	FinalPrice     decimal.NullDecimal `bun:"final_price"`
	Status         OrderStatus         `bun:"status"`
	CreatedAt      time.Time           `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time           `bun:"updated_at,nullzero"`
	CompletedAt    *time.Time          `bun:"completed_at"`
}

// Terminal reports whether the order can no longer change state.
func (o *Order) Terminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}
