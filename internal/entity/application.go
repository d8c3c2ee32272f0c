package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// ApplicationStatus enumerates the states of a master's bid.
// Every transition out of pending is terminal.
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusAccepted  ApplicationStatus = "accepted"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusWithdrawn ApplicationStatus = "withdrawn"
)

// Application represents a master's priced bid against a pending order.
type Application struct {
	bun.BaseModel `bun:"table:applications"`

	ID             int64             `bun:",pk,autoincrement"`
	OrderID        int64             `bun:"order_id"`
	MasterID       int64             `bun:"master_id"`
	Price          decimal.Decimal   `bun:"price"`
	Message        string            `bun:"message"`
	EstimatedHours *int              `bun:"estimated_hours"`
	Status         ApplicationStatus `bun:"status"`
	RejectedReason string            `bun:"rejected_reason"`
	CreatedAt      time.Time         `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time         `bun:"updated_at,nullzero"`
}
