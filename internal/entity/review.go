package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Review is a customer's rating of a completed order. At most one per
// order; it feeds the master's derived rating.
type Review struct {
	bun.BaseModel `bun:"table:reviews"`

	ID         int64     `bun:",pk,autoincrement"`
	OrderID    int64     `bun:"order_id"`
	MasterID   int64     `bun:"master_id"`
	CustomerID int64     `bun:"customer_id"`
	Rating     int       `bun:"rating"`
	Comment    string    `bun:"comment"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
