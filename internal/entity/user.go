package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// Master is a service-provider account. Rating, review count, and
// completed-job counters are never stored here; they are recomputed
// from orders and reviews by the stats service.
type Master struct {
	bun.BaseModel `bun:"table:masters"`

	ID         int64     `bun:",pk,autoincrement"`
	Name       string    `bun:"name"`
	Phone      string    `bun:"phone"`
	District   string    `bun:"district"`
	AvatarURL  string    `bun:"avatar_url"`
	CategoryID int64     `bun:"category_id"`
	Verified   bool      `bun:"verified"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// Customer is a service-requester account.
type Customer struct {
	bun.BaseModel `bun:"table:customers"`

	ID        int64     `bun:",pk,autoincrement"`
	Name      string    `bun:"name"`
	Phone     string    `bun:"phone"`
	District  string    `bun:"district"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// Category is a service category masters work in and orders are filed under.
type Category struct {
	bun.BaseModel `bun:"table:categories"`

	ID   int64  `bun:",pk,autoincrement"`
	Slug string `bun:"slug"`
	Name string `bun:"name"`
}
