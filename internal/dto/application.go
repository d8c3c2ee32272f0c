package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ustabul/ustabul/internal/entity"
)

// ApplicationResponse represents a master's bid as exposed over HTTP.
type ApplicationResponse struct {
	ID             int64           `json:"id"`
	OrderID        int64           `json:"order_id"`
	MasterID       int64           `json:"master_id"`
	Price          decimal.Decimal `json:"price"`
	Message        string          `json:"message,omitempty"`
	EstimatedHours *int            `json:"estimated_hours,omitempty"`
	Status         string          `json:"status"`
	RejectedReason string          `json:"rejected_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`

	Master *MasterSummary `json:"master,omitempty"`
}

// MasterSummary is the per-application master card rendered next to a bid.
// Rating and counters are recomputed from orders/reviews at read time.
type MasterSummary struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	AvatarURL     string  `json:"avatar_url,omitempty"`
	Verified      bool    `json:"verified"`
	Rating        float64 `json:"rating"`
	ReviewCount   int     `json:"review_count"`
	CompletedJobs int     `json:"completed_jobs"`
}

// FromApplication converts a persisted application into its transport shape.
func FromApplication(a *entity.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:             a.ID,
		OrderID:        a.OrderID,
		MasterID:       a.MasterID,
		Price:          a.Price,
		Message:        a.Message,
		EstimatedHours: a.EstimatedHours,
		Status:         string(a.Status),
		RejectedReason: a.RejectedReason,
		CreatedAt:      a.CreatedAt,
	}
}

// ReviewResponse represents a review as exposed over HTTP.
type ReviewResponse struct {
	ID         int64     `json:"id"`
	OrderID    int64     `json:"order_id"`
	MasterID   int64     `json:"master_id"`
	CustomerID int64     `json:"customer_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// FromReview converts a persisted review into its transport shape.
func FromReview(r *entity.Review) ReviewResponse {
	return ReviewResponse{
		ID:         r.ID,
		OrderID:    r.OrderID,
		MasterID:   r.MasterID,
		CustomerID: r.CustomerID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
	}
}
