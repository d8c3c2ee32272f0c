package dto

import "github.com/shopspring/decimal"

// MasterStatsResponse is the derived dashboard projection for a master.
type MasterStatsResponse struct {
	MasterID        int64           `json:"master_id"`
	TotalOrders     int             `json:"total_orders"`
	CompletedOrders int             `json:"completed_orders"`
	CancelledOrders int             `json:"cancelled_orders"`
	CompletionRate  float64         `json:"completion_rate"`
	AverageRating   float64         `json:"average_rating"`
	ReviewCount     int             `json:"review_count"`
	TotalEarnings   decimal.Decimal `json:"total_earnings"`
}

// CustomerStatsResponse is the derived account projection for a customer.
type CustomerStatsResponse struct {
	CustomerID      int64           `json:"customer_id"`
	TotalOrders     int             `json:"total_orders"`
	ActiveOrders    int             `json:"active_orders"`
	CompletedOrders int             `json:"completed_orders"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
}

// LeaderboardEntry is one ranked row of the masters leaderboard.
type LeaderboardEntry struct {
	Rank          int             `json:"rank"`
	MasterID      int64           `json:"master_id"`
	Name          string          `json:"name"`
	Verified      bool            `json:"verified"`
	Rating        float64         `json:"rating"`
	ReviewCount   int             `json:"review_count"`
	CompletedJobs int             `json:"completed_jobs"`
	Earnings      decimal.Decimal `json:"earnings"`
}
