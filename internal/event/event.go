package event

import "fmt"

// Type names a notification event published on the bus.
type Type string

const (
	TypeOrderAccepted       Type = "order.accepted"
	TypeOrderCompleted      Type = "order.completed"
	TypeApplicationRejected Type = "application.rejected"
)

// Notification is the payload handed to the notification subsystem when the
// acceptance workflow (or a downstream order transition) fires. Delivery is
// the consumer's concern; the services only emit.
type Notification struct {
	Type    Type   `json:"type"`
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Role    string `json:"role"`
}

// Key returns the partition key, keeping events for one order in order.
func (n Notification) Key() []byte {
	return []byte(fmt.Sprintf("order-%d", n.OrderID))
}
