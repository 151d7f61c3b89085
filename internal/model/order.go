package model

import "time"

// OrderStatus is the lifecycle state of a deposit/withdraw transaction.
type OrderStatus string

const (
	OrderAwaitingClose      OrderStatus = "awaiting_close"
	OrderClosed             OrderStatus = "closed"
	OrderWithdrawInProgress OrderStatus = "withdraw_in_progress"
	OrderWithdrawn          OrderStatus = "withdrawn"
	OrderCancelled          OrderStatus = "cancelled"
)

// orderTransitions lists every legal order status transition. Cancelled is
// reachable from any non-terminal state through reset only.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderAwaitingClose:      {OrderClosed, OrderCancelled},
	OrderClosed:             {OrderWithdrawInProgress, OrderCancelled},
	OrderWithdrawInProgress: {OrderWithdrawn, OrderCancelled},
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status is final. Terminal orders are
// immutable audit history and are never deleted.
func (s OrderStatus) Terminal() bool {
	return s == OrderWithdrawn || s == OrderCancelled
}

// Order is one deposit/withdraw transaction. The session token correlates
// the open/close pair of a single physical interaction; the password is set
// exactly once, when the deposit is closed, and is the sole credential
// accepted for withdrawal.
type Order struct {
	ID            int64       `gorm:"primaryKey" json:"id"`
	MachineID     int64       `gorm:"not null;index" json:"machineId"`
	CompartmentID int64       `gorm:"not null;index" json:"-"`
	SessionToken  int         `gorm:"not null" json:"sessionToken"`
	TrackingCode  string      `gorm:"size:64;not null" json:"trackingCode"`
	Password      string      `gorm:"size:8" json:"-"`
	Status        OrderStatus `gorm:"size:32;not null" json:"status"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`

	// Associations
	Compartment Compartment `json:"-"`
}
