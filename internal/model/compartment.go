package model

// CompartmentStatus is the lifecycle state of a single compartment. It
// mirrors the status of the compartment's one non-terminal order, or
// "available" when no such order exists.
type CompartmentStatus string

const (
	CompartmentAvailable    CompartmentStatus = "available"
	CompartmentDepositOpen  CompartmentStatus = "deposit_open"
	CompartmentOccupied     CompartmentStatus = "occupied"
	CompartmentWithdrawOpen CompartmentStatus = "withdraw_open"
)

// compartmentTransitions lists every legal compartment status transition.
// Anything not listed here is rejected. Reset is the one administrative
// exception and forces "available" without consulting this table.
var compartmentTransitions = map[CompartmentStatus][]CompartmentStatus{
	CompartmentAvailable:    {CompartmentDepositOpen},
	CompartmentDepositOpen:  {CompartmentOccupied},
	CompartmentOccupied:     {CompartmentWithdrawOpen},
	CompartmentWithdrawOpen: {CompartmentAvailable},
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s CompartmentStatus) CanTransition(next CompartmentStatus) bool {
	for _, allowed := range compartmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Compartment is an individually lockable slot within a machine, identified
// by a number unique to its machine. Reserved compartments exist physically
// but are never handed out by allocation.
type Compartment struct {
	ID        int64             `gorm:"primaryKey" json:"-"`
	MachineID int64             `gorm:"not null;uniqueIndex:idx_machine_number" json:"machineId"`
	Number    int               `gorm:"not null;uniqueIndex:idx_machine_number" json:"number"`
	Reserved  bool              `gorm:"not null;default:false" json:"reserved"`
	Status    CompartmentStatus `gorm:"size:16;not null;default:available" json:"status"`
}
