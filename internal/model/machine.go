package model

import "time"

// MachineStatus is the operational status of a locker machine.
type MachineStatus string

const (
	MachineActive   MachineStatus = "active"
	MachineInactive MachineStatus = "inactive"
)

// Machine represents a physical locker cabinet holding multiple compartments.
// Machines are provisioned once at startup and only their status may change
// afterwards.
type Machine struct {
	ID        int64         `gorm:"primaryKey" json:"id"` // External numeric ID used by kiosks
	Name      string        `gorm:"size:128;not null" json:"name"`
	Location  string        `gorm:"size:256" json:"location"`
	Status    MachineStatus `gorm:"size:16;not null;default:active" json:"status"`
	CreatedAt time.Time     `json:"-"`
	UpdatedAt time.Time     `json:"-"`

	// Associations
	Compartments []Compartment `gorm:"foreignKey:MachineID" json:"-"`
}
