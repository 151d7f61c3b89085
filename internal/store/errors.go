package store

import "errors"

// Typed failures surfaced by store operations. The allocation engine and
// the API layer match on these with errors.Is; gorm errors never leak past
// this package.
var (
	ErrMachineNotFound        = errors.New("machine not found")
	ErrMachineInactive        = errors.New("machine is not active")
	ErrNoCompartmentAvailable = errors.New("no compartment available")
	ErrCompartmentNotFound    = errors.New("compartment not found")
	ErrInvalidCompartment     = errors.New("compartment number is reserved or out of range")
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidState           = errors.New("order is not in a valid state for this operation")
	ErrInvalidCredential      = errors.New("no order matches this password")
	ErrNotAvailable           = errors.New("parcel already withdrawn or not available")
)
