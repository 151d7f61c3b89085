package engine

import (
	"context"
	"errors"
	"time"

	"locker-bank-backend/internal/model"
	"locker-bank-backend/internal/store"
)

// Failures the engine adds on top of the store's. ErrBusy is retryable;
// ErrDoorOpen means the physical door was not confirmed closed and nothing
// was mutated.
var (
	ErrBusy     = errors.New("machine is busy, retry shortly")
	ErrDoorOpen = errors.New("door is still open")
)

// Assignment is the result of opening a deposit or a withdrawal: the
// compartment the caller must interact with and the session token that
// correlates the later close call.
type Assignment struct {
	CompartmentNumber int
	SessionToken      int
}

// Engine drives the order state machine:
//
//	awaiting_close -> closed -> withdraw_in_progress -> withdrawn
//
// with cancelled reachable from any non-terminal state via Reset. Each
// operation holds the machine's lock for the duration of its store
// transaction and never across any hardware I/O; talking to the relay is
// the gateway's job, after the transition here has committed.
type Engine struct {
	store    store.Store
	locks    *machineLocks
	lockWait time.Duration
}

// New creates an allocation engine on top of the given store. lockWait
// bounds how long an operation waits for a machine's lock before failing
// with ErrBusy.
func New(s store.Store, lockWait time.Duration) *Engine {
	if lockWait <= 0 {
		lockWait = 500 * time.Millisecond
	}
	return &Engine{
		store:    s,
		locks:    newMachineLocks(),
		lockWait: lockWait,
	}
}

// BeginDeposit assigns the lowest available compartment of the machine and
// creates the awaiting-close order. Exactly one of two concurrent calls
// gets the last free compartment; the loser sees ErrNoCompartmentAvailable.
func (e *Engine) BeginDeposit(ctx context.Context, machineID int64, trackingCode string) (Assignment, error) {
	if !e.locks.acquire(machineID, e.lockWait) {
		return Assignment{}, ErrBusy
	}
	defer e.locks.release(machineID)

	token, err := newSessionToken()
	if err != nil {
		return Assignment{}, err
	}

	compartment, order, err := e.store.CreateDeposit(ctx, machineID, trackingCode, token)
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{
		CompartmentNumber: compartment.Number,
		SessionToken:      order.SessionToken,
	}, nil
}

// ConfirmDepositClosed finalizes a deposit once the door is confirmed
// closed. It generates the withdrawal password and moves the order to
// closed and the compartment to occupied. A door still reported open fails
// without touching any state.
func (e *Engine) ConfirmDepositClosed(ctx context.Context, machineID int64, number, sessionToken int, trackingCode string, doorClosed bool) (string, error) {
	if !doorClosed {
		return "", ErrDoorOpen
	}

	if !e.locks.acquire(machineID, e.lockWait) {
		return "", ErrBusy
	}
	defer e.locks.release(machineID)

	password, err := e.uniquePassword(ctx, machineID)
	if err != nil {
		return "", err
	}

	order, err := e.store.CloseDeposit(ctx, store.CloseDepositParams{
		MachineID:    machineID,
		Number:       number,
		SessionToken: sessionToken,
		TrackingCode: trackingCode,
		Password:     password,
	})
	if err != nil {
		return "", err
	}
	return order.Password, nil
}

// BeginWithdraw resolves a withdrawal password to its compartment and opens
// the withdrawal. Of two concurrent calls with the same password, exactly
// one transitions the order; the other sees ErrNotAvailable.
func (e *Engine) BeginWithdraw(ctx context.Context, machineID int64, password string) (Assignment, error) {
	if !e.locks.acquire(machineID, e.lockWait) {
		return Assignment{}, ErrBusy
	}
	defer e.locks.release(machineID)

	order, compartment, err := e.store.OpenWithdraw(ctx, machineID, password)
	if err != nil {
		return Assignment{}, err
	}
	return Assignment{
		CompartmentNumber: compartment.Number,
		SessionToken:      order.SessionToken,
	}, nil
}

// ConfirmWithdrawClosed finalizes a withdrawal once the door is confirmed
// closed: the order becomes withdrawn and the compartment available again.
func (e *Engine) ConfirmWithdrawClosed(ctx context.Context, machineID int64, number, sessionToken int, doorClosed bool) error {
	if !doorClosed {
		return ErrDoorOpen
	}

	if !e.locks.acquire(machineID, e.lockWait) {
		return ErrBusy
	}
	defer e.locks.release(machineID)

	_, err := e.store.CloseWithdraw(ctx, store.CloseWithdrawParams{
		MachineID:    machineID,
		Number:       number,
		SessionToken: sessionToken,
	})
	return err
}

// Reset is the administrative override for stuck hardware or operator
// intervention: it cancels any in-flight order on the compartment and
// forces it back to available. Idempotent. Returns whether the compartment
// actually changed state, so callers can decide to notify.
func (e *Engine) Reset(ctx context.Context, machineID int64, number int) (bool, error) {
	if !e.locks.acquire(machineID, e.lockWait) {
		return false, ErrBusy
	}
	defer e.locks.release(machineID)

	return e.store.ResetCompartment(ctx, machineID, number)
}

// Machine exposes the registry lookup to the gateway.
func (e *Engine) Machine(ctx context.Context, machineID int64) (model.Machine, error) {
	return e.store.GetMachine(ctx, machineID)
}
