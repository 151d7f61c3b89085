package api

import (
	"context"

	"github.com/SherClockHolmes/webpush-go"

	"locker-bank-backend/internal/engine"
	"locker-bank-backend/internal/notification"
	"locker-bank-backend/internal/relay"
	"locker-bank-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	engine  *engine.Engine
	relay   relay.Client // nil when no relay bridge is configured
	webpush *webpush.Options
	notify  *notification.WorkerPool // nil when push is disabled
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, eng *engine.Engine, relayClient relay.Client, webpushOptions *webpush.Options, notify *notification.WorkerPool) *Handler {
	return &Handler{
		store:   s,
		engine:  eng,
		relay:   relayClient,
		webpush: webpushOptions,
		notify:  notify,
	}
}

// openDoor physically unlocks a compartment. Called only after the ledger
// transition has committed, so a failure here leaves the compartment in its
// open sub-state, recoverable via reset.
func (h *Handler) openDoor(ctx context.Context, number int) error {
	if h.relay == nil {
		return nil
	}
	return h.relay.Open(ctx, number)
}

// doorConfirmedClosed combines the kiosk's claim with a fresh sensor
// reading when a relay is configured. The sensor wins: a kiosk claiming the
// door shut does not finalize anything the hardware contradicts.
func (h *Handler) doorConfirmedClosed(ctx context.Context, number int, claimed bool) (bool, error) {
	if !claimed {
		return false, nil
	}
	if h.relay == nil {
		return true, nil
	}
	return h.relay.VerifyClosed(ctx, number)
}

// compartmentFreed queues an availability notification for the machine.
func (h *Handler) compartmentFreed(machineID int64) {
	if h.notify != nil {
		h.notify.Dispatch(machineID)
	}
}
