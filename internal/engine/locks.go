package engine

import (
	"sync"
	"time"
)

// machineLocks serializes allocation per machine. Each machine gets a
// one-slot semaphore; acquisition is bounded so a caller that cannot get
// exclusive access promptly fails with ErrBusy instead of hanging.
type machineLocks struct {
	mu    sync.Mutex
	slots map[int64]chan struct{}
}

func newMachineLocks() *machineLocks {
	return &machineLocks{slots: make(map[int64]chan struct{})}
}

func (l *machineLocks) slot(machineID int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[machineID]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[machineID] = slot
	}
	return slot
}

// acquire takes the machine's slot, waiting at most wait. Returns false if
// the slot could not be taken in time.
func (l *machineLocks) acquire(machineID int64, wait time.Duration) bool {
	slot := l.slot(machineID)
	select {
	case slot <- struct{}{}:
		return true
	default:
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case slot <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

func (l *machineLocks) release(machineID int64) {
	<-l.slot(machineID)
}
