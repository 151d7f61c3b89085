package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMachineLocksExclusive(t *testing.T) {
	locks := newMachineLocks()

	assert.True(t, locks.acquire(1, 0))
	assert.False(t, locks.acquire(1, 10*time.Millisecond))

	// Different machines do not contend.
	assert.True(t, locks.acquire(2, 0))
	locks.release(2)

	locks.release(1)
	assert.True(t, locks.acquire(1, 0))
	locks.release(1)
}

func TestMachineLocksBoundedWait(t *testing.T) {
	locks := newMachineLocks()
	assert.True(t, locks.acquire(1, 0))

	start := time.Now()
	ok := locks.acquire(1, 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	locks.release(1)
}

func TestMachineLocksHandoff(t *testing.T) {
	locks := newMachineLocks()
	assert.True(t, locks.acquire(1, 0))

	done := make(chan bool)
	go func() {
		done <- locks.acquire(1, time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	locks.release(1)

	assert.True(t, <-done)
	locks.release(1)
}
