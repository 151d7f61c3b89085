package engine

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	sessionTokenMin = 1000
	sessionTokenMax = 9999
	passwordDigits  = 6

	// Attempts before giving up on drawing a password that is unique among
	// the machine's active orders.
	passwordAttempts = 10
)

func randomInt(n int64) (int64, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0, fmt.Errorf("draw random number: %w", err)
	}
	return v.Int64(), nil
}

// newSessionToken draws a short numeric code identifying one physical
// open/close interaction.
func newSessionToken() (int, error) {
	v, err := randomInt(sessionTokenMax - sessionTokenMin + 1)
	if err != nil {
		return 0, err
	}
	return sessionTokenMin + int(v), nil
}

// newPassword draws a fixed-length numeric withdrawal password, uniform
// over its digit range.
func newPassword() (string, error) {
	digits := make([]byte, passwordDigits)
	for i := range digits {
		d, err := randomInt(10)
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + d)
	}
	return string(digits), nil
}

// uniquePassword draws passwords until one is not in use by any non-terminal
// order on the machine. Withdrawal lookup is keyed on the password alone, so
// two live parcels must never share one.
func (e *Engine) uniquePassword(ctx context.Context, machineID int64) (string, error) {
	for i := 0; i < passwordAttempts; i++ {
		password, err := newPassword()
		if err != nil {
			return "", err
		}
		taken, err := e.store.HasActivePassword(ctx, machineID, password)
		if err != nil {
			return "", err
		}
		if !taken {
			return password, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique password after %d attempts", passwordAttempts)
}
