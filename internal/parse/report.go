package parse

import (
	"strconv"
	"strings"
)

// DoorState is a physical door sensor reading.
type DoorState string

const (
	DoorOpen    DoorState = "OPEN"
	DoorClosed  DoorState = "CLOSED"
	DoorUnknown DoorState = "UNKNOWN"
)

// StatusReport parses the relay's compact door report into per-compartment
// door states. The wire format is "1:CLOSED,2:OPEN,3:CLOSED". Malformed
// segments are skipped; unrecognized state words map to UNKNOWN. A bare
// acknowledgement ("OK") or an empty report yields an empty map.
func StatusReport(raw string) map[int]DoorState {
	states := make(map[int]DoorState)

	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "OK") {
		return states
	}

	for _, segment := range strings.Split(raw, ",") {
		number, word, ok := strings.Cut(segment, ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(number))
		if err != nil || n <= 0 {
			continue
		}

		switch strings.ToUpper(strings.TrimSpace(word)) {
		case "OPEN":
			states[n] = DoorOpen
		case "CLOSED":
			states[n] = DoorClosed
		default:
			states[n] = DoorUnknown
		}
	}
	return states
}
