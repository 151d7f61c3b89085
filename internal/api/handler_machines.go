package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"locker-bank-backend/internal/model"
	"locker-bank-backend/internal/parse"
)

// ListMachines handles GET /api/machines: every provisioned machine with
// its compartment counts, for the kiosk's machine picker.
func (h *Handler) ListMachines(c *gin.Context) {
	machines, err := h.store.ListMachines(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "failed to retrieve machines"})
		return
	}
	c.JSON(http.StatusOK, machines)
}

// compartmentStatusResponse is one row of the status query: the ledger's
// view of the compartment plus the physical door sensor reading.
type compartmentStatusResponse struct {
	Number   int                     `json:"number"`
	Reserved bool                    `json:"reserved"`
	Status   model.CompartmentStatus `json:"status"`
	Door     parse.DoorState         `json:"door"`
}

// CompartmentStatus handles GET /api/machines/:machine_id/compartments.
// Ledger statuses always come back; door states degrade to UNKNOWN with a
// 503 when the relay is unreachable, so the caller knows the physical
// reading is missing rather than closed.
func (h *Handler) CompartmentStatus(c *gin.Context) {
	machineID, err := strconv.ParseInt(c.Param("machine_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid machine ID"})
		return
	}

	compartments, err := h.store.CompartmentsForMachine(c.Request.Context(), machineID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	doors := map[int]parse.DoorState{}
	var relayErr error
	if h.relay != nil {
		doors, relayErr = h.relay.StatusAll(c.Request.Context())
	}

	rows := make([]compartmentStatusResponse, 0, len(compartments))
	for _, compartment := range compartments {
		door, ok := doors[compartment.Number]
		if !ok {
			door = parse.DoorUnknown
		}
		rows = append(rows, compartmentStatusResponse{
			Number:   compartment.Number,
			Reserved: compartment.Reserved,
			Status:   compartment.Status,
			Door:     door,
		})
	}

	if relayErr != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"compartments": rows,
			"message":      "hardware relay unreachable, door states unknown",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"compartments": rows})
}

// Reset handles POST /api/machines/:machine_id/compartments/:number/reset,
// the administrative recovery for stuck hardware: cancel whatever order is
// in flight and force the compartment back to available.
func (h *Handler) Reset(c *gin.Context) {
	machineID, err := strconv.ParseInt(c.Param("machine_id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid machine ID"})
		return
	}
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid compartment number"})
		return
	}

	freed, err := h.engine.Reset(c.Request.Context(), machineID, number)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if freed {
		h.compartmentFreed(machineID)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Compartment reset"})
}
