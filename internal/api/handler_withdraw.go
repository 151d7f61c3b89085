package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type withdrawOpenRequest struct {
	MachineID int64  `json:"machineId" binding:"required"`
	Password  string `json:"password" binding:"required"`
}

// WithdrawOpen handles POST /api/withdraw/open: a recipient supplies the
// withdrawal password, the engine resolves it to the parcel's compartment
// and the door is opened.
func (h *Handler) WithdrawOpen(c *gin.Context) {
	var req withdrawOpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "machineId and password are required"})
		return
	}

	assignment, err := h.engine.BeginWithdraw(c.Request.Context(), req.MachineID, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := h.openDoor(c.Request.Context(), assignment.CompartmentNumber); err != nil {
		log.Printf("Relay open failed for machine %d compartment %d: %v", req.MachineID, assignment.CompartmentNumber, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": fmt.Sprintf("compartment %d holds your parcel but its door did not open; a reset is required", assignment.CompartmentNumber),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"compartmentNumber": assignment.CompartmentNumber,
		"sessionToken":      assignment.SessionToken,
		"message":           fmt.Sprintf("Compartment %d open, take your parcel", assignment.CompartmentNumber),
	})
}

type withdrawCloseRequest struct {
	MachineID         int64 `json:"machineId" binding:"required"`
	CompartmentNumber int   `json:"compartmentNumber" binding:"required"`
	SessionToken      int   `json:"sessionToken" binding:"required"`
	DoorClosed        bool  `json:"doorClosed"`
}

// WithdrawClose handles POST /api/withdraw/close: the kiosk confirms the
// door is shut, the order terminates and the compartment is free again.
func (h *Handler) WithdrawClose(c *gin.Context) {
	var req withdrawCloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "machineId, compartmentNumber and sessionToken are required"})
		return
	}

	doorClosed, err := h.doorConfirmedClosed(c.Request.Context(), req.CompartmentNumber, req.DoorClosed)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := h.engine.ConfirmWithdrawClosed(
		c.Request.Context(), req.MachineID, req.CompartmentNumber, req.SessionToken, doorClosed); err != nil {
		abortWithError(c, err)
		return
	}

	h.compartmentFreed(req.MachineID)

	c.JSON(http.StatusOK, gin.H{"message": "Withdrawal complete"})
}
