package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type depositOpenRequest struct {
	MachineID    int64  `json:"machineId" binding:"required"`
	TrackingCode string `json:"trackingCode" binding:"required"`
}

// DepositOpen handles POST /api/deposit/open: a courier supplies a tracking
// code, the engine assigns a compartment, and the door is opened physically
// once the assignment has committed.
func (h *Handler) DepositOpen(c *gin.Context) {
	var req depositOpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "machineId and trackingCode are required"})
		return
	}

	assignment, err := h.engine.BeginDeposit(c.Request.Context(), req.MachineID, req.TrackingCode)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if err := h.openDoor(c.Request.Context(), assignment.CompartmentNumber); err != nil {
		log.Printf("Relay open failed for machine %d compartment %d: %v", req.MachineID, assignment.CompartmentNumber, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"message": fmt.Sprintf("compartment %d is assigned but its door did not open; a reset is required", assignment.CompartmentNumber),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"compartmentNumber": assignment.CompartmentNumber,
		"sessionToken":      assignment.SessionToken,
		"message":           fmt.Sprintf("Compartment %d assigned, deposit your parcel", assignment.CompartmentNumber),
	})
}

type depositCloseRequest struct {
	MachineID         int64  `json:"machineId" binding:"required"`
	CompartmentNumber int    `json:"compartmentNumber" binding:"required"`
	SessionToken      int    `json:"sessionToken" binding:"required"`
	TrackingCode      string `json:"trackingCode" binding:"required"`
	DoorClosed        bool   `json:"doorClosed"`
}

// DepositClose handles POST /api/deposit/close: the kiosk confirms the door
// is shut and receives the withdrawal password.
func (h *Handler) DepositClose(c *gin.Context) {
	var req depositCloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "machineId, compartmentNumber, sessionToken and trackingCode are required"})
		return
	}

	doorClosed, err := h.doorConfirmedClosed(c.Request.Context(), req.CompartmentNumber, req.DoorClosed)
	if err != nil {
		abortWithError(c, err)
		return
	}

	password, err := h.engine.ConfirmDepositClosed(
		c.Request.Context(), req.MachineID, req.CompartmentNumber, req.SessionToken, req.TrackingCode, doorClosed)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"compartmentNumber": req.CompartmentNumber,
		"password":          password,
		"message":           "Deposit complete",
	})
}
