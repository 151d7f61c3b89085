package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"locker-bank-backend/internal/engine"
	"locker-bank-backend/internal/store"
)

// httpStatus maps the engine's typed errors onto response codes. Anything
// unrecognized is an internal error.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidCompartment):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrMachineNotFound),
		errors.Is(err, store.ErrCompartmentNotFound),
		errors.Is(err, store.ErrOrderNotFound),
		errors.Is(err, store.ErrInvalidCredential):
		return http.StatusNotFound
	case errors.Is(err, store.ErrMachineInactive),
		errors.Is(err, store.ErrNoCompartmentAvailable),
		errors.Is(err, store.ErrInvalidState),
		errors.Is(err, store.ErrNotAvailable),
		errors.Is(err, engine.ErrDoorOpen):
		return http.StatusConflict
	case errors.Is(err, engine.ErrBusy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := httpStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
