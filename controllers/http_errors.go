package controllers

import (
	"errors"
	"log"
	"net/http"

	"stayhub-backend/services"

	"github.com/gin-gonic/gin"
)

// respondServiceError maps engine sentinel errors onto HTTP responses with a
// stable machine-readable code. Conflicts carry the specific offending dates
// so the client can show which part of the stay failed.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"code": "error.invalidRange", "message": "invalid dates or parameters", "details": err.Error(),
		}})
	case errors.Is(err, services.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{
			"code": "error.roomNotFound", "message": "room not found", "details": err.Error(),
		}})
	case errors.Is(err, services.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{
			"code": "error.bookingNotFound", "message": "booking not found", "details": err.Error(),
		}})
	case errors.Is(err, services.ErrDateConflict):
		payload := gin.H{"code": "error.dateConflict", "message": "requested dates are not available"}
		if dc, ok := services.AsDateConflict(err); ok {
			payload["dates"] = dc.Dates
		}
		c.JSON(http.StatusConflict, gin.H{"error": payload})
	case errors.Is(err, services.ErrAlreadyCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{
			"code": "error.alreadyCancelled", "message": "booking is already cancelled",
		}})
	case errors.Is(err, services.ErrNotCancellable):
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{
			"code": "error.notCancellable", "message": "booking state does not allow this operation", "details": err.Error(),
		}})
	case errors.Is(err, services.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{
			"code": "error.versionConflict", "message": "document was modified concurrently, re-read and retry", "details": err.Error(),
		}})
	case errors.Is(err, services.ErrIntentAlreadyUsed):
		c.JSON(http.StatusConflict, gin.H{"error": gin.H{
			"code": "error.intentAlreadyUsed", "message": "this payment already funded a booking", "details": err.Error(),
		}})
	case errors.Is(err, services.ErrPaymentFailed):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": gin.H{
			"code": "error.paymentFailed", "message": "payment was declined or not completed", "details": err.Error(),
		}})
	case errors.Is(err, services.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{
			"code": "error.unavailable", "message": "temporary storage contention, please retry",
		}})
	default:
		log.Printf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
			"code": "error.internal", "message": "internal server error",
		}})
	}
}
