package controllers

import (
	"net/http"
	"time"

	"stayhub-backend/middleware"
	"stayhub-backend/services"
	"stayhub-backend/utils"

	"github.com/gin-gonic/gin"
)

type BookingController struct {
	BookingSvc *services.BookingService
}

func NewBookingController(svc *services.BookingService) *BookingController {
	return &BookingController{BookingSvc: svc}
}

// CreateBookingRequest accepts a single room or several.
type CreateBookingRequest struct {
	RoomID     uint   `json:"room_id"`
	RoomIDs    []uint `json:"room_ids"`
	CheckIn    string `json:"check_in" binding:"required"`
	CheckOut   string `json:"check_out" binding:"required"`
	GuestName  string `json:"guest_name" binding:"required"`
	GuestEmail string `json:"guest_email" binding:"required,email"`
	Adults     int    `json:"adults"`
	Children   int    `json:"children"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

func parseDate(value string) (time.Time, bool) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (ctrl *BookingController) CreateBooking(c *gin.Context) {
	var payload CreateBookingRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"code": "error.invalidPayload", "message": "invalid request body", "details": err.Error(),
		}})
		return
	}

	checkIn, ok := parseDate(payload.CheckIn)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "error.invalidRange", "message": "invalid check_in format"}})
		return
	}
	checkOut, ok := parseDate(payload.CheckOut)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "error.invalidRange", "message": "invalid check_out format"}})
		return
	}

	roomIDs := payload.RoomIDs
	if payload.RoomID != 0 {
		roomIDs = append(roomIDs, payload.RoomID)
	}

	booking, err := ctrl.BookingSvc.CreateBooking(services.CreateBookingInput{
		RoomIDs:    roomIDs,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		GuestName:  payload.GuestName,
		GuestEmail: payload.GuestEmail,
		Adults:     payload.Adults,
		Children:   payload.Children,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data": gin.H{
			"bookingId": booking.ReferenceCode,
			"status":    booking.Status,
			"totalCost": booking.TotalCost,
			"nights":    booking.Nights,
		},
	})
}

func (ctrl *BookingController) GetBookings(c *gin.Context) {
	bookings, err := ctrl.BookingSvc.ListBookings()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (ctrl *BookingController) GetBookingDetails(c *gin.Context) {
	booking, err := ctrl.BookingSvc.GetByReference(c.Param("ref"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, booking)
}

func (ctrl *BookingController) CancelBooking(c *gin.Context) {
	var payload CancelBookingRequest
	_ = c.ShouldBindJSON(&payload) // reason is optional

	actor := middleware.Actor(c)
	if err := ctrl.BookingSvc.CancelBooking(c.Param("ref"), actor, payload.Reason); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"success": true})
}

func (ctrl *BookingController) CheckInBooking(c *gin.Context) {
	if err := ctrl.BookingSvc.CheckInBooking(c.Param("ref")); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, nil)
}

func (ctrl *BookingController) CheckoutBooking(c *gin.Context) {
	if err := ctrl.BookingSvc.CheckoutBooking(c.Param("ref")); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, nil)
}
