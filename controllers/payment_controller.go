package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"stayhub-backend/services"
	"stayhub-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82/webhook"
)

type PaymentController struct {
	PaymentSvc *services.PaymentService
}

func NewPaymentController(svc *services.PaymentService) *PaymentController {
	return &PaymentController{PaymentSvc: svc}
}

type CreateIntentRequest struct {
	RoomID        uint   `json:"room_id"`
	RoomIDs       []uint `json:"room_ids"`
	CheckIn       string `json:"check_in" binding:"required"`
	CheckOut      string `json:"check_out" binding:"required"`
	Guests        int    `json:"guests"`
	TransactionID string `json:"transaction_id" binding:"required"`
}

type ConfirmBookingRequest struct {
	PaymentIntentID string `json:"payment_intent_id" binding:"required"`
	RoomID          uint   `json:"room_id"`
	RoomIDs         []uint `json:"room_ids"`
	CheckIn         string `json:"check_in" binding:"required"`
	CheckOut        string `json:"check_out" binding:"required"`
	GuestName       string `json:"guest_name" binding:"required"`
	GuestEmail      string `json:"guest_email" binding:"required,email"`
	Adults          int    `json:"adults"`
	Children        int    `json:"children"`
	TransactionID   string `json:"transaction_id"`
}

func (ctrl *PaymentController) CreatePaymentIntent(c *gin.Context) {
	var payload CreateIntentRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "error.invalidPayload", "message": "invalid request body", "details": err.Error()}})
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

	result, err := ctrl.PaymentSvc.CreatePaymentIntent(roomIDs, checkIn, checkOut, payload.Guests, payload.TransactionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": result})
}

// ConfirmBooking verifies the paid intent and commits the booking. If the
// payment went through but the booking write failed, the response is 206
// with a reconciliation marker: money has moved, the failure must surface.
func (ctrl *PaymentController) ConfirmBooking(c *gin.Context) {
	var payload ConfirmBookingRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "error.invalidPayload", "message": "invalid request body", "details": err.Error()}})
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

	result, err := ctrl.PaymentSvc.ConfirmBookingFromPayment(payload.PaymentIntentID, services.CreateBookingInput{
		RoomIDs:       roomIDs,
		CheckIn:       checkIn,
		CheckOut:      checkOut,
		GuestName:     payload.GuestName,
		GuestEmail:    payload.GuestEmail,
		Adults:        payload.Adults,
		Children:      payload.Children,
		TransactionID: payload.TransactionID,
	})
	if err != nil {
		if errors.Is(err, services.ErrPartialFailure) {
			c.JSON(http.StatusPartialContent, gin.H{
				"status": "warning",
				"data":   result,
				"error": gin.H{
					"code":    "error.bookingCommitFailed",
					"message": "payment succeeded but the booking could not be committed; manual reconciliation required",
					"details": result.Detail,
				},
			})
			return
		}
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": result})
}

// Webhook receives asynchronous gateway events. The signature is verified
// when a webhook secret is configured; events are applied idempotently by id.
func (ctrl *PaymentController) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}

	var eventID, eventType, intentID string
	if secret := utils.EnvOrDefault("STRIPE_WEBHOOK_SECRET", ""); secret != "" {
		event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), secret)
		if err != nil {
			log.Printf("webhook signature verification failed: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		eventID = event.ID
		eventType = string(event.Type)
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
			log.Printf("webhook payload decode failed: %v", err)
			c.Status(http.StatusOK)
			return
		}
		intentID = obj.ID
	} else {
		var raw struct {
			ID   string `json:"id"`
			Type string `json:"type"`
			Data struct {
				Object struct {
					ID string `json:"id"`
				} `json:"object"`
			} `json:"data"`
		}
		if err := json.Unmarshal(payload, &raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
			return
		}
		eventID = raw.ID
		eventType = raw.Type
		intentID = raw.Data.Object.ID
	}

	if err := ctrl.PaymentSvc.HandleGatewayEvent(c.Request.Context(), eventID, eventType, intentID); err != nil {
		// Non-2xx makes the gateway redeliver; dedupe makes that safe.
		log.Printf("gateway event %s handling failed: %v", eventID, err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}
