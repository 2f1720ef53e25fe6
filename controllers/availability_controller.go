package controllers

import (
	"net/http"
	"strconv"
	"time"

	"stayhub-backend/middleware"
	"stayhub-backend/services"
	"stayhub-backend/utils"

	"github.com/gin-gonic/gin"
)

type AvailabilityController struct {
	AvailabilitySvc *services.AvailabilityService
	CalendarSvc     *services.CalendarService
}

func NewAvailabilityController(avail *services.AvailabilityService, cal *services.CalendarService) *AvailabilityController {
	return &AvailabilityController{AvailabilitySvc: avail, CalendarSvc: cal}
}

// AvailabilityChangeRequest targets either an explicit date list, a range, or
// both. Ranges are half-open: [check_in, check_out).
type AvailabilityChangeRequest struct {
	Dates     []string `json:"dates"`
	CheckIn   string   `json:"check_in"`
	CheckOut  string   `json:"check_out"`
	Operation string   `json:"operation" binding:"required"`
	Reason    string   `json:"reason"`
}

func (r *AvailabilityChangeRequest) resolveDates(cal *services.CalendarService) ([]time.Time, string) {
	var dates []time.Time
	for _, raw := range r.Dates {
		d, ok := parseDate(raw)
		if !ok {
			return nil, "invalid date: " + raw
		}
		dates = append(dates, d)
	}
	if r.CheckIn != "" || r.CheckOut != "" {
		from, ok := parseDate(r.CheckIn)
		if !ok {
			return nil, "invalid check_in format"
		}
		to, ok := parseDate(r.CheckOut)
		if !ok {
			return nil, "invalid check_out format"
		}
		groups, err := cal.DatesInRange(from, to)
		if err != nil {
			return nil, "check_out must be after check_in"
		}
		for _, group := range groups {
			for _, key := range group.Days {
				d, err := time.Parse("2006-01-02", strconv.Itoa(group.Year)+"-"+key)
				if err == nil {
					dates = append(dates, d)
				}
			}
		}
	}
	return dates, ""
}

func roomIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		utils.JSONError(c, http.StatusBadRequest, "error.invalidRoomId", "invalid room id")
		return 0, false
	}
	return uint(id), true
}

// GetCalendar returns the full day-key map of one (room, year) partition.
func (ctrl *AvailabilityController) GetCalendar(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 2000 || year > 2200 {
		utils.JSONError(c, http.StatusBadRequest, "error.invalidYear", "invalid year")
		return
	}

	days, readErr := ctrl.CalendarSvc.ReadYear(ctrl.CalendarSvc.DB, roomID, year)
	if readErr != nil {
		respondServiceError(c, readErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"roomId": roomID, "year": year, "days": days}})
}

// ValidateChange is the dry run: reports conflicts and warnings, mutates
// nothing.
func (ctrl *AvailabilityController) ValidateChange(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	var payload AvailabilityChangeRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "error.invalidPayload", "message": "invalid request body", "details": err.Error()}})
		return
	}
	dates, msg := payload.resolveDates(ctrl.CalendarSvc)
	if msg != "" {
		utils.JSONError(c, http.StatusBadRequest, "error.invalidRange", msg)
		return
	}

	result, err := ctrl.AvailabilitySvc.ValidateChange(roomID, dates, payload.Operation)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": result})
}

// UpdateAvailability applies block/unblock/maintenance. Business conflicts
// come back as a 409 with the conflicting dates; nothing is written then.
func (ctrl *AvailabilityController) UpdateAvailability(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	var payload AvailabilityChangeRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "error.invalidPayload", "message": "invalid request body", "details": err.Error()}})
		return
	}
	dates, msg := payload.resolveDates(ctrl.CalendarSvc)
	if msg != "" {
		utils.JSONError(c, http.StatusBadRequest, "error.invalidRange", msg)
		return
	}

	result, err := ctrl.AvailabilitySvc.UpdateAvailability(roomID, dates, payload.Operation, payload.Reason, middleware.Actor(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if !result.Success {
		c.JSON(http.StatusConflict, gin.H{"status": "conflict", "data": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": result})
}
