// Package agent exposes the bearer-token API consumed by the voice agent:
// patient search, availability listing, scheduling and cancellation.
package agent

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avahealth/scheduling-api/internal/handler"
	"github.com/avahealth/scheduling-api/internal/model"
	"github.com/avahealth/scheduling-api/internal/service/patient"
	"github.com/avahealth/scheduling-api/internal/service/schedule"
)

type Handler struct {
	scheduleSvc *schedule.Service
	patientSvc  *patient.Service
}

func NewHandler(scheduleSvc *schedule.Service, patientSvc *patient.Service) *Handler {
	return &Handler{
		scheduleSvc: scheduleSvc,
		patientSvc:  patientSvc,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.GET("/slots", h.ListAvailableSlots)
		appointments.POST("/schedule", h.ScheduleAppointment)
		appointments.POST("/cancel", h.CancelAppointment)
	}
	r.GET("/patients/search", h.SearchPatients)
}

func (h *Handler) ListAvailableSlots(c *gin.Context) {
	startDate := c.Query("startDate")
	endDate := c.Query("endDate")
	patientIDParam := c.Query("patientId")

	if startDate == "" || endDate == "" || patientIDParam == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(
			"missing required parameters: startDate, endDate, and patientId"))
		return
	}

	patientID, err := uuid.Parse(patientIDParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
		return
	}

	slots, err := h.scheduleSvc.ListAvailableSlots(c.Request.Context(), patientID, startDate, endDate)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(slots))
}

func (h *Handler) ScheduleAppointment(c *gin.Context) {
	var req model.ScheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(
			"missing required fields: patientId, date, startTime, endTime"))
		return
	}

	appointment, err := h.scheduleSvc.ScheduleAppointment(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(appointment))
}

func (h *Handler) CancelAppointment(c *gin.Context) {
	var req model.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(
			"missing required fields: appointmentId and patientId"))
		return
	}

	appointment, err := h.scheduleSvc.CancelAppointment(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}

func (h *Handler) SearchPatients(c *gin.Context) {
	name := c.Query("patient")
	dob := c.Query("dob")
	last4 := c.Query("last4SSN")

	result, err := h.patientSvc.Search(c.Request.Context(), name, dob, last4)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}
