// Package appointment serves the staff dashboard's read side of the
// calendar.
package appointment

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avahealth/scheduling-api/internal/handler"
	"github.com/avahealth/scheduling-api/internal/middleware"
	"github.com/avahealth/scheduling-api/internal/model"
	"github.com/avahealth/scheduling-api/internal/service/schedule"
	"github.com/avahealth/scheduling-api/pkg/calendar"
)

type Handler struct {
	service *schedule.Service
	loc     *time.Location
}

func NewHandler(service *schedule.Service, loc *time.Location) *Handler {
	return &Handler{service: service, loc: loc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
	}
}

func (h *Handler) ListAppointments(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unauthorized"))
		return
	}

	filters := &model.AppointmentFilters{}

	if date := c.Query("start_date"); date != "" {
		parsed, err := calendar.ParseDate(date, h.loc)
		if err != nil {
			handler.RespondError(c, err)
			return
		}
		filters.StartDate = &parsed
	}
	if date := c.Query("end_date"); date != "" {
		parsed, err := calendar.ParseDate(date, h.loc)
		if err != nil {
			handler.RespondError(c, err)
			return
		}
		filters.EndDate = &parsed
	}
	if status := c.Query("status"); status != "" {
		s := model.AppointmentStatus(status)
		filters.Status = &s
	}
	if id := c.Query("patient_id"); id != "" {
		patientID, err := uuid.Parse(id)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid patient ID"))
			return
		}
		filters.PatientID = &patientID
	}

	appointments, err := h.service.ListAppointments(c.Request.Context(), userID, filters)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid appointment ID"))
		return
	}

	appointment, err := h.service.GetAppointment(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointment))
}
