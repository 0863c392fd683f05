package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
	AppointmentStatusNoShow     AppointmentStatus = "no_show"
)

// Appointment is the central scheduling entity. Date is the calendar date of
// StartTime in the business timezone; StartTime and EndTime are absolute
// instants with end strictly after start.
type Appointment struct {
	ID        uuid.UUID         `db:"id" json:"id"`
	PatientID uuid.UUID         `db:"patient_id" json:"patient_id"`
	Date      time.Time         `db:"date" json:"date"`
	StartTime time.Time         `db:"start_time" json:"start_time"`
	EndTime   time.Time         `db:"end_time" json:"end_time"`
	Status    AppointmentStatus `db:"status" json:"status"`
	Notes     *string           `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
}

// Slot is a candidate, not-yet-booked interval on the fixed grid.
type Slot struct {
	Date          string `json:"date"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	FormattedTime string `json:"formattedTime"`
}

// SlotList is the agent-facing availability response.
type SlotList struct {
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	Timezone       string `json:"timezone"`
	AvailableSlots []Slot `json:"availableSlots"`
}

// AppointmentResponse is an appointment localized for display in the
// business timezone.
type AppointmentResponse struct {
	*Appointment
	LocalDate  string `json:"local_date"`
	LocalStart string `json:"local_start"`
	LocalEnd   string `json:"local_end"`
}

type ScheduleAppointmentRequest struct {
	PatientID string `json:"patientId" binding:"required,uuid"`
	Date      string `json:"date" binding:"required,calendardate"`
	StartTime string `json:"startTime" binding:"required,timeofday"`
	EndTime   string `json:"endTime" binding:"required,timeofday"`
	Notes     string `json:"notes" binding:"max=1000"`
}

type CancelAppointmentRequest struct {
	AppointmentID      string `json:"appointmentId" binding:"required,uuid"`
	PatientID          string `json:"patientId" binding:"required,uuid"`
	CancellationReason string `json:"cancellationReason" binding:"max=1000"`
}

type AppointmentFilters struct {
	PatientID *uuid.UUID
	Status    *AppointmentStatus
	StartDate *time.Time
	EndDate   *time.Time
}
