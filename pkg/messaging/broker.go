package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channels carrying appointment lifecycle events. Dashboard refreshers
// subscribe to these to re-render without polling.
const (
	ChannelAppointments = "appointments"
)

// Event is the payload published on appointment state changes.
type Event struct {
	Type          string `json:"type"`
	AppointmentID string `json:"appointment_id"`
	PatientID     string `json:"patient_id"`
	Date          string `json:"date"`
}

const (
	EventAppointmentBooked    = "appointment.booked"
	EventAppointmentCancelled = "appointment.cancelled"
)
