package model

import (
	"time"

	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Patient is an identity record owned by exactly one staff account. All
// patients under the same account share one practice calendar.
type Patient struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	DateOfBirth time.Time `db:"date_of_birth" json:"date_of_birth"`
	SSN         string    `db:"ssn" json:"-"`
	Gender      Gender    `db:"gender" json:"gender"`
	PhoneNumber *string   `db:"phone_number" json:"phone_number,omitempty"`
	Address     *string   `db:"address" json:"address,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// MaskedSSN returns the government ID masked to its last 4 digits.
func (p *Patient) MaskedSSN() string {
	digits := make([]rune, 0, len(p.SSN))
	for _, r := range p.SSN {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return "***-**-????"
	}
	return "***-**-" + string(digits[len(digits)-4:])
}

// PatientResponse is a patient formatted for output, SSN masked.
type PatientResponse struct {
	*Patient
	SSNLast4     string         `json:"ssn_last4"`
	Appointments []*Appointment `json:"appointments,omitempty"`
}

func NewPatientResponse(p *Patient) *PatientResponse {
	return &PatientResponse{Patient: p, SSNLast4: p.MaskedSSN()}
}

type CreatePatientRequest struct {
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	DateOfBirth string `json:"date_of_birth" binding:"required,calendardate"`
	SSN         string `json:"ssn" binding:"required"`
	Gender      Gender `json:"gender" binding:"required,oneof=male female other"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
}

// SearchPatientsQuery carries the agent's identification parameters: a name
// fragment plus date of birth, optionally the last 4 of the government ID.
type SearchPatientsQuery struct {
	Name        string
	DateOfBirth time.Time
	SSNLast4    string
}
