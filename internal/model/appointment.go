package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCheckedIn AppointmentStatus = "checked_in"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

type Appointment struct {
	Base
	BranchID    uuid.UUID         `db:"branch_id" json:"branch_id"`
	ServiceID   uuid.UUID         `db:"service_id" json:"service_id"`
	PatientID   uuid.UUID         `db:"patient_id" json:"patient_id"`
	ScheduledAt time.Time         `db:"scheduled_at" json:"scheduled_at"`
	Status      AppointmentStatus `db:"status" json:"status"`
	Notes       string            `db:"notes" json:"notes,omitempty"`
}

// RescheduleRequest carries the caller's chosen slot. Date is "2006-01-02",
// Time is a zero-padded "HH:MM" slot value. Either may be empty; the
// validator reports which one is missing.
type RescheduleRequest struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Reason string `json:"reason" binding:"max=500"`
}

type AppointmentFilters struct {
	BranchID  uuid.UUID
	ServiceID uuid.UUID
	PatientID uuid.UUID
	Status    AppointmentStatus
	StartDate time.Time
	EndDate   time.Time
}
