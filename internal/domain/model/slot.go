package model

import "time"

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotCancelled SlotStatus = "cancelled" // terminal
)

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotAvailable, SlotBooked, SlotCancelled:
		return true
	}
	return false
}

type Slot struct {
	ID              int64      `json:"id"`
	DoctorID        int64      `json:"doctor_id"`
	UserID          *int64     `json:"user_id"` // booking patient, nil while available
	ReservationTime time.Time  `json:"reservation_time"`
	Description     string     `json:"description"`
	Status          SlotStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CanBook reports whether the slot may move to booked.
func (s *Slot) CanBook() bool {
	return s.Status == SlotAvailable
}

// CanCancel reports whether the slot may move to cancelled.
func (s *Slot) CanCancel() bool {
	return s.Status == SlotAvailable || s.Status == SlotBooked
}

// SlotFilter narrows administrative listings. Zero values match everything.
type SlotFilter struct {
	Status   SlotStatus
	DoctorID int64
	UserID   int64
}

func (f SlotFilter) Match(s *Slot) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.DoctorID != 0 && s.DoctorID != f.DoctorID {
		return false
	}
	if f.UserID != 0 && (s.UserID == nil || *s.UserID != f.UserID) {
		return false
	}
	return true
}
