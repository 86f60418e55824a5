package availability

import (
	"slices"
	"time"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

var (
	ErrSlotUnavailable = apperr.Validation("slot unavailable", nil)
	ErrSlotExists      = apperr.Conflict("availability slot already exists")
	ErrSlotNotFound    = apperr.NotFound("availability slot not found")
	ErrSlotBooked      = apperr.Conflict("availability slot has booked appointments")
)

// Slot is a provider's declared capacity for one service at one start time.
// Identity is (ProviderID, ServiceID, Start).
type Slot struct {
	ProviderID           string    `json:"provider_id"`
	ServiceID            string    `json:"service_id"`
	RegionCode           string    `json:"region_code"`
	Start                time.Time `json:"start_time"`
	End                  time.Time `json:"end_time"`
	Capacity             int       `json:"capacity"`
	BookedAppointmentIDs []string  `json:"booked_appointment_ids"`
	RemainingCapacity    int       `json:"remaining_capacity"`
	CreatedAt            time.Time `json:"created_at"`
}

func (s *Slot) Remaining() int {
	r := s.Capacity - len(s.BookedAppointmentIDs)
	if r < 0 {
		return 0
	}
	return r
}

func (s *Slot) IsFull() bool {
	return len(s.BookedAppointmentIDs) >= s.Capacity
}

func (s *Slot) HasBooking(appointmentID string) bool {
	return slices.Contains(s.BookedAppointmentIDs, appointmentID)
}

func (s *Slot) refresh() {
	if s.BookedAppointmentIDs == nil {
		s.BookedAppointmentIDs = []string{}
	}
	s.RemainingCapacity = s.Remaining()
}

// Filter narrows ListAvailability. Zero values match everything.
type Filter struct {
	ServiceID  string
	ProviderID string
	RegionCode string
	From       time.Time
	To         time.Time
}

func (f Filter) matches(s *Slot) bool {
	if f.ServiceID != "" && s.ServiceID != f.ServiceID {
		return false
	}
	if f.ProviderID != "" && s.ProviderID != f.ProviderID {
		return false
	}
	if f.RegionCode != "" && s.RegionCode != f.RegionCode {
		return false
	}
	if !f.From.IsZero() && s.Start.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && s.Start.After(f.To) {
		return false
	}
	return true
}
