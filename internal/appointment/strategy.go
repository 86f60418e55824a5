package appointment

import (
	"time"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/catalog"
	"github.com/hackgods/clinic-booking/internal/store"
)

const timeSlotTaken = "time slot no longer available"

// ErrTimeSlotTaken is returned (with the blocking appointments attached)
// when a window booking overlaps another appointment.
var ErrTimeSlotTaken = apperr.Conflict(timeSlotTaken)

// BookingStrategy decides whether an appointment may occupy its time and
// records the occupancy. Every method runs inside the provider partition
// transaction that also writes the appointment.
type BookingStrategy interface {
	Name() string
	// Book claims a.StartTime..a.EndTime for a new appointment.
	Book(tx *store.Tx, a *Appointment, svc catalog.Service, p catalog.Provider) error
	// Rebook moves an existing claim to start..end. a still carries the
	// old times when it is called.
	Rebook(tx *store.Tx, a *Appointment, start, end time.Time, svc catalog.Service, p catalog.Provider) error
	// Release gives the claim back.
	Release(tx *store.Tx, a *Appointment) error
}

// SlotStrategy books against pre-declared availability slots with bounded
// capacity.
type SlotStrategy struct {
	alloc *availability.Allocator
}

func NewSlotStrategy(alloc *availability.Allocator) *SlotStrategy {
	return &SlotStrategy{alloc: alloc}
}

func (s *SlotStrategy) Name() string { return "slot" }

func (s *SlotStrategy) Book(tx *store.Tx, a *Appointment, svc catalog.Service, p catalog.Provider) error {
	slot, err := s.alloc.Reserve(tx, p.ID, svc.ID, a.StartTime, a.RegionCode, a.ID)
	if err != nil {
		return err
	}
	start := slot.Start
	a.SlotStart = &start
	return nil
}

func (s *SlotStrategy) Rebook(tx *store.Tx, a *Appointment, start, end time.Time, svc catalog.Service, p catalog.Provider) error {
	if err := s.Release(tx, a); err != nil {
		return err
	}
	slot, err := s.alloc.Reserve(tx, p.ID, svc.ID, start, a.RegionCode, a.ID)
	if err != nil {
		return err
	}
	slotStart := slot.Start
	a.SlotStart = &slotStart
	return nil
}

func (s *SlotStrategy) Release(tx *store.Tx, a *Appointment) error {
	if !a.HoldsSlot() {
		return nil
	}
	return s.alloc.Release(tx, a.ServiceID, *a.SlotStart, a.ID)
}

// WindowStrategy books free-form times inside a provider's weekly windows,
// rejecting anything that overlaps another active appointment once the
// service buffers are applied.
type WindowStrategy struct {
	loc *time.Location
}

func NewWindowStrategy(loc *time.Location) *WindowStrategy {
	if loc == nil {
		loc = time.UTC
	}
	return &WindowStrategy{loc: loc}
}

func (w *WindowStrategy) Name() string { return "window" }

func (w *WindowStrategy) Book(tx *store.Tx, a *Appointment, svc catalog.Service, p catalog.Provider) error {
	return w.check(tx, "", a.StartTime, a.EndTime, svc, p)
}

func (w *WindowStrategy) Rebook(tx *store.Tx, a *Appointment, start, end time.Time, svc catalog.Service, p catalog.Provider) error {
	return w.check(tx, a.ID, start, end, svc, p)
}

func (w *WindowStrategy) Release(*store.Tx, *Appointment) error { return nil }

func (w *WindowStrategy) check(tx *store.Tx, ignoreID string, start, end time.Time, svc catalog.Service, p catalog.Provider) error {
	// Providers without declared windows take bookings at any time.
	if len(p.Availability) > 0 && !availability.WithinWindows(p, start, end, w.loc) {
		return apperr.Field("start_time", "is outside the provider's availability")
	}

	bookings, err := bookingsTx(tx)
	if err != nil {
		return err
	}
	conflicts := availability.FindConflicts(bookings, p.ID, start, end, ignoreID, svc.BufferBefore(), svc.BufferAfter())
	if len(conflicts) == 0 {
		return nil
	}

	refs := make([]apperr.ConflictRef, 0, len(conflicts))
	for _, c := range conflicts {
		refs = append(refs, apperr.ConflictRef{
			ID:        c.ID,
			StartTime: c.Start.Format(time.RFC3339),
			EndTime:   c.End.Format(time.RFC3339),
		})
	}
	return &apperr.Error{Kind: apperr.KindConflict, Message: timeSlotTaken, Conflicts: refs}
}
