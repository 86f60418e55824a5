package availability

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/catalog"
	"github.com/hackgods/clinic-booking/internal/store"
)

// CreateInput describes a new availability slot.
type CreateInput struct {
	ProviderID string
	ServiceID  string
	RegionCode string
	Start      time.Time
	End        time.Time
	Capacity   int
}

// Allocator owns AvailabilitySlot records. Reserve and Release run inside a
// caller's transaction so the slot and the appointment commit together.
type Allocator struct {
	gw      store.Gateway
	catalog catalog.Repository
	log     zerolog.Logger
	now     func() time.Time
}

func NewAllocator(gw store.Gateway, cat catalog.Repository, log zerolog.Logger) *Allocator {
	return &Allocator{
		gw:      gw,
		catalog: cat,
		log:     log.With().Str("component", "slot_allocator").Logger(),
		now:     time.Now,
	}
}

// ListAvailability returns open slots (booked < capacity) ordered by start.
func (a *Allocator) ListAvailability(ctx context.Context, f Filter) ([]Slot, error) {
	prefix := store.ProviderPrefix
	if f.ProviderID != "" {
		prefix = store.ProviderPK(f.ProviderID)
	}

	items, err := a.gw.QueryByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}

	out := []Slot{}
	for _, it := range items {
		if f.ProviderID != "" && it.PK != prefix {
			continue
		}
		if !strings.HasPrefix(it.SK, store.SlotSKPrefix) {
			continue
		}
		var s Slot
		if err := it.Decode(&s); err != nil {
			return nil, err
		}
		if s.IsFull() || !f.matches(&s) {
			continue
		}
		s.refresh()
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (a *Allocator) CreateAvailability(ctx context.Context, in CreateInput) (*Slot, error) {
	fields := map[string]string{}
	if in.ProviderID == "" {
		fields["provider_id"] = "is required"
	}
	if in.ServiceID == "" {
		fields["service_id"] = "is required"
	}
	if in.RegionCode == "" {
		fields["region_code"] = "is required"
	}
	if in.Start.IsZero() {
		fields["start_time"] = "is required"
	}
	if in.End.IsZero() {
		fields["end_time"] = "is required"
	}
	if !in.Start.IsZero() && !in.End.IsZero() && !in.End.After(in.Start) {
		fields["end_time"] = "must be after start_time"
	}
	if in.Capacity < 1 {
		fields["capacity"] = "must be at least 1"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid availability", fields)
	}

	provider, err := a.catalog.GetProvider(ctx, in.ProviderID)
	if err != nil {
		if errors.Is(err, catalog.ErrProviderNotFound) {
			return nil, apperr.Field("provider_id", "unknown provider")
		}
		return nil, err
	}
	service, err := a.catalog.GetService(ctx, in.ServiceID)
	if err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			return nil, apperr.Field("service_id", "unknown service")
		}
		return nil, err
	}

	switch {
	case !provider.Active:
		return nil, apperr.Field("provider_id", "provider is inactive")
	case !provider.Offers(service.ID):
		return nil, apperr.Field("service_id", "provider does not offer this service")
	case !provider.ServesRegion(in.RegionCode):
		return nil, apperr.Field("region_code", "provider is not enabled for this region")
	case !service.ServesRegion(in.RegionCode):
		return nil, apperr.Field("region_code", "service is not enabled for this region")
	}

	slot := &Slot{
		ProviderID:           in.ProviderID,
		ServiceID:            in.ServiceID,
		RegionCode:           in.RegionCode,
		Start:                in.Start,
		End:                  in.End,
		Capacity:             in.Capacity,
		BookedAppointmentIDs: []string{},
		CreatedAt:            a.now().UTC(),
	}
	slot.refresh()

	pk := store.ProviderPK(in.ProviderID)
	sk := store.SlotSK(in.Start, in.ServiceID)
	err = a.gw.Transact(ctx, pk, func(tx *store.Tx) error {
		if _, exists := tx.Get(sk); exists {
			return ErrSlotExists
		}
		return tx.Put(pk, sk, slot)
	})
	if err != nil {
		return nil, err
	}

	a.log.Info().
		Str("provider_id", slot.ProviderID).
		Str("service_id", slot.ServiceID).
		Time("start", slot.Start).
		Int("capacity", slot.Capacity).
		Msg("availability created")
	return slot, nil
}

func (a *Allocator) DeleteAvailability(ctx context.Context, providerID, serviceID string, start time.Time) error {
	pk := store.ProviderPK(providerID)
	sk := store.SlotSK(start, serviceID)

	return a.gw.Transact(ctx, pk, func(tx *store.Tx) error {
		it, ok := tx.Get(sk)
		if !ok {
			return ErrSlotNotFound
		}
		var s Slot
		if err := it.Decode(&s); err != nil {
			return err
		}
		if len(s.BookedAppointmentIDs) > 0 {
			return ErrSlotBooked
		}
		tx.Delete(pk, sk)
		return nil
	})
}

// Reserve books appointmentID into the slot as part of tx. The slot must
// exist, match the region and have spare capacity. Reserving an id that is
// already booked is a no-op.
func (a *Allocator) Reserve(tx *store.Tx, providerID, serviceID string, start time.Time, regionCode, appointmentID string) (*Slot, error) {
	s, err := loadSlot(tx, serviceID, start)
	if err != nil {
		return nil, err
	}
	if s == nil || s.ProviderID != providerID {
		return nil, ErrSlotUnavailable
	}
	if regionCode != "" && s.RegionCode != regionCode {
		return nil, ErrSlotUnavailable
	}
	if s.HasBooking(appointmentID) {
		return s, nil
	}
	if s.IsFull() {
		return nil, ErrSlotUnavailable
	}

	s.BookedAppointmentIDs = append(s.BookedAppointmentIDs, appointmentID)
	s.refresh()
	if err := tx.Put(tx.Partition(), store.SlotSK(start, serviceID), s); err != nil {
		return nil, err
	}
	return s, nil
}

// Release removes appointmentID from the slot. A missing slot or booking is
// not an error.
func (a *Allocator) Release(tx *store.Tx, serviceID string, start time.Time, appointmentID string) error {
	s, err := loadSlot(tx, serviceID, start)
	if err != nil || s == nil {
		return err
	}
	idx := slices.Index(s.BookedAppointmentIDs, appointmentID)
	if idx < 0 {
		return nil
	}
	s.BookedAppointmentIDs = slices.Delete(s.BookedAppointmentIDs, idx, idx+1)
	s.refresh()
	return tx.Put(tx.Partition(), store.SlotSK(start, serviceID), s)
}

func loadSlot(tx *store.Tx, serviceID string, start time.Time) (*Slot, error) {
	it, ok := tx.Get(store.SlotSK(start, serviceID))
	if !ok {
		return nil, nil
	}
	var s Slot
	if err := it.Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
