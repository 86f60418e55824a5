package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/store"
)

var (
	ErrAppointmentNotFound = apperr.NotFound("appointment not found")
	ErrDuplicateID         = apperr.Conflict("appointment id already exists")
)

// lookupRef is the index record that maps an appointment id to the provider
// partition holding it.
type lookupRef struct {
	ProviderID string `json:"provider_id"`
}

// Repository stores appointments inside their provider's partition next to
// that provider's availability slots.
type Repository struct {
	gw store.Gateway
}

func NewRepository(gw store.Gateway) *Repository {
	return &Repository{gw: gw}
}

// ProviderOf resolves the partition an appointment lives in.
func (r *Repository) ProviderOf(ctx context.Context, id string) (string, error) {
	it, err := r.gw.Get(ctx, store.AppointmentLookupPK(id), store.LookupSK)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return "", ErrAppointmentNotFound
		}
		return "", fmt.Errorf("lookup appointment %s: %w", id, err)
	}
	var ref lookupRef
	if err := it.Decode(&ref); err != nil {
		return "", err
	}
	return ref.ProviderID, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Appointment, error) {
	providerID, err := r.ProviderOf(ctx, id)
	if err != nil {
		return nil, err
	}
	it, err := r.gw.Get(ctx, store.ProviderPK(providerID), store.AppointmentSK(id))
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("load appointment %s: %w", id, err)
	}
	var a Appointment
	if err := it.Decode(&a); err != nil {
		return nil, err
	}
	a.normalize()
	return &a, nil
}

// ListAll returns every appointment across providers.
func (r *Repository) ListAll(ctx context.Context) ([]Appointment, error) {
	items, err := r.gw.QueryByPrefix(ctx, store.ProviderPrefix)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	var out []Appointment
	for _, it := range items {
		if !strings.HasPrefix(it.SK, store.AppointmentSKPrefix) {
			continue
		}
		var a Appointment
		if err := it.Decode(&a); err != nil {
			return nil, err
		}
		a.normalize()
		out = append(out, a)
	}
	sortByStart(out)
	return out, nil
}

// Transact runs fn inside the provider's partition transaction.
func (r *Repository) Transact(ctx context.Context, providerID string, fn func(tx *store.Tx) error) error {
	err := r.gw.Transact(ctx, store.ProviderPK(providerID), fn)
	if errors.Is(err, store.ErrVersionConflict) {
		return ErrConcurrentUpdate
	}
	return err
}

func loadTx(tx *store.Tx, id string) (*Appointment, error) {
	it, ok := tx.Get(store.AppointmentSK(id))
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	var a Appointment
	if err := it.Decode(&a); err != nil {
		return nil, err
	}
	a.normalize()
	return &a, nil
}

func saveTx(tx *store.Tx, a *Appointment) error {
	return tx.Put(tx.Partition(), store.AppointmentSK(a.ID), a)
}

// insertTx writes a new appointment together with its lookup record. The
// lookup put is insert-only so a reused id fails the whole transaction.
func insertTx(tx *store.Tx, a *Appointment) error {
	if _, exists := tx.Get(store.AppointmentSK(a.ID)); exists {
		return ErrDuplicateID
	}
	if err := saveTx(tx, a); err != nil {
		return err
	}
	return tx.Put(store.AppointmentLookupPK(a.ID), store.LookupSK, lookupRef{ProviderID: a.ProviderID})
}

func deleteTx(tx *store.Tx, a *Appointment) {
	tx.Delete(tx.Partition(), store.AppointmentSK(a.ID))
	tx.Delete(store.AppointmentLookupPK(a.ID), store.LookupSK)
}

// bookingsTx returns the provider's appointments as conflict-detector
// bookings.
func bookingsTx(tx *store.Tx) ([]availability.Booking, error) {
	items := tx.Query(store.AppointmentSKPrefix)
	out := make([]availability.Booking, 0, len(items))
	for _, it := range items {
		var a Appointment
		if err := it.Decode(&a); err != nil {
			return nil, err
		}
		out = append(out, toBooking(&a))
	}
	return out, nil
}

func toBooking(a *Appointment) availability.Booking {
	return availability.Booking{
		ID:         a.ID,
		ProviderID: a.ProviderID,
		Start:      a.StartTime,
		End:        a.EndTime,
		Canceled:   a.IsCanceled(),
	}
}

func sortByStart(list []Appointment) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].StartTime.Before(list[j].StartTime) })
}
