package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hackgods/clinic-booking/internal/store"
)

var (
	ErrServiceNotFound  = errors.New("service not found")
	ErrProviderNotFound = errors.New("provider not found")
)

// Repository is the read-mostly catalog the booking core consults. It is
// passed in explicitly so tests can swap in fakes.
type Repository interface {
	GetService(ctx context.Context, id string) (*Service, error)
	ListServices(ctx context.Context) ([]Service, error)
	PutService(ctx context.Context, svc Service) error

	GetProvider(ctx context.Context, id string) (*Provider, error)
	ListProviders(ctx context.Context) ([]Provider, error)
	PutProvider(ctx context.Context, p Provider) error

	GetPreferences(ctx context.Context, serviceID string) (Preferences, error)
	ListPreferences(ctx context.Context) (map[string]Preferences, error)
	PutPreferences(ctx context.Context, serviceID string, prefs Preferences) error
}

// StoreRepository keeps the catalog in the persistence gateway.
type StoreRepository struct {
	gw store.Gateway
}

func NewStoreRepository(gw store.Gateway) *StoreRepository {
	return &StoreRepository{gw: gw}
}

func (r *StoreRepository) GetService(ctx context.Context, id string) (*Service, error) {
	it, err := r.gw.Get(ctx, store.ServicePK(id), store.CatalogSK)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("load service %s: %w", id, err)
	}
	var svc Service
	if err := it.Decode(&svc); err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *StoreRepository) ListServices(ctx context.Context) ([]Service, error) {
	items, err := r.gw.QueryByPrefix(ctx, store.ServicePrefix)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	var out []Service
	for _, it := range items {
		if it.SK != store.CatalogSK {
			continue
		}
		var svc Service
		if err := it.Decode(&svc); err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *StoreRepository) PutService(ctx context.Context, svc Service) error {
	pk := store.ServicePK(svc.ID)
	err := r.gw.Transact(ctx, pk, func(tx *store.Tx) error {
		return tx.Put(pk, store.CatalogSK, svc)
	})
	if err != nil {
		return fmt.Errorf("save service %s: %w", svc.ID, err)
	}
	return nil
}

func (r *StoreRepository) GetProvider(ctx context.Context, id string) (*Provider, error) {
	it, err := r.gw.Get(ctx, store.ProfilePK(id), store.CatalogSK)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("load provider %s: %w", id, err)
	}
	var p Provider
	if err := it.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProviders returns providers ordered by priority, then id.
func (r *StoreRepository) ListProviders(ctx context.Context) ([]Provider, error) {
	items, err := r.gw.QueryByPrefix(ctx, store.ProfilePrefix)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	out := make([]Provider, 0, len(items))
	for _, it := range items {
		var p Provider
		if err := it.Decode(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *StoreRepository) PutProvider(ctx context.Context, p Provider) error {
	pk := store.ProfilePK(p.ID)
	err := r.gw.Transact(ctx, pk, func(tx *store.Tx) error {
		return tx.Put(pk, store.CatalogSK, p)
	})
	if err != nil {
		return fmt.Errorf("save provider %s: %w", p.ID, err)
	}
	return nil
}

func (r *StoreRepository) GetPreferences(ctx context.Context, serviceID string) (Preferences, error) {
	it, err := r.gw.Get(ctx, store.ServicePK(serviceID), store.PreferencesSK)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return DefaultPreferences(), nil
		}
		return Preferences{}, fmt.Errorf("load preferences %s: %w", serviceID, err)
	}
	var prefs Preferences
	if err := it.Decode(&prefs); err != nil {
		return Preferences{}, err
	}
	return prefs, nil
}

func (r *StoreRepository) ListPreferences(ctx context.Context) (map[string]Preferences, error) {
	items, err := r.gw.QueryByPrefix(ctx, store.ServicePrefix)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	out := make(map[string]Preferences)
	for _, it := range items {
		if it.SK != store.PreferencesSK {
			continue
		}
		var prefs Preferences
		if err := it.Decode(&prefs); err != nil {
			return nil, err
		}
		out[strings.TrimPrefix(it.PK, store.ServicePrefix)] = prefs
	}
	return out, nil
}

func (r *StoreRepository) PutPreferences(ctx context.Context, serviceID string, prefs Preferences) error {
	pk := store.ServicePK(serviceID)
	err := r.gw.Transact(ctx, pk, func(tx *store.Tx) error {
		return tx.Put(pk, store.PreferencesSK, prefs)
	})
	if err != nil {
		return fmt.Errorf("save preferences %s: %w", serviceID, err)
	}
	return nil
}
