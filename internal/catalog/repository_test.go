package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hackgods/clinic-booking/internal/store"
)

func TestStoreRepository_ServicesAndPreferences(t *testing.T) {
	ctx := context.Background()
	repo := NewStoreRepository(store.NewMemoryStore())

	if _, err := repo.GetService(ctx, "missing"); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}

	svc := Service{ID: "svc-b", Name: "Consult", DurationMin: 45, Active: true, Regions: []string{"MN"}}
	if err := repo.PutService(ctx, svc); err != nil {
		t.Fatalf("put service: %v", err)
	}
	if err := repo.PutService(ctx, Service{ID: "svc-a", Name: "Follow-up"}); err != nil {
		t.Fatalf("put service: %v", err)
	}
	if err := repo.PutPreferences(ctx, "svc-b", Preferences{ReminderOneDay: false, ReminderOneHour: true}); err != nil {
		t.Fatalf("put prefs: %v", err)
	}

	got, err := repo.GetService(ctx, "svc-b")
	if err != nil {
		t.Fatalf("get service: %v", err)
	}
	if got.Duration() != 45*time.Minute || !got.ServesRegion("MN") {
		t.Fatalf("unexpected service: %+v", got)
	}

	list, err := repo.ListServices(ctx)
	if err != nil {
		t.Fatalf("list services: %v", err)
	}
	if len(list) != 2 || list[0].ID != "svc-a" {
		t.Fatalf("expected two services sorted by id, got %+v", list)
	}

	prefs, err := repo.GetPreferences(ctx, "svc-b")
	if err != nil {
		t.Fatalf("get prefs: %v", err)
	}
	if prefs.ReminderOneDay || !prefs.ReminderOneHour {
		t.Fatalf("unexpected prefs: %+v", prefs)
	}

	defaults, err := repo.GetPreferences(ctx, "svc-a")
	if err != nil {
		t.Fatalf("get default prefs: %v", err)
	}
	if defaults != DefaultPreferences() {
		t.Fatalf("expected defaults, got %+v", defaults)
	}

	all, err := repo.ListPreferences(ctx)
	if err != nil {
		t.Fatalf("list prefs: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one stored preference, got %d", len(all))
	}
}

func TestStoreRepository_ProvidersByPriority(t *testing.T) {
	ctx := context.Background()
	repo := NewStoreRepository(store.NewMemoryStore())

	for _, p := range []Provider{
		{ID: "p3", Priority: 2},
		{ID: "p1", Priority: 1},
		{ID: "p2", Priority: 1},
	} {
		if err := repo.PutProvider(ctx, p); err != nil {
			t.Fatalf("put provider: %v", err)
		}
	}

	list, err := repo.ListProviders(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"p1", "p2", "p3"}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, list[i].ID, id)
		}
	}

	if _, err := repo.GetProvider(ctx, "nope"); !errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}
