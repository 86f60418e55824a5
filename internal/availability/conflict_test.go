package availability

import (
	"testing"
	"time"

	"github.com/hackgods/clinic-booking/internal/catalog"
)

func at(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestFindConflicts_AfterBufferBlocksNextBooking(t *testing.T) {
	existing := []Booking{{
		ID:         "A",
		ProviderID: "P",
		Start:      at(t, "2025-01-10T09:00:00Z"),
		End:        at(t, "2025-01-10T09:30:00Z"),
	}}

	// A's after-buffer stretches it to 09:40, past B's 09:35 start.
	got := FindConflicts(existing, "P",
		at(t, "2025-01-10T09:35:00Z"), at(t, "2025-01-10T10:00:00Z"),
		"", 0, 10*time.Minute)
	if len(got) != 1 || got[0].ID != "A" {
		t.Fatalf("expected conflict with A, got %+v", got)
	}
}

func TestFindConflicts(t *testing.T) {
	existing := []Booking{
		{ID: "a", ProviderID: "P", Start: at(t, "2025-01-10T09:00:00Z"), End: at(t, "2025-01-10T09:30:00Z")},
		{ID: "b", ProviderID: "P", Start: at(t, "2025-01-10T11:00:00Z"), End: at(t, "2025-01-10T11:30:00Z"), Canceled: true},
		{ID: "c", ProviderID: "Q", Start: at(t, "2025-01-10T09:00:00Z"), End: at(t, "2025-01-10T09:30:00Z")},
	}

	tests := []struct {
		name     string
		start    string
		end      string
		ignore   string
		before   time.Duration
		after    time.Duration
		wantHits int
	}{
		{"touching end does not conflict", "2025-01-10T09:30:00Z", "2025-01-10T10:00:00Z", "", 0, 0, 0},
		{"touching start does not conflict", "2025-01-10T08:30:00Z", "2025-01-10T09:00:00Z", "", 0, 0, 0},
		{"overlap", "2025-01-10T09:15:00Z", "2025-01-10T09:45:00Z", "", 0, 0, 1},
		{"gap equal to buffers is free", "2025-01-10T09:40:00Z", "2025-01-10T10:00:00Z", "", 0, 10 * time.Minute, 0},
		{"before buffer reaches back", "2025-01-10T09:35:00Z", "2025-01-10T10:00:00Z", "", 10 * time.Minute, 0, 1},
		{"after buffer reaches forward", "2025-01-10T08:20:00Z", "2025-01-10T08:55:00Z", "", 0, 10 * time.Minute, 1},
		{"ignore self", "2025-01-10T09:15:00Z", "2025-01-10T09:45:00Z", "a", 0, 0, 0},
		{"canceled is not a conflict", "2025-01-10T11:00:00Z", "2025-01-10T11:30:00Z", "", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindConflicts(existing, "P", at(t, tt.start), at(t, tt.end), tt.ignore, tt.before, tt.after)
			if len(got) != tt.wantHits {
				t.Fatalf("hits = %d, want %d (%+v)", len(got), tt.wantHits, got)
			}
		})
	}
}

func TestComputeSlots(t *testing.T) {
	svc := catalog.Service{ID: "S", DurationMin: 30, BufferAfterMin: 10}
	providers := []catalog.Provider{
		{
			ID: "P", Name: "Dr. P", Active: true, ServiceIDs: []string{"S"},
			// 2025-01-10 is a Friday.
			Availability: []catalog.WeeklyWindow{{Day: 5, Start: "09:00", End: "11:00"}},
		},
		{ID: "off", Active: false, ServiceIDs: []string{"S"},
			Availability: []catalog.WeeklyWindow{{Day: 5, Start: "09:00", End: "10:00"}}},
		{ID: "other", Active: true, ServiceIDs: []string{"X"},
			Availability: []catalog.WeeklyWindow{{Day: 5, Start: "09:00", End: "10:00"}}},
	}
	bookings := []Booking{
		{ID: "a", ProviderID: "P", Start: at(t, "2025-01-10T09:30:00Z"), End: at(t, "2025-01-10T10:00:00Z")},
	}

	got := ComputeSlots(providers, bookings, svc, at(t, "2025-01-10T12:00:00Z"), time.UTC)

	// 09:00 runs into the booking through its after-buffer, 09:30 is
	// booked and 10:00 starts inside the booking's own after-buffer.
	want := []string{"2025-01-10T10:30:00Z"}
	if len(got) != len(want) {
		t.Fatalf("got %d slots, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if !got[i].Start.Equal(at(t, w)) {
			t.Fatalf("slot %d = %s, want %s", i, got[i].Start, w)
		}
		if got[i].ProviderID != "P" {
			t.Fatalf("unexpected provider %s", got[i].ProviderID)
		}
	}
}

func TestComputeSlots_UsesLocation(t *testing.T) {
	loc := time.FixedZone("CST", -6*60*60)
	svc := catalog.Service{ID: "S", DurationMin: 60}
	providers := []catalog.Provider{{
		ID: "P", Active: true, ServiceIDs: []string{"S"},
		Availability: []catalog.WeeklyWindow{{Day: 5, Start: "09:00", End: "10:00"}},
	}}

	got := ComputeSlots(providers, nil, svc, at(t, "2025-01-10T18:00:00Z"), loc)
	if len(got) != 1 {
		t.Fatalf("expected one slot, got %+v", got)
	}
	if !got[0].Start.Equal(at(t, "2025-01-10T15:00:00Z")) {
		t.Fatalf("expected 09:00 local (15:00Z), got %s", got[0].Start.UTC())
	}
}

func TestWithinWindows(t *testing.T) {
	p := catalog.Provider{Availability: []catalog.WeeklyWindow{{Day: 5, Start: "09:00", End: "12:00"}}}

	if !WithinWindows(p, at(t, "2025-01-10T09:00:00Z"), at(t, "2025-01-10T09:30:00Z"), time.UTC) {
		t.Fatal("expected 09:00-09:30 inside window")
	}
	if WithinWindows(p, at(t, "2025-01-10T11:45:00Z"), at(t, "2025-01-10T12:15:00Z"), time.UTC) {
		t.Fatal("expected 11:45-12:15 to spill outside window")
	}
	if WithinWindows(p, at(t, "2025-01-11T09:00:00Z"), at(t, "2025-01-11T09:30:00Z"), time.UTC) {
		t.Fatal("expected saturday to be outside window")
	}
}

func TestParseClock(t *testing.T) {
	cases := map[string]int{"00:00": 0, "09:30": 570, "24:00": 1440}
	for in, want := range cases {
		got, ok := parseClock(in)
		if !ok || got != want {
			t.Fatalf("parseClock(%q) = %d,%v want %d", in, got, ok, want)
		}
	}
	for _, bad := range []string{"", "9", "ab:cd", "25:00", "10:75"} {
		if _, ok := parseClock(bad); ok {
			t.Fatalf("parseClock(%q) should fail", bad)
		}
	}
}
