package availability

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hackgods/clinic-booking/internal/catalog"
)

// Booking is the slice of an appointment the conflict detector needs.
type Booking struct {
	ID         string
	ProviderID string
	Start      time.Time
	End        time.Time
	Canceled   bool
}

// OpenSlot is a free bucket inside a provider's weekly window.
type OpenSlot struct {
	ProviderID   string    `json:"provider_id"`
	ProviderName string    `json:"provider_name"`
	ServiceID    string    `json:"service_id"`
	Start        time.Time `json:"start_time"`
	End          time.Time `json:"end_time"`
}

// FindConflicts returns the bookings of providerID whose buffered window
// [Start-before, End+after) intersects the candidate's buffered window
// [start-before, end+after). Consecutive appointments therefore need a gap
// of at least after+before. Intervals are half-open, so touching endpoints
// do not conflict. Canceled bookings and ignoreID are skipped.
func FindConflicts(bookings []Booking, providerID string, start, end time.Time, ignoreID string, before, after time.Duration) []Booking {
	windowStart := start.Add(-before)
	windowEnd := end.Add(after)

	var out []Booking
	for _, b := range bookings {
		if b.ProviderID != providerID || b.Canceled {
			continue
		}
		if ignoreID != "" && b.ID == ignoreID {
			continue
		}
		if b.Start.Add(-before).Before(windowEnd) && b.End.Add(after).After(windowStart) {
			out = append(out, b)
		}
	}
	return out
}

// ComputeSlots splits each eligible provider's windows for the weekday of
// date (in loc) into back-to-back buckets of the service duration and drops
// buckets that conflict with an existing booking.
func ComputeSlots(providers []catalog.Provider, bookings []Booking, svc catalog.Service, date time.Time, loc *time.Location) []OpenSlot {
	if loc == nil {
		loc = time.UTC
	}
	local := date.In(loc)
	y, m, d := local.Date()
	weekday := int(local.Weekday())
	dur := svc.Duration()
	step := int(dur / time.Minute)

	out := []OpenSlot{}
	for _, p := range providers {
		if !p.Active || !p.Offers(svc.ID) {
			continue
		}
		for _, w := range p.Availability {
			if w.Day != weekday {
				continue
			}
			from, ok1 := parseClock(w.Start)
			to, ok2 := parseClock(w.End)
			if !ok1 || !ok2 {
				continue
			}
			for min := from; min+step <= to; min += step {
				start := time.Date(y, m, d, 0, min, 0, 0, loc)
				end := start.Add(dur)
				if len(FindConflicts(bookings, p.ID, start, end, "", svc.BufferBefore(), svc.BufferAfter())) > 0 {
					continue
				}
				out = append(out, OpenSlot{
					ProviderID:   p.ID,
					ProviderName: p.Name,
					ServiceID:    svc.ID,
					Start:        start,
					End:          end,
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// WithinWindows reports whether [start, end) sits inside one of the
// provider's weekly windows, read in loc.
func WithinWindows(p catalog.Provider, start, end time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	ls := start.In(loc)
	startMin := ls.Hour()*60 + ls.Minute()
	endMin := startMin + int(end.Sub(start)/time.Minute)
	for _, w := range p.Availability {
		if w.Day != int(ls.Weekday()) {
			continue
		}
		from, ok1 := parseClock(w.Start)
		to, ok2 := parseClock(w.End)
		if ok1 && ok2 && startMin >= from && endMin <= to {
			return true
		}
	}
	return false
}

// parseClock turns "HH:MM" into minutes after midnight.
func parseClock(s string) (int, bool) {
	hh, mm, found := strings.Cut(s, ":")
	if !found {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, false
	}
	mi, err := strconv.Atoi(mm)
	if err != nil || mi < 0 || mi > 59 {
		return 0, false
	}
	total := h*60 + mi
	if total > 24*60 {
		return 0, false
	}
	return total, true
}
