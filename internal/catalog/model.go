package catalog

import (
	"slices"
	"strings"
	"time"
)

const DefaultDurationMin = 30

type Price struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Service struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	DurationMin        int      `json:"duration_min"`
	Price              Price    `json:"price"`
	BufferBeforeMin    int      `json:"buffer_before_min"`
	BufferAfterMin     int      `json:"buffer_after_min"`
	Regions            []string `json:"regions"`
	Active             bool     `json:"active"`
	CancellationPolicy string   `json:"cancellation_policy,omitempty"`
}

// Duration falls back to DefaultDurationMin when the service has none set.
func (s Service) Duration() time.Duration {
	if s.DurationMin <= 0 {
		return DefaultDurationMin * time.Minute
	}
	return time.Duration(s.DurationMin) * time.Minute
}

func (s Service) BufferBefore() time.Duration {
	return time.Duration(s.BufferBeforeMin) * time.Minute
}

func (s Service) BufferAfter() time.Duration {
	return time.Duration(s.BufferAfterMin) * time.Minute
}

func (s Service) ServesRegion(code string) bool {
	return slices.Contains(s.Regions, code)
}

// WeeklyWindow is a recurring working window. Day follows time.Weekday
// (0 = Sunday); Start and End are "HH:MM" wall-clock times.
type WeeklyWindow struct {
	Day   int    `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type Provider struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Regions      []string       `json:"regions"`
	ServiceIDs   []string       `json:"services"`
	Priority     int            `json:"priority"`
	Active       bool           `json:"active"`
	Availability []WeeklyWindow `json:"availability,omitempty"`
}

func (p Provider) Offers(serviceID string) bool {
	return slices.Contains(p.ServiceIDs, serviceID)
}

func (p Provider) ServesRegion(code string) bool {
	return slices.Contains(p.Regions, code)
}

// Preferences controls which reminders are scheduled for a service.
type Preferences struct {
	ReminderOneDay  bool `json:"reminder_one_day"`
	ReminderOneHour bool `json:"reminder_one_hour"`
}

func DefaultPreferences() Preferences {
	return Preferences{ReminderOneDay: true, ReminderOneHour: true}
}

// Validate returns per-field problems, or nil when the service is usable.
func (s Service) Validate() map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(s.ID) == "" {
		fields["id"] = "is required"
	}
	if strings.TrimSpace(s.Name) == "" {
		fields["name"] = "is required"
	}
	if s.DurationMin < 0 {
		fields["duration_min"] = "must not be negative"
	}
	if s.BufferBeforeMin < 0 || s.BufferAfterMin < 0 {
		fields["buffer"] = "must not be negative"
	}
	if s.Price.Amount < 0 {
		fields["price.amount"] = "must not be negative"
	}
	if s.Price.Amount > 0 && strings.TrimSpace(s.Price.Currency) == "" {
		fields["price.currency"] = "is required"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (p Provider) Validate() map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(p.ID) == "" {
		fields["id"] = "is required"
	}
	if strings.TrimSpace(p.Name) == "" {
		fields["name"] = "is required"
	}
	for _, w := range p.Availability {
		if w.Day < 0 || w.Day > 6 {
			fields["availability"] = "day must be 0-6"
			break
		}
		if w.Start >= w.End {
			fields["availability"] = "start must be before end"
			break
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
