package appointment

import (
	"time"

	"github.com/hackgods/clinic-booking/internal/catalog"
)

const (
	ReminderOneDay  = "one_day"
	ReminderOneHour = "one_hour"
)

// BuildReminders schedules the one-day and one-hour reminders ahead of
// start. Disabled reminders carry no scheduled time.
func BuildReminders(start time.Time, prefs catalog.Preferences) ReminderSettings {
	return ReminderSettings{
		OneDay:  scheduleReminder(prefs.ReminderOneDay, start.Add(-24*time.Hour)),
		OneHour: scheduleReminder(prefs.ReminderOneHour, start.Add(-time.Hour)),
	}
}

func scheduleReminder(enabled bool, at time.Time) Reminder {
	r := Reminder{Enabled: enabled, Status: ReminderScheduled}
	if enabled {
		t := at.UTC()
		r.ScheduledFor = &t
	}
	return r
}

// Preferences recovers the enabled flags from an existing schedule so a
// reschedule keeps whatever the appointment was booked with.
func (rs ReminderSettings) Preferences() catalog.Preferences {
	return catalog.Preferences{
		ReminderOneDay:  rs.OneDay.Enabled,
		ReminderOneHour: rs.OneHour.Enabled,
	}
}

// DisableReminders cancels both reminders.
func DisableReminders(a *Appointment, now time.Time) {
	for _, r := range []*Reminder{&a.ReminderSettings.OneDay, &a.ReminderSettings.OneHour} {
		r.Status = ReminderCanceled
		t := now
		r.CanceledAt = &t
	}
}

// dueReminders lists reminders whose time has come and that are still
// pending.
func dueReminders(a *Appointment, now time.Time) []string {
	if a.IsCanceled() {
		return nil
	}
	var due []string
	check := func(name string, r Reminder) {
		if r.Enabled && r.Status == ReminderScheduled && r.ScheduledFor != nil && !r.ScheduledFor.After(now) && a.StartTime.After(now) {
			due = append(due, name)
		}
	}
	check(ReminderOneDay, a.ReminderSettings.OneDay)
	check(ReminderOneHour, a.ReminderSettings.OneHour)
	return due
}

func markReminderSent(a *Appointment, name string, now time.Time) {
	t := now
	switch name {
	case ReminderOneDay:
		a.ReminderSettings.OneDay.Status = ReminderSent
		a.ReminderSettings.OneDay.SentAt = &t
	case ReminderOneHour:
		a.ReminderSettings.OneHour.Status = ReminderSent
		a.ReminderSettings.OneHour.SentAt = &t
	}
}
