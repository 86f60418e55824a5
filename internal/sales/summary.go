package sales

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

const dayLayout = "2006-01-02"

// Range bounds the appointment start times that are counted. Zero values
// leave that side open; both ends are inclusive.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

type Options struct {
	// Location is the reporting time zone days are cut in. Nil means UTC.
	Location *time.Location
	// Strict leaves canceled appointments out and counts fully refunded
	// ones as refund-only.
	Strict bool
}

type Day struct {
	Date         string `json:"date"`
	GrossCents   int64  `json:"gross_cents"`
	RefundsCents int64  `json:"refunds_cents"`
	NetCents     int64  `json:"net_cents"`
	Count        int    `json:"count"`
}

type Summary struct {
	GrossCents             int64  `json:"gross_cents"`
	RefundsCents           int64  `json:"refunds_cents"`
	NetCents               int64  `json:"net_cents"`
	PaidAppointments       int    `json:"paid_appointments"`
	AverageOrderValueCents int64  `json:"average_order_value_cents"`
	Timezone               string `json:"timezone"`
	Daily                  []Day  `json:"daily"`
}

// Summarize totals gross, refunds and net per calendar day of the start
// time in the reporting zone. The average order value is net divided by the
// number of paid appointments, rounded half away from zero.
func Summarize(appts []appointment.Appointment, r Range, opts Options) Summary {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	days := map[string]*Day{}
	out := Summary{Timezone: loc.String(), Daily: []Day{}}

	for i := range appts {
		a := &appts[i]
		if a.StartTime.IsZero() || !r.contains(a.StartTime) {
			continue
		}
		if opts.Strict && a.IsCanceled() {
			continue
		}

		gross := a.PaymentAmountCents
		refunds := a.RefundedTotalCents
		if opts.Strict && a.PaymentStatus == appointment.PaymentRefunded {
			refunds = gross
		}

		key := a.StartTime.In(loc).Format(dayLayout)
		d, ok := days[key]
		if !ok {
			d = &Day{Date: key}
			days[key] = d
		}
		d.GrossCents += gross
		d.RefundsCents += refunds
		d.NetCents = d.GrossCents - d.RefundsCents
		d.Count++

		out.GrossCents += gross
		out.RefundsCents += refunds
		if isPaid(a.PaymentStatus) {
			out.PaidAppointments++
		}
	}

	out.NetCents = out.GrossCents - out.RefundsCents
	if out.PaidAppointments > 0 {
		out.AverageOrderValueCents = decimal.NewFromInt(out.NetCents).
			Div(decimal.NewFromInt(int64(out.PaidAppointments))).
			Round(0).
			IntPart()
	}

	for _, d := range days {
		out.Daily = append(out.Daily, *d)
	}
	sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Date < out.Daily[j].Date })
	return out
}

func isPaid(s appointment.PaymentStatus) bool {
	return s == appointment.PaymentSucceeded || s == appointment.PaymentPartiallyRefunded
}
