package sales

import (
	"testing"
	"time"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

var central = time.FixedZone("CST", -6*60*60)

func appt(start string, amount, refunded int64, status appointment.Status, pay appointment.PaymentStatus) appointment.Appointment {
	t, err := time.Parse(time.RFC3339, start)
	if err != nil {
		panic(err)
	}
	return appointment.Appointment{
		StartTime:          t,
		Status:             status,
		PaymentAmountCents: amount,
		RefundedTotalCents: refunded,
		PaymentStatus:      pay,
	}
}

func fixture() []appointment.Appointment {
	return []appointment.Appointment{
		// 21:00 on the 9th in the reporting zone.
		appt("2025-01-10T03:00:00Z", 10000, 0, appointment.StatusPaid, appointment.PaymentSucceeded),
		appt("2025-01-10T15:00:00Z", 10000, 4000, appointment.StatusPaid, appointment.PaymentPartiallyRefunded),
		appt("2025-01-10T16:00:00Z", 5000, 0, appointment.StatusCanceled, appointment.PaymentSucceeded),
		appt("2025-01-11T15:00:00Z", 3000, 3000, appointment.StatusCompleted, appointment.PaymentRefunded),
	}
}

func checkDays(t *testing.T, got []Day, want []Day) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d days, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("day %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSummarize_Lenient(t *testing.T) {
	s := Summarize(fixture(), Range{}, Options{Location: central})

	if s.GrossCents != 28000 || s.RefundsCents != 7000 || s.NetCents != 21000 {
		t.Fatalf("totals = %d/%d/%d", s.GrossCents, s.RefundsCents, s.NetCents)
	}
	if s.PaidAppointments != 3 || s.AverageOrderValueCents != 7000 {
		t.Fatalf("paid=%d avg=%d", s.PaidAppointments, s.AverageOrderValueCents)
	}
	checkDays(t, s.Daily, []Day{
		{Date: "2025-01-09", GrossCents: 10000, RefundsCents: 0, NetCents: 10000, Count: 1},
		{Date: "2025-01-10", GrossCents: 15000, RefundsCents: 4000, NetCents: 11000, Count: 2},
		{Date: "2025-01-11", GrossCents: 3000, RefundsCents: 3000, NetCents: 0, Count: 1},
	})
}

func TestSummarize_Strict(t *testing.T) {
	s := Summarize(fixture(), Range{}, Options{Location: central, Strict: true})

	if s.GrossCents != 23000 || s.RefundsCents != 7000 || s.NetCents != 16000 {
		t.Fatalf("totals = %d/%d/%d", s.GrossCents, s.RefundsCents, s.NetCents)
	}
	if s.PaidAppointments != 2 || s.AverageOrderValueCents != 8000 {
		t.Fatalf("paid=%d avg=%d", s.PaidAppointments, s.AverageOrderValueCents)
	}
	checkDays(t, s.Daily, []Day{
		{Date: "2025-01-09", GrossCents: 10000, NetCents: 10000, Count: 1},
		{Date: "2025-01-10", GrossCents: 10000, RefundsCents: 4000, NetCents: 6000, Count: 1},
		{Date: "2025-01-11", GrossCents: 3000, RefundsCents: 3000, NetCents: 0, Count: 1},
	})
}

func TestSummarize_NetIsSumOfDays(t *testing.T) {
	for _, strict := range []bool{false, true} {
		s := Summarize(fixture(), Range{}, Options{Location: central, Strict: strict})
		var net int64
		for _, d := range s.Daily {
			if d.NetCents != d.GrossCents-d.RefundsCents {
				t.Fatalf("day %s: net %d != gross %d - refunds %d", d.Date, d.NetCents, d.GrossCents, d.RefundsCents)
			}
			net += d.NetCents
		}
		if net != s.NetCents {
			t.Fatalf("strict=%v: sum of daily net %d != %d", strict, net, s.NetCents)
		}
	}
}

func TestSummarize_Range(t *testing.T) {
	start, _ := time.Parse(time.RFC3339, "2025-01-10T12:00:00Z")
	end, _ := time.Parse(time.RFC3339, "2025-01-10T23:59:59Z")

	s := Summarize(fixture(), Range{Start: start, End: end}, Options{Location: central})
	if len(s.Daily) != 1 || s.Daily[0].Count != 2 {
		t.Fatalf("unexpected daily buckets %+v", s.Daily)
	}
}

func TestSummarize_AverageRounding(t *testing.T) {
	appts := []appointment.Appointment{
		appt("2025-01-10T15:00:00Z", 3, 0, appointment.StatusPaid, appointment.PaymentSucceeded),
		appt("2025-01-10T16:00:00Z", 2, 0, appointment.StatusPaid, appointment.PaymentSucceeded),
	}
	if got := Summarize(appts, Range{}, Options{}).AverageOrderValueCents; got != 3 {
		t.Fatalf("average = %d, want 3", got)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, Range{}, Options{})
	if s.AverageOrderValueCents != 0 || s.Daily == nil || len(s.Daily) != 0 || s.Timezone != "UTC" {
		t.Fatalf("unexpected empty summary %+v", s)
	}
}
