package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

type dataResponse struct {
	Data any `json:"data"`
}

type ErrorResponse struct {
	Error     string               `json:"error"`
	Message   string               `json:"message"`
	Fields    map[string]string    `json:"fields,omitempty"`
	Conflicts []apperr.ConflictRef `json:"conflicts,omitempty"`
}

var errInvalidMoney = errors.New("amount must be integer cents or a decimal string")

// Money accepts integer cents (1250) or a decimal amount in major units as
// a string ("12.50").
type Money struct {
	Set   bool
	Cents int64
}

var (
	hundred  = decimal.NewFromInt(100)
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// toCents rejects non-integral values and anything outside int64, which
// IntPart would otherwise wrap.
func toCents(d decimal.Decimal) (int64, error) {
	if !d.IsInteger() || d.GreaterThan(maxCents) || d.LessThan(minCents) {
		return 0, errInvalidMoney
	}
	return d.IntPart(), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*m = Money{}
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return errInvalidMoney
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return errInvalidMoney
		}
		cents, err := toCents(d.Mul(hundred))
		if err != nil {
			return err
		}
		*m = Money{Set: true, Cents: cents}
		return nil
	}

	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return errInvalidMoney
	}
	cents, err := toCents(d)
	if err != nil {
		return err
	}
	*m = Money{Set: true, Cents: cents}
	return nil
}

func (m Money) ptr() *int64 {
	if !m.Set {
		return nil
	}
	v := m.Cents
	return &v
}

type CreateAppointmentRequest struct {
	ID               string     `json:"id"`
	ServiceID        string     `json:"service_id"`
	ProviderID       string     `json:"provider_id"`
	RegionCode       string     `json:"region_code"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time"`
	Timezone         string     `json:"timezone"`
	PatientName      string     `json:"patient_name"`
	PatientEmail     string     `json:"patient_email"`
	PatientMobile    string     `json:"patient_mobile"`
	TextConsent      bool       `json:"text_consent"`
	PaymentAmount    Money      `json:"payment_amount_cents"`
	PaymentCurrency  string     `json:"payment_currency"`
	PaymentReference string     `json:"payment_reference"`
	Notes            string     `json:"notes"`
	RequestedBy      string     `json:"requested_by"`
}

type CancelRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

type RescheduleRequest struct {
	NewStartTime time.Time  `json:"new_start"`
	NewEndTime   *time.Time `json:"new_end"`
	Actor        string     `json:"actor"`
}

type RefundRequest struct {
	Amount   Money  `json:"amount"`
	Reason   string `json:"reason"`
	Actor    string `json:"actor"`
	RefundID string `json:"refund_id"`
}

type NotificationRequest struct {
	Type      string   `json:"type"`
	Channels  []string `json:"channels"`
	Recipient string   `json:"recipient"`
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Reference string   `json:"reference"`
	ErrorCode string   `json:"error_code"`
	Force     bool     `json:"force"`
	Actor     string   `json:"actor"`
}

type ResendRequest struct {
	Type      string   `json:"type"`
	Channels  []string `json:"channels"`
	Recipient string   `json:"recipient"`
	Actor     string   `json:"actor"`
}

type AvailabilityRequest struct {
	ProviderID string    `json:"provider_id"`
	ServiceID  string    `json:"service_id"`
	RegionCode string    `json:"region_code"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Capacity   int       `json:"capacity"`
}

type CheckoutRequest struct {
	ServiceID string `json:"service_id"`
}

type AppointmentListResponse struct {
	Appointments any `json:"appointments"`
	Summary      any `json:"summary"`
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
