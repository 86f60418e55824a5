package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/catalog"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/payment"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/store"
)

type stubGateway struct {
	err error
}

func (g stubGateway) CreateCheckout(context.Context, payment.CheckoutRequest) (*payment.Session, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &payment.Session{ID: "cs_1", URL: "https://pay.example/cs_1"}, nil
}

func newTestRouter(t *testing.T, gw payment.Gateway) http.Handler {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemoryStore()
	cat := catalog.NewStoreRepository(mem)

	if err := cat.PutService(ctx, catalog.Service{
		ID: "S", Name: "Consult", DurationMin: 30, BufferAfterMin: 10,
		Price: catalog.Price{Amount: 10000, Currency: "usd"}, Regions: []string{"MN"}, Active: true,
	}); err != nil {
		t.Fatalf("seed service: %v", err)
	}
	if err := cat.PutProvider(ctx, catalog.Provider{
		ID: "P", Name: "Dr. Park", Regions: []string{"MN"}, ServiceIDs: []string{"S"}, Active: true,
	}); err != nil {
		t.Fatalf("seed provider: %v", err)
	}

	cfg := config.Config{ClinicTimezone: "UTC", DefaultCurrency: "usd"}
	alloc := availability.NewAllocator(mem, cat, zerolog.Nop())
	svc := appointment.NewService(appointment.NewRepository(mem), cat, alloc, redisclient.NewLocalLocker(), nil, cfg, zerolog.Nop())

	var checkout *payment.Checkout
	if gw != nil {
		checkout = payment.NewCheckout(gw, cat, "https://clinic.example/ok", "https://clinic.example/cancel", zerolog.Nop())
	}

	return NewRouter(RouterConfig{
		Appointments: svc,
		Availability: alloc,
		Catalog:      cat,
		Checkout:     checkout,
		Logger:       zerolog.Nop(),
		Store:        "memory",
		Env:          "test",
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error: %v (%s)", err, rec.Body.String())
	}
	return e
}

const slotBooking = `{
	"service_id": "S", "provider_id": "P", "region_code": "MN",
	"start_time": "2025-01-10T14:00:00Z",
	"patient_name": "Jane Doe", "patient_email": "jane@example.com",
	"patient_mobile": "612-555-0100", "text_consent": true
}`

func windowBooking(start string) string {
	return `{
	"service_id": "S", "provider_id": "P", "start_time": "` + start + `",
	"patient_name": "Jane Doe", "patient_email": "jane@example.com",
	"patient_mobile": "612-555-0100", "text_consent": true
}`
}

func createAppointment(t *testing.T, h http.Handler, body string) appointment.Appointment {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/appointments", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var a appointment.Appointment
	decodeData(t, rec, &a)
	return a
}

func TestHealthAndRequestID(t *testing.T) {
	h := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Header().Get("X-Request-ID") != "req-42" {
		t.Fatalf("status=%d request id=%q", rec.Code, rec.Header().Get("X-Request-ID"))
	}

	rec = do(t, h, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"store":"memory"`) {
		t.Fatalf("ready: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSlotBookingFlow(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/availability", `{
		"provider_id": "P", "service_id": "S", "region_code": "MN",
		"start_time": "2025-01-10T14:00:00Z", "end_time": "2025-01-10T14:30:00Z", "capacity": 1
	}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create availability: %d %s", rec.Code, rec.Body.String())
	}

	createAppointment(t, h, slotBooking)

	rec = do(t, h, http.MethodGet, "/availability?provider_id=P", "")
	var open []availability.Slot
	decodeData(t, rec, &open)
	if len(open) != 0 {
		t.Fatalf("full slot should not be listed, got %+v", open)
	}

	rec = do(t, h, http.MethodPost, "/appointments", slotBooking)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second booking status = %d, want 400", rec.Code)
	}
	if e := decodeError(t, rec); e.Error != "validation_error" || e.Message != "slot unavailable" {
		t.Fatalf("unexpected error %+v", e)
	}

	rec = do(t, h, http.MethodDelete, "/availability/P/2025-01-10T14:00:00Z/S", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("deleting a booked slot should conflict, got %d", rec.Code)
	}
}

func TestWindowConflictIs409(t *testing.T) {
	h := newTestRouter(t, nil)
	first := createAppointment(t, h, windowBooking("2025-01-10T09:00:00Z"))

	rec := do(t, h, http.MethodPost, "/appointments", windowBooking("2025-01-10T09:35:00Z"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
	e := decodeError(t, rec)
	if e.Error != "conflict" || len(e.Conflicts) != 1 || e.Conflicts[0].ID != first.ID {
		t.Fatalf("unexpected error %+v", e)
	}
}

func TestValidationFields(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := do(t, h, http.MethodPost, "/appointments", `{"service_id": "S", "provider_id": "P"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	e := decodeError(t, rec)
	if e.Fields["patient_email"] == "" || e.Fields["start_time"] == "" {
		t.Fatalf("expected per-field errors, got %+v", e.Fields)
	}

	rec = do(t, h, http.MethodPost, "/appointments", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", rec.Code)
	}
}

func TestUpdateTransitions(t *testing.T) {
	h := newTestRouter(t, nil)
	a := createAppointment(t, h, windowBooking("2025-01-10T09:00:00Z"))
	path := "/appointments/" + a.ID

	rec := do(t, h, http.MethodPatch, path, `{"status": "draft"}`)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Error != "illegal_transition" {
		t.Fatalf("paid -> draft: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPatch, path, `{"status": "canceled"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("paid -> canceled: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPatch, path, `{"status": "completed"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("canceled -> completed: %d", rec.Code)
	}

	rec = do(t, h, http.MethodDelete, path, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete canceled: %d %s", rec.Code, rec.Body.String())
	}
	if rec = do(t, h, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: %d", rec.Code)
	}
}

func TestReschedule(t *testing.T) {
	h := newTestRouter(t, nil)
	first := createAppointment(t, h, windowBooking("2025-01-10T09:00:00Z"))
	second := createAppointment(t, h, windowBooking("2025-01-10T11:00:00Z"))
	path := "/appointments/" + second.ID + "/reschedule"

	rec := do(t, h, http.MethodPost, path, `{"actor": "frontdesk"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing start: %d %s", rec.Code, rec.Body.String())
	}
	if e := decodeError(t, rec); e.Fields["new_start"] == "" {
		t.Fatalf("expected new_start field error, got %+v", e)
	}

	rec = do(t, h, http.MethodPost, path, `{"new_start": "2025-01-10T09:35:00Z"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("overlapping reschedule: %d %s", rec.Code, rec.Body.String())
	}
	if e := decodeError(t, rec); len(e.Conflicts) != 1 || e.Conflicts[0].ID != first.ID {
		t.Fatalf("unexpected conflicts %+v", e)
	}

	rec = do(t, h, http.MethodPost, path, `{"new_start": "2025-01-10T13:00:00Z", "new_end": "2025-01-10T13:45:00Z"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reschedule: %d %s", rec.Code, rec.Body.String())
	}
	var got appointment.Appointment
	decodeData(t, rec, &got)
	if !got.StartTime.Equal(mustTime(t, "2025-01-10T13:00:00Z")) || !got.EndTime.Equal(mustTime(t, "2025-01-10T13:45:00Z")) {
		t.Fatalf("unexpected times %s - %s", got.StartTime, got.EndTime)
	}
}

func mustTime(t *testing.T, v string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		t.Fatalf("parse %q: %v", v, err)
	}
	return ts
}

func TestRefundAcceptsDecimalAmounts(t *testing.T) {
	h := newTestRouter(t, nil)
	a := createAppointment(t, h, windowBooking("2025-01-10T09:00:00Z"))
	path := "/appointments/" + a.ID + "/refund"

	rec := do(t, h, http.MethodPost, path, `{"amount": "40.00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("refund 40.00: %d %s", rec.Code, rec.Body.String())
	}
	var got appointment.Appointment
	decodeData(t, rec, &got)
	if got.RefundedTotalCents != 4000 || got.PaymentStatus != appointment.PaymentPartiallyRefunded {
		t.Fatalf("after refund: %d %s", got.RefundedTotalCents, got.PaymentStatus)
	}

	if rec = do(t, h, http.MethodPost, path, `{"amount": 6000}`); rec.Code != http.StatusOK {
		t.Fatalf("refund 6000: %d", rec.Code)
	}
	rec = do(t, h, http.MethodPost, path, `{"amount": 1}`)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Message != "refund exceeds amount paid" {
		t.Fatalf("over-refund: %d %s", rec.Code, rec.Body.String())
	}
	if rec = do(t, h, http.MethodPost, path, `{"amount": "1.005"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("fractional cents: %d", rec.Code)
	}
}

func TestCancelAndNotFound(t *testing.T) {
	h := newTestRouter(t, nil)
	a := createAppointment(t, h, windowBooking("2025-01-10T09:00:00Z"))

	rec := do(t, h, http.MethodPost, "/appointments/"+a.ID+"/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodPost, "/appointments/"+a.ID+"/cancel", `{"reason": "again"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second cancel: %d", rec.Code)
	}
	if rec = do(t, h, http.MethodPost, "/appointments/apt_missing/cancel", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing: %d", rec.Code)
	}
}

func TestSalesStats(t *testing.T) {
	h := newTestRouter(t, nil)
	a := createAppointment(t, h, windowBooking("2025-01-10T09:00:00Z"))
	createAppointment(t, h, windowBooking("2025-01-11T09:00:00Z"))
	if rec := do(t, h, http.MethodPost, "/appointments/"+a.ID+"/cancel", ""); rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d", rec.Code)
	}

	var lenient, strict struct {
		GrossCents int64 `json:"gross_cents"`
		Daily      []struct {
			Date string `json:"date"`
		} `json:"daily"`
	}
	decodeData(t, do(t, h, http.MethodGet, "/stats/sales?start=2025-01-01&end=2025-01-31", ""), &lenient)
	decodeData(t, do(t, h, http.MethodGet, "/stats/sales?start=2025-01-01&end=2025-01-31&strict=true", ""), &strict)

	if lenient.GrossCents != 20000 || len(lenient.Daily) != 2 {
		t.Fatalf("lenient: %+v", lenient)
	}
	if strict.GrossCents != 10000 || len(strict.Daily) != 1 || strict.Daily[0].Date != "2025-01-11" {
		t.Fatalf("strict: %+v", strict)
	}

	if rec := do(t, h, http.MethodGet, "/stats/sales?start=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad start: %d", rec.Code)
	}
}

func TestOpenSlots(t *testing.T) {
	h := newTestRouter(t, nil)
	rec := do(t, h, http.MethodPut, "/providers/P", `{
		"name": "Dr. Park", "regions": ["MN"], "services": ["S"], "active": true,
		"availability": [{"day": 5, "start": "09:00", "end": "10:00"}]
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put provider: %d %s", rec.Code, rec.Body.String())
	}

	var slots []availability.OpenSlot
	decodeData(t, do(t, h, http.MethodGet, "/slots?service_id=S&date=2025-01-10", ""), &slots)
	if len(slots) != 2 {
		t.Fatalf("expected 2 open buckets, got %+v", slots)
	}

	if rec := do(t, h, http.MethodGet, "/slots?service_id=S", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing date: %d", rec.Code)
	}
}

func TestCheckout(t *testing.T) {
	rec := do(t, newTestRouter(t, nil), http.MethodPost, "/checkout", `{"service_id": "S"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unconfigured: %d", rec.Code)
	}

	rec = do(t, newTestRouter(t, stubGateway{}), http.MethodPost, "/checkout", `{"service_id": "S"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "https://pay.example/cs_1") {
		t.Fatalf("checkout: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, newTestRouter(t, stubGateway{err: errors.New("boom")}), http.MethodPost, "/checkout", `{"service_id": "S"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("gateway failure: %d", rec.Code)
	}
}

func TestMoneyUnmarshal(t *testing.T) {
	tests := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{`1250`, 1250, true},
		{`"12.50"`, 1250, true},
		{`"12"`, 1200, true},
		{`"0.5"`, 50, true},
		{`12.5`, 0, false},
		{`"12.505"`, 0, false},
		{`"abc"`, 0, false},
		{`9223372036854775807`, math.MaxInt64, true},
		{`18446744073709551621`, 0, false},
		{`"184467440737095516.21"`, 0, false},
		{`-18446744073709551621`, 0, false},
	}
	for _, tt := range tests {
		var m Money
		err := json.Unmarshal([]byte(tt.in), &m)
		if (err == nil) != tt.ok {
			t.Errorf("%s: err = %v", tt.in, err)
			continue
		}
		if tt.ok && (!m.Set || m.Cents != tt.cents) {
			t.Errorf("%s: got %+v, want %d cents", tt.in, m, tt.cents)
		}
	}
}
