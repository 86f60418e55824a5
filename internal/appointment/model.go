package appointment

import (
	"time"
)

type Status string

const (
	StatusDraft          Status = "draft"
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusCompleted      Status = "completed"
	StatusNoShow         Status = "no_show"
	StatusCanceled       Status = "canceled"
)

type PaymentStatus string

const (
	PaymentInitiated         PaymentStatus = "initiated"
	PaymentSucceeded         PaymentStatus = "succeeded"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

type NotificationStatus string

const (
	NotificationQueued NotificationStatus = "queued"
	NotificationSent   NotificationStatus = "sent"
	NotificationFailed NotificationStatus = "failed"
)

const (
	ChannelEmail = "email"
	ChannelText  = "text"

	RecipientPatient  = "patient"
	RecipientProvider = "provider"
)

const (
	EventPaymentSucceeded = "payment_succeeded"
	EventRefundIssued     = "refund_issued"
)

type NotificationEntry struct {
	ID             string             `json:"notification_id"`
	Type           string             `json:"type"`
	Channel        string             `json:"channel"`
	Recipient      string             `json:"recipient"`
	Status         NotificationStatus `json:"status"`
	Message        string             `json:"message"`
	TriggeredBy    string             `json:"triggered_by"`
	ErrorCode      string             `json:"error_code,omitempty"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

type AuditEntry struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details"`
}

type RefundEntry struct {
	ID          string    `json:"id"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason"`
	Actor       string    `json:"actor"`
	CreatedAt   time.Time `json:"created_at"`
}

type PaymentEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Actor       string    `json:"actor"`
	ReferenceID string    `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ReminderStatus string

const (
	ReminderScheduled ReminderStatus = "scheduled"
	ReminderSent      ReminderStatus = "sent"
	ReminderCanceled  ReminderStatus = "canceled"
)

type Reminder struct {
	Enabled      bool           `json:"enabled"`
	ScheduledFor *time.Time     `json:"scheduled_for"`
	Status       ReminderStatus `json:"status"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	CanceledAt   *time.Time     `json:"canceled_at,omitempty"`
}

type ReminderSettings struct {
	OneDay  Reminder `json:"one_day"`
	OneHour Reminder `json:"one_hour"`
}

type Appointment struct {
	ID           string `json:"id"`
	ServiceID    string `json:"service_id"`
	ServiceName  string `json:"service_name"`
	ProviderID   string `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	RegionCode   string `json:"region_code,omitempty"`

	// SlotStart is set when the appointment holds capacity in an
	// availability slot. It stays pinned to the slot's key even if
	// StartTime is later edited by a reschedule through the window path.
	SlotStart *time.Time `json:"slot_start,omitempty"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Timezone  string    `json:"timezone"`
	Status    Status    `json:"status"`

	PatientName  string `json:"patient_name"`
	PatientEmail string `json:"patient_email"`
	PatientPhone string `json:"patient_mobile"`
	TextConsent  bool   `json:"text_consent"`

	CancellationPolicy string `json:"cancellation_policy,omitempty"`
	Notes              string `json:"notes,omitempty"`

	PaymentAmountCents int64         `json:"payment_amount_cents"`
	PaymentCurrency    string        `json:"payment_currency"`
	PaymentReference   string        `json:"payment_reference,omitempty"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	RefundedTotalCents int64         `json:"refunded_total_cents"`

	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CanceledBy         string     `json:"canceled_by,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
	RescheduledFrom    *time.Time `json:"rescheduled_from,omitempty"`

	ReminderSettings ReminderSettings `json:"reminder_settings"`

	NotificationHistory []NotificationEntry `json:"notification_history"`
	AuditTrail          []AuditEntry        `json:"audit_trail"`
	Refunds             []RefundEntry       `json:"refunds"`
	PaymentEvents       []PaymentEvent      `json:"payment_events"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by"`
	UpdatedBy string    `json:"updated_by"`
}

func (a *Appointment) IsCanceled() bool {
	return a.Status == StatusCanceled
}

// HoldsSlot reports whether the appointment occupies capacity in an
// availability slot.
func (a *Appointment) HoldsSlot() bool {
	return a.SlotStart != nil
}

// touch stamps the update metadata.
func (a *Appointment) touch(actor string, now time.Time) {
	a.UpdatedAt = now
	a.UpdatedBy = actor
}

// normalize replaces nil collections so the JSON shape is stable.
func (a *Appointment) normalize() {
	if a.NotificationHistory == nil {
		a.NotificationHistory = []NotificationEntry{}
	}
	if a.AuditTrail == nil {
		a.AuditTrail = []AuditEntry{}
	}
	if a.Refunds == nil {
		a.Refunds = []RefundEntry{}
	}
	if a.PaymentEvents == nil {
		a.PaymentEvents = []PaymentEvent{}
	}
}
