package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/catalog"
	"github.com/hackgods/clinic-booking/internal/config"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/store"
)

var (
	ErrAlreadyCanceled  = apperr.Conflict("appointment already canceled")
	ErrScheduleBusy     = apperr.Conflict("provider schedule is being updated, please retry")
	ErrConcurrentUpdate = apperr.Conflict("appointment was modified concurrently, please retry")
	ErrDeleteNotAllowed = apperr.Conflict("only draft or canceled appointments can be deleted")
	ErrNoChanges        = apperr.Validation("no updatable fields supplied", nil)
)

// Dispatcher delivers notification entries once the transaction that
// recorded them has committed.
type Dispatcher interface {
	Dispatch(ctx context.Context, appt *Appointment, entries []NotificationEntry) error
}

type Service struct {
	repo       *Repository
	catalog    catalog.Repository
	slots      *SlotStrategy
	windows    *WindowStrategy
	locker     redisclient.Locker
	dispatcher Dispatcher
	cfg        config.Config
	log        zerolog.Logger
	now        func() time.Time
}

func NewService(
	repo *Repository,
	cat catalog.Repository,
	alloc *availability.Allocator,
	locker redisclient.Locker,
	dispatcher Dispatcher,
	cfg config.Config,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		catalog:    cat,
		slots:      NewSlotStrategy(alloc),
		windows:    NewWindowStrategy(cfg.Location()),
		locker:     locker,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.With().Str("component", "appointments").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// strategyFor picks slot booking for region-scoped appointments and window
// booking otherwise. The region code never changes after creation, so an
// appointment keeps the strategy it was booked with.
func (s *Service) strategyFor(a *Appointment) BookingStrategy {
	if a.RegionCode != "" {
		return s.slots
	}
	return s.windows
}

type CreateInput struct {
	ID                 string
	ServiceID          string
	ProviderID         string
	RegionCode         string
	StartTime          time.Time
	EndTime            time.Time
	Timezone           string
	PatientName        string
	PatientEmail       string
	PatientPhone       string
	TextConsent        bool
	PaymentAmountCents *int64
	PaymentCurrency    string
	PaymentReference   string
	Notes              string
	RequestedBy        string
}

// Create validates a booking request, claims the time through the matching
// strategy and stores the appointment as paid, with its confirmation
// notifications and creation audit entry.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Appointment, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.ServiceID) == "" {
		fields["service_id"] = "is required"
	}
	if strings.TrimSpace(in.ProviderID) == "" {
		fields["provider_id"] = "is required"
	}
	if in.StartTime.IsZero() {
		fields["start_time"] = "is required"
	}
	name := strings.TrimSpace(in.PatientName)
	if name == "" {
		fields["patient_name"] = "is required"
	}
	email, ok := NormalizeEmail(in.PatientEmail)
	if !ok {
		fields["patient_email"] = "must be a valid email address"
	}
	phone, ok := NormalizePhone(in.PatientPhone)
	if !ok {
		fields["patient_mobile"] = "must be a valid phone number"
	}
	if !in.TextConsent {
		fields["text_consent"] = "SMS consent is required"
	}
	if in.PaymentAmountCents != nil && *in.PaymentAmountCents < 0 {
		fields["payment_amount_cents"] = "must not be negative"
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid appointment", fields)
	}

	svc, provider, err := s.loadCatalog(ctx, in.ServiceID, in.ProviderID)
	if err != nil {
		return nil, err
	}

	end := in.EndTime
	if end.IsZero() {
		end = in.StartTime.Add(svc.Duration())
	}
	if !end.After(in.StartTime) {
		return nil, apperr.Field("end_time", "must be after start_time")
	}

	prefs, err := s.catalog.GetPreferences(ctx, svc.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	actor := orDefault(in.RequestedBy, "patient")
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = "apt_" + uuid.NewString()
	}

	amount, currency := svc.Price.Amount, svc.Price.Currency
	if in.PaymentAmountCents != nil {
		amount, currency = *in.PaymentAmountCents, in.PaymentCurrency
	}
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}

	a := &Appointment{
		ID:                 id,
		ServiceID:          svc.ID,
		ServiceName:        svc.Name,
		ProviderID:         provider.ID,
		ProviderName:       provider.Name,
		RegionCode:         strings.TrimSpace(in.RegionCode),
		StartTime:          in.StartTime,
		EndTime:            end,
		Timezone:           orDefault(in.Timezone, s.cfg.ClinicTimezone),
		Status:             StatusPaid,
		PatientName:        name,
		PatientEmail:       email,
		PatientPhone:       phone,
		TextConsent:        in.TextConsent,
		CancellationPolicy: svc.CancellationPolicy,
		Notes:              strings.TrimSpace(in.Notes),
		PaymentAmountCents: amount,
		PaymentCurrency:    strings.ToLower(currency),
		PaymentReference:   strings.TrimSpace(in.PaymentReference),
		PaymentStatus:      PaymentSucceeded,
		ReminderSettings:   BuildReminders(in.StartTime, prefs),
		CreatedAt:          now,
		UpdatedAt:          now,
		CreatedBy:          actor,
		UpdatedBy:          actor,
	}
	a.normalize()
	strategy := s.strategyFor(a)

	a.PaymentEvents = append(a.PaymentEvents, PaymentEvent{
		ID:          uuid.NewString(),
		Type:        EventPaymentSucceeded,
		AmountCents: amount,
		Currency:    a.PaymentCurrency,
		Actor:       actor,
		ReferenceID: a.PaymentReference,
		CreatedAt:   now,
	})
	AppendAudit(a, actor, "appointment_created", map[string]any{
		"service_id":  a.ServiceID,
		"provider_id": a.ProviderID,
		"start_time":  a.StartTime.Format(time.RFC3339),
		"strategy":    strategy.Name(),
	}, now)
	sent := notifyAll(a, "confirmation", "confirm:"+a.ID, "", actor, now)

	err = s.mutate(ctx, provider.ID, func(tx *store.Tx) error {
		if err := strategy.Book(tx, a, *svc, *provider); err != nil {
			return err
		}
		return insertTx(tx, a)
	})
	if err != nil {
		if errors.Is(err, ErrConcurrentUpdate) {
			// The lookup insert is the only cross-partition write; losing it
			// means the id is taken.
			if _, lookupErr := s.repo.ProviderOf(ctx, a.ID); lookupErr == nil {
				return nil, ErrDuplicateID
			}
		}
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", a.ID).
		Str("provider_id", a.ProviderID).
		Str("service_id", a.ServiceID).
		Str("strategy", strategy.Name()).
		Time("start", a.StartTime).
		Msg("appointment created")

	s.dispatch(ctx, a, sent)
	return a, nil
}

// Update applies the supplied fields that differ from the stored values.
func (s *Service) Update(ctx context.Context, id string, cmd UpdateCommand) (*Appointment, error) {
	actor := orDefault(cmd.Actor, "admin")

	// Field shape checks need nothing from the store.
	var (
		email, phone string
		fields       = map[string]string{}
	)
	if cmd.PatientName.Set && strings.TrimSpace(cmd.PatientName.Value) == "" {
		fields["patient_name"] = "must not be empty"
	}
	if cmd.PatientEmail.Set {
		var ok bool
		if email, ok = NormalizeEmail(cmd.PatientEmail.Value); !ok {
			fields["patient_email"] = "must be a valid email address"
		}
	}
	if cmd.PatientPhone.Set {
		var ok bool
		if phone, ok = NormalizePhone(cmd.PatientPhone.Value); !ok {
			fields["patient_mobile"] = "must be a valid phone number"
		}
	}
	if cmd.Status.Set && !ValidStatus(cmd.Status.Value) {
		fields["status"] = "unknown status"
	}
	if cmd.PaymentStatus.Set {
		switch {
		case !ValidPaymentStatus(cmd.PaymentStatus.Value):
			fields["payment_status"] = "unknown payment status"
		case refundDerived(cmd.PaymentStatus.Value):
			fields["payment_status"] = "is set by issuing refunds"
		}
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid update", fields)
	}

	providerID, err := s.repo.ProviderOf(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		updated *Appointment
		sent    []NotificationEntry
	)
	err = s.mutate(ctx, providerID, func(tx *store.Tx) error {
		a, err := loadTx(tx, id)
		if err != nil {
			return err
		}

		changes := map[string]any{}
		if v := strings.TrimSpace(cmd.PatientName.Value); cmd.PatientName.Set && v != a.PatientName {
			changes["patient_name"] = v
		}
		if cmd.PatientEmail.Set && email != a.PatientEmail {
			changes["patient_email"] = email
		}
		if cmd.PatientPhone.Set && phone != a.PatientPhone {
			changes["patient_mobile"] = phone
		}
		if v := strings.TrimSpace(cmd.Notes.Value); cmd.Notes.Set && v != a.Notes {
			changes["notes"] = v
		}
		if v := strings.TrimSpace(cmd.PaymentReference.Value); cmd.PaymentReference.Set && v != a.PaymentReference {
			changes["payment_reference"] = v
		}
		if cmd.Status.Set && cmd.Status.Value != a.Status {
			if !IsValidTransition(a.Status, cmd.Status.Value) {
				return apperr.IllegalTransition(string(a.Status), string(cmd.Status.Value))
			}
			changes["status"] = string(cmd.Status.Value)
		}
		if cmd.PaymentStatus.Set && cmd.PaymentStatus.Value != a.PaymentStatus {
			changes["payment_status"] = string(cmd.PaymentStatus.Value)
		}
		if len(changes) == 0 {
			return ErrNoChanges
		}

		now := s.now()
		for k, v := range changes {
			val := v.(string)
			switch k {
			case "patient_name":
				a.PatientName = val
			case "patient_email":
				a.PatientEmail = val
			case "patient_mobile":
				a.PatientPhone = val
			case "notes":
				a.Notes = val
			case "payment_reference":
				a.PaymentReference = val
			case "payment_status":
				a.PaymentStatus = PaymentStatus(val)
			case "status":
				a.Status = Status(val)
			}
		}

		if a.Status == StatusCanceled && changes["status"] != nil {
			if err := s.strategyFor(a).Release(tx, a); err != nil {
				return err
			}
			a.CanceledAt = &now
			a.CanceledBy = actor
			DisableReminders(a, now)
			sent = notifyAll(a, "cancellation", "cancel:"+a.ID, "", actor, now)
		}

		a.touch(actor, now)
		AppendAudit(a, actor, "appointment_updated", changes, now)
		if err := saveTx(tx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("appointment_id", id).Str("actor", actor).Msg("appointment updated")
	s.dispatch(ctx, updated, sent)
	return updated, nil
}

type CancelInput struct {
	Actor  string
	Reason string
}

// Cancel moves the appointment to canceled, frees its time and notifies
// both parties.
func (s *Service) Cancel(ctx context.Context, id string, in CancelInput) (*Appointment, error) {
	actor := orDefault(in.Actor, "admin")
	reason := orDefault(in.Reason, "Canceled by clinic")

	providerID, err := s.repo.ProviderOf(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		canceled *Appointment
		sent     []NotificationEntry
	)
	err = s.mutate(ctx, providerID, func(tx *store.Tx) error {
		a, err := loadTx(tx, id)
		if err != nil {
			return err
		}
		if a.IsCanceled() {
			return ErrAlreadyCanceled
		}
		if err := s.strategyFor(a).Release(tx, a); err != nil {
			return err
		}

		now := s.now()
		a.Status = StatusCanceled
		a.CancellationReason = reason
		a.CanceledBy = actor
		a.CanceledAt = &now
		a.touch(actor, now)
		DisableReminders(a, now)

		AppendAudit(a, actor, "appointment_canceled", map[string]any{"reason": reason}, now)
		sent = notifyAll(a, "cancellation", "cancel:"+a.ID, "", actor, now)

		if err := saveTx(tx, a); err != nil {
			return err
		}
		canceled = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("appointment_id", id).Str("actor", actor).Str("reason", reason).Msg("appointment canceled")
	s.dispatch(ctx, canceled, sent)
	return canceled, nil
}

type RescheduleInput struct {
	NewStart time.Time
	NewEnd   time.Time
	Actor    string
}

// Reschedule moves the appointment to a new time, re-running the booking
// checks while ignoring the appointment's own current claim.
func (s *Service) Reschedule(ctx context.Context, id string, in RescheduleInput) (*Appointment, error) {
	if in.NewStart.IsZero() {
		return nil, apperr.Field("new_start", "is required")
	}
	actor := orDefault(in.Actor, "admin")

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	svc, provider, err := s.loadCatalog(ctx, current.ServiceID, current.ProviderID)
	if err != nil {
		return nil, err
	}

	end := in.NewEnd
	if end.IsZero() {
		end = in.NewStart.Add(svc.Duration())
	}
	if !end.After(in.NewStart) {
		return nil, apperr.Field("new_end", "must be after new_start")
	}

	var (
		moved *Appointment
		sent  []NotificationEntry
	)
	err = s.mutate(ctx, current.ProviderID, func(tx *store.Tx) error {
		a, err := loadTx(tx, id)
		if err != nil {
			return err
		}
		strategy := s.strategyFor(a)
		if err := strategy.Rebook(tx, a, in.NewStart, end, *svc, *provider); err != nil {
			return err
		}

		now := s.now()
		previous := a.StartTime
		a.StartTime = in.NewStart
		a.EndTime = end
		a.RescheduledFrom = &previous
		a.Status = StatusPaid
		a.ReminderSettings = BuildReminders(in.NewStart, a.ReminderSettings.Preferences())
		a.touch(actor, now)

		AppendAudit(a, actor, "appointment_rescheduled", map[string]any{
			"from": previous.Format(time.RFC3339),
			"to":   in.NewStart.Format(time.RFC3339),
		}, now)
		sent = notifyAll(a, "reschedule", "reschedule:"+a.ID, in.NewStart.UTC().Format(time.RFC3339), actor, now)

		if err := saveTx(tx, a); err != nil {
			return err
		}
		moved = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", id).
		Time("from", current.StartTime).
		Time("to", in.NewStart).
		Msg("appointment rescheduled")
	s.dispatch(ctx, moved, sent)
	return moved, nil
}

// Delete removes a draft or canceled appointment outright.
func (s *Service) Delete(ctx context.Context, id, actor string) error {
	providerID, err := s.repo.ProviderOf(ctx, id)
	if err != nil {
		return err
	}

	err = s.mutate(ctx, providerID, func(tx *store.Tx) error {
		a, err := loadTx(tx, id)
		if err != nil {
			return err
		}
		if a.Status != StatusDraft && a.Status != StatusCanceled {
			return ErrDeleteNotAllowed
		}
		if err := s.strategyFor(a).Release(tx, a); err != nil {
			return err
		}
		deleteTx(tx, a)
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("appointment_id", id).Str("actor", orDefault(actor, "admin")).Msg("appointment deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

// ListFilter narrows List. Zero values match everything; Search is a
// case-insensitive substring over patient contact, provider name and id.
type ListFilter struct {
	Start         time.Time
	End           time.Time
	ServiceID     string
	ProviderID    string
	Status        Status
	PaymentStatus PaymentStatus
	Search        string
}

func (f ListFilter) matches(a *Appointment) bool {
	if !f.Start.IsZero() && a.StartTime.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && a.StartTime.After(f.End) {
		return false
	}
	if f.ServiceID != "" && a.ServiceID != f.ServiceID {
		return false
	}
	if f.ProviderID != "" && a.ProviderID != f.ProviderID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.PaymentStatus != "" && a.PaymentStatus != f.PaymentStatus {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		haystack := strings.ToLower(strings.Join([]string{
			a.PatientName, a.PatientEmail, a.PatientPhone, a.ProviderName, a.ID,
		}, " "))
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}

// List returns matching appointments ordered by start time.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Appointment, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := []Appointment{}
	for i := range all {
		if f.matches(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// OpenSlots lists the free buckets of serviceID on the calendar day of
// date in the clinic time zone, across every provider that offers it.
func (s *Service) OpenSlots(ctx context.Context, serviceID string, date time.Time) ([]availability.OpenSlot, error) {
	svc, err := s.catalog.GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			return nil, apperr.Field("service_id", "unknown service")
		}
		return nil, fmt.Errorf("load service: %w", err)
	}
	providers, err := s.catalog.ListProviders(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	bookings := make([]availability.Booking, 0, len(all))
	for i := range all {
		bookings = append(bookings, toBooking(&all[i]))
	}
	return availability.ComputeSlots(providers, bookings, *svc, date, s.cfg.Location()), nil
}

type RecordNotificationInput struct {
	Type      string
	Channels  []string
	Recipient string
	Status    NotificationStatus
	Message   string
	Reference string
	ErrorCode string
	Force     bool
	Actor     string
}

// RecordNotification logs notifications that were sent outside the core,
// one per channel. A reference makes the call idempotent.
func (s *Service) RecordNotification(ctx context.Context, id string, in RecordNotificationInput) (*Appointment, error) {
	status := in.Status
	if status == "" {
		status = NotificationSent
	}
	if !ValidNotificationStatus(status) {
		return nil, apperr.Field("status", "invalid notification status")
	}
	channels, err := normalizeChannels(in.Channels)
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		return nil, apperr.Field("channels", "at least one channel required")
	}

	actor := orDefault(in.Actor, "admin")
	typ := orDefault(in.Type, "manual")
	recipient := orDefault(in.Recipient, RecipientPatient)
	reference := strings.TrimSpace(in.Reference)

	return s.appendNotifications(ctx, id, actor, "notification_recorded", map[string]any{
		"type":      typ,
		"channels":  channels,
		"recipient": recipient,
		"status":    string(status),
	}, func(a *Appointment, now time.Time) []NotificationEntry {
		var added []NotificationEntry
		for _, ch := range channels {
			key := ""
			if reference != "" {
				key = fmt.Sprintf("%s:%s:%s:%s", typ, reference, recipient, ch)
			}
			msg := strings.TrimSpace(in.Message)
			if msg == "" {
				msg = notificationMessage(a, typ, recipient, ch)
			}
			if e, ok := AddNotification(a, NotificationInput{
				Type:           typ,
				Channel:        ch,
				Recipient:      recipient,
				Status:         status,
				Message:        msg,
				TriggeredBy:    actor,
				ErrorCode:      in.ErrorCode,
				IdempotencyKey: key,
				Force:          in.Force,
			}, now); ok {
				added = append(added, e)
			}
		}
		return added
	})
}

type ResendInput struct {
	Type      string
	Channels  []string
	Recipient string
	Actor     string
}

// ResendNotification always appends fresh entries, bypassing dedupe.
func (s *Service) ResendNotification(ctx context.Context, id string, in ResendInput) (*Appointment, error) {
	channels, err := normalizeChannels(in.Channels)
	if err != nil {
		return nil, err
	}
	if len(channels) == 0 {
		channels = []string{ChannelEmail, ChannelText}
	}
	actor := orDefault(in.Actor, "admin")
	typ := orDefault(in.Type, "confirmation")
	recipient := orDefault(in.Recipient, RecipientPatient)

	return s.appendNotifications(ctx, id, actor, "notification_resent", map[string]any{
		"type":      typ,
		"channels":  channels,
		"recipient": recipient,
	}, func(a *Appointment, now time.Time) []NotificationEntry {
		var added []NotificationEntry
		for _, ch := range channels {
			e, _ := AddNotification(a, NotificationInput{
				Type:           typ,
				Channel:        ch,
				Recipient:      recipient,
				Status:         NotificationSent,
				Message:        fmt.Sprintf("Resent %s via %s", typ, ch),
				TriggeredBy:    actor,
				IdempotencyKey: fmt.Sprintf("%s:%s:%s:%s:resend:%d", typ, a.ID, recipient, ch, now.UnixNano()),
				Force:          true,
			}, now)
			added = append(added, e)
		}
		return added
	})
}

func (s *Service) appendNotifications(
	ctx context.Context,
	id, actor, action string,
	details map[string]any,
	add func(a *Appointment, now time.Time) []NotificationEntry,
) (*Appointment, error) {
	providerID, err := s.repo.ProviderOf(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		out  *Appointment
		sent []NotificationEntry
	)
	err = s.mutate(ctx, providerID, func(tx *store.Tx) error {
		a, err := loadTx(tx, id)
		if err != nil {
			return err
		}
		now := s.now()
		sent = add(a, now)
		a.touch(actor, now)
		AppendAudit(a, actor, action, details, now)
		if err := saveTx(tx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, out, sent)
	return out, nil
}

// Refund posts a refund through the ledger and notifies the patient.
func (s *Service) Refund(ctx context.Context, id string, in RefundInput) (*Appointment, error) {
	if in.AmountCents <= 0 {
		return nil, ErrRefundNotPositive
	}
	providerID, err := s.repo.ProviderOf(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		refunded *Appointment
		entry    RefundEntry
		sent     []NotificationEntry
	)
	err = s.mutate(ctx, providerID, func(tx *store.Tx) error {
		a, err := loadTx(tx, id)
		if err != nil {
			return err
		}
		entry, sent, err = IssueRefund(a, in, s.now())
		if err != nil {
			return err
		}
		if err := saveTx(tx, a); err != nil {
			return err
		}
		refunded = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", id).
		Str("refund_id", entry.ID).
		Int64("amount_cents", entry.AmountCents).
		Str("payment_status", string(refunded.PaymentStatus)).
		Msg("refund issued")
	s.dispatch(ctx, refunded, sent)
	return refunded, nil
}

// SendReminders records and dispatches every reminder that has come due.
// It is called periodically by the reminder worker and returns how many
// reminders went out.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("find due reminders: %w", err)
	}

	now := s.now()
	total := 0
	for i := range all {
		if len(dueReminders(&all[i], now)) == 0 {
			continue
		}
		id := all[i].ID

		var (
			a    *Appointment
			sent []NotificationEntry
		)
		err := s.mutate(ctx, all[i].ProviderID, func(tx *store.Tx) error {
			cur, err := loadTx(tx, id)
			if err != nil {
				return err
			}
			due := dueReminders(cur, now)
			if len(due) == 0 {
				return nil
			}
			for _, name := range due {
				for _, ch := range []string{ChannelEmail, ChannelText} {
					if e, ok := AddNotification(cur, NotificationInput{
						Type:           "reminder",
						Channel:        ch,
						Recipient:      RecipientPatient,
						Message:        notificationMessage(cur, "reminder", RecipientPatient, ch),
						TriggeredBy:    "system",
						IdempotencyKey: fmt.Sprintf("reminder:%s:%s:patient:%s", cur.ID, name, ch),
					}, now); ok {
						sent = append(sent, e)
					}
				}
				markReminderSent(cur, name, now)
			}
			cur.touch("system", now)
			a = cur
			return saveTx(tx, cur)
		})
		if err != nil {
			if errors.Is(err, ErrScheduleBusy) || errors.Is(err, ErrConcurrentUpdate) {
				s.log.Debug().Str("appointment_id", id).Msg("reminder skipped, partition busy")
				continue
			}
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			return total, err
		}
		if a != nil {
			total += len(sent)
			s.dispatch(ctx, a, sent)
		}
	}
	return total, nil
}

func (s *Service) loadCatalog(ctx context.Context, serviceID, providerID string) (*catalog.Service, *catalog.Provider, error) {
	svc, err := s.catalog.GetService(ctx, serviceID)
	if err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			return nil, nil, apperr.Field("service_id", "unknown service")
		}
		return nil, nil, fmt.Errorf("load service: %w", err)
	}
	provider, err := s.catalog.GetProvider(ctx, providerID)
	if err != nil {
		if errors.Is(err, catalog.ErrProviderNotFound) {
			return nil, nil, apperr.Field("provider_id", "unknown provider")
		}
		return nil, nil, fmt.Errorf("load provider: %w", err)
	}
	if !provider.Active {
		return nil, nil, apperr.Field("provider_id", "provider is inactive")
	}
	if !provider.Offers(svc.ID) {
		return nil, nil, apperr.Field("service_id", "provider does not offer this service")
	}
	return svc, provider, nil
}

// mutate runs fn under the provider lock and inside the provider's
// partition transaction.
func (s *Service) mutate(ctx context.Context, providerID string, fn func(tx *store.Tx) error) error {
	err := s.locker.WithLock(ctx, "provider:"+providerID, func(lockCtx context.Context) error {
		return s.repo.Transact(lockCtx, providerID, fn)
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrScheduleBusy
	}
	return err
}

func (s *Service) dispatch(ctx context.Context, a *Appointment, entries []NotificationEntry) {
	if s.dispatcher == nil || len(entries) == 0 {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, a, entries); err != nil {
		s.log.Warn().Err(err).
			Str("appointment_id", a.ID).
			Int("notifications", len(entries)).
			Msg("notification dispatch failed")
	}
}

func normalizeChannels(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, ch := range in {
		ch = strings.ToLower(strings.TrimSpace(ch))
		if ch == "" {
			continue
		}
		if ch != ChannelEmail && ch != ChannelText {
			return nil, apperr.Field("channels", fmt.Sprintf("unsupported channel %q", ch))
		}
		out = append(out, ch)
	}
	return out, nil
}
