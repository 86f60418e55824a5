package appointment

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var notificationStatuses = []NotificationStatus{NotificationQueued, NotificationSent, NotificationFailed}

func ValidNotificationStatus(s NotificationStatus) bool {
	return slices.Contains(notificationStatuses, s)
}

// NotificationInput describes one entry for AddNotification. Empty fields
// fall back to type "manual", channel "email", recipient "patient", status
// "sent" and actor "system".
type NotificationInput struct {
	Type           string
	Channel        string
	Recipient      string
	Status         NotificationStatus
	Message        string
	TriggeredBy    string
	ErrorCode      string
	IdempotencyKey string
	Force          bool
}

// AddNotification appends an entry to the appointment's history. When the
// idempotency key is already present and Force is not set, the existing
// entry is returned and nothing is appended; added reports which happened.
func AddNotification(a *Appointment, in NotificationInput, now time.Time) (entry NotificationEntry, added bool) {
	e := NotificationEntry{
		ID:             uuid.NewString(),
		Type:           orDefault(in.Type, "manual"),
		Channel:        orDefault(in.Channel, ChannelEmail),
		Recipient:      orDefault(in.Recipient, RecipientPatient),
		Status:         in.Status,
		Message:        strings.TrimSpace(in.Message),
		TriggeredBy:    orDefault(in.TriggeredBy, "system"),
		ErrorCode:      strings.TrimSpace(in.ErrorCode),
		IdempotencyKey: strings.TrimSpace(in.IdempotencyKey),
		CreatedAt:      now,
	}
	if !ValidNotificationStatus(e.Status) {
		e.Status = NotificationSent
	}

	if e.IdempotencyKey != "" && !in.Force {
		for _, existing := range a.NotificationHistory {
			if existing.IdempotencyKey == e.IdempotencyKey {
				return existing, false
			}
		}
	}

	a.NotificationHistory = append(a.NotificationHistory, e)
	return e, true
}

// notifyAll sends one notification of type typ to both parties over both
// channels. Keys are "<keyPrefix>:<recipient>:<channel>" plus keySuffix
// when it is set.
func notifyAll(a *Appointment, typ, keyPrefix, keySuffix, actor string, now time.Time) []NotificationEntry {
	var out []NotificationEntry
	for _, recipient := range []string{RecipientPatient, RecipientProvider} {
		for _, channel := range []string{ChannelEmail, ChannelText} {
			key := fmt.Sprintf("%s:%s:%s", keyPrefix, recipient, channel)
			if keySuffix != "" {
				key += ":" + keySuffix
			}
			if e, added := AddNotification(a, NotificationInput{
				Type:           typ,
				Channel:        channel,
				Recipient:      recipient,
				Message:        notificationMessage(a, typ, recipient, channel),
				TriggeredBy:    actor,
				IdempotencyKey: key,
			}, now); added {
				out = append(out, e)
			}
		}
	}
	return out
}

func notificationMessage(a *Appointment, typ, recipient, channel string) string {
	var label string
	switch typ {
	case "confirmation":
		label = "Confirmation"
	case "cancellation":
		label = "Cancellation"
	case "reschedule":
		label = "Reschedule confirmation"
	case "refund":
		label = "Refund confirmation"
	case "reminder":
		label = "Reminder"
	case "manual":
		return fmt.Sprintf("Manual %s notification sent", recipient)
	default:
		return fmt.Sprintf("%s notification sent to %s", typ, recipient)
	}

	if channel == ChannelText {
		label += " text"
	}
	switch {
	case recipient == RecipientProvider:
		return fmt.Sprintf("%s sent to provider %s", label, a.ProviderName)
	case channel == ChannelText:
		return fmt.Sprintf("%s sent to %s", label, a.PatientPhone)
	default:
		return fmt.Sprintf("%s sent to %s", label, a.PatientEmail)
	}
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
