package appointment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

var (
	ErrRefundNotPositive = apperr.Validation("refund amount must be positive", map[string]string{"amount": "must be greater than zero"})
	ErrRefundExceedsPaid = apperr.Validation("refund exceeds amount paid", map[string]string{"amount": "exceeds amount paid"})
)

type RefundInput struct {
	AmountCents int64
	Reason      string
	Actor       string
	RefundID    string
}

// IssueRefund posts a refund against the appointment's charged amount. The
// cumulative total may never exceed the charge; payment status becomes
// refunded once it reaches it exactly and partially_refunded before that.
func IssueRefund(a *Appointment, in RefundInput, now time.Time) (RefundEntry, []NotificationEntry, error) {
	if in.AmountCents <= 0 {
		return RefundEntry{}, nil, ErrRefundNotPositive
	}
	if in.AmountCents > a.PaymentAmountCents-a.RefundedTotalCents {
		return RefundEntry{}, nil, ErrRefundExceedsPaid
	}

	actor := orDefault(in.Actor, "admin")
	refundID := strings.TrimSpace(in.RefundID)
	if refundID == "" {
		refundID = "refund_" + uuid.NewString()
	}

	entry := RefundEntry{
		ID:          refundID,
		AmountCents: in.AmountCents,
		Reason:      orDefault(in.Reason, "Refund issued"),
		Actor:       actor,
		CreatedAt:   now,
	}
	a.Refunds = append(a.Refunds, entry)
	a.RefundedTotalCents += in.AmountCents
	if a.RefundedTotalCents == a.PaymentAmountCents {
		a.PaymentStatus = PaymentRefunded
	} else {
		a.PaymentStatus = PaymentPartiallyRefunded
	}

	a.PaymentEvents = append(a.PaymentEvents, PaymentEvent{
		ID:          uuid.NewString(),
		Type:        EventRefundIssued,
		AmountCents: in.AmountCents,
		Currency:    a.PaymentCurrency,
		Actor:       actor,
		ReferenceID: refundID,
		CreatedAt:   now,
	})

	AppendAudit(a, actor, "refund_issued", map[string]any{
		"amount_cents": in.AmountCents,
		"refund_id":    refundID,
	}, now)

	var sent []NotificationEntry
	for _, channel := range []string{ChannelEmail, ChannelText} {
		e, added := AddNotification(a, NotificationInput{
			Type:           "refund",
			Channel:        channel,
			Recipient:      RecipientPatient,
			Message:        notificationMessage(a, "refund", RecipientPatient, channel),
			TriggeredBy:    actor,
			IdempotencyKey: fmt.Sprintf("refund:%s:%s:%s:%s", a.ID, refundID, RecipientPatient, channel),
		}, now)
		if added {
			sent = append(sent, e)
		}
	}

	a.touch(actor, now)
	return entry, sent, nil
}
