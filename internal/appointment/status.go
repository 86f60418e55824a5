package appointment

import "slices"

var statusSequence = []Status{
	StatusDraft,
	StatusPendingPayment,
	StatusPaid,
	StatusCompleted,
	StatusNoShow,
	StatusCanceled,
}

var paymentStatuses = []PaymentStatus{
	PaymentInitiated,
	PaymentSucceeded,
	PaymentFailed,
	PaymentRefunded,
	PaymentPartiallyRefunded,
}

func ValidStatus(s Status) bool {
	return slices.Contains(statusSequence, s)
}

func ValidPaymentStatus(s PaymentStatus) bool {
	return slices.Contains(paymentStatuses, s)
}

// refundDerived statuses are only ever set by the refund ledger.
func refundDerived(s PaymentStatus) bool {
	return s == PaymentRefunded || s == PaymentPartiallyRefunded
}

// IsValidTransition decides whether status may move from -> to.
//
// Staying put is always fine. Canceled is reachable from anything but
// itself. Completed is reachable from paid and from no_show. Otherwise the
// target may not sit earlier in the sequence than the current status.
// Canceled is terminal.
func IsValidTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from == StatusCanceled {
		return false
	}
	if to == StatusCanceled {
		return true
	}
	if to == StatusCompleted && (from == StatusPaid || from == StatusNoShow) {
		return true
	}
	fi := slices.Index(statusSequence, from)
	ti := slices.Index(statusSequence, to)
	if fi < 0 || ti < 0 {
		return false
	}
	return ti >= fi
}
