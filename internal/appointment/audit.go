package appointment

import (
	"time"

	"github.com/google/uuid"
)

// AppendAudit adds an entry to the trail. Entries are never edited or
// removed.
func AppendAudit(a *Appointment, actor, action string, details map[string]any, now time.Time) AuditEntry {
	if details == nil {
		details = map[string]any{}
	}
	e := AuditEntry{
		ID:        uuid.NewString(),
		Actor:     orDefault(actor, "system"),
		Action:    orDefault(action, "update"),
		Timestamp: now,
		Details:   details,
	}
	a.AuditTrail = append(a.AuditTrail, e)
	return e
}
