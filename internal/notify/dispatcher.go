package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-booking/internal/appointment"
)

// LogDispatcher writes each notification to the log. Delivery itself is
// handled outside this service.
type LogDispatcher struct {
	log zerolog.Logger
}

func NewLogDispatcher(log zerolog.Logger) *LogDispatcher {
	return &LogDispatcher{log: log.With().Str("component", "notify").Logger()}
}

func (d *LogDispatcher) Dispatch(_ context.Context, a *appointment.Appointment, entries []appointment.NotificationEntry) error {
	for _, e := range entries {
		d.log.Info().
			Str("appointment_id", a.ID).
			Str("notification_id", e.ID).
			Str("type", e.Type).
			Str("channel", e.Channel).
			Str("recipient", e.Recipient).
			Str("status", string(e.Status)).
			Msg(e.Message)
	}
	return nil
}

// StreamAdder is the part of the Redis client the stream dispatcher needs.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamDispatcher publishes notification events to a Redis stream for the
// delivery workers to consume.
type StreamDispatcher struct {
	client StreamAdder
	stream string
	maxLen int64
}

func NewStreamDispatcher(client StreamAdder, stream string) *StreamDispatcher {
	return &StreamDispatcher{client: client, stream: stream, maxLen: 100000}
}

func (d *StreamDispatcher) Dispatch(ctx context.Context, a *appointment.Appointment, entries []appointment.NotificationEntry) error {
	for _, e := range entries {
		args := &redis.XAddArgs{
			Stream: d.stream,
			MaxLen: d.maxLen,
			Approx: true,
			Values: streamFields(a, e),
		}
		if err := d.client.XAdd(ctx, args).Err(); err != nil {
			return fmt.Errorf("publish notification %s: %w", e.ID, err)
		}
	}
	return nil
}

// streamFields flattens an entry with the contact details a delivery worker
// needs for its channel.
func streamFields(a *appointment.Appointment, e appointment.NotificationEntry) map[string]any {
	fields := map[string]any{
		"notification_id": e.ID,
		"appointment_id":  a.ID,
		"type":            e.Type,
		"channel":         e.Channel,
		"recipient":       e.Recipient,
		"status":          string(e.Status),
		"message":         e.Message,
		"idempotency_key": e.IdempotencyKey,
		"start_time":      a.StartTime.UTC().Format(time.RFC3339),
		"created_at":      e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.Recipient == appointment.RecipientPatient {
		switch e.Channel {
		case appointment.ChannelEmail:
			fields["to"] = a.PatientEmail
		case appointment.ChannelText:
			fields["to"] = a.PatientPhone
		}
	} else {
		fields["to"] = a.ProviderID
	}
	return fields
}
