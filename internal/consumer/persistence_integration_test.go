//go:build integration

package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/events"
	"example.com/fittrack/internal/persistence/postgres/pgtest"
)

func TestPersistenceHandlerStoresEvent(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.Start(t)

	handler := NewPersistenceHandler(pool)

	payload := json.RawMessage(`{"activity_id":"abc","user_id":"user-123","steps":5000}`)
	msg := Message{
		EventType: events.TypeDailyActivityUpdated,
		UserID:    "user-123",
		SchemaID:  42,
		Topic:     "daily_activity_events",
		Partition: 0,
		Offset:    5,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	require.NoError(t, handler.Handle(ctx, msg))

	var (
		storedPayload []byte
		subject       string
		userID        string
	)
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT payload, schema_subject, user_id FROM activity_event_log LIMIT 1`,
	).Scan(&storedPayload, &subject, &userID))
	require.JSONEq(t, string(payload), string(storedPayload))
	require.Equal(t, "daily_activity_events-value", subject)
	require.Equal(t, "user-123", userID)

	require.NoError(t, handler.Handle(ctx, msg), "redelivery is accepted")
	var rows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM activity_event_log`).Scan(&rows))
	require.Equal(t, 1, rows)
}
