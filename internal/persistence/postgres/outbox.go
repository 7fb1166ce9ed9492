package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/events"
)

// outboxRecord is an event waiting to be written next to the change that produced it.
type outboxRecord struct {
	UserID        string
	AggregateType string
	AggregateID   string
	EventType     string
	DedupeKey     string
	Payload       any
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(outboxRecord) string
}

func byUser(rec outboxRecord) string { return rec.UserID }

var eventCatalog = map[string]EventMetadata{
	events.TypeDailyActivityUpdated: {
		Topic:          "daily_activity_events",
		SchemaSubject:  "daily_activity_events-value",
		PartitionKeyFn: byUser,
	},
	events.TypeManualEntryRecorded: {
		Topic:          "manual_entry_events",
		SchemaSubject:  "manual_entry_events-value",
		PartitionKeyFn: byUser,
	},
	events.TypeUserDataCleared: {
		Topic:          "user_data_events",
		SchemaSubject:  "user_data_events-value",
		PartitionKeyFn: byUser,
	},
}

func insertOutbox(ctx context.Context, tx pgx.Tx, rec outboxRecord) error {
	body, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[rec.EventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", rec.EventType)
	}

	const stmt = `INSERT INTO outbox (user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		rec.UserID,
		rec.AggregateType,
		rec.AggregateID,
		rec.EventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(rec),
		body,
		nullIfEmpty(rec.DedupeKey),
	)
	return err
}

func dailyActivityUpdated(a domain.DailyActivity) outboxRecord {
	return outboxRecord{
		UserID:        a.UserID,
		AggregateType: "daily_activity",
		AggregateID:   a.ID,
		EventType:     events.TypeDailyActivityUpdated,
		Payload: events.DailyActivityUpdated{
			ActivityID: a.ID,
			UserID:     a.UserID,
			Date:       a.Date,
			Steps:      a.Steps,
			Calories:   a.Calories,
			Distance:   a.Distance,
			OccurredAt: a.UpdatedAt,
		},
	}
}

func manualEntryRecorded(e domain.ManualEntry) outboxRecord {
	return outboxRecord{
		UserID:        e.UserID,
		AggregateType: "manual_entry",
		AggregateID:   e.ID,
		EventType:     events.TypeManualEntryRecorded,
		DedupeKey:     fmt.Sprintf("%s:%s", e.ID, events.TypeManualEntryRecorded),
		Payload: events.ManualEntryRecorded{
			EntryID:    e.ID,
			ActivityID: e.ActivityID,
			UserID:     e.UserID,
			Activity:   e.Activity,
			Duration:   e.Duration,
			Calories:   e.Calories,
			RecordedAt: e.Timestamp,
		},
	}
}

func userDataCleared(userID string, at time.Time) outboxRecord {
	return outboxRecord{
		UserID:        userID,
		AggregateType: "user",
		AggregateID:   userID,
		EventType:     events.TypeUserDataCleared,
		Payload:       events.UserDataCleared{UserID: userID, OccurredAt: at},
	}
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
