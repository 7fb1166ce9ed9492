package outbox

import "example.com/fittrack/internal/events"

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeDailyActivityUpdated: {Schema: dailyActivityUpdatedSchema},
	events.TypeManualEntryRecorded:  {Schema: manualEntryRecordedSchema},
	events.TypeUserDataCleared:      {Schema: userDataClearedSchema},
}

const dailyActivityUpdatedSchema = `{
  "type": "object",
  "title": "DailyActivityUpdated",
  "properties": {
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "steps": {"type": "integer", "minimum": 0},
    "calories": {"type": "integer", "minimum": 0},
    "distance_m": {"type": "integer", "minimum": 0},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "user_id", "date", "steps", "calories", "distance_m", "occurred_at"],
  "additionalProperties": false
}`

const manualEntryRecordedSchema = `{
  "type": "object",
  "title": "ManualEntryRecorded",
  "properties": {
    "entry_id": {"type": "string"},
    "activity_id": {"type": "string"},
    "user_id": {"type": "string"},
    "activity": {"type": "string", "minLength": 2, "maxLength": 50},
    "duration_min": {"type": "integer", "minimum": 0, "maximum": 1440},
    "calories": {"type": "integer", "minimum": 0, "maximum": 5000},
    "recorded_at": {"type": "string", "format": "date-time"}
  },
  "required": ["entry_id", "activity_id", "user_id", "activity", "calories", "recorded_at"],
  "additionalProperties": false
}`

const userDataClearedSchema = `{
  "type": "object",
  "title": "UserDataCleared",
  "properties": {
    "user_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "occurred_at"],
  "additionalProperties": false
}`
