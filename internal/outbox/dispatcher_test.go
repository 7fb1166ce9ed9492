package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/fittrack/internal/events"
)

func TestEncodeWireFormat(t *testing.T) {
	frame := encodeWireFormat(513, []byte(`{"a":1}`))
	require.Equal(t, byte(0), frame[0])
	require.Equal(t, uint32(513), binary.BigEndian.Uint32(frame[1:5]))
	require.Equal(t, `{"a":1}`, string(frame[5:]))
}

func TestDeliverGroupsByTopicAndCachesSchemas(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 11}
	d := &Dispatcher{producer: producer, registry: registry}

	msgs := []Message{
		{EventID: 1, UserID: "u1", EventType: events.TypeDailyActivityUpdated, Topic: "daily_activity_events", SchemaSubject: "daily_activity_events-value", PartitionKey: "u1", Payload: json.RawMessage(`{}`)},
		{EventID: 2, UserID: "u1", EventType: events.TypeManualEntryRecorded, Topic: "manual_entry_events", SchemaSubject: "manual_entry_events-value", PartitionKey: "u1", Payload: json.RawMessage(`{}`)},
		{EventID: 3, UserID: "u2", EventType: events.TypeDailyActivityUpdated, Topic: "daily_activity_events", SchemaSubject: "daily_activity_events-value", PartitionKey: "u2", Payload: json.RawMessage(`{}`)},
	}
	require.NoError(t, d.deliver(context.Background(), msgs))

	require.Len(t, producer.writes, 2)
	require.Equal(t, "daily_activity_events", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2)
	require.Equal(t, "manual_entry_events", producer.writes[1].topic)
	require.Len(t, registry.calls, 2, "one registry call per subject")

	headers := producer.writes[0].messages[0].Headers
	require.Equal(t, "event_type", headers[0].Key)
	require.Equal(t, events.TypeDailyActivityUpdated, string(headers[0].Value))
}

func TestDeliverFailsOnUnknownEventType(t *testing.T) {
	d := &Dispatcher{producer: &stubProducer{}, registry: &stubRegistry{}}
	err := d.deliver(context.Background(), []Message{{EventType: "nope"}})
	require.ErrorContains(t, err, "no schema metadata")
}

func TestDeliverSurfacesRegistryErrors(t *testing.T) {
	d := &Dispatcher{producer: &stubProducer{}, registry: &stubRegistry{err: errors.New("registry down")}}
	err := d.deliver(context.Background(), []Message{{EventType: events.TypeUserDataCleared, SchemaSubject: "s"}})
	require.ErrorContains(t, err, "registry down")
}

func TestBackoffDelayIsCapped(t *testing.T) {
	m := NewDLQManager(nil, 0, 0)
	require.Equal(t, 5, m.maxRetries)
	require.Equal(t, m.baseDelay, m.backoffDelay(1))
	require.Equal(t, 4*m.baseDelay, m.backoffDelay(3))
	require.Equal(t, time.Hour, m.backoffDelay(10))
	require.Equal(t, time.Hour, m.backoffDelay(64))
}

func TestSchemaRegistryRegistersMissingSubject(t *testing.T) {
	var registered string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/subjects/user_data_events-value/versions":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			registered = body["schemaType"]
			_, _ = w.Write([]byte(`{"id":17}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "user_data_events-value", userDataClearedSchema)
	require.NoError(t, err)
	require.Equal(t, 17, id)
	require.Equal(t, "JSON", registered)
}

func TestSchemaRegistryReusesLatestVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"id":5}`))
	}))
	defer srv.Close()

	id, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "daily_activity_events-value", dailyActivityUpdatedSchema)
	require.NoError(t, err)
	require.Equal(t, 5, id)
}

func TestSchemaRegistryDoesNotRegisterOnServerError(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
		}
		http.Error(w, "backend unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewSchemaRegistryClient(srv.URL).EnsureSchema(context.Background(), "daily_activity_events-value", dailyActivityUpdatedSchema)
	require.ErrorContains(t, err, "500")
	require.Zero(t, posts)
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)
	s.writes = append(s.writes, writtenBatch{topic: topic, messages: copied})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	err   error
	calls []schemaCall
}

type schemaCall struct {
	subject string
	schema  string
}

func (s *stubRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, schemaCall{subject: subject, schema: schema})
	if s.err != nil {
		return 0, s.err
	}
	if s.id == 0 {
		s.id = 1
	}
	return s.id, nil
}
