package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Maharab24/Bottle-Collection/pkg/logger"
)

// ErrMalformedEvent is returned by DecodeEvent for payloads that parse but
// lack an id or type.
var ErrMalformedEvent = errors.New("malformed event")

// Event is the JSON envelope carried in every message value.
type Event struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	Version       int             `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// NewEvent stamps a fresh id and the current UTC time. A nil data leaves the
// payload out, which is how pure change notices travel.
func NewEvent(eventType, aggregateID, source string, data any) (*Event, error) {
	e := &Event{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Version:     1,
		Timestamp:   time.Now().UTC(),
		Source:      source,
	}
	if data == nil {
		return e, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	e.Data = raw
	return e, nil
}

// Correlate copies the request correlation id from ctx onto the event.
func (e *Event) Correlate(ctx context.Context) *Event {
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		e.CorrelationID = id
	}
	return e
}

func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses a message value.
func DecodeEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if e.EventID == "" || e.EventType == "" {
		return nil, ErrMalformedEvent
	}
	return &e, nil
}

// Payload decodes the event data into target. Events without data are an
// error.
func (e *Event) Payload(target any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s event %s has no payload", e.EventType, e.EventID)
	}
	return json.Unmarshal(e.Data, target)
}
