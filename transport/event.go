package transport

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// EventType identifies the payload carried by an Event.
type EventType string

const (
	AddExplainLog EventType = "ADD_EXPLAIN_LOG"
)

// EnvelopeVersion is the only envelope version emitted.
const EnvelopeVersion = 1

// Event is the envelope pushed to side-channel consumers such as the
// collect function.
type Event struct {
	Version   int             `json:"version"`
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEvent wraps payload in a fresh envelope.
func NewEvent(t EventType, payload any) (Event, error) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Version:   EnvelopeVersion,
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UnixMilli(),
		Payload:   data,
	}, nil
}

// DecodeEvent parses an envelope and rejects versions this build does not know.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := sonic.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	if ev.Version != EnvelopeVersion {
		return Event{}, &UnsupportedVersionError{Version: ev.Version}
	}
	return ev, nil
}

// UnsupportedVersionError is returned by DecodeEvent for unknown envelopes.
type UnsupportedVersionError struct {
	Version int
}

func (e *UnsupportedVersionError) Error() string {
	return "unsupported event envelope version " + strconv.Itoa(e.Version)
}
