package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DeliveryStatus enumerates the outcome of one send attempt.
type DeliveryStatus string

const (
	StatusSent   DeliveryStatus = "Sent"
	StatusFailed DeliveryStatus = "Failed"
)

// DeliveryLog is the append-only record of one send attempt. It is kept
// alongside the finer-grained event log for compatibility with callers
// that only understand Sent/Failed rows. Never mutated after creation.
type DeliveryLog struct {
	ID             string         `json:"id" db:"id"`
	TenantID       string         `json:"tenant_id" db:"tenant_id"`
	RecipientEmail string         `json:"recipient_email" db:"recipient_email"`
	CampaignID     *string        `json:"campaign_id" db:"campaign_id"`
	Status         DeliveryStatus `json:"status" db:"status"`
	ErrorMessage   string         `json:"error_message" db:"error_message"`
	SentAt         time.Time      `json:"sent_at" db:"sent_at"`
}

// EventKind enumerates the delivery lifecycle events.
type EventKind string

const (
	EventSent       EventKind = "sent"
	EventDelivered  EventKind = "delivered"
	EventOpened     EventKind = "opened"
	EventClicked    EventKind = "clicked"
	EventBounced    EventKind = "bounced"
	EventFailed     EventKind = "failed"
	EventComplained EventKind = "complained"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventSent, EventDelivered, EventOpened, EventClicked,
		EventBounced, EventFailed, EventComplained:
		return true
	}
	return false
}

// EventMeta is the tagged metadata variant attached to a DeliveryEvent.
// Each event kind has its own struct so that consumers never dig through
// an untyped bag; unrecognized webhook payloads keep their raw JSON. The
// event's Kind field selects the variant.
type EventMeta interface {
	isEventMeta()
}

// SentMeta accompanies a "sent" event.
type SentMeta struct {
	Subject string `json:"subject"`
}

func (SentMeta) isEventMeta() {}

// OpenedMeta accompanies an "opened" event. FirstOpen is true only on the
// first recorded open for the candidate.
type OpenedMeta struct {
	FirstOpen bool `json:"first_open"`
}

func (OpenedMeta) isEventMeta() {}

// ClickedMeta accompanies a "clicked" event.
type ClickedMeta struct {
	URL string `json:"url"`
}

func (ClickedMeta) isEventMeta() {}

// BouncedMeta accompanies "bounced" and "complained" events. Raw preserves
// the provider payload for webhook shapes we do not model.
type BouncedMeta struct {
	BounceType string          `json:"bounce_type"`
	Reason     string          `json:"reason"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

func (BouncedMeta) isEventMeta() {}

// DeliveredMeta accompanies a "delivered" event.
type DeliveredMeta struct {
	Raw json.RawMessage `json:"raw,omitempty"`
}

func (DeliveredMeta) isEventMeta() {}

// FailedMeta accompanies a "failed" event.
type FailedMeta struct {
	Error string `json:"error"`
}

func (FailedMeta) isEventMeta() {}

// DeliveryEvent is one append-only lifecycle event tied to a SendCandidate.
// Multiple events of the same kind may exist for one candidate; only
// insertion is supported.
type DeliveryEvent struct {
	ID          string    `json:"id" db:"id"`
	CandidateID string    `json:"candidate_id" db:"candidate_id"`
	Kind        EventKind `json:"kind" db:"kind"`
	OccurredAt  time.Time `json:"occurred_at" db:"occurred_at"`
	IPAddress   string    `json:"ip_address" db:"ip_address"`
	UserAgent   string    `json:"user_agent" db:"user_agent"`
	Meta        EventMeta `json:"meta"`
}

// EncodeMeta serializes an event's metadata variant for storage.
func EncodeMeta(m EventMeta) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// DecodeMeta deserializes stored metadata into the variant for kind.
func DecodeMeta(kind EventKind, data []byte) (EventMeta, error) {
	if len(data) == 0 {
		data = []byte("{}")
	}
	var (
		m   EventMeta
		err error
	)
	switch kind {
	case EventSent:
		v := SentMeta{}
		err = json.Unmarshal(data, &v)
		m = v
	case EventOpened:
		v := OpenedMeta{}
		err = json.Unmarshal(data, &v)
		m = v
	case EventClicked:
		v := ClickedMeta{}
		err = json.Unmarshal(data, &v)
		m = v
	case EventBounced, EventComplained:
		v := BouncedMeta{}
		err = json.Unmarshal(data, &v)
		m = v
	case EventDelivered:
		v := DeliveredMeta{}
		err = json.Unmarshal(data, &v)
		m = v
	case EventFailed:
		v := FailedMeta{}
		err = json.Unmarshal(data, &v)
		m = v
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	return m, err
}
