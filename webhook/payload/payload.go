package payload

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// EventEmailReceived is sent for every inbound mail
const EventEmailReceived = "email.received"

// TimeLayout is ISO 8601 in UTC with millisecond precision
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// eventPattern validates event tags: full-stop delimited, [a-zA-Z0-9_.]
var eventPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

// Message is the data section of an email event
type Message struct {
	ID             string    `json:"id"`
	Mailbox        string    `json:"mailbox"`
	MailboxWithTag string    `json:"mailboxWithTag"`
	Tag            *string   `json:"tag"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Subject        string    `json:"subject"`
	ReceivedAt     time.Time `json:"receivedAt"`
	Domain         string    `json:"domain"`
}

// Envelope is the JSON document POSTed to a webhook endpoint
type Envelope struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      Message   `json:"data"`
}

// New builds an envelope stamped with sentAt
func New(event string, sentAt time.Time, data Message) (Envelope, error) {
	envelope := Envelope{
		Event:     event,
		Timestamp: sentAt,
		Data:      data,
	}
	if err := envelope.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("validating payload: %w", err)
	}
	return envelope, nil
}

// NewEmailReceived builds the email.received envelope for msg
func NewEmailReceived(msg Message, sentAt time.Time) (Envelope, error) {
	return New(EventEmailReceived, sentAt, msg)
}

// Validate checks the envelope structure
func (e Envelope) Validate() error {
	if e.Event == "" {
		return fmt.Errorf("event is required")
	}
	if !eventPattern.MatchString(e.Event) {
		return fmt.Errorf("event must be hierarchical and contain only [a-zA-Z0-9_.]: %s", e.Event)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if e.Data.ID == "" {
		return fmt.Errorf("data.id is required")
	}
	return nil
}

type wireMessage struct {
	ID             string  `json:"id"`
	Mailbox        string  `json:"mailbox"`
	MailboxWithTag string  `json:"mailboxWithTag"`
	Tag            *string `json:"tag"`
	From           string  `json:"from"`
	To             string  `json:"to"`
	Subject        string  `json:"subject"`
	ReceivedAt     string  `json:"receivedAt"`
	Domain         string  `json:"domain"`
}

type wireEnvelope struct {
	Event     string      `json:"event"`
	Timestamp string      `json:"timestamp"`
	Data      wireMessage `json:"data"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// MarshalJSON renders timestamps in TimeLayout
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEnvelope{
		Event:     e.Event,
		Timestamp: formatTime(e.Timestamp),
		Data: wireMessage{
			ID:             e.Data.ID,
			Mailbox:        e.Data.Mailbox,
			MailboxWithTag: e.Data.MailboxWithTag,
			Tag:            e.Data.Tag,
			From:           e.Data.From,
			To:             e.Data.To,
			Subject:        e.Data.Subject,
			ReceivedAt:     formatTime(e.Data.ReceivedAt),
			Domain:         e.Data.Domain,
		},
	})
}

// UnmarshalJSON parses the JSON-encoded data and stores the result
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("unmarshaling payload: %w", err)
	}

	timestamp, err := parseTime(wire.Timestamp)
	if err != nil {
		return fmt.Errorf("parsing timestamp: %w", err)
	}
	receivedAt, err := parseTime(wire.Data.ReceivedAt)
	if err != nil {
		return fmt.Errorf("parsing receivedAt: %w", err)
	}

	*e = Envelope{
		Event:     wire.Event,
		Timestamp: timestamp,
		Data: Message{
			ID:             wire.Data.ID,
			Mailbox:        wire.Data.Mailbox,
			MailboxWithTag: wire.Data.MailboxWithTag,
			Tag:            wire.Data.Tag,
			From:           wire.Data.From,
			To:             wire.Data.To,
			Subject:        wire.Data.Subject,
			ReceivedAt:     receivedAt,
			Domain:         wire.Data.Domain,
		},
	}
	return nil
}

// Bytes returns the minified JSON body.
// Callers sign and send these exact bytes; never re-encode in between.
func (e Envelope) Bytes() ([]byte, error) {
	return json.Marshal(e)
}

// Parse parses a JSON body into an Envelope
func Parse(data []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Envelope{}, err
	}
	if err := envelope.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("validating payload: %w", err)
	}
	return envelope, nil
}
