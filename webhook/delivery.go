package webhook

import (
	"time"

	"github.com/marcelsud/plop-reliability/webhook/payload"
)

// EventEmailReceived is the event tag sent for inbound mail
const EventEmailReceived = payload.EventEmailReceived

/* Delivery is the persisted record of one attempt
 * Uses value semantics as it represents data, not behavior
 */
type Delivery struct {
	ID                string
	WebhookEndpointID string
	Event             string
	MessageID         string
	Attempt           int
	Status            Status
	HTTPStatus        *int
	ResponseBody      string
	LatencyMs         int64
	Error             *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewDelivery holds the fields of a record created in Pending state
type NewDelivery struct {
	WebhookEndpointID string
	Event             string
	MessageID         string
	Attempt           int
}

/* DeliveryUpdate moves a pending record to its terminal state
 * nil HTTPStatus means no response was received at all
 */
type DeliveryUpdate struct {
	ID           string
	Status       Status
	HTTPStatus   *int
	ResponseBody *string
	LatencyMs    int64
	Attempt      int
	Error        *string
}

// EndpointSummary is the part of a webhook endpoint the pipeline needs
type EndpointSummary struct {
	URL    string
	Active bool
}

// MessageSummary is the part of a received message that goes into the payload
type MessageSummary struct {
	ID             string
	Mailbox        string
	MailboxWithTag string
	Tag            *string
	FromAddress    string
	ToAddress      string
	Subject        string
	ReceivedAt     time.Time
	Domain         string
}

// Task is the unit of work handed over by the external scheduler
type Task struct {
	WebhookEndpointID string
	MessageID         string
}

/* Result of a single attempt that did not fail
 * Skipped results wrote no delivery record
 */
type Result struct {
	Skipped    bool
	SkipReason string
	Success    bool
	DeliveryID string
	HTTPStatus int
	LatencyMs  int64
}
