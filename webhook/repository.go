package webhook

import "context"

/* Small, focused interfaces over the data layer
 * Endpoint, secret and message data are owned elsewhere; this package only reads them
 */

// EndpointReader looks up webhook endpoints
type EndpointReader interface {
	/* GetEndpointSummary returns ErrNotFound when the endpoint does not exist */
	GetEndpointSummary(ctx context.Context, id string) (EndpointSummary, error)
}

// SecretReader looks up per-endpoint signing secrets
type SecretReader interface {
	/* GetSecret returns ErrNotFound when no secret is stored */
	GetSecret(ctx context.Context, endpointID string) (string, error)
}

// MessageReader looks up received messages
type MessageReader interface {
	GetMessageSummary(ctx context.Context, id string) (MessageSummary, error)
}

// DeliveryWriter persists delivery attempts
type DeliveryWriter interface {
	/* CreateDelivery inserts a Pending record and returns it with its ID */
	CreateDelivery(ctx context.Context, d NewDelivery) (Delivery, error)
	/* UpdateDelivery finalizes a Pending record
	 * Returns ErrDeliveryFinalized if the record is no longer pending
	 */
	UpdateDelivery(ctx context.Context, u DeliveryUpdate) error
}

// EndpointSource provides everything about an endpoint
type EndpointSource interface {
	EndpointReader
	SecretReader
}

/* Interface composition - combining small interfaces into larger ones
 * This is preferred over large monolithic interfaces
 */
type Repository interface {
	EndpointReader
	SecretReader
	MessageReader
	DeliveryWriter
	Close(ctx context.Context) error
}
