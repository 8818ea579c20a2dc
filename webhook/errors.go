package webhook

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by readers when the record does not exist
	ErrNotFound = errors.New("not found")
	// ErrDeliveryFinalized is returned when updating a record that already left Pending
	ErrDeliveryFinalized = errors.New("delivery already finalized")
)

/* DeliveryError is returned after a failed attempt has been recorded
 * The scheduler treats it like any other error and applies its retry policy
 */
type DeliveryError struct {
	DeliveryID string
	/* HTTPStatus is 0 when no response was received */
	HTTPStatus int
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery %s failed: %v", e.DeliveryID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// StatusError is the failure recorded for a non-2xx response
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.Code)
}
