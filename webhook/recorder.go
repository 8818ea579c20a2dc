package webhook

import (
	"context"
	"time"
)

// Recorder observes delivery attempts, typically for metrics
type Recorder interface {
	/* RecordDelivery is called once per attempt that reached a terminal state
	 * httpStatus is 0 when no response was received
	 */
	RecordDelivery(ctx context.Context, status Status, httpStatus int, latency time.Duration)
	RecordSkip(ctx context.Context, reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordDelivery(context.Context, Status, int, time.Duration) {}
func (nopRecorder) RecordSkip(context.Context, string)                       {}
