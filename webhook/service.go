package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marcelsud/plop-reliability/webhook/payload"
	"github.com/marcelsud/plop-reliability/webhook/signature"
	"github.com/rs/zerolog"
)

const (
	// DefaultTimeout is the hard abort for one outbound request
	DefaultTimeout = 10 * time.Second

	// MaxResponseBody is the number of response bytes stored per attempt
	MaxResponseBody = 1024

	// UserAgent identifies outbound webhook requests
	UserAgent = "Plop-Webhook/1.0"
)

// Reasons a task is skipped without writing a delivery record
const (
	SkipEndpointNotFound = "endpoint_not_found"
	SkipEndpointInactive = "endpoint_inactive"
	SkipSecretMissing    = "secret_missing"
	SkipMessageNotFound  = "message_not_found"
)

/* Service represents the business logic layer
 * Uses pointer semantics as it's an API, not data
 */

// UseCase defines the operation exposed to the task scheduler
type UseCase interface {
	Deliver(ctx context.Context, task Task, attempt int) (Result, error)
}

type Service struct {
	Repo      Repository
	endpoints EndpointSource
	client    *http.Client
	timeout   time.Duration
	now       func() time.Time
	recorder  Recorder
	logger    zerolog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithEndpointSource overrides endpoint and secret lookups (e.g. a YAML catalog)
func WithEndpointSource(source EndpointSource) Option {
	return func(s *Service) { s.endpoints = source }
}

// WithHTTPClient sets the client used for outbound requests
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) { s.client = client }
}

// WithTimeout sets the per-request hard timeout
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithClock sets the source of the signed send time
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecorder sets the delivery observer
func WithRecorder(recorder Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

// WithLogger sets the service logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a new delivery service with dependency injection
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		Repo:      repo,
		endpoints: repo,
		client:    &http.Client{},
		timeout:   DefaultTimeout,
		now:       time.Now,
		recorder:  nopRecorder{},
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

/* Deliver runs exactly one attempt for task
 * Missing or inactive data yields a skipped Result and writes nothing.
 * Any failure after the pending record is created is recorded, then
 * returned as *DeliveryError so the scheduler retries.
 */
func (s *Service) Deliver(ctx context.Context, task Task, attempt int) (Result, error) {
	log := s.logger.With().
		Str("endpoint_id", task.WebhookEndpointID).
		Str("message_id", task.MessageID).
		Int("attempt", attempt).
		Logger()

	endpoint, err := s.endpoints.GetEndpointSummary(ctx, task.WebhookEndpointID)
	if errors.Is(err, ErrNotFound) {
		return s.skip(ctx, log, SkipEndpointNotFound), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("getting endpoint: %w", err)
	}
	if !endpoint.Active {
		return s.skip(ctx, log, SkipEndpointInactive), nil
	}

	secret, err := s.endpoints.GetSecret(ctx, task.WebhookEndpointID)
	if errors.Is(err, ErrNotFound) || (err == nil && secret == "") {
		return s.skip(ctx, log, SkipSecretMissing), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("getting secret: %w", err)
	}

	message, err := s.Repo.GetMessageSummary(ctx, task.MessageID)
	if errors.Is(err, ErrNotFound) {
		return s.skip(ctx, log, SkipMessageNotFound), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("getting message: %w", err)
	}

	delivery, err := s.Repo.CreateDelivery(ctx, NewDelivery{
		WebhookEndpointID: task.WebhookEndpointID,
		Event:             EventEmailReceived,
		MessageID:         task.MessageID,
		Attempt:           attempt,
	})
	if err != nil {
		return Result{}, fmt.Errorf("creating delivery: %w", err)
	}

	sentAt := s.now()
	envelope, err := payload.NewEmailReceived(toPayload(message), sentAt)
	if err != nil {
		return Result{}, s.fail(ctx, log, delivery.ID, attempt, 0, 0, nil, fmt.Errorf("building payload: %w", err))
	}
	body, err := envelope.Bytes()
	if err != nil {
		return Result{}, s.fail(ctx, log, delivery.ID, attempt, 0, 0, nil, fmt.Errorf("encoding payload: %w", err))
	}
	sig := signature.Sign(secret, sentAt, body)

	start := time.Now()
	status, responseBody, err := s.post(ctx, endpoint.URL, sig, body)
	latency := time.Since(start)
	if err != nil {
		return Result{}, s.fail(ctx, log, delivery.ID, attempt, 0, latency, nil, err)
	}
	if status < 200 || status >= 300 {
		return Result{}, s.fail(ctx, log, delivery.ID, attempt, status, latency, &responseBody, &StatusError{Code: status})
	}

	httpStatus := status
	update := DeliveryUpdate{
		ID:           delivery.ID,
		Status:       Success,
		HTTPStatus:   &httpStatus,
		ResponseBody: &responseBody,
		LatencyMs:    latency.Milliseconds(),
		Attempt:      attempt,
	}
	if err := s.Repo.UpdateDelivery(context.WithoutCancel(ctx), update); err != nil {
		return Result{}, fmt.Errorf("updating delivery %s: %w", delivery.ID, err)
	}

	s.recorder.RecordDelivery(ctx, Success, status, latency)
	log.Info().
		Str("delivery_id", delivery.ID).
		Int("http_status", status).
		Int64("latency_ms", latency.Milliseconds()).
		Msg("webhook delivered")

	return Result{
		Success:    true,
		DeliveryID: delivery.ID,
		HTTPStatus: status,
		LatencyMs:  latency.Milliseconds(),
	}, nil
}

// post sends body and returns the status code and the truncated response body
func (s *Service) post(ctx context.Context, url string, sig signature.Signature, body []byte) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signature.HeaderName, sig.String())
	req.Header.Set("User-Agent", UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	return resp.StatusCode, readBody(resp.Body), nil
}

// readBody reads at most MaxResponseBody bytes; a read error yields an empty body
func readBody(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, MaxResponseBody))
	if err != nil {
		return ""
	}
	return strings.ToValidUTF8(string(raw), "")
}

// fail records the terminal Failed state and returns the error for the scheduler.
// responseBody is nil when no response was received.
func (s *Service) fail(ctx context.Context, log zerolog.Logger, deliveryID string, attempt, status int, latency time.Duration, responseBody *string, cause error) error {
	message := cause.Error()
	update := DeliveryUpdate{
		ID:           deliveryID,
		Status:       Failed,
		ResponseBody: responseBody,
		LatencyMs:    latency.Milliseconds(),
		Attempt:      attempt,
		Error:        &message,
	}
	if status != 0 {
		httpStatus := status
		update.HTTPStatus = &httpStatus
	}

	deliveryErr := &DeliveryError{DeliveryID: deliveryID, HTTPStatus: status, Err: cause}

	s.recorder.RecordDelivery(ctx, Failed, status, latency)
	log.Warn().
		Err(cause).
		Str("delivery_id", deliveryID).
		Int("http_status", status).
		Msg("webhook delivery failed")

	if err := s.Repo.UpdateDelivery(context.WithoutCancel(ctx), update); err != nil {
		return errors.Join(deliveryErr, fmt.Errorf("updating delivery %s: %w", deliveryID, err))
	}
	return deliveryErr
}

func (s *Service) skip(ctx context.Context, log zerolog.Logger, reason string) Result {
	s.recorder.RecordSkip(ctx, reason)
	log.Debug().Str("reason", reason).Msg("webhook delivery skipped")
	return Result{Skipped: true, SkipReason: reason}
}

func toPayload(m MessageSummary) payload.Message {
	return payload.Message{
		ID:             m.ID,
		Mailbox:        m.Mailbox,
		MailboxWithTag: m.MailboxWithTag,
		Tag:            m.Tag,
		From:           m.FromAddress,
		To:             m.ToAddress,
		Subject:        m.Subject,
		ReceivedAt:     m.ReceivedAt,
		Domain:         m.Domain,
	}
}
