package webhook_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcelsud/plop-reliability/webhook"
	"github.com/marcelsud/plop-reliability/webhook/mocks"
	"github.com/marcelsud/plop-reliability/webhook/payload"
	"github.com/marcelsud/plop-reliability/webhook/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var sentAt = time.Unix(1767268800, 0)

func fixedClock() time.Time { return sentAt }

type received struct {
	mu      sync.Mutex
	count   atomic.Int32
	headers http.Header
	body    []byte
}

func (r *received) capture(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.headers = req.Header.Clone()
	r.body = body
	r.count.Add(1)
}

// receiver starts a webhook endpoint that runs handle after capturing the request
func receiver(t *testing.T, handle func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *received) {
	t.Helper()
	rec := &received{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.capture(r)
		handle(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func message() webhook.MessageSummary {
	return webhook.MessageSummary{
		ID:             "m1",
		Mailbox:        "qa",
		MailboxWithTag: "qa",
		FromAddress:    "alice@example.com",
		ToAddress:      "qa@plop.test",
		Subject:        "hello",
		ReceivedAt:     time.Date(2026, 1, 1, 11, 59, 0, 0, time.UTC),
		Domain:         "plop.test",
	}
}

var task = webhook.Task{WebhookEndpointID: "ep1", MessageID: "m1"}

// expectLookups registers the three successful reads
func expectLookups(repo *mocks.Repository, url string) {
	repo.On("GetEndpointSummary", mock.Anything, "ep1").Return(webhook.EndpointSummary{URL: url, Active: true}, nil)
	repo.On("GetSecret", mock.Anything, "ep1").Return("s3cr3t", nil)
	repo.On("GetMessageSummary", mock.Anything, "m1").Return(message(), nil)
}

func expectCreate(repo *mocks.Repository, attempt int) {
	repo.On("CreateDelivery", mock.Anything, webhook.MatchNewDelivery(func(d webhook.NewDelivery) bool {
		return d.WebhookEndpointID == "ep1" &&
			d.MessageID == "m1" &&
			d.Event == "email.received" &&
			d.Attempt == attempt
	})).Return(webhook.Delivery{ID: "d1", Status: webhook.Pending, Attempt: attempt}, nil).Once()
}

// captureUpdate records the single terminal update
func captureUpdate(repo *mocks.Repository, err error) *webhook.DeliveryUpdate {
	var update webhook.DeliveryUpdate
	repo.On("UpdateDelivery", mock.Anything, mock.AnythingOfType("webhook.DeliveryUpdate")).
		Run(func(args mock.Arguments) {
			update = args.Get(1).(webhook.DeliveryUpdate)
		}).
		Return(err).Once()
	return &update
}

func TestDeliver(t *testing.T) {
	ctx := context.Background()

	t.Run("success - end to end", func(t *testing.T) {
		srv, rec := receiver(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(42 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})

		repo := mocks.NewRepository(t)
		expectLookups(repo, srv.URL+"/hook")
		expectCreate(repo, 1)
		update := captureUpdate(repo, nil)

		service := webhook.NewService(repo, webhook.WithClock(fixedClock))
		result, err := service.Deliver(ctx, task, 1)

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.False(t, result.Skipped)
		assert.Equal(t, "d1", result.DeliveryID)
		assert.Equal(t, http.StatusOK, result.HTTPStatus)
		assert.GreaterOrEqual(t, result.LatencyMs, int64(42))
		assert.Less(t, result.LatencyMs, int64(5000))

		assert.Equal(t, "d1", update.ID)
		assert.Equal(t, webhook.Success, update.Status)
		require.NotNil(t, update.HTTPStatus)
		assert.Equal(t, http.StatusOK, *update.HTTPStatus)
		require.NotNil(t, update.ResponseBody)
		assert.Equal(t, "ok", *update.ResponseBody)
		assert.Nil(t, update.Error)
		assert.Equal(t, 1, update.Attempt)
		assert.Equal(t, result.LatencyMs, update.LatencyMs)

		require.Equal(t, int32(1), rec.count.Load())
		assert.Equal(t, "application/json", rec.headers.Get("Content-Type"))
		assert.Equal(t, "Plop-Webhook/1.0", rec.headers.Get("User-Agent"))

		mac := hmac.New(sha256.New, []byte("s3cr3t"))
		mac.Write([]byte("1767268800." + string(rec.body)))
		want := "t=1767268800,v1=" + hex.EncodeToString(mac.Sum(nil))
		assert.Equal(t, want, rec.headers.Get(signature.HeaderName))

		envelope, err := payload.Parse(rec.body)
		require.NoError(t, err)
		assert.Equal(t, "email.received", envelope.Event)
		assert.True(t, sentAt.Equal(envelope.Timestamp))
		assert.Equal(t, "m1", envelope.Data.ID)
		assert.Equal(t, "qa", envelope.Data.Mailbox)
		assert.Nil(t, envelope.Data.Tag)
	})

	t.Run("success - response body truncated", func(t *testing.T) {
		srv, _ := receiver(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", 5000)))
		})

		repo := mocks.NewRepository(t)
		expectLookups(repo, srv.URL)
		expectCreate(repo, 2)
		update := captureUpdate(repo, nil)

		_, err := webhook.NewService(repo).Deliver(ctx, task, 2)

		require.NoError(t, err)
		require.NotNil(t, update.ResponseBody)
		assert.Len(t, *update.ResponseBody, 1024)
	})

	t.Run("success - endpoint source override", func(t *testing.T) {
		srv, rec := receiver(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})

		source := mocks.NewRepository(t)
		source.On("GetEndpointSummary", mock.Anything, "ep1").Return(webhook.EndpointSummary{URL: srv.URL, Active: true}, nil)
		source.On("GetSecret", mock.Anything, "ep1").Return("from-catalog", nil)

		repo := mocks.NewRepository(t)
		repo.On("GetMessageSummary", mock.Anything, "m1").Return(message(), nil)
		expectCreate(repo, 1)
		captureUpdate(repo, nil)

		service := webhook.NewService(repo, webhook.WithEndpointSource(source), webhook.WithClock(fixedClock))
		result, err := service.Deliver(ctx, task, 1)

		require.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, result.HTTPStatus)
		assert.NoError(t, signature.Verify("from-catalog", rec.headers.Get(signature.HeaderName), rec.body, sentAt, time.Minute))
	})

	t.Run("failed - non 2xx response", func(t *testing.T) {
		srv, _ := receiver(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("boom"))
		})

		repo := mocks.NewRepository(t)
		expectLookups(repo, srv.URL)
		expectCreate(repo, 3)
		update := captureUpdate(repo, nil)

		_, err := webhook.NewService(repo).Deliver(ctx, task, 3)

		require.Error(t, err)
		var deliveryErr *webhook.DeliveryError
		require.ErrorAs(t, err, &deliveryErr)
		assert.Equal(t, "d1", deliveryErr.DeliveryID)
		assert.Equal(t, http.StatusInternalServerError, deliveryErr.HTTPStatus)

		assert.Equal(t, webhook.Failed, update.Status)
		require.NotNil(t, update.HTTPStatus)
		assert.Equal(t, http.StatusInternalServerError, *update.HTTPStatus)
		require.NotNil(t, update.Error)
		assert.Equal(t, "HTTP 500", *update.Error)
		require.NotNil(t, update.ResponseBody)
		assert.Equal(t, "boom", *update.ResponseBody)
		assert.Equal(t, 3, update.Attempt)
	})

	t.Run("failed - receiver error body is kept and truncated", func(t *testing.T) {
		srv, _ := receiver(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"bad signature"}` + strings.Repeat(" ", 2000)))
		})

		repo := mocks.NewRepository(t)
		expectLookups(repo, srv.URL)
		expectCreate(repo, 1)
		update := captureUpdate(repo, nil)

		_, err := webhook.NewService(repo).Deliver(ctx, task, 1)

		require.Error(t, err)
		assert.Equal(t, webhook.Failed, update.Status)
		require.NotNil(t, update.HTTPStatus)
		assert.Equal(t, http.StatusUnprocessableEntity, *update.HTTPStatus)
		require.NotNil(t, update.ResponseBody)
		assert.Len(t, *update.ResponseBody, 1024)
		assert.True(t, strings.HasPrefix(*update.ResponseBody, `{"error":"bad signature"}`))
	})

	t.Run("failed - network error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		repo := mocks.NewRepository(t)
		expectLookups(repo, url)
		expectCreate(repo, 1)
		update := captureUpdate(repo, nil)

		_, err := webhook.NewService(repo).Deliver(ctx, task, 1)

		var deliveryErr *webhook.DeliveryError
		require.ErrorAs(t, err, &deliveryErr)
		assert.Equal(t, 0, deliveryErr.HTTPStatus)

		assert.Equal(t, webhook.Failed, update.Status)
		assert.Nil(t, update.HTTPStatus)
		assert.Nil(t, update.ResponseBody)
		require.NotNil(t, update.Error)
		assert.NotEmpty(t, *update.Error)
	})

	t.Run("failed - timeout", func(t *testing.T) {
		srv, _ := receiver(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})

		repo := mocks.NewRepository(t)
		expectLookups(repo, srv.URL)
		expectCreate(repo, 1)
		update := captureUpdate(repo, nil)

		service := webhook.NewService(repo, webhook.WithTimeout(50*time.Millisecond))
		start := time.Now()
		_, err := service.Deliver(ctx, task, 1)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, webhook.Failed, update.Status)
		assert.Nil(t, update.HTTPStatus)
		require.NotNil(t, update.Error)
	})

	t.Run("success - body that never finishes is cut off by the timeout", func(t *testing.T) {
		srv, _ := receiver(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("partial"))
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})

		repo := mocks.NewRepository(t)
		expectLookups(repo, srv.URL)
		expectCreate(repo, 1)
		update := captureUpdate(repo, nil)

		service := webhook.NewService(repo, webhook.WithTimeout(50*time.Millisecond))
		start := time.Now()
		result, err := service.Deliver(ctx, task, 1)

		require.NoError(t, err, "a failed body read is an empty body")
		assert.Less(t, time.Since(start), time.Second)
		assert.True(t, result.Success)
		assert.Equal(t, http.StatusOK, result.HTTPStatus)

		assert.Equal(t, webhook.Success, update.Status)
		require.NotNil(t, update.HTTPStatus)
		assert.Equal(t, http.StatusOK, *update.HTTPStatus)
		require.NotNil(t, update.ResponseBody)
		assert.Empty(t, *update.ResponseBody)
	})

	t.Run("failed - update error is joined", func(t *testing.T) {
		srv, _ := receiver(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		repo := mocks.NewRepository(t)
		expectLookups(repo, srv.URL)
		expectCreate(repo, 1)
		captureUpdate(repo, webhook.ErrDeliveryFinalized)

		_, err := webhook.NewService(repo).Deliver(ctx, task, 1)

		var deliveryErr *webhook.DeliveryError
		assert.ErrorAs(t, err, &deliveryErr)
		assert.ErrorIs(t, err, webhook.ErrDeliveryFinalized)
	})

	t.Run("error - create delivery aborts before the request", func(t *testing.T) {
		srv, rec := receiver(t, func(w http.ResponseWriter, r *http.Request) {})

		repo := mocks.NewRepository(t)
		expectLookups(repo, srv.URL)
		repo.On("CreateDelivery", mock.Anything, mock.Anything).Return(webhook.Delivery{}, errors.New("db down"))

		_, err := webhook.NewService(repo).Deliver(ctx, task, 1)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "creating delivery")
		assert.Equal(t, int32(0), rec.count.Load())
		repo.AssertNotCalled(t, "UpdateDelivery", mock.Anything, mock.Anything)
	})

	t.Run("error - data layer failure is not a skip", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		repo.On("GetEndpointSummary", mock.Anything, "ep1").Return(webhook.EndpointSummary{}, errors.New("connection reset"))

		result, err := webhook.NewService(repo).Deliver(ctx, task, 1)

		require.Error(t, err)
		assert.False(t, result.Skipped)
		assert.Contains(t, err.Error(), "getting endpoint")
	})
}

func TestDeliverSkips(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		reason string
		setup  func(repo *mocks.Repository)
	}{
		{
			name:   "endpoint not found",
			reason: webhook.SkipEndpointNotFound,
			setup: func(repo *mocks.Repository) {
				repo.On("GetEndpointSummary", mock.Anything, "ep1").Return(webhook.EndpointSummary{}, webhook.ErrNotFound)
			},
		},
		{
			name:   "endpoint inactive",
			reason: webhook.SkipEndpointInactive,
			setup: func(repo *mocks.Repository) {
				repo.On("GetEndpointSummary", mock.Anything, "ep1").Return(webhook.EndpointSummary{URL: "http://x", Active: false}, nil)
			},
		},
		{
			name:   "secret not found",
			reason: webhook.SkipSecretMissing,
			setup: func(repo *mocks.Repository) {
				repo.On("GetEndpointSummary", mock.Anything, "ep1").Return(webhook.EndpointSummary{URL: "http://x", Active: true}, nil)
				repo.On("GetSecret", mock.Anything, "ep1").Return("", webhook.ErrNotFound)
			},
		},
		{
			name:   "secret empty",
			reason: webhook.SkipSecretMissing,
			setup: func(repo *mocks.Repository) {
				repo.On("GetEndpointSummary", mock.Anything, "ep1").Return(webhook.EndpointSummary{URL: "http://x", Active: true}, nil)
				repo.On("GetSecret", mock.Anything, "ep1").Return("", nil)
			},
		},
		{
			name:   "message not found",
			reason: webhook.SkipMessageNotFound,
			setup: func(repo *mocks.Repository) {
				repo.On("GetEndpointSummary", mock.Anything, "ep1").Return(webhook.EndpointSummary{URL: "http://x", Active: true}, nil)
				repo.On("GetSecret", mock.Anything, "ep1").Return("s3cr3t", nil)
				repo.On("GetMessageSummary", mock.Anything, "m1").Return(webhook.MessageSummary{}, webhook.ErrNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := mocks.NewRepository(t)
			tt.setup(repo)
			recorder := &fakeRecorder{}

			result, err := webhook.NewService(repo, webhook.WithRecorder(recorder)).Deliver(ctx, task, 1)

			require.NoError(t, err)
			assert.True(t, result.Skipped)
			assert.Equal(t, tt.reason, result.SkipReason)
			assert.Equal(t, []string{tt.reason}, recorder.skips)
			assert.Empty(t, recorder.deliveries)
			repo.AssertNotCalled(t, "CreateDelivery", mock.Anything, mock.Anything)
			repo.AssertNotCalled(t, "UpdateDelivery", mock.Anything, mock.Anything)
		})
	}
}

type fakeRecorder struct {
	mu         sync.Mutex
	deliveries []webhook.Status
	skips      []string
}

func (f *fakeRecorder) RecordDelivery(_ context.Context, status webhook.Status, _ int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, status)
}

func (f *fakeRecorder) RecordSkip(_ context.Context, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skips = append(f.skips, reason)
}

func TestDeliverRecorder(t *testing.T) {
	ctx := context.Background()

	srv, _ := receiver(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	repo := mocks.NewRepository(t)
	expectLookups(repo, srv.URL)
	expectCreate(repo, 1)
	captureUpdate(repo, nil)
	recorder := &fakeRecorder{}

	_, err := webhook.NewService(repo, webhook.WithRecorder(recorder)).Deliver(ctx, task, 1)

	require.NoError(t, err)
	assert.Equal(t, []webhook.Status{webhook.Success}, recorder.deliveries)
	assert.Empty(t, recorder.skips)
}
