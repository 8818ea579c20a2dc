package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/marcelsud/plop-reliability/webhook"
)

/*
PostgreSQL implementation of webhook.Repository

Endpoints, secrets and messages are written by other parts of the product;
this adapter only reads them. Delivery records are created Pending and
finalized at most once: the UPDATE is guarded by status = 'pending'.
*/

//go:embed schema.sql
var schema string

type Repository struct {
	DB *sql.DB
}

// NewRepository opens a PostgreSQL repository with the default pool (25, 5, 5 min)
func NewRepository(connectionString string) (*Repository, error) {
	return NewRepositoryWithPoolConfig(connectionString, 25, 5, 5)
}

// NewRepositoryWithPoolConfig opens a PostgreSQL repository with a custom pool
// maxOpenConns: maximum simultaneous connections (0 = unlimited)
// maxIdleConns: maximum idle connections kept in the pool
// maxLifeMinutes: maximum minutes a connection may be reused
func NewRepositoryWithPoolConfig(connectionString string, maxOpenConns, maxIdleConns, maxLifeMinutes int) (*Repository, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}
	if maxLifeMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(maxLifeMinutes) * time.Minute)
	}

	return &Repository{DB: db}, nil
}

// Migrate creates the tables used by this adapter if they do not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// GetEndpointSummary returns the url and active flag of an endpoint
func (r *Repository) GetEndpointSummary(ctx context.Context, id string) (webhook.EndpointSummary, error) {
	query := "SELECT url, active FROM webhook_endpoints WHERE id = $1"

	var e webhook.EndpointSummary
	err := r.DB.QueryRowContext(ctx, query, id).Scan(&e.URL, &e.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return webhook.EndpointSummary{}, webhook.ErrNotFound
	}
	if err != nil {
		return webhook.EndpointSummary{}, fmt.Errorf("selecting endpoint: %w", err)
	}
	return e, nil
}

// GetSecret returns the signing secret; a NULL secret is ErrNotFound
func (r *Repository) GetSecret(ctx context.Context, endpointID string) (string, error) {
	query := "SELECT secret FROM webhook_endpoints WHERE id = $1"

	var secret sql.NullString
	err := r.DB.QueryRowContext(ctx, query, endpointID).Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !secret.Valid) {
		return "", webhook.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("selecting secret: %w", err)
	}
	return secret.String, nil
}

// GetMessageSummary returns the fields of a message sent in the payload
func (r *Repository) GetMessageSummary(ctx context.Context, id string) (webhook.MessageSummary, error) {
	query := `
		SELECT id, mailbox, mailbox_with_tag, tag, from_address, to_address, subject, received_at, domain
		FROM messages
		WHERE id = $1
	`

	var m webhook.MessageSummary
	var tag sql.NullString
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&m.ID,
		&m.Mailbox,
		&m.MailboxWithTag,
		&tag,
		&m.FromAddress,
		&m.ToAddress,
		&m.Subject,
		&m.ReceivedAt,
		&m.Domain,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return webhook.MessageSummary{}, webhook.ErrNotFound
	}
	if err != nil {
		return webhook.MessageSummary{}, fmt.Errorf("selecting message: %w", err)
	}
	if tag.Valid {
		m.Tag = &tag.String
	}
	return m, nil
}

// CreateDelivery inserts a Pending record
func (r *Repository) CreateDelivery(ctx context.Context, d webhook.NewDelivery) (webhook.Delivery, error) {
	query := `
		INSERT INTO webhook_deliveries (id, webhook_endpoint_id, event, message_id, attempt, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	delivery := webhook.Delivery{
		ID:                uuid.New().String(),
		WebhookEndpointID: d.WebhookEndpointID,
		Event:             d.Event,
		MessageID:         d.MessageID,
		Attempt:           d.Attempt,
		Status:            webhook.Pending,
	}

	err := r.DB.QueryRowContext(ctx, query,
		delivery.ID,
		delivery.WebhookEndpointID,
		delivery.Event,
		delivery.MessageID,
		delivery.Attempt,
		webhook.Pending.String(),
	).Scan(&delivery.CreatedAt, &delivery.UpdatedAt)
	if err != nil {
		return webhook.Delivery{}, fmt.Errorf("inserting delivery: %w", err)
	}
	return delivery, nil
}

// UpdateDelivery moves a Pending record to Success or Failed
func (r *Repository) UpdateDelivery(ctx context.Context, u webhook.DeliveryUpdate) error {
	if !u.Status.IsFinal() {
		return fmt.Errorf("invalid terminal status: %s", u.Status)
	}

	query := `
		UPDATE webhook_deliveries
		SET status = $2, http_status = $3, response_body = $4, latency_ms = $5, attempt = $6, error = $7, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.DB.ExecContext(ctx, query,
		u.ID,
		u.Status.String(),
		nullInt(u.HTTPStatus),
		nullString(u.ResponseBody),
		u.LatencyMs,
		u.Attempt,
		nullString(u.Error),
	)
	if err != nil {
		return fmt.Errorf("updating delivery: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rows == 0 {
		return r.missingOrFinalized(ctx, u.ID)
	}
	return nil
}

// GetDelivery returns one delivery record
func (r *Repository) GetDelivery(ctx context.Context, id string) (webhook.Delivery, error) {
	query := `
		SELECT id, webhook_endpoint_id, event, message_id, attempt, status, http_status, response_body, latency_ms, error, created_at, updated_at
		FROM webhook_deliveries
		WHERE id = $1
	`

	var d webhook.Delivery
	var status string
	var httpStatus sql.NullInt64
	var body, errMessage sql.NullString
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&d.ID,
		&d.WebhookEndpointID,
		&d.Event,
		&d.MessageID,
		&d.Attempt,
		&status,
		&httpStatus,
		&body,
		&d.LatencyMs,
		&errMessage,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return webhook.Delivery{}, webhook.ErrNotFound
	}
	if err != nil {
		return webhook.Delivery{}, fmt.Errorf("selecting delivery: %w", err)
	}

	d.Status = webhook.NewStatus(status)
	if httpStatus.Valid {
		code := int(httpStatus.Int64)
		d.HTTPStatus = &code
	}
	d.ResponseBody = body.String
	if errMessage.Valid {
		d.Error = &errMessage.String
	}
	return d, nil
}

// Close closes the database connection
func (r *Repository) Close(ctx context.Context) error {
	if r.DB != nil {
		return r.DB.Close()
	}
	return nil
}

func (r *Repository) missingOrFinalized(ctx context.Context, id string) error {
	var exists bool
	err := r.DB.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM webhook_deliveries WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking delivery: %w", err)
	}
	if !exists {
		return webhook.ErrNotFound
	}
	return webhook.ErrDeliveryFinalized
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
