package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"abbo/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a subscription does not exist or has
// been soft-deleted.
var ErrNotFound = errors.New("subscription not found")

// Sync states for the export worker.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const subscriptionColumns = `id, name, price_cents, currency, frequency,
	include_tax, free_trial, cancelled, renewal_date, icon_url`

func scanSubscription(row interface{ Scan(...any) error }) (core.Subscription, error) {
	var (
		s           core.Subscription
		renewalDate string
	)
	err := row.Scan(&s.ID, &s.Name, &s.Price.Cents, &s.Currency, &s.Frequency,
		&s.IncludeTax, &s.FreeTrial, &s.Cancelled, &renewalDate, &s.IconURL)
	if err != nil {
		return core.Subscription{}, err
	}
	date, err := core.ParseDate(renewalDate)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("parse renewal date %q: %w", renewalDate, err)
	}
	s.RenewalDate = date
	return s, nil
}

// CreateSubscription inserts a new record and returns its database ID.
func (r *SQLiteRepository) CreateSubscription(ctx context.Context, s core.Subscription) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions
			(name, price_cents, currency, frequency, include_tax, free_trial, cancelled, renewal_date, icon_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name, s.Price.Cents, string(s.Currency), string(s.Frequency),
		s.IncludeTax, s.FreeTrial, s.Cancelled, s.RenewalDate.String(), s.IconURL)
	if err != nil {
		return 0, fmt.Errorf("create subscription: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Subscription saved to SQLite",
		"id", id,
		"name", s.Name,
		"price_cents", s.Price.Cents,
		"currency", s.Currency,
		"frequency", s.Frequency)

	return id, nil
}

// GetSubscription returns a single subscription by ID.
func (r *SQLiteRepository) GetSubscription(ctx context.Context, id int64) (core.Subscription, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE id = ? AND deleted_at IS NULL`, id)

	s, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Subscription{}, ErrNotFound
	}
	if err != nil {
		return core.Subscription{}, fmt.Errorf("get subscription %d: %w", id, err)
	}
	return s, nil
}

// UpdateSubscription replaces the mutable fields of an existing record,
// bumps its version and re-queues it for export sync.
func (r *SQLiteRepository) UpdateSubscription(ctx context.Context, s core.Subscription) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET
			name = ?, price_cents = ?, currency = ?, frequency = ?,
			include_tax = ?, free_trial = ?, cancelled = ?, renewal_date = ?, icon_url = ?,
			sync_status = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`,
		s.Name, s.Price.Cents, string(s.Currency), string(s.Frequency),
		s.IncludeTax, s.FreeTrial, s.Cancelled, s.RenewalDate.String(), s.IconURL,
		SyncPending, s.ID)
	if err != nil {
		return fmt.Errorf("update subscription %d: %w", s.ID, err)
	}
	return requireRow(res, s.ID)
}

// UpdateRenewalDate advances the stored renewal date of a record.
func (r *SQLiteRepository) UpdateRenewalDate(ctx context.Context, id int64, date core.Date) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET
			renewal_date = ?, sync_status = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`,
		date.String(), SyncPending, id)
	if err != nil {
		return fmt.Errorf("update renewal date for %d: %w", id, err)
	}
	return requireRow(res, id)
}

// SoftDeleteSubscription marks a record as deleted without removing the row.
func (r *SQLiteRepository) SoftDeleteSubscription(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET deleted_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft delete subscription %d: %w", id, err)
	}
	return requireRow(res, id)
}

// ListSubscriptions returns all live subscriptions, newest first.
func (r *SQLiteRepository) ListSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE deleted_at IS NULL
		ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// GetDueSubscriptions returns active subscriptions whose renewal date is
// on or before asOf. Cancelled subscriptions never renew.
func (r *SQLiteRepository) GetDueSubscriptions(ctx context.Context, asOf core.Date) ([]core.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE deleted_at IS NULL AND cancelled = 0 AND renewal_date <= ?
		ORDER BY renewal_date ASC`, asOf.String())
	if err != nil {
		return nil, fmt.Errorf("get due subscriptions: %w", err)
	}
	defer rows.Close()

	return collectSubscriptions(rows)
}

// PendingSyncSubscription identifies a record waiting for export sync.
type PendingSyncSubscription struct {
	ID        int64
	Version   int64
	CreatedAt time.Time
}

// GetPendingSyncSubscriptions returns records queued for export, oldest first.
func (r *SQLiteRepository) GetPendingSyncSubscriptions(ctx context.Context, limit int) ([]PendingSyncSubscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version, created_at
		FROM subscriptions
		WHERE deleted_at IS NULL AND sync_status = ?
		ORDER BY id ASC
		LIMIT ?`, SyncPending, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync subscriptions: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncSubscription
	for rows.Next() {
		var p PendingSyncSubscription
		if err := rows.Scan(&p.ID, &p.Version, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending subscription: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSubscriptionSynced records that version of a subscription as exported.
// A concurrent edit bumps the version, keeping sync_status pending.
func (r *SQLiteRepository) MarkSubscriptionSynced(ctx context.Context, id, version int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET sync_status = ?
		WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		SyncDone, id, version)
	if err != nil {
		return fmt.Errorf("mark subscription %d synced: %w", id, err)
	}
	return nil
}

// GetSubscriptionVersion returns the current version of a record,
// used when publishing sync messages.
func (r *SQLiteRepository) GetSubscriptionVersion(ctx context.Context, id int64) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `
		SELECT version FROM subscriptions
		WHERE id = ? AND deleted_at IS NULL`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get subscription version %d: %w", id, err)
	}
	return version, nil
}

func collectSubscriptions(rows *sql.Rows) ([]core.Subscription, error) {
	var out []core.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("subscription %d: %w", id, ErrNotFound)
	}
	return nil
}
