// Package history keeps a Postgres record of bulk-booking submissions.
package history

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/JonMunkholm/bulkbook/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a submission does not exist.
var ErrNotFound = errors.New("submission not found")

// DefaultListLimit and MaxListLimit bound List page sizes.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

const schema = `
CREATE TABLE IF NOT EXISTS bulk_bookings (
	id               UUID PRIMARY KEY,
	session_id       UUID,
	event_id         TEXT NOT NULL,
	status           TEXT NOT NULL,
	attendees        INTEGER NOT NULL,
	ticket_count     INTEGER,
	unique_attendees INTEGER,
	http_status      INTEGER,
	error            TEXT,
	ip_address       INET,
	user_agent       TEXT,
	duration_ms      BIGINT NOT NULL DEFAULT 0,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS bulk_bookings_event_created_idx
	ON bulk_bookings (event_id, created_at DESC);
`

// db is the subset of *pgxpool.Pool the store uses.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration // default 30m
	MaxConnIdleTime time.Duration // default 5m
}

// NewPool connects to Postgres and verifies the connection.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	poolCfg.MaxConnLifetime = 30 * time.Minute
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Store reads and writes submission records.
type Store struct {
	db db
}

// NewStore wraps a connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

// Migrate creates the history table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate bulk_bookings: %w", err)
	}
	return nil
}

// RecordSubmission implements core.OutcomeRecorder.
func (s *Store) RecordSubmission(ctx context.Context, rec core.SubmissionRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO bulk_bookings
		   (id, session_id, event_id, status, attendees, ticket_count, unique_attendees,
		    http_status, error, ip_address, user_agent, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		toPgUUID(rec.ID),
		toPgUUID(rec.SessionID),
		rec.EventID,
		string(rec.Status),
		rec.Attendees,
		toPgInt4(rec.TicketCount),
		toPgInt4(rec.UniqueAttendees),
		toPgInt4(rec.HTTPStatus),
		toPgText(rec.Error),
		toClientAddr(rec.IPAddress),
		toPgText(rec.UserAgent),
		rec.Duration.Milliseconds(),
		createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// ListOptions filters List.
type ListOptions struct {
	EventID string
	Status  core.SubmissionStatus
	Limit   int
	Offset  int
}

const selectColumns = `SELECT id, session_id, event_id, status, attendees, ticket_count, unique_attendees,
	http_status, error, ip_address, user_agent, duration_ms, created_at FROM bulk_bookings`

// List returns submissions newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]core.SubmissionRecord, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	var wb whereBuilder
	wb.add("event_id", opts.EventID)
	wb.add("status", string(opts.Status))
	where, args := wb.build()

	query := fmt.Sprintf("%s%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		selectColumns, where, len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	records := []core.SubmissionRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns one submission or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (core.SubmissionRecord, error) {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return core.SubmissionRecord{}, ErrNotFound
	}

	rec, err := scanRecord(s.db.QueryRow(ctx, selectColumns+" WHERE id = $1", pgID))
	if errors.Is(err, pgx.ErrNoRows) {
		return core.SubmissionRecord{}, ErrNotFound
	}
	return rec, err
}

func scanRecord(row pgx.Row) (core.SubmissionRecord, error) {
	var rec core.SubmissionRecord
	var id, sessionID pgtype.UUID
	var status string
	var ticketCount, unique, httpStatus pgtype.Int4
	var errText, userAgent pgtype.Text
	var ip *netip.Addr
	var durationMS int64

	err := row.Scan(&id, &sessionID, &rec.EventID, &status, &rec.Attendees,
		&ticketCount, &unique, &httpStatus, &errText, &ip, &userAgent, &durationMS, &rec.CreatedAt)
	if err != nil {
		return core.SubmissionRecord{}, fmt.Errorf("scan submission: %w", err)
	}

	rec.ID = pgUUIDToString(id)
	rec.SessionID = pgUUIDToString(sessionID)
	rec.Status = core.SubmissionStatus(status)
	rec.TicketCount = int(ticketCount.Int32)
	rec.UniqueAttendees = int(unique.Int32)
	rec.HTTPStatus = int(httpStatus.Int32)
	rec.Error = errText.String
	rec.UserAgent = userAgent.String
	if ip != nil {
		rec.IPAddress = ip.String()
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return rec, nil
}
