package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgxpool.Pool the Postgres store uses
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id                    TEXT PRIMARY KEY,
	exchange_id           TEXT NOT NULL,
	session_id            TEXT NOT NULL DEFAULT '',
	direction             TEXT NOT NULL,
	mti                   TEXT NOT NULL,
	processing_code       TEXT NOT NULL DEFAULT '',
	amount                TEXT NOT NULL DEFAULT '',
	transmission_datetime TEXT NOT NULL DEFAULT '',
	stan                  TEXT NOT NULL DEFAULT '',
	rrn                   TEXT NOT NULL DEFAULT '',
	response_code         TEXT NOT NULL DEFAULT '',
	terminal_id           TEXT NOT NULL DEFAULT '',
	merchant_id           TEXT NOT NULL DEFAULT '',
	raw_message           TEXT NOT NULL,
	remote_addr           TEXT NOT NULL DEFAULT '',
	local_addr            TEXT NOT NULL DEFAULT '',
	timestamp             TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS transactions_timestamp_idx ON transactions (timestamp DESC);
CREATE TABLE IF NOT EXISTS system_status (
	id                     INTEGER PRIMARY KEY,
	status                 TEXT NOT NULL,
	start_time             TIMESTAMPTZ NOT NULL,
	transactions_processed BIGINT NOT NULL DEFAULT 0,
	last_updated           TIMESTAMPTZ NOT NULL
);`

const recordColumns = `id, exchange_id, session_id, direction, mti, processing_code, amount,
	transmission_datetime, stan, rrn, response_code, terminal_id, merchant_id, raw_message,
	remote_addr, local_addr, timestamp`

// PostgresStore persists records in the transactions table and maintains
// the single system_status row.
type PostgresStore struct {
	db    DB
	close func()
}

// OpenPostgresStore connects with a pgx pool and prepares the schema
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	s, err := NewPostgresStore(ctx, pool, time.Now())
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.close = pool.Close
	return s, nil
}

// NewPostgresStore prepares the schema on db and marks the switch running
func NewPostgresStore(ctx context.Context, db DB, startTime time.Time) (*PostgresStore, error) {
	if _, err := db.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create audit schema: %w", err)
	}
	_, err := db.Exec(ctx, `
		INSERT INTO system_status (id, status, start_time, transactions_processed, last_updated)
		VALUES (1, 'RUNNING', $1, 0, $1)
		ON CONFLICT (id) DO UPDATE SET status = 'RUNNING', start_time = $1, last_updated = $1`,
		startTime)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize system status: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

// Write inserts rec; received requests also advance the processed counter
func (s *PostgresStore) Write(ctx context.Context, rec Record) error {
	_, err := s.db.Exec(ctx, `INSERT INTO transactions (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		rec.ID, rec.ExchangeID, rec.SessionID, string(rec.Direction), rec.MTI, rec.ProcessingCode,
		rec.Amount, rec.TransmissionDateTime, rec.STAN, rec.RRN, rec.ResponseCode, rec.TerminalID,
		rec.MerchantID, rec.RawMessage, rec.RemoteAddr, rec.LocalAddr, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	if rec.Direction != Received {
		return nil
	}
	_, err = s.db.Exec(ctx, `
		UPDATE system_status
		SET transactions_processed = transactions_processed + 1, last_updated = $1
		WHERE id = 1`, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("update system status: %w", err)
	}
	return nil
}

// Close marks the switch stopped and releases the pool
func (s *PostgresStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.db.Exec(ctx, `UPDATE system_status SET status = 'STOPPED', last_updated = $1 WHERE id = 1`, time.Now())
	if s.close != nil {
		s.close()
	}
	return err
}

// Status implements Querier
func (s *PostgresStore) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.db.QueryRow(ctx, `
		SELECT status, start_time, transactions_processed, last_updated
		FROM system_status WHERE id = 1`).
		Scan(&st.Status, &st.StartTime, &st.TransactionsProcessed, &st.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return Status{Status: "UNKNOWN"}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("query system status: %w", err)
	}
	return st, nil
}

// Recent implements Querier
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.Query(ctx, `SELECT `+recordColumns+`
		FROM transactions ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var rec Record
		var dir string
		if err := rows.Scan(&rec.ID, &rec.ExchangeID, &rec.SessionID, &dir, &rec.MTI,
			&rec.ProcessingCode, &rec.Amount, &rec.TransmissionDateTime, &rec.STAN, &rec.RRN,
			&rec.ResponseCode, &rec.TerminalID, &rec.MerchantID, &rec.RawMessage,
			&rec.RemoteAddr, &rec.LocalAddr, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		rec.Direction = Direction(dir)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// CountsByHour implements Querier
func (s *PostgresStore) CountsByHour(ctx context.Context, since time.Time) ([]HourlyCount, error) {
	rows, err := s.db.Query(ctx, `
		SELECT date_trunc('hour', timestamp) AS hour, COUNT(*)
		FROM transactions
		WHERE timestamp >= $1 AND direction = 'RECEIVED'
		GROUP BY hour ORDER BY hour`, since)
	if err != nil {
		return nil, fmt.Errorf("query hourly counts: %w", err)
	}
	defer rows.Close()

	out := []HourlyCount{}
	for rows.Next() {
		var hc HourlyCount
		if err := rows.Scan(&hc.Hour, &hc.Count); err != nil {
			return nil, fmt.Errorf("scan hourly count: %w", err)
		}
		out = append(out, hc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hourly counts: %w", err)
	}
	return out, nil
}
