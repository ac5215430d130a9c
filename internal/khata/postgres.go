package khata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the ledger in PostgreSQL. Every Apply runs as a
// SERIALIZABLE read-modify-write transaction with the summary row locked
// FOR UPDATE, so the stock-floor check and the decrement can never interleave
// with a concurrent sell. Serialization failures (SQLSTATE 40001) are retried
// a bounded number of times.
type PostgresStore struct {
	Pool *pgxpool.Pool

	now func() time.Time
}

// NewPostgresStore creates a ledger store on top of an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{Pool: pool, now: time.Now}
}

// The summary is a fixed-key singleton row rather than "first document found":
// every reader and writer addresses id = 1.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS khata_summary (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		stock BIGINT NOT NULL DEFAULT 0 CHECK (stock >= 0)
	);`,

	`CREATE TABLE IF NOT EXISTS khata_rollups (
		date TEXT PRIMARY KEY,
		made BIGINT NOT NULL DEFAULT 0 CHECK (made >= 0),
		sold BIGINT NOT NULL DEFAULT 0 CHECK (sold >= 0)
	);`,

	`CREATE TABLE IF NOT EXISTS khata_transactions (
		seq BIGSERIAL PRIMARY KEY,
		id UUID UNIQUE NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('MAKE', 'SELL')),
		amount BIGINT NOT NULL CHECK (amount > 0),
		balance BIGINT NOT NULL CHECK (balance >= 0),
		created_at TEXT NOT NULL
	);`,
}

// Migrate creates the ledger tables if they do not exist.
func (ps *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := ps.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run ledger migration: %w", err)
		}
	}
	return nil
}

func (ps *PostgresStore) Dashboard(ctx context.Context, date string) (*Dashboard, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var d Dashboard

	// Lazy-create, then read. ON CONFLICT DO NOTHING keeps both idempotent.
	_, err := ps.Pool.Exec(queryCtx,
		`INSERT INTO khata_summary (id, stock) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure summary: %w", err)
	}
	err = ps.Pool.QueryRow(queryCtx,
		`SELECT stock FROM khata_summary WHERE id = 1`).Scan(&d.Summary.Stock)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}

	_, err = ps.Pool.Exec(queryCtx,
		`INSERT INTO khata_rollups (date) VALUES ($1) ON CONFLICT (date) DO NOTHING`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure rollup: %w", err)
	}
	err = ps.Pool.QueryRow(queryCtx,
		`SELECT date, made, sold FROM khata_rollups WHERE date = $1`, date).
		Scan(&d.Today.Date, &d.Today.Made, &d.Today.Sold)
	if err != nil {
		return nil, fmt.Errorf("failed to read rollup: %w", err)
	}

	rows, err := ps.Pool.Query(queryCtx,
		`SELECT id, type, amount, balance, created_at
		 FROM khata_transactions
		 ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.Type, &tx.Amount, &tx.Balance, &tx.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		d.Transactions = append(d.Transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	return &d, nil
}

func (ps *PostgresStore) Apply(ctx context.Context, date string, typ TxType, amount int64) (*Result, error) {
	const maxRetries = 3

	var res *Result
	for attempt := 0; attempt < maxRetries; attempt++ {
		var err error
		res, err = ps.applyOnce(ctx, date, typ, amount)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "40001" {
				// Serialization failure, retry
				if attempt == maxRetries-1 {
					return nil, fmt.Errorf("failed to apply %s after %d retries due to serialization failure: %w", typ, maxRetries, err)
				}
				time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
				continue
			}
			if errors.Is(err, ErrInsufficientStock) {
				return nil, ErrInsufficientStock
			}
			return nil, fmt.Errorf("failed to apply %s: %w", typ, err)
		}
		break
	}

	return res, nil
}

func (ps *PostgresStore) applyOnce(ctx context.Context, date string, typ TxType, amount int64) (*Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := ps.Pool.Acquire(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.BeginTx(queryCtx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(queryCtx)

	_, err = tx.Exec(queryCtx,
		`INSERT INTO khata_summary (id, stock) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure summary: %w", err)
	}

	var stock int64
	err = tx.QueryRow(queryCtx,
		`SELECT stock FROM khata_summary WHERE id = 1 FOR UPDATE`).Scan(&stock)
	if err != nil {
		return nil, fmt.Errorf("failed to lock summary: %w", err)
	}

	if typ == TxSell {
		if amount > stock {
			return nil, ErrInsufficientStock
		}
		stock -= amount
	} else {
		stock += amount
	}

	_, err = tx.Exec(queryCtx,
		`UPDATE khata_summary SET stock = $1 WHERE id = 1`, stock)
	if err != nil {
		return nil, fmt.Errorf("failed to update summary: %w", err)
	}

	// Uniqueness of the daily rollup is enforced here at write time; there is
	// no read-side duplicate repair path.
	madeDelta, soldDelta := amount, int64(0)
	if typ == TxSell {
		madeDelta, soldDelta = 0, amount
	}
	var rollup DailyRollup
	err = tx.QueryRow(queryCtx,
		`INSERT INTO khata_rollups (date, made, sold) VALUES ($1, $2, $3)
		 ON CONFLICT (date) DO UPDATE
		 SET made = khata_rollups.made + EXCLUDED.made,
		     sold = khata_rollups.sold + EXCLUDED.sold
		 RETURNING date, made, sold`,
		date, madeDelta, soldDelta).
		Scan(&rollup.Date, &rollup.Made, &rollup.Sold)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert rollup: %w", err)
	}

	record := Transaction{
		ID:        uuid.NewString(),
		Type:      typ,
		Amount:    amount,
		Balance:   stock,
		Timestamp: ps.now().UTC().Format(time.RFC3339),
	}
	_, err = tx.Exec(queryCtx,
		`INSERT INTO khata_transactions (id, type, amount, balance, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		record.ID, record.Type, record.Amount, record.Balance, record.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}

	if err := tx.Commit(queryCtx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &Result{
		Summary: StockSummary{Stock: stock},
		Today:   rollup,
		Tx:      record,
	}, nil
}

func (ps *PostgresStore) Reset(ctx context.Context) error {
	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := ps.Pool.Begin(queryCtx)
	if err != nil {
		return fmt.Errorf("failed to begin reset transaction: %w", err)
	}
	defer tx.Rollback(queryCtx)

	for _, stmt := range []string{
		`DELETE FROM khata_transactions`,
		`DELETE FROM khata_rollups`,
		`DELETE FROM khata_summary`,
	} {
		if _, err := tx.Exec(queryCtx, stmt); err != nil {
			return fmt.Errorf("failed to reset ledger: %w", err)
		}
	}

	if err := tx.Commit(queryCtx); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Close() {
	ps.Pool.Close()
}
