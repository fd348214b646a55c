package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/osovm/veilmint/pkg/receipt"
)

// PostgresReceiptLog is the shared-deployment implementation of ReceiptLog.
// The caller owns the *sql.DB (driver registration, pooling, lifecycle).
type PostgresReceiptLog struct {
	db *sql.DB
}

func NewPostgresReceiptLog(db *sql.DB) *PostgresReceiptLog {
	return &PostgresReceiptLog{db: db}
}

// Migrate creates the receipts table if missing.
func (l *PostgresReceiptLog) Migrate(ctx context.Context) error {
	query := `
    CREATE TABLE IF NOT EXISTS receipts (
        receipt_id TEXT PRIMARY KEY,
        work_id TEXT NOT NULL UNIQUE,
        principal TEXT NOT NULL,
        sector TEXT,
        gross_ase DOUBLE PRECISION NOT NULL,
        net_ase DOUBLE PRECISION NOT NULL,
        tithe DOUBLE PRECISION NOT NULL,
        quality DOUBLE PRECISION NOT NULL,
        digest TEXT NOT NULL,
        status TEXT NOT NULL,
        minted_at TIMESTAMPTZ NOT NULL,
        reverted_at TIMESTAMPTZ
    );`
	_, err := l.db.ExecContext(ctx, query)
	return err
}

func (l *PostgresReceiptLog) Append(ctx context.Context, r *receipt.Receipt) error {
	query := `
        INSERT INTO receipts (receipt_id, work_id, principal, sector, gross_ase, net_ase, tithe, quality, digest, status, minted_at, reverted_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `
	var revertedAt any
	if r.RevertedAt != nil {
		revertedAt = r.RevertedAt.UTC()
	}
	_, err := l.db.ExecContext(ctx, query,
		r.ID, r.WorkID, r.Principal, r.Sector,
		r.GrossAse, r.NetAse, r.Tithe, r.Quality,
		r.Digest, string(r.Status), r.MintedAt.UTC(), revertedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return ErrDuplicateReceipt
		}
		return fmt.Errorf("store: append receipt: %w", err)
	}
	return nil
}

func (l *PostgresReceiptLog) Get(ctx context.Context, receiptID string) (*receipt.Receipt, error) {
	return l.queryOne(ctx, `
        SELECT receipt_id, work_id, principal, sector, gross_ase, net_ase, tithe, quality, digest, status, minted_at, reverted_at
        FROM receipts WHERE receipt_id = $1`, receiptID)
}

func (l *PostgresReceiptLog) GetByWorkID(ctx context.Context, workID string) (*receipt.Receipt, error) {
	return l.queryOne(ctx, `
        SELECT receipt_id, work_id, principal, sector, gross_ase, net_ase, tithe, quality, digest, status, minted_at, reverted_at
        FROM receipts WHERE work_id = $1`, workID)
}

func (l *PostgresReceiptLog) SetStatus(ctx context.Context, receiptID string, status receipt.Status, revertedAt time.Time) error {
	var revertedArg any
	if status == receipt.StatusReverted {
		revertedArg = revertedAt.UTC()
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE receipts SET status = $1, reverted_at = $2 WHERE receipt_id = $3`,
		string(status), revertedArg, receiptID,
	)
	if err != nil {
		return fmt.Errorf("store: set status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: set status: %w", err)
	}
	if n == 0 {
		return ErrUnknownReceipt
	}
	return nil
}

func (l *PostgresReceiptLog) List(ctx context.Context, limit int) ([]*receipt.Receipt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx, `
        SELECT receipt_id, work_id, principal, sector, gross_ase, net_ase, tithe, quality, digest, status, minted_at, reverted_at
        FROM receipts ORDER BY minted_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var receipts []*receipt.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return receipts, nil
}

func (l *PostgresReceiptLog) queryOne(ctx context.Context, query string, arg any) (*receipt.Receipt, error) {
	r, err := scanReceipt(l.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownReceipt
	}
	return r, err
}
