package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/osovm/veilmint/pkg/receipt"

	_ "modernc.org/sqlite"
)

// SQLiteReceiptLog is a durable embedded implementation of ReceiptLog.
type SQLiteReceiptLog struct {
	db *sql.DB
}

// NewSQLiteReceiptLog wraps an opened sqlite database and runs migration.
func NewSQLiteReceiptLog(db *sql.DB) (*SQLiteReceiptLog, error) {
	l := &SQLiteReceiptLog{db: db}
	if err := l.migrate(); err != nil {
		return nil, err
	}
	return l, nil
}

// OpenSQLiteReceiptLog opens (or creates) the database at path.
func OpenSQLiteReceiptLog(path string) (*SQLiteReceiptLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %q: %w", path, err)
	}
	return NewSQLiteReceiptLog(db)
}

func (l *SQLiteReceiptLog) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS receipts (
        receipt_id TEXT PRIMARY KEY,
        work_id TEXT NOT NULL UNIQUE,
        principal TEXT NOT NULL,
        sector TEXT,
        gross_ase REAL NOT NULL,
        net_ase REAL NOT NULL,
        tithe REAL NOT NULL,
        quality REAL NOT NULL,
        digest TEXT NOT NULL,
        status TEXT NOT NULL,
        minted_at DATETIME NOT NULL,
        reverted_at DATETIME
    );`
	_, err := l.db.ExecContext(context.Background(), query)
	return err
}

func (l *SQLiteReceiptLog) Append(ctx context.Context, r *receipt.Receipt) error {
	query := `
        INSERT INTO receipts (receipt_id, work_id, principal, sector, gross_ase, net_ase, tithe, quality, digest, status, minted_at, reverted_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrDuplicateReceipt
		}
		return fmt.Errorf("store: append receipt: %w", err)
	}
	return nil
}

func (l *SQLiteReceiptLog) Get(ctx context.Context, receiptID string) (*receipt.Receipt, error) {
	return l.queryOne(ctx, `
        SELECT receipt_id, work_id, principal, sector, gross_ase, net_ase, tithe, quality, digest, status, minted_at, reverted_at
        FROM receipts WHERE receipt_id = ?`, receiptID)
}

func (l *SQLiteReceiptLog) GetByWorkID(ctx context.Context, workID string) (*receipt.Receipt, error) {
	return l.queryOne(ctx, `
        SELECT receipt_id, work_id, principal, sector, gross_ase, net_ase, tithe, quality, digest, status, minted_at, reverted_at
        FROM receipts WHERE work_id = ?`, workID)
}

func (l *SQLiteReceiptLog) SetStatus(ctx context.Context, receiptID string, status receipt.Status, revertedAt time.Time) error {
	var revertedArg any
	if status == receipt.StatusReverted {
		revertedArg = revertedAt.UTC()
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE receipts SET status = ?, reverted_at = ? WHERE receipt_id = ?`,
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

func (l *SQLiteReceiptLog) List(ctx context.Context, limit int) ([]*receipt.Receipt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx, `
        SELECT receipt_id, work_id, principal, sector, gross_ase, net_ase, tithe, quality, digest, status, minted_at, reverted_at
        FROM receipts ORDER BY minted_at DESC LIMIT ?`, limit)
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

func (l *SQLiteReceiptLog) Close() error {
	return l.db.Close()
}

func (l *SQLiteReceiptLog) queryOne(ctx context.Context, query string, arg any) (*receipt.Receipt, error) {
	r, err := scanReceipt(l.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownReceipt
	}
	return r, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*receipt.Receipt, error) {
	var r receipt.Receipt
	var status string
	var revertedAt sql.NullTime
	err := row.Scan(
		&r.ID, &r.WorkID, &r.Principal, &r.Sector,
		&r.GrossAse, &r.NetAse, &r.Tithe, &r.Quality,
		&r.Digest, &status, &r.MintedAt, &revertedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = receipt.Status(status)
	if revertedAt.Valid {
		at := revertedAt.Time
		r.RevertedAt = &at
	}
	return &r, nil
}
