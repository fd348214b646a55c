package store

import (
	"context"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osovm/veilmint/pkg/receipt"
)

func TestPostgresLogAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO receipts").
		WithArgs("r-1", "job_001", "0xbino", "", 36.25, 34.912375, 1.337625, 0.95,
			sqlmock.AnyArg(), "minted", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := NewPostgresReceiptLog(db)
	require.NoError(t, log.Append(context.Background(), sampleReceipt("r-1", "job_001")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLogAppendDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO receipts").
		WillReturnError(&pq.Error{Code: "23505"})

	log := NewPostgresReceiptLog(db)
	err = log.Append(context.Background(), sampleReceipt("r-1", "job_001"))
	require.ErrorIs(t, err, ErrDuplicateReceipt)
}

func TestPostgresLogGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	minted := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"receipt_id", "work_id", "principal", "veil_opcode",
		"gross_ase", "net_ase", "tithe", "quality",
		"digest", "status", "minted_at", "reverted_at",
	}).AddRow("r-1", "job_001", "0xbino", "", 36.25, 34.912375, 1.337625, 0.95,
		"0x"+strings.Repeat("ab", 32), "minted", minted, nil)

	mock.ExpectQuery("SELECT (.+) FROM receipts WHERE receipt_id").
		WithArgs("r-1").
		WillReturnRows(rows)

	log := NewPostgresReceiptLog(db)
	got, err := log.Get(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, "job_001", got.WorkID)
	assert.Equal(t, receipt.StatusMinted, got.Status)
	assert.Nil(t, got.RevertedAt)
}

func TestPostgresLogGetUnknown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT (.+) FROM receipts WHERE receipt_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"receipt_id"}))

	log := NewPostgresReceiptLog(db)
	_, err = log.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrUnknownReceipt)
}

func TestPostgresLogSetStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE receipts SET status").
		WithArgs("reverted", sqlmock.AnyArg(), "r-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := NewPostgresReceiptLog(db)
	require.NoError(t, log.SetStatus(context.Background(), "r-1", receipt.StatusReverted, time.Now()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLogSetStatusUnknown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("UPDATE receipts SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	log := NewPostgresReceiptLog(db)
	err = log.SetStatus(context.Background(), "missing", receipt.StatusReverted, time.Now())
	require.ErrorIs(t, err, ErrUnknownReceipt)
}
