package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osovm/veilmint/pkg/receipt"
)

func sampleReceipt(id, workID string) *receipt.Receipt {
	r := &receipt.Receipt{
		ID:        id,
		WorkID:    workID,
		Principal: "0xbino",
		GrossAse:  36.25,
		NetAse:    34.912375,
		Tithe:     1.337625,
		Quality:   0.95,
		Status:    receipt.StatusMinted,
		MintedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := r.Seal(); err != nil {
		panic(err)
	}
	return r
}

func TestMemoryLogAppendGet(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryReceiptLog()

	r := sampleReceipt("r-1", "job_001")
	require.NoError(t, log.Append(ctx, r))

	got, err := log.Get(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, r.Digest, got.Digest)

	byWork, err := log.GetByWorkID(ctx, "job_001")
	require.NoError(t, err)
	assert.Equal(t, "r-1", byWork.ID)
}

func TestMemoryLogDuplicate(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryReceiptLog()
	require.NoError(t, log.Append(ctx, sampleReceipt("r-1", "job_001")))
	err := log.Append(ctx, sampleReceipt("r-1", "job_002"))
	require.ErrorIs(t, err, ErrDuplicateReceipt)
}

func TestMemoryLogUnknown(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryReceiptLog()
	_, err := log.Get(ctx, "nope")
	require.ErrorIs(t, err, ErrUnknownReceipt)
	err = log.SetStatus(ctx, "nope", receipt.StatusReverted, time.Now())
	require.ErrorIs(t, err, ErrUnknownReceipt)
}

func TestMemoryLogSetStatusKeepsDigest(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryReceiptLog()
	r := sampleReceipt("r-1", "job_001")
	original := r.Digest
	require.NoError(t, log.Append(ctx, r))

	revertedAt := r.MintedAt.Add(time.Hour)
	require.NoError(t, log.SetStatus(ctx, "r-1", receipt.StatusReverted, revertedAt))

	got, err := log.Get(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, receipt.StatusReverted, got.Status)
	assert.Equal(t, original, got.Digest, "digest must be permanently retained")
	require.NotNil(t, got.RevertedAt)
	assert.True(t, got.RevertedAt.Equal(revertedAt))
}

func TestMemoryLogCopiesOnRead(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryReceiptLog()
	require.NoError(t, log.Append(ctx, sampleReceipt("r-1", "job_001")))

	got, err := log.Get(ctx, "r-1")
	require.NoError(t, err)
	got.Digest = "tampered"

	again, err := log.Get(ctx, "r-1")
	require.NoError(t, err)
	assert.NotEqual(t, "tampered", again.Digest)
}

func TestMemoryLogListNewestFirst(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryReceiptLog()
	require.NoError(t, log.Append(ctx, sampleReceipt("r-1", "job_001")))
	require.NoError(t, log.Append(ctx, sampleReceipt("r-2", "job_002")))
	require.NoError(t, log.Append(ctx, sampleReceipt("r-3", "job_003")))

	got, err := log.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r-3", got[0].ID)
	assert.Equal(t, "r-2", got[1].ID)
}
