// Package store persists the append-only receipt log behind the minting
// ledger.
//
// The log never deletes: a reversal mutates the status flag only, and the
// original content digest is permanently retained. Three backends are
// provided — in-memory for tests and single-process use, SQLite for
// embedded durability, Postgres for shared deployments.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/osovm/veilmint/pkg/receipt"
)

var (
	// ErrUnknownReceipt is returned when a receipt ID is not in the log.
	ErrUnknownReceipt = errors.New("store: unknown receipt")
	// ErrDuplicateReceipt is returned when appending an ID already present.
	ErrDuplicateReceipt = errors.New("store: duplicate receipt id")
)

// ReceiptLog is the append-only persistence contract the minting ledger
// depends on. Append must be atomic: a failed append leaves the log
// unchanged so the whole attempt can be rolled back and retried.
type ReceiptLog interface {
	Append(ctx context.Context, r *receipt.Receipt) error
	Get(ctx context.Context, receiptID string) (*receipt.Receipt, error)
	GetByWorkID(ctx context.Context, workID string) (*receipt.Receipt, error)
	// SetStatus flips the status flag of an existing receipt. The stored
	// digest is never touched.
	SetStatus(ctx context.Context, receiptID string, status receipt.Status, revertedAt time.Time) error
	List(ctx context.Context, limit int) ([]*receipt.Receipt, error)
}

// MemoryReceiptLog implements ReceiptLog in memory. Thread-safe.
type MemoryReceiptLog struct {
	mu     sync.RWMutex
	byID   map[string]*receipt.Receipt
	byWork map[string]string // work ID → receipt ID
	order  []string
}

// NewMemoryReceiptLog creates an empty in-memory log.
func NewMemoryReceiptLog() *MemoryReceiptLog {
	return &MemoryReceiptLog{
		byID:   make(map[string]*receipt.Receipt),
		byWork: make(map[string]string),
	}
}

func (l *MemoryReceiptLog) Append(ctx context.Context, r *receipt.Receipt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.byID[r.ID]; exists {
		return ErrDuplicateReceipt
	}
	val := *r
	l.byID[r.ID] = &val
	l.byWork[r.WorkID] = r.ID
	l.order = append(l.order, r.ID)
	return nil
}

func (l *MemoryReceiptLog) Get(ctx context.Context, receiptID string) (*receipt.Receipt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.byID[receiptID]
	if !ok {
		return nil, ErrUnknownReceipt
	}
	// Copy to keep callers from mutating the stored record.
	val := *r
	return &val, nil
}

func (l *MemoryReceiptLog) GetByWorkID(ctx context.Context, workID string) (*receipt.Receipt, error) {
	l.mu.RLock()
	id, ok := l.byWork[workID]
	l.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownReceipt
	}
	return l.Get(ctx, id)
}

func (l *MemoryReceiptLog) SetStatus(ctx context.Context, receiptID string, status receipt.Status, revertedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.byID[receiptID]
	if !ok {
		return ErrUnknownReceipt
	}
	r.Status = status
	if status == receipt.StatusReverted {
		at := revertedAt
		r.RevertedAt = &at
	}
	return nil
}

func (l *MemoryReceiptLog) List(ctx context.Context, limit int) ([]*receipt.Receipt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if limit <= 0 || limit > len(l.order) {
		limit = len(l.order)
	}
	out := make([]*receipt.Receipt, 0, limit)
	// Most recent first.
	for i := len(l.order) - 1; i >= 0 && len(out) < limit; i-- {
		val := *l.byID[l.order[i]]
		out = append(out, &val)
	}
	return out, nil
}
