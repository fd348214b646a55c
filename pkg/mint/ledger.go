// Package mint composes the eligibility gate, the impact calculator, the
// tithe splitter, and the receipt log into the live minting ledger.
//
// The gate-and-mint path is serialized per principal: a per-principal
// mutex spans the read of rolling history and balances through the write
// of the outcome, so concurrent attempts can never both pass the daily
// cap or the burn check against a stale snapshot. Attempts from
// different principals proceed in parallel.
package mint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/osovm/veilmint/pkg/gate"
	"github.com/osovm/veilmint/pkg/impact"
	"github.com/osovm/veilmint/pkg/receipt"
	"github.com/osovm/veilmint/pkg/store"
	"github.com/osovm/veilmint/pkg/tithe"
)

var (
	// ErrDuplicateAttempt is returned when a WorkRecord identifier has
	// already minted (or is minting right now). No state changes.
	ErrDuplicateAttempt = errors.New("mint: duplicate work record id")
	// ErrLedgerAppend is returned when the receipt log fails to persist.
	// The whole attempt is rolled back; safe to retry.
	ErrLedgerAppend = errors.New("mint: ledger append failed")
)

// DeniedError is the normal, expected outcome of a gate layer failing.
// It carries the full per-layer trace for diagnosis.
type DeniedError struct {
	Layer   gate.Layer
	Reason  string
	Verdict gate.Verdict
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("mint: denied by %s: %s", e.Layer, e.Reason)
}

// MintEvent is the result of an admitted, fully persisted attempt.
type MintEvent struct {
	EventID    string           `json:"event_id"`
	WorkID     string           `json:"work_id"`
	Principal  string           `json:"principal"`
	Impact     impact.Impact    `json:"impact"`
	Allocation tithe.Allocation `json:"allocation"`
	ReceiptID  string           `json:"receipt_id"`
	Digest     string           `json:"digest"`
	Verdict    gate.Verdict     `json:"verdict"`
	MintedAt   time.Time        `json:"minted_at"`
}

// AttemptOutcome is one entry of a principal's rolling history.
type AttemptOutcome struct {
	WorkID      string     `json:"work_id"`
	At          time.Time  `json:"at"`
	Admitted    bool       `json:"admitted"`
	DeniedLayer gate.Layer `json:"denied_layer,omitempty"`
	NetAse      float64    `json:"net_ase,omitempty"`
	ReceiptID   string     `json:"receipt_id,omitempty"`
	Reverted    bool       `json:"reverted,omitempty"`
}

// RevertStatus classifies the outcome of a reversal check.
type RevertStatus string

const (
	RevertApplied       RevertStatus = "reverted"
	RevertAlreadyDone   RevertStatus = "already_reverted"
	RevertNotBelowFloor RevertStatus = "not_below_floor"
)

// RevertOutcome reports what a RevertIfBelowFloor call did. Reversal is
// an explicit state transition, not an error path.
type RevertOutcome struct {
	Status    RevertStatus `json:"status"`
	ReceiptID string       `json:"receipt_id"`
	Debited   float64      `json:"debited"`
	Quality   float64      `json:"quality"`
}

// MetricsRecorder receives minting telemetry. Implementations must be
// safe for concurrent use.
type MetricsRecorder interface {
	RecordMint(ctx context.Context, sector string, netAse float64, elapsed time.Duration)
	RecordDenial(ctx context.Context, layer string)
	RecordRevert(ctx context.Context)
}

type noopMetrics struct{}

func (noopMetrics) RecordMint(context.Context, string, float64, time.Duration) {}
func (noopMetrics) RecordDenial(context.Context, string)                       {}
func (noopMetrics) RecordRevert(context.Context)                               {}

// historyBound caps the rolling window kept per principal. Large enough
// to cover daily-cap accounting with a wide margin.
const historyBound = 256

type account struct {
	mu             sync.Mutex
	balance        float64
	burnBalance    float64
	window         []AttemptOutcome
	lastRevertedAt time.Time
}

// Ledger is the live minting ledger. Create with New; the receipt log is
// an injected collaborator, never process-global state.
type Ledger struct {
	policy   gate.Policy
	calc     *impact.Calculator
	splitter *tithe.Splitter
	log      store.ReceiptLog
	clock    func() time.Time
	logger   *slog.Logger
	metrics  MetricsRecorder

	burnGrant float64 // burn resource granted when a principal is first seen

	mu         sync.Mutex
	accounts   map[string]*account
	consumed   map[string]string // work ID → receipt ID, successful mints only
	pending    map[string]struct{}
	titheVault tithe.Allocation // running totals of distributed shares
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) { l.clock = clock }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithMetrics sets the telemetry recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(l *Ledger) { l.metrics = m }
}

// WithBurnGrant sets the burn resource granted to newly seen principals.
func WithBurnGrant(amount float64) Option {
	return func(l *Ledger) { l.burnGrant = amount }
}

// WithHourlyRate overrides the Aṣẹ-per-hour base rate.
func WithHourlyRate(rate float64) Option {
	return func(l *Ledger) { l.calc = impact.NewCalculator(rate, l.policy.TitheRate) }
}

// New creates a Ledger over the given receipt log and gate policy.
func New(log store.ReceiptLog, policy gate.Policy, fractions tithe.Fractions, opts ...Option) (*Ledger, error) {
	if log == nil {
		return nil, errors.New("mint: receipt log is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	splitter, err := tithe.NewSplitter(policy.TitheRate, fractions)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		policy:    policy,
		calc:      impact.NewCalculator(0, policy.TitheRate),
		splitter:  splitter,
		log:       log,
		clock:     time.Now,
		logger:    slog.Default().With("component", "mint"),
		metrics:   noopMetrics{},
		burnGrant: 10 * policy.BurnCost,
		accounts:  make(map[string]*account),
		consumed:  make(map[string]string),
		pending:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Attempt runs the full gate-and-mint path for one work record.
//
// On admission it atomically credits the citizen net, debits the burn
// cost, appends a sealed receipt, and records the attempt in the rolling
// window. A failed log append rolls the whole attempt back and returns
// ErrLedgerAppend. Denials return *DeniedError with the layer trace.
func (l *Ledger) Attempt(ctx context.Context, w impact.WorkRecord, witnesses int, now time.Time) (*MintEvent, error) {
	if err := impact.Validate(w); err != nil {
		return nil, err
	}
	w.Principal = norm.NFC.String(w.Principal)
	if now.IsZero() {
		now = l.clock()
	}
	started := l.clock()

	acct, release, err := l.reserve(w.ID, w.Principal)
	if err != nil {
		return nil, err
	}
	defer release()

	acct.mu.Lock()
	defer acct.mu.Unlock()

	st := gate.PrincipalState{
		AdmittedToday:  admittedOn(acct.window, now),
		BurnBalance:    acct.burnBalance,
		LastRevertedAt: acct.lastRevertedAt,
	}
	verdict := l.policy.Evaluate(st, gate.Attempt{Quality: w.Quality, Witnesses: witnesses}, now)
	if !verdict.Admitted {
		layer, reason, _ := verdict.FirstFailure()
		acct.record(AttemptOutcome{WorkID: w.ID, At: now, DeniedLayer: layer})
		l.metrics.RecordDenial(ctx, string(layer))
		l.logger.InfoContext(ctx, "attempt denied",
			"principal", w.Principal, "work_id", w.ID, "layer", layer, "reason", reason)
		return nil, &DeniedError{Layer: layer, Reason: reason, Verdict: verdict}
	}

	imp, err := l.calc.Calculate(w)
	if err != nil {
		return nil, err
	}
	alloc, net, err := l.splitter.Split(imp.GrossAse)
	if err != nil {
		return nil, err
	}

	rec := &receipt.Receipt{
		ID:        uuid.NewString(),
		WorkID:    w.ID,
		Principal: w.Principal,
		Sector:    w.Sector,
		GrossAse:  imp.GrossAse,
		NetAse:    net,
		Tithe:     alloc.Total,
		Quality:   w.Quality,
		Status:    receipt.StatusMinted,
		MintedAt:  now.UTC(),
	}
	if err := rec.Seal(); err != nil {
		return nil, err
	}
	if err := l.log.Append(ctx, rec); err != nil {
		// Nothing has mutated yet: the attempt rolls back whole.
		l.logger.ErrorContext(ctx, "receipt append failed",
			"principal", w.Principal, "work_id", w.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLedgerAppend, err)
	}

	acct.balance += net
	acct.burnBalance -= l.policy.BurnCost
	acct.record(AttemptOutcome{
		WorkID:    w.ID,
		At:        now,
		Admitted:  true,
		NetAse:    net,
		ReceiptID: rec.ID,
	})

	l.mu.Lock()
	l.consumed[w.ID] = rec.ID
	l.titheVault.Shrine += alloc.Shrine
	l.titheVault.Inheritance += alloc.Inheritance
	l.titheVault.Hospital += alloc.Hospital
	l.titheVault.Market += alloc.Market
	l.titheVault.Total += alloc.Total
	l.mu.Unlock()

	event := &MintEvent{
		EventID:    uuid.NewString(),
		WorkID:     w.ID,
		Principal:  w.Principal,
		Impact:     imp,
		Allocation: alloc,
		ReceiptID:  rec.ID,
		Digest:     rec.Digest,
		Verdict:    verdict,
		MintedAt:   rec.MintedAt,
	}
	l.metrics.RecordMint(ctx, w.Sector, net, l.clock().Sub(started))
	l.logger.InfoContext(ctx, "minted",
		"principal", w.Principal, "work_id", w.ID,
		"net_ase", net, "tithe", alloc.Total, "receipt_id", rec.ID)
	return event, nil
}

// RevertIfBelowFloor applies the ouroboros policy to a prior mint: if the
// recomputed quality is below the reversal floor, the original citizen
// net is debited back exactly once and the receipt's status flips to
// reverted. Idempotent; the tithe shares already distributed downstream
// are non-refundable.
func (l *Ledger) RevertIfBelowFloor(ctx context.Context, receiptID string, newQuality float64, now time.Time) (RevertOutcome, error) {
	rec, err := l.log.Get(ctx, receiptID)
	if err != nil {
		return RevertOutcome{}, err
	}
	if now.IsZero() {
		now = l.clock()
	}

	acct := l.account(rec.Principal)
	acct.mu.Lock()
	defer acct.mu.Unlock()

	// Re-read inside the critical section: a concurrent revert may have
	// flipped the status between the lookup and the lock.
	rec, err = l.log.Get(ctx, receiptID)
	if err != nil {
		return RevertOutcome{}, err
	}
	if rec.Status == receipt.StatusReverted {
		return RevertOutcome{Status: RevertAlreadyDone, ReceiptID: receiptID, Quality: newQuality}, nil
	}
	if newQuality >= l.policy.ReversalFloor {
		return RevertOutcome{Status: RevertNotBelowFloor, ReceiptID: receiptID, Quality: newQuality}, nil
	}

	if err := l.log.SetStatus(ctx, receiptID, receipt.StatusReverted, now.UTC()); err != nil {
		return RevertOutcome{}, fmt.Errorf("%w: %v", ErrLedgerAppend, err)
	}
	acct.balance -= rec.NetAse
	acct.lastRevertedAt = now
	for i := range acct.window {
		if acct.window[i].ReceiptID == receiptID {
			acct.window[i].Reverted = true
		}
	}

	l.metrics.RecordRevert(ctx)
	l.logger.InfoContext(ctx, "ouroboros revert",
		"principal", rec.Principal, "receipt_id", receiptID,
		"quality", newQuality, "debited", rec.NetAse)
	return RevertOutcome{Status: RevertApplied, ReceiptID: receiptID, Debited: rec.NetAse, Quality: newQuality}, nil
}

// Balance returns a principal's current balance and a copy of the
// rolling attempt history. Unknown principals read as empty, not errors.
func (l *Ledger) Balance(principal string) (float64, []AttemptOutcome) {
	principal = norm.NFC.String(principal)
	l.mu.Lock()
	acct, ok := l.accounts[principal]
	l.mu.Unlock()
	if !ok {
		return 0, nil
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	history := make([]AttemptOutcome, len(acct.window))
	copy(history, acct.window)
	return acct.balance, history
}

// BurnBalance returns the principal's secondary burn resource.
func (l *Ledger) BurnBalance(principal string) float64 {
	principal = norm.NFC.String(principal)
	l.mu.Lock()
	acct, ok := l.accounts[principal]
	l.mu.Unlock()
	if !ok {
		return 0
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	return acct.burnBalance
}

// CreditBurn funds a principal's burn resource.
func (l *Ledger) CreditBurn(principal string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("mint: burn credit must be non-negative, got %v", amount)
	}
	acct := l.account(norm.NFC.String(principal))
	acct.mu.Lock()
	defer acct.mu.Unlock()
	acct.burnBalance += amount
	return nil
}

// TitheVault returns the running totals of distributed tithe shares.
func (l *Ledger) TitheVault() tithe.Allocation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.titheVault
}

// Policy returns the active gate policy.
func (l *Ledger) Policy() gate.Policy {
	return l.policy
}

// reserve claims a work ID for the duration of an attempt. The
// reservation blocks concurrent reuse of the same ID; it is released on
// denial or failure and converted to permanent consumption on success.
func (l *Ledger) reserve(workID, principal string) (*account, func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.consumed[workID]; ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateAttempt, workID)
	}
	if _, ok := l.pending[workID]; ok {
		return nil, nil, fmt.Errorf("%w: %q (in flight)", ErrDuplicateAttempt, workID)
	}
	l.pending[workID] = struct{}{}
	acct := l.accountLocked(principal)
	release := func() {
		l.mu.Lock()
		delete(l.pending, workID)
		l.mu.Unlock()
	}
	return acct, release, nil
}

func (l *Ledger) account(principal string) *account {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accountLocked(principal)
}

func (l *Ledger) accountLocked(principal string) *account {
	acct, ok := l.accounts[principal]
	if !ok {
		acct = &account{burnBalance: l.burnGrant}
		l.accounts[principal] = acct
	}
	return acct
}

func (a *account) record(o AttemptOutcome) {
	a.window = append(a.window, o)
	if len(a.window) > historyBound {
		a.window = a.window[len(a.window)-historyBound:]
	}
}

// admittedOn counts admitted attempts on the same UTC day as now.
// Reverted mints were admitted and still count toward the cap.
func admittedOn(window []AttemptOutcome, now time.Time) int {
	y, m, d := now.UTC().Date()
	count := 0
	for _, o := range window {
		if !o.Admitted {
			continue
		}
		oy, om, od := o.At.UTC().Date()
		if oy == y && om == m && od == d {
			count++
		}
	}
	return count
}
