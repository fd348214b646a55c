package mint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osovm/veilmint/pkg/gate"
	"github.com/osovm/veilmint/pkg/store"
	"github.com/osovm/veilmint/pkg/tithe"
)

// Forty goroutines race distinct work records for one principal on the
// same day. Exactly DailyCap may be admitted, regardless of interleaving.
func TestConcurrentAttemptsRespectDailyCap(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.CreditBurn("0xbino", 1000))

	const attempts = 40
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Attempt(ctx, work(fmt.Sprintf("job_%03d", i), 0.95), 9, friday)
		}(i)
	}
	wg.Wait()

	var admitted, capped int
	for _, err := range errs {
		if err == nil {
			admitted++
			continue
		}
		var denied *DeniedError
		require.ErrorAs(t, err, &denied)
		require.Equal(t, gate.LayerDailyCap, denied.Layer)
		capped++
	}
	assert.Equal(t, l.Policy().DailyCap, admitted)
	assert.Equal(t, attempts-l.Policy().DailyCap, capped)

	// Balance reflects exactly the admitted mints.
	balance, history := l.Balance("0xbino")
	assert.InDelta(t, float64(admitted)*34.912375, balance, 1e-9)
	assert.Len(t, history, attempts)
}

// Racing the same work ID from many goroutines must mint exactly once.
func TestConcurrentSameWorkIDMintsOnce(t *testing.T) {
	ctx := context.Background()
	l, log := newTestLedger(t)

	const racers = 16
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Attempt(ctx, work("job_shared", 0.95), 9, friday)
		}(i)
	}
	wg.Wait()

	var minted int
	for _, err := range errs {
		if err == nil {
			minted++
		} else {
			require.True(t, errors.Is(err, ErrDuplicateAttempt), "unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, minted)

	receipts, err := log.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, receipts, 1)

	balance, _ := l.Balance("0xbino")
	assert.InDelta(t, 34.912375, balance, 1e-12)
}

// Concurrent reverts of one receipt debit exactly once.
func TestConcurrentRevertsDebitOnce(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	event, err := l.Attempt(ctx, work("job_001", 0.95), 9, friday)
	require.NoError(t, err)
	before, _ := l.Balance("0xbino")

	const racers = 8
	var wg sync.WaitGroup
	outcomes := make([]RevertOutcome, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			outcomes[i], err = l.RevertIfBelowFloor(ctx, event.ReceiptID, 0.3, friday.Add(time.Hour))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	var applied int
	for _, o := range outcomes {
		if o.Status == RevertApplied {
			applied++
		} else {
			assert.Equal(t, RevertAlreadyDone, o.Status)
		}
	}
	assert.Equal(t, 1, applied)

	after, _ := l.Balance("0xbino")
	assert.InDelta(t, before-event.Impact.NetAse, after, 1e-12)
}

// Distinct principals proceed independently under contention.
func TestConcurrentDistinctPrincipals(t *testing.T) {
	ctx := context.Background()
	log := store.NewMemoryReceiptLog()
	l, err := New(log, gate.DefaultPolicy(), tithe.Fractions{})
	require.NoError(t, err)

	const principals = 12
	var wg sync.WaitGroup
	for i := 0; i < principals; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := work(fmt.Sprintf("job_%03d", i), 0.95)
			w.Principal = fmt.Sprintf("0xacct_%02d", i)
			_, err := l.Attempt(ctx, w, 9, friday)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < principals; i++ {
		balance, _ := l.Balance(fmt.Sprintf("0xacct_%02d", i))
		assert.InDelta(t, 34.912375, balance, 1e-12)
	}
}
