// Package projector forecasts Aṣẹ supply and tithe accumulation over a
// time horizon.
//
// Projection replays the impact/tithe aggregate math offline; it never
// consults the eligibility gate or touches the live ledger. Simulated
// principal cohorts run in parallel and merge by summation, which is
// order-independent, so results are deterministic for a fixed seed.
package projector

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"github.com/osovm/veilmint/pkg/tithe"
)

// DailyWorkFn draws the gross work value one principal produces on one
// day. day is zero-based; rng is private to the calling cohort.
type DailyWorkFn func(day, principal int, rng *rand.Rand) float64

// UniformDailyWork mirrors the canonical forecasting assumption:
// every principal produces between lo and hi gross Aṣẹ per day.
func UniformDailyWork(lo, hi float64) DailyWorkFn {
	return func(_ int, _ int, rng *rand.Rand) float64 {
		return lo + rng.Float64()*(hi-lo)
	}
}

// SupplyCurve is the projection output: cumulative minted supply and
// cumulative collected tithe, one entry per simulated day.
type SupplyCurve struct {
	Principals int       `json:"principals"`
	Days       int       `json:"days"`
	Supply     []float64 `json:"supply_curve"`
	Tithe      []float64 `json:"tithe_curve"`
}

// FinalSupply returns the supply at the end of the horizon.
func (c SupplyCurve) FinalSupply() float64 {
	if len(c.Supply) == 0 {
		return 0
	}
	return c.Supply[len(c.Supply)-1]
}

// FinalTithe returns the collected tithe at the end of the horizon.
func (c SupplyCurve) FinalTithe() float64 {
	if len(c.Tithe) == 0 {
		return 0
	}
	return c.Tithe[len(c.Tithe)-1]
}

// Projector runs supply forecasts under a tithe configuration.
type Projector struct {
	splitter *tithe.Splitter
	seed     int64
	cohorts  int
}

// Option configures a Projector.
type Option func(*Projector)

// WithSeed fixes the random seed for reproducible projections.
func WithSeed(seed int64) Option {
	return func(p *Projector) { p.seed = seed }
}

// WithCohorts overrides the parallel cohort count (defaults to GOMAXPROCS).
func WithCohorts(n int) Option {
	return func(p *Projector) {
		if n > 0 {
			p.cohorts = n
		}
	}
}

// New creates a Projector over the given splitter.
func New(splitter *tithe.Splitter, opts ...Option) *Projector {
	p := &Projector{
		splitter: splitter,
		seed:     1,
		cohorts:  runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Project simulates principals × days of work and returns the supply and
// tithe curves. draw may be nil, in which case the canonical uniform
// 5–10 Aṣẹ/day assumption applies.
func (p *Projector) Project(ctx context.Context, principals, days int, draw DailyWorkFn) (SupplyCurve, error) {
	if principals <= 0 {
		return SupplyCurve{}, fmt.Errorf("projector: principals must be > 0, got %d", principals)
	}
	if days <= 0 {
		return SupplyCurve{}, fmt.Errorf("projector: days must be > 0, got %d", days)
	}
	if draw == nil {
		draw = UniformDailyWork(5.0, 10.0)
	}

	cohorts := p.cohorts
	if cohorts > principals {
		cohorts = principals
	}

	// Each cohort accumulates per-day gross totals for its slice of the
	// principal population, then the cohorts merge by summation.
	dailyGross := make([][]float64, cohorts)
	var wg sync.WaitGroup
	for c := 0; c < cohorts; c++ {
		wg.Add(1)
		go func(cohort int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(p.seed + int64(cohort)))
			totals := make([]float64, days)
			for principal := cohort; principal < principals; principal += cohorts {
				// Large populations take a while; bail between
				// principals instead of only noticing cancellation
				// after the whole cohort has run.
				if ctx.Err() != nil {
					return
				}
				for day := 0; day < days; day++ {
					totals[day] += draw(day, principal, rng)
				}
			}
			dailyGross[cohort] = totals
		}(c)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return SupplyCurve{}, err
	}

	curve := SupplyCurve{
		Principals: principals,
		Days:       days,
		Supply:     make([]float64, days),
		Tithe:      make([]float64, days),
	}
	var supply, collected float64
	for day := 0; day < days; day++ {
		var gross float64
		for c := 0; c < cohorts; c++ {
			gross += dailyGross[c][day]
		}
		alloc, net, err := p.splitter.Split(gross)
		if err != nil {
			return SupplyCurve{}, err
		}
		supply += net
		collected += alloc.Total
		curve.Supply[day] = supply
		curve.Tithe[day] = collected
	}
	return curve, nil
}
