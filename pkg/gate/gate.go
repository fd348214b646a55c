// Package gate implements the seven-layer anti-gaming eligibility policy
// for Aṣẹ minting.
//
// Every layer is an independent pure predicate over (principal state,
// attempt, clock). Evaluate computes all layers and returns the full
// per-layer trace alongside the aggregate admit/deny, so a failure is
// always diagnosable without re-running the gate. The gate itself never
// mutates state; the minting ledger applies debits atomically with the
// admission decision.
package gate

import (
	"fmt"
	"time"
)

// Layer identifies one of the seven anti-gaming layers.
type Layer string

const (
	LayerDailyCap  Layer = "daily_cap"
	LayerAseBurn   Layer = "ase_burn"
	LayerQuality   Layer = "quality_threshold"
	LayerQuorum    Layer = "witness_quorum"
	LayerSabbath   Layer = "sabbath"
	LayerTithe     Layer = "tithe"
	LayerOuroboros Layer = "ouroboros"
)

// Policy holds the gate's configured thresholds. All values are
// externally overridable; DefaultPolicy carries the canonical numbers.
type Policy struct {
	DailyCap         int          `json:"daily_cap" yaml:"daily_cap"`
	BurnCost         float64      `json:"ase_burn_cost" yaml:"ase_burn_cost"`
	QualityThreshold float64      `json:"quality_threshold" yaml:"quality_threshold"`
	QuorumRequired   int          `json:"quorum_required" yaml:"quorum_required"`
	QuorumSize       int          `json:"quorum_size" yaml:"quorum_size"`
	SabbathDay       time.Weekday `json:"sabbath_day" yaml:"sabbath_day"`
	TitheRate        float64      `json:"tithe_rate" yaml:"tithe_rate"`
	ReversalFloor    float64      `json:"reversal_floor" yaml:"reversal_floor"`
}

// DefaultPolicy returns the canonical anti-gaming configuration:
// 7 attempts/day, 7.0 Aṣẹ burn, quality ≥ 0.777, 7-of-12 quorum,
// Saturday blackout, 3.69% tithe, 0.5 reversal floor.
func DefaultPolicy() Policy {
	return Policy{
		DailyCap:         7,
		BurnCost:         7.0,
		QualityThreshold: 0.777,
		QuorumRequired:   7,
		QuorumSize:       12,
		SabbathDay:       time.Saturday,
		TitheRate:        0.0369,
		ReversalFloor:    0.5,
	}
}

// Validate checks policy sanity.
func (p Policy) Validate() error {
	if p.DailyCap < 1 {
		return fmt.Errorf("gate: daily cap must be >= 1, got %d", p.DailyCap)
	}
	if p.BurnCost < 0 {
		return fmt.Errorf("gate: burn cost must be >= 0, got %v", p.BurnCost)
	}
	if p.QualityThreshold < 0 || p.QualityThreshold > 1 {
		return fmt.Errorf("gate: quality threshold must be in [0,1], got %v", p.QualityThreshold)
	}
	if p.QuorumRequired < 1 || p.QuorumRequired > p.QuorumSize {
		return fmt.Errorf("gate: quorum %d of %d is not satisfiable", p.QuorumRequired, p.QuorumSize)
	}
	if p.ReversalFloor < 0 || p.ReversalFloor > 1 {
		return fmt.Errorf("gate: reversal floor must be in [0,1], got %v", p.ReversalFloor)
	}
	return nil
}

// Attempt is the gate's view of a single mint attempt. Quality and
// witness corroboration are externally supplied signals; the gate never
// generates or re-scores them.
type Attempt struct {
	Quality   float64
	Witnesses int
}

// PrincipalState is the snapshot of a principal's rolling usage the gate
// evaluates against. The caller must read it inside the same critical
// section that applies the admission outcome.
type PrincipalState struct {
	AdmittedToday  int
	BurnBalance    float64
	LastRevertedAt time.Time // zero value if never reverted
}

// LayerResult is the trace entry for one layer.
type LayerResult struct {
	Layer  Layer  `json:"layer"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason"`
}

// Verdict is the aggregate gate decision plus the full per-layer trace.
type Verdict struct {
	Layers   []LayerResult `json:"layers"`
	Admitted bool          `json:"admitted"`
}

// FirstFailure returns the first failing layer and its reason.
// ok is false when the verdict admitted the attempt.
func (v Verdict) FirstFailure() (layer Layer, reason string, ok bool) {
	for _, lr := range v.Layers {
		if !lr.Passed {
			return lr.Layer, lr.Reason, true
		}
	}
	return "", "", false
}

// Evaluate runs all seven layers against the attempt. Layers 1-5 decide
// admission; the tithe layer is informational (the fee is non-waivable,
// never a denial) and the ouroboros layer reports standing reversal state
// (enforcement is post-hoc, performed by the ledger).
func (p Policy) Evaluate(st PrincipalState, a Attempt, now time.Time) Verdict {
	layers := []LayerResult{
		p.dailyCap(st),
		p.aseBurn(st),
		p.quality(a),
		p.quorum(a),
		p.sabbath(now),
		p.tithe(),
		p.ouroboros(st),
	}

	admitted := true
	for _, lr := range layers[:5] {
		if !lr.Passed {
			admitted = false
		}
	}
	return Verdict{Layers: layers, Admitted: admitted}
}

func (p Policy) dailyCap(st PrincipalState) LayerResult {
	if st.AdmittedToday >= p.DailyCap {
		return LayerResult{
			Layer:  LayerDailyCap,
			Reason: fmt.Sprintf("daily cap reached: %d of %d admitted attempts today", st.AdmittedToday, p.DailyCap),
		}
	}
	return LayerResult{
		Layer:  LayerDailyCap,
		Passed: true,
		Reason: fmt.Sprintf("%d of %d admitted attempts today", st.AdmittedToday, p.DailyCap),
	}
}

func (p Policy) aseBurn(st PrincipalState) LayerResult {
	if st.BurnBalance < p.BurnCost {
		return LayerResult{
			Layer:  LayerAseBurn,
			Reason: fmt.Sprintf("burn balance %.4f below cost %.4f", st.BurnBalance, p.BurnCost),
		}
	}
	return LayerResult{
		Layer:  LayerAseBurn,
		Passed: true,
		Reason: fmt.Sprintf("burn balance %.4f covers cost %.4f", st.BurnBalance, p.BurnCost),
	}
}

func (p Policy) quality(a Attempt) LayerResult {
	if a.Quality < p.QualityThreshold {
		return LayerResult{
			Layer:  LayerQuality,
			Reason: fmt.Sprintf("quality %.4f below threshold %.4f", a.Quality, p.QualityThreshold),
		}
	}
	return LayerResult{
		Layer:  LayerQuality,
		Passed: true,
		Reason: fmt.Sprintf("quality %.4f meets threshold %.4f", a.Quality, p.QualityThreshold),
	}
}

func (p Policy) quorum(a Attempt) LayerResult {
	if a.Witnesses < p.QuorumRequired {
		return LayerResult{
			Layer:  LayerQuorum,
			Reason: fmt.Sprintf("%d witnesses below quorum %d of %d", a.Witnesses, p.QuorumRequired, p.QuorumSize),
		}
	}
	return LayerResult{
		Layer:  LayerQuorum,
		Passed: true,
		Reason: fmt.Sprintf("%d witnesses meet quorum %d of %d", a.Witnesses, p.QuorumRequired, p.QuorumSize),
	}
}

func (p Policy) sabbath(now time.Time) LayerResult {
	if now.UTC().Weekday() == p.SabbathDay {
		return LayerResult{
			Layer:  LayerSabbath,
			Reason: fmt.Sprintf("attempts blacked out on %s", p.SabbathDay),
		}
	}
	return LayerResult{
		Layer:  LayerSabbath,
		Passed: true,
		Reason: fmt.Sprintf("outside %s blackout", p.SabbathDay),
	}
}

func (p Policy) tithe() LayerResult {
	return LayerResult{
		Layer:  LayerTithe,
		Passed: true,
		Reason: fmt.Sprintf("non-waivable %.2f%% tithe applies", p.TitheRate*100),
	}
}

func (p Policy) ouroboros(st PrincipalState) LayerResult {
	reason := fmt.Sprintf("quality below %.2f reverts post-hoc", p.ReversalFloor)
	if !st.LastRevertedAt.IsZero() {
		reason = fmt.Sprintf("last reversal at %s; floor %.2f enforced post-hoc",
			st.LastRevertedAt.UTC().Format(time.RFC3339), p.ReversalFloor)
	}
	return LayerResult{Layer: LayerOuroboros, Passed: true, Reason: reason}
}

// F1 combines true/false positive and false negative counts into the
// quality score evaluated by the quality layer. Zero counts score zero.
func F1(tp, fp, fn int) float64 {
	denom := float64(2*tp + fp + fn)
	if denom == 0 {
		return 0
	}
	return float64(2*tp) / denom
}
