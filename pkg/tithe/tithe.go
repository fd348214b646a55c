// Package tithe implements the 3.69% protocol fee and its quadrinity
// distribution across the four downstream accounts
// (shrine 50%, inheritance 25%, hospital 15%, market 10%).
//
// Downstream accounting assumes exact conservation, so the last share
// absorbs any floating-point residue: the four shares always sum to the
// tithe bit-exactly.
package tithe

import (
	"fmt"
	"math"
)

// DefaultRate is the non-waivable 3.69% protocol fee.
const DefaultRate = 0.0369

// Fractions is the quadrinity distribution of the collected tithe.
// The four fractions must sum to 1.0.
type Fractions struct {
	Shrine      float64 `json:"shrine" yaml:"shrine"`
	Inheritance float64 `json:"inheritance" yaml:"inheritance"`
	Hospital    float64 `json:"hospital" yaml:"hospital"`
	Market      float64 `json:"market" yaml:"market"`
}

// DefaultFractions returns the canonical 50/25/15/10 distribution.
func DefaultFractions() Fractions {
	return Fractions{Shrine: 0.50, Inheritance: 0.25, Hospital: 0.15, Market: 0.10}
}

// Validate checks that all fractions are non-negative and sum to 1.0
// (within one ULP of accumulated float error).
func (f Fractions) Validate() error {
	for name, v := range map[string]float64{
		"shrine": f.Shrine, "inheritance": f.Inheritance,
		"hospital": f.Hospital, "market": f.Market,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("tithe: fraction %q must be non-negative, got %v", name, v)
		}
	}
	sum := f.Shrine + f.Inheritance + f.Hospital + f.Market
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("tithe: fractions must sum to 1.0, got %v", sum)
	}
	return nil
}

// Allocation is the tithe decomposed into its four shares.
// Invariant: Shrine + Inheritance + Hospital + Market == Total, exactly.
type Allocation struct {
	Shrine      float64 `json:"shrine"`
	Inheritance float64 `json:"inheritance"`
	Hospital    float64 `json:"hospital"`
	Market      float64 `json:"market"`
	Total       float64 `json:"total_tithe"`
}

// Splitter computes tithe allocations under a fixed rate and distribution.
type Splitter struct {
	rate      float64
	fractions Fractions
}

// NewSplitter creates a Splitter. A non-positive rate falls back to
// DefaultRate; zero fractions fall back to the canonical distribution.
func NewSplitter(rate float64, fractions Fractions) (*Splitter, error) {
	if rate <= 0 {
		rate = DefaultRate
	}
	if fractions == (Fractions{}) {
		fractions = DefaultFractions()
	}
	if err := fractions.Validate(); err != nil {
		return nil, err
	}
	return &Splitter{rate: rate, fractions: fractions}, nil
}

// Split computes the tithe on a gross amount and its quadrinity
// allocation, returning the allocation and the citizen net.
//
// The market share is assigned as Total minus the other three shares, so
// repeated summation downstream never drifts from the collected tithe.
func (s *Splitter) Split(gross float64) (Allocation, float64, error) {
	if gross < 0 || math.IsNaN(gross) || math.IsInf(gross, 0) {
		return Allocation{}, 0, fmt.Errorf("tithe: gross must be a finite non-negative amount, got %v", gross)
	}

	total := gross * s.rate
	shrine := total * s.fractions.Shrine
	inheritance := total * s.fractions.Inheritance
	hospital := total * s.fractions.Hospital
	// Remainder correction: last share absorbs the rounding residue.
	// The parenthesized sum mirrors the left-to-right order downstream
	// accumulators use, so shares + market reproduces total bit-exactly.
	market := total - (shrine + inheritance + hospital)

	alloc := Allocation{
		Shrine:      shrine,
		Inheritance: inheritance,
		Hospital:    hospital,
		Market:      market,
		Total:       total,
	}
	return alloc, gross - total, nil
}

// Rate returns the configured tithe rate.
func (s *Splitter) Rate() float64 {
	return s.rate
}
