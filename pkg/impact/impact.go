// Package impact converts measured work into gross and net Aṣẹ value.
//
// The calculation is pure: identical inputs always produce bit-identical
// outputs, with no clock, randomness, or I/O involved. Quality and
// completion signals are clamped rather than rejected so the eligibility
// gate stays composable on top of this package.
package impact

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned for malformed work records
	// (non-positive hours, empty identifiers). Invalid records are
	// rejected before any gate evaluation.
	ErrInvalidInput = errors.New("impact: invalid work record")
)

// WorkRecord is a single submission of measured work. Immutable once
// submitted; the minting ledger consumes each record ID exactly once.
type WorkRecord struct {
	ID         string  `json:"id"`
	Hours      float64 `json:"hours"`
	Quality    float64 `json:"quality"`    // [0,1], clamped
	Completion float64 `json:"completion"` // [0,1], clamped
	Sector     string  `json:"sector"`
	Principal  string  `json:"principal"`
}

// Impact is the derived valuation of a WorkRecord.
type Impact struct {
	WorkID            string  `json:"work_id"`
	BaseAse           float64 `json:"base_ase"`
	QualityMultiplier float64 `json:"quality_multiplier"`
	GrossAse          float64 `json:"gross_ase"`
	Tithe             float64 `json:"tithe"`
	NetAse            float64 `json:"net_ase"`
}

// Calculator computes work impact under a fixed rate configuration.
type Calculator struct {
	hourlyRate float64 // Aṣẹ per hour; canonical value 5.0/8.0
	titheRate  float64 // protocol fee fraction; canonical value 0.0369
}

// DefaultHourlyRate is 5 Aṣẹ per 8-hour day.
const DefaultHourlyRate = 5.0 / 8.0

// DefaultTitheRate is the non-waivable 3.69% protocol fee.
const DefaultTitheRate = 0.0369

// NewCalculator creates a Calculator. Non-positive rates fall back to the
// canonical defaults.
func NewCalculator(hourlyRate, titheRate float64) *Calculator {
	if hourlyRate <= 0 {
		hourlyRate = DefaultHourlyRate
	}
	if titheRate <= 0 {
		titheRate = DefaultTitheRate
	}
	return &Calculator{hourlyRate: hourlyRate, titheRate: titheRate}
}

// Validate checks a WorkRecord before any valuation or gate evaluation.
func Validate(w WorkRecord) error {
	if w.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidInput)
	}
	if w.Principal == "" {
		return fmt.Errorf("%w: empty principal", ErrInvalidInput)
	}
	if w.Hours <= 0 {
		return fmt.Errorf("%w: hours must be > 0, got %v", ErrInvalidInput, w.Hours)
	}
	return nil
}

// Calculate derives the Impact of a WorkRecord.
//
//	base  = hours * hourlyRate
//	mult  = 0.5 + quality        (linear map [0,1] → [0.5,1.5])
//	gross = base * mult * completion
//	tithe = gross * titheRate
//	net   = gross - tithe
func (c *Calculator) Calculate(w WorkRecord) (Impact, error) {
	if err := Validate(w); err != nil {
		return Impact{}, err
	}

	quality := clamp01(w.Quality)
	completion := clamp01(w.Completion)

	base := w.Hours * c.hourlyRate
	mult := 0.5 + quality
	gross := base * mult * completion
	tithe := gross * c.titheRate

	return Impact{
		WorkID:            w.ID,
		BaseAse:           base,
		QualityMultiplier: mult,
		GrossAse:          gross,
		Tithe:             tithe,
		NetAse:            gross - tithe,
	}, nil
}

// TitheRate returns the configured protocol fee fraction.
func (c *Calculator) TitheRate() float64 {
	return c.titheRate
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
