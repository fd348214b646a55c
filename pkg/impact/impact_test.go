package impact

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateCanonicalScenario(t *testing.T) {
	// 40 hours at quality 0.95, fully completed.
	c := NewCalculator(0, 0)
	got, err := c.Calculate(WorkRecord{
		ID:         "job_001",
		Hours:      40,
		Quality:    0.95,
		Completion: 1.0,
		Sector:     "software",
		Principal:  "0xbino",
	})
	require.NoError(t, err)

	assert.InDelta(t, 25.0, got.BaseAse, 1e-12)
	assert.InDelta(t, 1.45, got.QualityMultiplier, 1e-12)
	assert.InDelta(t, 36.25, got.GrossAse, 1e-12)
	assert.InDelta(t, 1.337625, got.Tithe, 1e-12)
	assert.InDelta(t, 34.912375, got.NetAse, 1e-12)
}

func TestCalculateConservation(t *testing.T) {
	c := NewCalculator(0, 0)
	records := []WorkRecord{
		{ID: "a", Hours: 1, Quality: 0, Completion: 1, Principal: "p"},
		{ID: "b", Hours: 8, Quality: 0.5, Completion: 0.5, Principal: "p"},
		{ID: "c", Hours: 100, Quality: 1, Completion: 1, Principal: "p"},
		{ID: "d", Hours: 0.25, Quality: 0.777, Completion: 0.9, Principal: "p"},
	}
	for _, w := range records {
		got, err := c.Calculate(w)
		require.NoError(t, err)
		assert.InDelta(t, got.GrossAse, got.NetAse+got.Tithe, 1e-9, "net + tithe must equal gross for %s", w.ID)
		assert.GreaterOrEqual(t, got.NetAse, 0.0)
		assert.GreaterOrEqual(t, got.Tithe, 0.0)
	}
}

func TestCalculateDeterministic(t *testing.T) {
	c := NewCalculator(0, 0)
	w := WorkRecord{ID: "x", Hours: 13.37, Quality: 0.42, Completion: 0.9, Principal: "p"}
	first, err := c.Calculate(w)
	require.NoError(t, err)
	second, err := c.Calculate(w)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCalculateClampsSignals(t *testing.T) {
	c := NewCalculator(0, 0)

	over, err := c.Calculate(WorkRecord{ID: "x", Hours: 8, Quality: 1.7, Completion: 2.0, Principal: "p"})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, over.QualityMultiplier, 1e-12)

	under, err := c.Calculate(WorkRecord{ID: "y", Hours: 8, Quality: -0.3, Completion: -1, Principal: "p"})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, under.QualityMultiplier, 1e-12)
	assert.Zero(t, under.GrossAse)
}

func TestCalculateRejectsInvalid(t *testing.T) {
	c := NewCalculator(0, 0)
	cases := []WorkRecord{
		{ID: "", Hours: 8, Principal: "p"},
		{ID: "x", Hours: 0, Principal: "p"},
		{ID: "x", Hours: -4, Principal: "p"},
		{ID: "x", Hours: 8, Principal: ""},
	}
	for _, w := range cases {
		_, err := c.Calculate(w)
		require.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestCalculateNoNaN(t *testing.T) {
	c := NewCalculator(0, 0)
	got, err := c.Calculate(WorkRecord{ID: "x", Hours: 1e-9, Quality: 1, Completion: 1, Principal: "p"})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(got.NetAse))
}
