package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func intensities(steps []RainfallStep) []float64 {
	out := make([]float64, len(steps))
	for i, s := range steps {
		out[i] = s.IntensityMM
	}
	return out
}

func hours(steps []RainfallStep) []float64 {
	out := make([]float64, len(steps))
	for i, s := range steps {
		out[i] = s.Hours
	}
	return out
}

func TestGenerateRainfall_Shapes(t *testing.T) {
	tests := []struct {
		name      string
		spec      RainfallSpec
		wantHours []float64
		wantInt   []float64
	}{
		{
			name:      "uniform",
			spec:      RainfallSpec{TotalPrecipMM: ptr(60), DurationHr: ptr(1), IntervalMin: ptr(15), Pattern: PatternUniform},
			wantHours: []float64{0, 0.25, 0.5, 0.75, 1},
			wantInt:   []float64{48, 48, 48, 48, 48},
		},
		{
			name:      "triangular",
			spec:      RainfallSpec{TotalPrecipMM: ptr(100), DurationHr: ptr(1), IntervalMin: ptr(15), Pattern: PatternTriangular},
			wantHours: []float64{0, 0.25, 0.5, 0.75, 1},
			wantInt:   []float64{0, 160, 160, 80, 0},
		},
		{
			name:      "chicago",
			spec:      RainfallSpec{TotalPrecipMM: ptr(50), DurationHr: ptr(0.75), IntervalMin: ptr(5), Pattern: PatternChicago},
			wantHours: []float64{0, 0.08, 0.17, 0.25, 0.33, 0.42, 0.5, 0.58, 0.67, 0.75, 0.83},
			wantInt:   []float64{0, 36.36, 72.73, 109.09, 109.09, 90.91, 72.73, 54.55, 36.36, 18.18, 0},
		},
		{
			name:      "uniform past a partial interval",
			spec:      RainfallSpec{TotalPrecipMM: ptr(30), DurationHr: ptr(0.3), IntervalMin: ptr(5), Pattern: PatternUniform},
			wantHours: []float64{0, 0.08, 0.17, 0.25, 0.33},
			wantInt:   []float64{72, 72, 72, 72, 72},
		},
		{
			name:      "triangular past a partial interval",
			spec:      RainfallSpec{TotalPrecipMM: ptr(60), DurationHr: ptr(0.3), IntervalMin: ptr(5), Pattern: PatternTriangular},
			wantHours: []float64{0, 0.08, 0.17, 0.25, 0.33},
			wantInt:   []float64{0, 288, 288, 144, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := GenerateRainfall(&tt.spec)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.wantHours, hours(steps), 1e-9)
			assert.InDeltaSlice(t, tt.wantInt, intensities(steps), 1e-9)
		})
	}
}

func TestGenerateRainfall_DefaultsConserveDepth(t *testing.T) {
	steps, err := GenerateRainfall(nil)
	require.NoError(t, err)
	require.Len(t, steps, 13)

	var depth float64
	for _, s := range steps {
		depth += s.IntensityMM * defaultIntervalMin / 60
	}
	assert.InDelta(t, defaultTotalPrecipMM, depth, 0.1)
	assert.Zero(t, steps[0].IntensityMM)
	assert.Equal(t, 1.0, steps[len(steps)-1].Hours)
}

func TestGenerateRainfall_ShorterThanInterval(t *testing.T) {
	steps, err := GenerateRainfall(&RainfallSpec{TotalPrecipMM: ptr(10), DurationHr: ptr(0.05), IntervalMin: ptr(5)})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0.08}, hours(steps), 1e-9)
	assert.InDeltaSlice(t, []float64{0, 120}, intensities(steps), 1e-9)
}

func TestGenerateRainfall_SampleCount(t *testing.T) {
	tests := []struct {
		durationHr  float64
		intervalMin float64
		want        int
	}{
		{1, 5, 13},
		{1, 15, 5},
		{0.3, 5, 5},
		{0.5, 5, 8}, // (0.5+dt)/dt rounds up from 7.000000000000001
		{2, 5, 26},  // likewise from 25.000000000000004
		{0.5, 10, 4},
		{24, 5, 289},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%gh every %gmin", tt.durationHr, tt.intervalMin), func(t *testing.T) {
			steps, err := GenerateRainfall(&RainfallSpec{DurationHr: ptr(tt.durationHr), IntervalMin: ptr(tt.intervalMin)})
			require.NoError(t, err)
			assert.Len(t, steps, tt.want)
		})
	}
}

func TestGenerateRainfall_Invalid(t *testing.T) {
	tests := []struct {
		name string
		spec RainfallSpec
	}{
		{"unknown pattern", RainfallSpec{Pattern: "spiky"}},
		{"zero duration", RainfallSpec{DurationHr: ptr(0)}},
		{"negative interval", RainfallSpec{IntervalMin: ptr(-5)}},
		{"negative total", RainfallSpec{TotalPrecipMM: ptr(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateRainfall(&tt.spec)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRainfall)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestRainfallSpec_IsZero(t *testing.T) {
	var nilSpec *RainfallSpec
	assert.True(t, nilSpec.IsZero())
	assert.True(t, (&RainfallSpec{}).IsZero())
	assert.False(t, (&RainfallSpec{DurationHr: ptr(2)}).IsZero())
	assert.False(t, (&RainfallSpec{Pattern: PatternUniform}).IsZero())
}

func TestRainfallStep_Clock(t *testing.T) {
	tests := []struct {
		hours float64
		want  string
	}{
		{0, "00:00"},
		{0.08, "00:05"},
		{0.17, "00:10"},
		{1.5, "01:30"},
		{0.999, "01:00"},
		{12.25, "12:15"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, RainfallStep{Hours: tt.hours}.Clock())
		})
	}
}

func TestLinspace(t *testing.T) {
	assert.Nil(t, linspace(0, 1, 0))
	assert.Equal(t, []float64{0}, linspace(0, 1, 1))
	assert.Equal(t, []float64{1, 0.5, 0}, linspace(1, 0, 3))
}
