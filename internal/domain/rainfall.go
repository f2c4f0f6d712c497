package domain

import (
	"fmt"
	"math"
)

// Rainfall shape names accepted in RainfallSpec.Pattern.
const (
	PatternUniform    = "uniform"
	PatternTriangular = "triangular"
	PatternChicago    = "chicago"
)

const (
	defaultTotalPrecipMM = 100
	defaultDurationHr    = 1
	defaultIntervalMin   = 5

	// chicagoPeakFraction positions the peak of the chicago shape.
	chicagoPeakFraction = 0.4
)

// RainfallSpec describes a synthetic design storm.
type RainfallSpec struct {
	TotalPrecipMM *float64 `json:"total_precip,omitempty" yaml:"total_precip,omitempty"`
	DurationHr    *float64 `json:"duration_hr,omitempty" yaml:"duration_hr,omitempty"`
	IntervalMin   *float64 `json:"interval_min,omitempty" yaml:"interval_min,omitempty"`
	Pattern       string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// IsZero reports whether s requests no rainfall change.
func (s *RainfallSpec) IsZero() bool {
	return s == nil || (s.TotalPrecipMM == nil && s.DurationHr == nil && s.IntervalMin == nil && s.Pattern == "")
}

// Storm is a RainfallSpec with defaults applied and values validated.
type Storm struct {
	TotalPrecipMM float64 `json:"total_precip"`
	DurationHr    float64 `json:"duration_hr"`
	IntervalMin   float64 `json:"interval_min"`
	Pattern       string  `json:"pattern"`
}

// Resolve applies defaults and validates the spec.
func (s *RainfallSpec) Resolve() (Storm, error) {
	st := Storm{
		TotalPrecipMM: defaultTotalPrecipMM,
		DurationHr:    defaultDurationHr,
		IntervalMin:   defaultIntervalMin,
		Pattern:       PatternTriangular,
	}
	if s == nil {
		return st, nil
	}
	if s.TotalPrecipMM != nil {
		st.TotalPrecipMM = *s.TotalPrecipMM
	}
	if s.DurationHr != nil {
		st.DurationHr = *s.DurationHr
	}
	if s.IntervalMin != nil {
		st.IntervalMin = *s.IntervalMin
	}
	if s.Pattern != "" {
		st.Pattern = s.Pattern
	}

	switch {
	case invalidFloat(st.TotalPrecipMM) || st.TotalPrecipMM < 0:
		return Storm{}, fmt.Errorf("%w: total_precip must be >= 0, got %v", ErrInvalidRainfall, st.TotalPrecipMM)
	case invalidFloat(st.DurationHr) || st.DurationHr <= 0:
		return Storm{}, fmt.Errorf("%w: duration_hr must be > 0, got %v", ErrInvalidRainfall, st.DurationHr)
	case invalidFloat(st.IntervalMin) || st.IntervalMin <= 0:
		return Storm{}, fmt.Errorf("%w: interval_min must be > 0, got %v", ErrInvalidRainfall, st.IntervalMin)
	}
	switch st.Pattern {
	case PatternUniform, PatternTriangular, PatternChicago:
	default:
		return Storm{}, fmt.Errorf("%w: pattern must be 'uniform', 'triangular', or 'chicago', got %q", ErrInvalidRainfall, st.Pattern)
	}
	return st, nil
}

func invalidFloat(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// RainfallStep is one row of the hyetograph.
type RainfallStep struct {
	Hours       float64 `json:"hours"`        // offset from storm start
	IntensityMM float64 `json:"intensity_mm"` // mm/h over the interval
}

// Clock formats the offset as HH:MM, the engine's elapsed-time notation.
func (s RainfallStep) Clock() string {
	hours := int(s.Hours)
	minutes := int(math.Round((s.Hours - float64(hours)) * 60))
	if minutes == 60 {
		hours++
		minutes = 0
	}
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}

// GenerateRainfall builds the hyetograph for a spec.
func GenerateRainfall(spec *RainfallSpec) ([]RainfallStep, error) {
	st, err := spec.Resolve()
	if err != nil {
		return nil, err
	}
	return st.Hyetograph(), nil
}

// Hyetograph samples the storm every interval from t=0 while t < duration+interval.
// When the duration is not a whole number of intervals, or the float quotient
// lands just above one, the series carries one sample past the duration.
func (st Storm) Hyetograph() []RainfallStep {
	step := st.IntervalMin / 60
	n := int(math.Ceil((st.DurationHr + step) / step))

	var shape []float64
	switch st.Pattern {
	case PatternUniform:
		shape = make([]float64, n)
		for i := range shape {
			shape[i] = 1
		}
	case PatternChicago:
		peak := int(float64(n) * chicagoPeakFraction)
		shape = append(linspace(0, 1, peak), linspace(1, 0, n-peak)...)
	default:
		shape = append(linspace(0, 1, n/2), linspace(1, 0, n-n/2)...)
	}

	var sum float64
	for _, v := range shape {
		sum += v
	}

	steps := make([]RainfallStep, n)
	for i := range steps {
		depth := 0.0
		if sum > 0 {
			depth = shape[i] / sum * st.TotalPrecipMM
		}
		steps[i] = RainfallStep{
			Hours:       round2(float64(i) * step),
			IntensityMM: round2(depth * (60 / st.IntervalMin)),
		}
	}
	return steps
}

// linspace returns n evenly spaced values from start to stop inclusive.
func linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	delta := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*delta
	}
	out[n-1] = stop
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
