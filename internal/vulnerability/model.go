// Package vulnerability loads a pre-fitted clustering model and assigns flood
// vulnerability categories to node feature vectors.
package vulnerability

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// ErrInvalidModel is returned for model files that fail validation.
var ErrInvalidModel = errors.New("invalid vulnerability model")

// Scaler standardises features as (x - mean) / scale.
type Scaler struct {
	Mean  []float64 `yaml:"mean"`
	Scale []float64 `yaml:"scale"`
}

// Model is a k-means model exported with its scaler and the ranking of
// clusters into vulnerability categories.
type Model struct {
	Version    string         `yaml:"version,omitempty"`
	Features   []string       `yaml:"features"`
	Scaler     Scaler         `yaml:"scaler"`
	Centroids  [][]float64    `yaml:"centroids"`
	Categories map[int]string `yaml:"categories"`
}

// Load reads and validates a model file.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vulnerability model: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a model. Unknown keys are rejected.
func Parse(r io.Reader) (*Model, error) {
	var m Model
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing vulnerability model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks feature order, dimensions and that every cluster has a category.
func (m *Model) Validate() error {
	if !slices.Equal(m.Features, domain.FeatureNames) {
		return fmt.Errorf("%w: features must be %v, got %v", ErrInvalidModel, domain.FeatureNames, m.Features)
	}
	dim := len(domain.FeatureNames)
	if len(m.Scaler.Mean) != dim || len(m.Scaler.Scale) != dim {
		return fmt.Errorf("%w: scaler needs %d means and scales, got %d and %d",
			ErrInvalidModel, dim, len(m.Scaler.Mean), len(m.Scaler.Scale))
	}
	if len(m.Centroids) == 0 {
		return fmt.Errorf("%w: no centroids", ErrInvalidModel)
	}
	for i, c := range m.Centroids {
		if len(c) != dim {
			return fmt.Errorf("%w: centroid %d has %d values, want %d", ErrInvalidModel, i, len(c), dim)
		}
		if _, ok := m.Categories[i]; !ok {
			return fmt.Errorf("%w: cluster %d has no category", ErrInvalidModel, i)
		}
	}
	return nil
}

// Clusters is the number of centroids.
func (m *Model) Clusters() int { return len(m.Centroids) }

// Predict standardises the features and returns the nearest centroid. Ties go
// to the lowest cluster index.
func (m *Model) Predict(features []float64) (domain.Vulnerability, error) {
	if len(features) != len(m.Scaler.Mean) {
		return domain.Vulnerability{}, fmt.Errorf("predict: got %d features, want %d", len(features), len(m.Scaler.Mean))
	}

	x := make([]float64, len(features))
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.Vulnerability{}, fmt.Errorf("predict: feature %s is not finite", domain.FeatureNames[i])
		}
		scale := m.Scaler.Scale[i]
		if scale == 0 {
			scale = 1
		}
		x[i] = (v - m.Scaler.Mean[i]) / scale
	}

	best, bestDist := 0, math.Inf(1)
	for k, c := range m.Centroids {
		var d float64
		for i := range c {
			diff := x[i] - c[i]
			d += diff * diff
		}
		if d < bestDist {
			best, bestDist = k, d
		}
	}
	return domain.Vulnerability{Cluster: best, Category: m.Categories[best]}, nil
}

// Classify implements domain.Classifier.
func (m *Model) Classify(_ context.Context, features []float64) (domain.Vulnerability, error) {
	return m.Predict(features)
}
