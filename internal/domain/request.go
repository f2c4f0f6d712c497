package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRequest marks caller mistakes: bad parameters, unknown ids.
	ErrInvalidRequest = errors.New("invalid simulation request")

	// ErrInvalidRainfall is returned for rainfall specs that cannot be synthesized.
	ErrInvalidRainfall = fmt.Errorf("%w: rainfall", ErrInvalidRequest)

	// ErrRunNotFound is returned when run history has no record for an id.
	ErrRunNotFound = errors.New("run not found")
)

// NodeParams overrides hydraulic properties of a node. Nil fields keep the
// value from the base network.
type NodeParams struct {
	InvertElevation *float64 `json:"inv_elev,omitempty" yaml:"inv_elev,omitempty"`
	InitialDepth    *float64 `json:"init_depth,omitempty" yaml:"init_depth,omitempty"`
	PondingArea     *float64 `json:"ponding_area,omitempty" yaml:"ponding_area,omitempty"`
	SurchargeDepth  *float64 `json:"surcharge_depth,omitempty" yaml:"surcharge_depth,omitempty"`
}

// LinkParams overrides conduit properties. Nil fields keep the value from the
// base network.
type LinkParams struct {
	// InitFlow is the name existing clients send for the conduit's flow limit.
	// FlowLimit takes precedence when both are set.
	InitFlow           *float64 `json:"init_flow,omitempty" yaml:"init_flow,omitempty"`
	FlowLimit          *float64 `json:"flow_limit,omitempty" yaml:"flow_limit,omitempty"`
	UpstreamOffset     *float64 `json:"upstrm_offset_depth,omitempty" yaml:"upstrm_offset_depth,omitempty"`
	DownstreamOffset   *float64 `json:"downstrm_offset_depth,omitempty" yaml:"downstrm_offset_depth,omitempty"`
	AverageConduitLoss *float64 `json:"avg_conduit_loss,omitempty" yaml:"avg_conduit_loss,omitempty"`
}

// SimulationRequest is the body of a simulation run.
type SimulationRequest struct {
	Nodes    map[string]NodeParams `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Links    map[string]LinkParams `json:"links,omitempty" yaml:"links,omitempty"`
	Rainfall *RainfallSpec         `json:"rainfall,omitempty" yaml:"rainfall,omitempty"`
}

// Validate checks parameter ranges. Element ids are checked later against the network.
func (r SimulationRequest) Validate() error {
	for id, p := range r.Nodes {
		if id == "" {
			return fmt.Errorf("%w: empty node id", ErrInvalidRequest)
		}
		if negative(p.InitialDepth) || negative(p.PondingArea) || negative(p.SurchargeDepth) {
			return fmt.Errorf("%w: node %s: depths and areas must be non-negative", ErrInvalidRequest, id)
		}
	}
	for id, p := range r.Links {
		if id == "" {
			return fmt.Errorf("%w: empty link id", ErrInvalidRequest)
		}
		if negative(p.UpstreamOffset) || negative(p.DownstreamOffset) || negative(p.AverageConduitLoss) || negative(p.FlowLimit) || negative(p.InitFlow) {
			return fmt.Errorf("%w: link %s: offsets, losses and limits must be non-negative", ErrInvalidRequest, id)
		}
	}
	if r.Rainfall.IsZero() {
		return nil
	}
	_, err := r.Rainfall.Resolve()
	return err
}

func negative(v *float64) bool {
	return v != nil && *v < 0
}

// RunRecord is a completed simulation as kept in run history.
type RunRecord struct {
	ID           string            `json:"id"`
	CreatedAt    time.Time         `json:"created_at"`
	Duration     time.Duration     `json:"duration_ns"`
	Request      SimulationRequest `json:"request"`
	TotalNodes   int               `json:"total_nodes"`
	FloodedNodes int               `json:"flooded_nodes"`
	Summary      *FloodSummary     `json:"summary,omitempty"`
}

// NewRunRecord stamps a finished run with the package clock.
func NewRunRecord(id string, req SimulationRequest, summary FloodSummary, elapsed time.Duration) RunRecord {
	return RunRecord{
		ID:           id,
		CreatedAt:    clock.Now().UTC(),
		Duration:     elapsed,
		Request:      req,
		TotalNodes:   summary.Metadata.TotalNodes,
		FloodedNodes: summary.Metadata.FloodedNodes,
		Summary:      &summary,
	}
}
