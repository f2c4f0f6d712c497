package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
	"github.com/couchcryptid/storm-data-flood-service/internal/observability"
	"github.com/couchcryptid/storm-data-flood-service/internal/swmm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	tracerName = "github.com/couchcryptid/storm-data-flood-service/internal/simulation"

	inputName  = "network.inp"
	reportName = "network.rpt"
	outputName = "network.out"
)

// ErrResultsUnreadable wraps failures to read the engine's report or output.
var ErrResultsUnreadable = errors.New("simulation results unreadable")

// Runner produces a flood summary for a request.
type Runner interface {
	Simulate(ctx context.Context, req domain.SimulationRequest) (domain.FloodSummary, error)
	CheckReadiness(ctx context.Context) error
}

// Options configures where a Simulator finds its network and writes its runs.
type Options struct {
	NetworkPath   string
	RainSeries    string
	WorkDir       string
	KeepArtifacts bool
}

// Simulator runs one engine pass per request in a private working directory.
type Simulator struct {
	engine     swmm.Engine
	classifier domain.Classifier
	opts       Options
	metrics    *observability.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewSimulator creates a Simulator. A nil classifier disables vulnerability labels.
func NewSimulator(engine swmm.Engine, classifier domain.Classifier, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Simulator {
	return &Simulator{
		engine:     engine,
		classifier: classifier,
		opts:       opts,
		metrics:    metrics,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
	}
}

// CheckReadiness reports whether the base network is readable and the engine
// binary can be found.
func (s *Simulator) CheckReadiness(_ context.Context) error {
	f, err := os.Open(s.opts.NetworkPath)
	if err != nil {
		return fmt.Errorf("base network: %w", err)
	}
	f.Close()

	if a, ok := s.engine.(interface{ Available() error }); ok {
		return a.Available()
	}
	return nil
}

// Simulate patches the base network with the request, runs the engine and
// summarises node flooding.
func (s *Simulator) Simulate(ctx context.Context, req domain.SimulationRequest) (summary domain.FloodSummary, err error) {
	ctx, span := s.tracer.Start(ctx, "simulation.simulate", trace.WithAttributes(
		attribute.Int("nodes.overridden", len(req.Nodes)),
		attribute.Int("links.overridden", len(req.Links)),
		attribute.Bool("rainfall.synthetic", !req.Rainfall.IsZero()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "simulation failed")
		}
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return domain.FloodSummary{}, err
	}

	inp, err := s.patchNetwork(ctx, req)
	if err != nil {
		return domain.FloodSummary{}, err
	}

	if err := os.MkdirAll(s.opts.WorkDir, 0o755); err != nil {
		return domain.FloodSummary{}, fmt.Errorf("create work dir: %w", err)
	}
	dir, err := os.MkdirTemp(s.opts.WorkDir, "run-")
	if err != nil {
		return domain.FloodSummary{}, fmt.Errorf("create run dir: %w", err)
	}
	defer s.cleanup(dir)

	job := swmm.Job{
		Input:  filepath.Join(dir, inputName),
		Report: filepath.Join(dir, reportName),
		Output: filepath.Join(dir, outputName),
	}
	if err := writeInput(job.Input, inp); err != nil {
		return domain.FloodSummary{}, err
	}

	if err := s.runEngine(ctx, job); err != nil {
		return domain.FloodSummary{}, err
	}

	rows, series, err := s.readResults(ctx, job)
	if err != nil {
		return domain.FloodSummary{}, err
	}

	reportFile, outputFile := reportName, outputName
	if s.opts.KeepArtifacts {
		reportFile, outputFile = job.Report, job.Output
	}
	summary = domain.BuildFloodSummary(rows, series, reportFile, outputFile)

	_, classifySpan := s.tracer.Start(ctx, "simulation.classify")
	summary = domain.ClassifyNodes(ctx, summary, s.classifier, s.logger)
	classifySpan.End()

	span.SetAttributes(
		attribute.Int("nodes.total", summary.Metadata.TotalNodes),
		attribute.Int("nodes.flooded", summary.Metadata.FloodedNodes),
	)
	return summary, nil
}

func (s *Simulator) patchNetwork(ctx context.Context, req domain.SimulationRequest) (*swmm.InputFile, error) {
	_, span := s.tracer.Start(ctx, "simulation.patch_network")
	defer span.End()

	f, err := os.Open(s.opts.NetworkPath)
	if err != nil {
		return nil, fmt.Errorf("open base network: %w", err)
	}
	defer f.Close()

	inp, err := swmm.ParseInput(f)
	if err != nil {
		return nil, err
	}

	if !req.Rainfall.IsZero() {
		storm, err := req.Rainfall.Resolve()
		if err != nil {
			return nil, err
		}
		if err := swmm.ApplyRainfall(inp, s.opts.RainSeries, storm, storm.Hyetograph()); err != nil {
			return nil, err
		}
		span.SetAttributes(attribute.String("rainfall.pattern", storm.Pattern))
	}
	if err := swmm.ApplyNodeOverrides(inp, req.Nodes); err != nil {
		return nil, err
	}
	if err := swmm.ApplyLinkOverrides(inp, req.Links); err != nil {
		return nil, err
	}
	return inp, nil
}

func writeInput(path string, inp *swmm.InputFile) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create input: %w", err)
	}
	if _, err := inp.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write input: %w", err)
	}
	return f.Close()
}

func (s *Simulator) runEngine(ctx context.Context, job swmm.Job) error {
	ctx, span := s.tracer.Start(ctx, "simulation.run_engine")
	defer span.End()

	start := time.Now()
	err := s.engine.Run(ctx, job)
	s.metrics.EngineDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// readResults parses the report and the binary output concurrently.
func (s *Simulator) readResults(ctx context.Context, job swmm.Job) (map[string]domain.FloodingRow, domain.FloodSeries, error) {
	_, span := s.tracer.Start(ctx, "simulation.read_results")
	defer span.End()

	var (
		rows   map[string]domain.FloodingRow
		series domain.FloodSeries
		g      errgroup.Group
	)
	g.Go(func() error {
		var err error
		rows, err = swmm.ParseFloodingReportFile(job.Report)
		return err
	})
	g.Go(func() error {
		var err error
		series, err = swmm.ReadFloodSeriesFile(job.Output)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, domain.FloodSeries{}, fmt.Errorf("%w: %w", ErrResultsUnreadable, err)
	}
	return rows, series, nil
}

func (s *Simulator) cleanup(dir string) {
	if s.opts.KeepArtifacts {
		s.logger.Debug("keeping run artifacts", "dir", dir)
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("failed to remove run dir", "dir", dir, "error", err)
	}
}
