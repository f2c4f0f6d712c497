package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/couchcryptid/storm-data-flood-service/internal/config"
	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
	"github.com/couchcryptid/storm-data-flood-service/internal/observability"
	"github.com/couchcryptid/storm-data-flood-service/internal/simulation"
	"github.com/couchcryptid/storm-data-flood-service/internal/swmm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSimulateCmd(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	var (
		scenarioPath string
		networkPath  string
		binary       string
		modelPath    string
		keep         bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one scenario through the engine and print the flood summary",
		Long: `Run one scenario of node overrides, link overrides and rainfall against the
base network. Settings not given as flags come from the service environment
(NETWORK_PATH, SWMM_BINARY, ENGINE_TIMEOUT, WORK_DIR, RAIN_SERIES, MODEL_PATH).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if networkPath != "" {
				cfg.NetworkPath = networkPath
			}
			if binary != "" {
				cfg.SWMMBinary = binary
			}
			if modelPath != "" {
				cfg.ModelPath = modelPath
			}

			req, err := loadScenario(scenarioPath)
			if err != nil {
				return err
			}
			classifier, err := loadClassifier(cfg.ModelPath)
			if err != nil {
				return err
			}

			log := logger(cmd)
			engine := swmm.NewCLIEngine(cfg.SWMMBinary, cfg.EngineTimeout, log)
			sim := simulation.NewSimulator(engine, classifier, simulation.Options{
				NetworkPath:   cfg.NetworkPath,
				RainSeries:    cfg.RainSeries,
				WorkDir:       cfg.WorkDir,
				KeepArtifacts: keep || cfg.KeepArtifacts,
			}, observability.NewMetricsForTesting(), log)

			summary, err := sim.Simulate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "YAML or JSON scenario file (empty runs the base network)")
	cmd.Flags().StringVar(&networkPath, "network", "", "base network .inp file (overrides NETWORK_PATH)")
	cmd.Flags().StringVar(&binary, "binary", "", "engine binary (overrides SWMM_BINARY)")
	cmd.Flags().StringVar(&modelPath, "model", "", "vulnerability model file (overrides MODEL_PATH)")
	cmd.Flags().BoolVar(&keep, "keep", false, "keep the run directory and report its artifact paths")
	return cmd
}

// loadScenario reads a simulation request. JSON scenarios parse as YAML.
func loadScenario(path string) (domain.SimulationRequest, error) {
	var req domain.SimulationRequest
	if path == "" {
		return req, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return req, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		return domain.SimulationRequest{}, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := req.Validate(); err != nil {
		return domain.SimulationRequest{}, err
	}
	return req, nil
}
