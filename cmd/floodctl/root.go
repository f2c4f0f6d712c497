package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
	"github.com/couchcryptid/storm-data-flood-service/internal/vulnerability"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "floodctl",
		Short:         "Run SWMM flood simulations and summarise node flooding",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level for stderr (debug, info, warn, error)")

	logger := func(cmd *cobra.Command) *slog.Logger {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
			lvl = slog.LevelWarn
		}
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
	}

	root.AddCommand(
		newSimulateCmd(logger),
		newRainfallCmd(),
		newReportCmd(logger),
	)
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// loadClassifier returns nil when no model path is given.
func loadClassifier(path string) (domain.Classifier, error) {
	if path == "" {
		return nil, nil
	}
	model, err := vulnerability.Load(path)
	if err != nil {
		return nil, err
	}
	return model, nil
}
