package main

import (
	"errors"
	"log/slog"

	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
	"github.com/couchcryptid/storm-data-flood-service/internal/swmm"
	"github.com/spf13/cobra"
)

func newReportCmd(logger func(*cobra.Command) *slog.Logger) *cobra.Command {
	var rptPath, outPath, modelPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise node flooding from existing report and output files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rptPath == "" || outPath == "" {
				return errors.New("both --rpt and --out are required")
			}

			rows, err := swmm.ParseFloodingReportFile(rptPath)
			if err != nil {
				return err
			}
			series, err := swmm.ReadFloodSeriesFile(outPath)
			if err != nil {
				return err
			}
			classifier, err := loadClassifier(modelPath)
			if err != nil {
				return err
			}

			summary := domain.BuildFloodSummary(rows, series, rptPath, outPath)
			summary = domain.ClassifyNodes(cmd.Context(), summary, classifier, logger(cmd))
			return writeJSON(cmd.OutOrStdout(), summary)
		},
	}

	cmd.Flags().StringVar(&rptPath, "rpt", "", "engine report (.rpt) file")
	cmd.Flags().StringVar(&outPath, "out", "", "engine binary output (.out) file")
	cmd.Flags().StringVar(&modelPath, "model", "", "vulnerability model file")
	return cmd
}
