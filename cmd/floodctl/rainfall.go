package main

import (
	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
	"github.com/spf13/cobra"
)

type hyetographRow struct {
	Clock string `json:"clock"`
	domain.RainfallStep
}

type hyetograph struct {
	Storm domain.Storm    `json:"storm"`
	Steps []hyetographRow `json:"steps"`
}

func newRainfallCmd() *cobra.Command {
	var (
		total, duration, interval float64
		pattern                   string
	)

	cmd := &cobra.Command{
		Use:   "rainfall",
		Short: "Print the design-storm hyetograph for the given parameters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec := &domain.RainfallSpec{Pattern: pattern}
			if cmd.Flags().Changed("total") {
				spec.TotalPrecipMM = &total
			}
			if cmd.Flags().Changed("duration") {
				spec.DurationHr = &duration
			}
			if cmd.Flags().Changed("interval") {
				spec.IntervalMin = &interval
			}

			storm, err := spec.Resolve()
			if err != nil {
				return err
			}
			steps := storm.Hyetograph()
			out := hyetograph{Storm: storm, Steps: make([]hyetographRow, len(steps))}
			for i, s := range steps {
				out.Steps[i] = hyetographRow{Clock: s.Clock(), RainfallStep: s}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().Float64Var(&total, "total", 100, "total precipitation in mm")
	cmd.Flags().Float64Var(&duration, "duration", 1, "storm duration in hours")
	cmd.Flags().Float64Var(&interval, "interval", 5, "time step in minutes")
	cmd.Flags().StringVar(&pattern, "pattern", "", "uniform, triangular or chicago (default triangular)")
	return cmd
}
