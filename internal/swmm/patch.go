package swmm

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
)

var (
	// ErrUnknownElement is returned when an override names a node or link the
	// network does not define.
	ErrUnknownElement = fmt.Errorf("%w: unknown element", domain.ErrInvalidRequest)

	// ErrUnsupportedParameter is returned when an override sets a property the
	// element type does not have.
	ErrUnsupportedParameter = fmt.Errorf("%w: unsupported parameter", domain.ErrInvalidRequest)

	// ErrSeriesNotFound is returned when the rain time series is missing.
	ErrSeriesNotFound = fmt.Errorf("%w: rain series not found", domain.ErrInvalidRequest)
)

const (
	dateLayout = "01/02/2006"
	timeLayout = "15:04:05"

	// defaultStartDate is assumed when the network omits START_DATE.
	defaultStartDate = "01/01/2024"

	lossesColumns = ";;Link           Kentry     Kexit      Kavg       Flap Gate  Seepage"
)

// Column positions (0 = element id) of the properties the overrides touch.
const (
	colElevation     = 1
	colJunctionInit  = 3
	colJunctionSur   = 4
	colJunctionPond  = 5
	colStorageInit   = 3
	colConduitIn     = 5
	colConduitOut    = 6
	colConduitMax    = 8
	colLossesAverage = 3
)

// nodeSections lists every section whose rows define a node.
var nodeSections = []string{SectionJunctions, SectionOutfalls, SectionDividers, SectionStorage}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplyNodeOverrides patches node properties. Junctions take every parameter;
// other node types take the invert elevation, storage units also the initial depth.
func ApplyNodeOverrides(f *InputFile, nodes map[string]domain.NodeParams) error {
	for _, id := range sortedKeys(nodes) {
		p := nodes[id]
		section := ""
		for _, s := range nodeSections {
			if f.HasRow(s, id) {
				section = s
				break
			}
		}
		if section == "" {
			return fmt.Errorf("node %s: %w", id, ErrUnknownElement)
		}

		edits := map[int]*float64{colElevation: p.InvertElevation}
		switch section {
		case SectionJunctions:
			edits[colJunctionInit] = p.InitialDepth
			edits[colJunctionSur] = p.SurchargeDepth
			edits[colJunctionPond] = p.PondingArea
		case SectionStorage:
			edits[colStorageInit] = p.InitialDepth
			if p.SurchargeDepth != nil || p.PondingArea != nil {
				return fmt.Errorf("node %s (%s): surcharge_depth/ponding_area: %w", id, strings.ToLower(section), ErrUnsupportedParameter)
			}
		default:
			if p.InitialDepth != nil || p.SurchargeDepth != nil || p.PondingArea != nil {
				return fmt.Errorf("node %s (%s): only inv_elev can be set: %w", id, strings.ToLower(section), ErrUnsupportedParameter)
			}
		}

		if err := setFields(f, section, id, edits); err != nil {
			return err
		}
	}
	return nil
}

// ApplyLinkOverrides patches conduit properties. A key matches a conduit id
// exactly; failing that it matches every conduit whose id ends with the key.
func ApplyLinkOverrides(f *InputFile, links map[string]domain.LinkParams) error {
	conduits := f.RowIDs(SectionConduits)
	for _, key := range sortedKeys(links) {
		p := links[key]
		ids := matchLinks(conduits, key)
		if len(ids) == 0 {
			return fmt.Errorf("link %s: %w", key, ErrUnknownElement)
		}

		maxFlow := p.FlowLimit
		if maxFlow == nil {
			maxFlow = p.InitFlow
		}
		for _, id := range ids {
			edits := map[int]*float64{
				colConduitIn:  p.UpstreamOffset,
				colConduitOut: p.DownstreamOffset,
				colConduitMax: maxFlow,
			}
			if err := setFields(f, SectionConduits, id, edits); err != nil {
				return err
			}
			if p.AverageConduitLoss != nil {
				if err := setAverageLoss(f, id, *p.AverageConduitLoss); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func matchLinks(conduits []string, key string) []string {
	for _, id := range conduits {
		if id == key {
			return []string{id}
		}
	}
	var out []string
	for _, id := range conduits {
		if strings.HasSuffix(id, key) {
			out = append(out, id)
		}
	}
	return out
}

func setAverageLoss(f *InputFile, id string, kavg float64) error {
	if f.HasRow(SectionLosses, id) {
		return f.SetField(SectionLosses, id, colLossesAverage, formatFloat(kavg))
	}
	f.AddSection(SectionLosses, lossesColumns)
	return f.AppendRow(SectionLosses, id, "0", "0", formatFloat(kavg), "NO", "0")
}

func setFields(f *InputFile, section, id string, edits map[int]*float64) error {
	cols := make([]int, 0, len(edits))
	for col := range edits {
		cols = append(cols, col)
	}
	sort.Ints(cols)
	for _, col := range cols {
		v := edits[col]
		if v == nil {
			continue
		}
		if err := f.SetField(section, id, col, formatFloat(*v)); err != nil {
			return err
		}
	}
	return nil
}

// ApplyRainfall replaces the rain series with the hyetograph and moves the
// simulation end to start + storm duration.
func ApplyRainfall(f *InputFile, series string, storm domain.Storm, steps []domain.RainfallStep) error {
	if len(f.SeriesRows(series)) == 0 {
		return fmt.Errorf("series %s: %w", series, ErrSeriesNotFound)
	}

	rows := make([][]string, len(steps))
	for i, s := range steps {
		rows[i] = []string{s.Clock(), fmt.Sprintf("%.2f", s.IntensityMM)}
	}
	if err := f.ReplaceSeries(series, rows); err != nil {
		return err
	}

	start, err := simulationStart(f)
	if err != nil {
		return err
	}
	end := start.Add(time.Duration(math.Round(storm.DurationHr*3600)) * time.Second)
	if err := f.SetOption("END_DATE", end.Format(dateLayout)); err != nil {
		return err
	}
	return f.SetOption("END_TIME", end.Format(timeLayout))
}

func simulationStart(f *InputFile) (time.Time, error) {
	date, ok := f.Option("START_DATE")
	if !ok {
		date = defaultStartDate
	}
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse START_DATE %q: %w", date, err)
	}

	clock, ok := f.Option("START_TIME")
	if !ok {
		return day, nil
	}
	offset, err := parseClock(clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse START_TIME %q: %w", clock, err)
	}
	return day.Add(offset), nil
}

// parseClock reads H:MM or H:MM:SS as an offset from midnight.
func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("want H:MM[:SS]")
	}
	var total time.Duration
	units := []time.Duration{time.Hour, time.Minute, time.Second}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("bad component %q", p)
		}
		total += time.Duration(n) * units[i]
	}
	return total, nil
}
