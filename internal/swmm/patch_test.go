package swmm

import (
	"strings"
	"testing"

	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func field(t *testing.T, inp *InputFile, section, id string, col int) string {
	t.Helper()
	v, ok := inp.Field(section, id, col)
	require.True(t, ok, "%s %s column %d", section, id, col)
	return v
}

func TestApplyNodeOverrides_Junction(t *testing.T) {
	inp := loadNetwork(t)

	err := ApplyNodeOverrides(inp, map[string]domain.NodeParams{
		"J1": {
			InvertElevation: ptr(13.25),
			InitialDepth:    ptr(0.5),
			SurchargeDepth:  ptr(1),
			PondingArea:     ptr(250),
		},
		"J3": {InitialDepth: ptr(0.1)},
	})
	require.NoError(t, err)

	assert.Equal(t, "13.25", field(t, inp, SectionJunctions, "J1", colElevation))
	assert.Equal(t, "3", field(t, inp, SectionJunctions, "J1", 2), "max depth untouched")
	assert.Equal(t, "0.5", field(t, inp, SectionJunctions, "J1", colJunctionInit))
	assert.Equal(t, "1", field(t, inp, SectionJunctions, "J1", colJunctionSur))
	assert.Equal(t, "250", field(t, inp, SectionJunctions, "J1", colJunctionPond))

	assert.Equal(t, "9.8", field(t, inp, SectionJunctions, "J3", colElevation))
	assert.Equal(t, "0.1", field(t, inp, SectionJunctions, "J3", colJunctionInit))
}

func TestApplyNodeOverrides_NonJunction(t *testing.T) {
	tests := []struct {
		name    string
		params  domain.NodeParams
		wantErr error
	}{
		{name: "outfall invert", params: domain.NodeParams{InvertElevation: ptr(7.5)}},
		{name: "outfall depth rejected", params: domain.NodeParams{InitialDepth: ptr(1)}, wantErr: ErrUnsupportedParameter},
		{name: "outfall ponding rejected", params: domain.NodeParams{PondingArea: ptr(1)}, wantErr: ErrUnsupportedParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inp := loadNetwork(t)
			err := ApplyNodeOverrides(inp, map[string]domain.NodeParams{"OUT1": tt.params})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, domain.ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "7.5", field(t, inp, SectionOutfalls, "OUT1", colElevation))
		})
	}
}

func TestApplyNodeOverrides_Storage(t *testing.T) {
	inp, err := ParseInput(strings.NewReader("[STORAGE]\nSU1 4 6 0 FUNCTIONAL 1000 0 0 0 0\n"))
	require.NoError(t, err)

	require.NoError(t, ApplyNodeOverrides(inp, map[string]domain.NodeParams{
		"SU1": {InvertElevation: ptr(3.5), InitialDepth: ptr(2)},
	}))
	assert.Equal(t, "3.5", field(t, inp, SectionStorage, "SU1", colElevation))
	assert.Equal(t, "2", field(t, inp, SectionStorage, "SU1", colStorageInit))

	err = ApplyNodeOverrides(inp, map[string]domain.NodeParams{"SU1": {SurchargeDepth: ptr(1)}})
	assert.ErrorIs(t, err, ErrUnsupportedParameter)
}

func TestApplyNodeOverrides_UnknownNode(t *testing.T) {
	inp := loadNetwork(t)

	err := ApplyNodeOverrides(inp, map[string]domain.NodeParams{"J404": {InvertElevation: ptr(1)}})
	require.ErrorIs(t, err, ErrUnknownElement)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "J404")
}

func TestApplyLinkOverrides(t *testing.T) {
	inp := loadNetwork(t)

	err := ApplyLinkOverrides(inp, map[string]domain.LinkParams{
		"C-1": {
			FlowLimit:        ptr(1.2),
			UpstreamOffset:   ptr(0.3),
			DownstreamOffset: ptr(0.1),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "0.3", field(t, inp, SectionConduits, "C-1", colConduitIn))
	assert.Equal(t, "0.1", field(t, inp, SectionConduits, "C-1", colConduitOut))
	assert.Equal(t, "1.2", field(t, inp, SectionConduits, "C-1", colConduitMax))
	assert.Equal(t, "0", field(t, inp, SectionConduits, "C-12", colConduitIn), "exact match wins over suffix")
}

func TestApplyLinkOverrides_InitFlowSetsFlowLimit(t *testing.T) {
	tests := []struct {
		name        string
		params      domain.LinkParams
		wantMax     string
		wantInitial string
	}{
		{"init_flow alone", domain.LinkParams{InitFlow: ptr(0.05)}, "0.05", "0"},
		{"flow_limit wins", domain.LinkParams{InitFlow: ptr(0.05), FlowLimit: ptr(1.2)}, "1.2", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inp := loadNetwork(t)

			require.NoError(t, ApplyLinkOverrides(inp, map[string]domain.LinkParams{"C-1": tt.params}))

			assert.Equal(t, tt.wantMax, field(t, inp, SectionConduits, "C-1", colConduitMax))
			assert.Equal(t, tt.wantInitial, field(t, inp, SectionConduits, "C-1", 7), "InitFlow column untouched")
		})
	}
}

func TestApplyLinkOverrides_SuffixMatch(t *testing.T) {
	inp := loadNetwork(t)

	require.NoError(t, ApplyLinkOverrides(inp, map[string]domain.LinkParams{
		"2": {UpstreamOffset: ptr(0.25)},
	}))

	assert.Equal(t, "0", field(t, inp, SectionConduits, "C-1", colConduitIn))
	assert.Equal(t, "0.25", field(t, inp, SectionConduits, "C-2", colConduitIn))
	assert.Equal(t, "0.25", field(t, inp, SectionConduits, "C-12", colConduitIn))
}

func TestApplyLinkOverrides_AverageLoss(t *testing.T) {
	inp := loadNetwork(t)

	require.NoError(t, ApplyLinkOverrides(inp, map[string]domain.LinkParams{
		"C-1": {AverageConduitLoss: ptr(0.6)},
		"C-2": {AverageConduitLoss: ptr(0.4)},
	}))

	assert.Equal(t, "0.6", field(t, inp, SectionLosses, "C-1", colLossesAverage), "existing row updated")
	assert.Equal(t, []string{"C-1", "C-2"}, inp.RowIDs(SectionLosses))
	assert.Equal(t, "0.4", field(t, inp, SectionLosses, "C-2", colLossesAverage), "missing row appended")
	assert.Equal(t, "NO", field(t, inp, SectionLosses, "C-2", 4))
}

func TestApplyLinkOverrides_AverageLossWithoutSection(t *testing.T) {
	inp, err := ParseInput(strings.NewReader("[CONDUITS]\nC1 J1 J2 10 0.01 0 0 0 0\n"))
	require.NoError(t, err)

	require.NoError(t, ApplyLinkOverrides(inp, map[string]domain.LinkParams{"C1": {AverageConduitLoss: ptr(0.2)}}))
	assert.Equal(t, "0.2", field(t, inp, SectionLosses, "C1", colLossesAverage))
}

func TestApplyLinkOverrides_UnknownLink(t *testing.T) {
	inp := loadNetwork(t)

	err := ApplyLinkOverrides(inp, map[string]domain.LinkParams{"X-9": {FlowLimit: ptr(1)}})
	require.ErrorIs(t, err, ErrUnknownElement)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestApplyRainfall(t *testing.T) {
	inp := loadNetwork(t)
	storm := domain.Storm{TotalPrecipMM: 100, DurationHr: 1, IntervalMin: 15, Pattern: domain.PatternUniform}

	require.NoError(t, ApplyRainfall(inp, "TS_Rain", storm, storm.Hyetograph()))

	assert.Equal(t, [][]string{
		{"00:00", "80.00"},
		{"00:15", "80.00"},
		{"00:30", "80.00"},
		{"00:45", "80.00"},
		{"01:00", "80.00"},
	}, inp.SeriesRows("TS_Rain"))
	assert.Equal(t, [][]string{{"00:00", "1"}}, inp.SeriesRows("TS_Other"))

	date, _ := inp.Option("END_DATE")
	clock, _ := inp.Option("END_TIME")
	assert.Equal(t, "01/01/2024", date)
	assert.Equal(t, "01:00:00", clock)
}

func TestApplyRainfall_EndCrossesMidnight(t *testing.T) {
	inp, err := ParseInput(strings.NewReader(
		"[OPTIONS]\nSTART_DATE 06/30/2023\nSTART_TIME 22:30\n\n[TIMESERIES]\nTS_Rain 00:00 0\n",
	))
	require.NoError(t, err)
	storm := domain.Storm{TotalPrecipMM: 10, DurationHr: 2, IntervalMin: 60, Pattern: domain.PatternUniform}

	require.NoError(t, ApplyRainfall(inp, "TS_Rain", storm, storm.Hyetograph()))

	date, _ := inp.Option("END_DATE")
	clock, ok := inp.Option("END_TIME")
	require.True(t, ok, "END_TIME appended when missing")
	assert.Equal(t, "07/01/2023", date)
	assert.Equal(t, "00:30:00", clock)
}

func TestApplyRainfall_DefaultStartDate(t *testing.T) {
	inp, err := ParseInput(strings.NewReader("[OPTIONS]\nFLOW_UNITS CMS\n\n[TIMESERIES]\nTS_Rain 00:00 0\n"))
	require.NoError(t, err)
	storm := domain.Storm{TotalPrecipMM: 10, DurationHr: 0.5, IntervalMin: 30, Pattern: domain.PatternUniform}

	require.NoError(t, ApplyRainfall(inp, "TS_Rain", storm, storm.Hyetograph()))

	date, _ := inp.Option("END_DATE")
	clock, _ := inp.Option("END_TIME")
	assert.Equal(t, "01/01/2024", date)
	assert.Equal(t, "00:30:00", clock)
}

func TestApplyRainfall_Errors(t *testing.T) {
	storm := domain.Storm{TotalPrecipMM: 10, DurationHr: 1, IntervalMin: 30, Pattern: domain.PatternUniform}

	t.Run("missing series", func(t *testing.T) {
		inp := loadNetwork(t)
		err := ApplyRainfall(inp, "TS_Storm", storm, storm.Hyetograph())
		assert.ErrorIs(t, err, ErrSeriesNotFound)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("bad start date", func(t *testing.T) {
		inp, err := ParseInput(strings.NewReader("[OPTIONS]\nSTART_DATE 2024-01-01\n\n[TIMESERIES]\nTS_Rain 00:00 0\n"))
		require.NoError(t, err)
		err = ApplyRainfall(inp, "TS_Rain", storm, storm.Hyetograph())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "START_DATE")
	})
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "00:00", want: "0s"},
		{in: "6:30", want: "6h30m0s"},
		{in: "23:59:30", want: "23h59m30s"},
		{in: "12", wantErr: true},
		{in: "1:2:3:4", wantErr: true},
		{in: "aa:00", wantErr: true},
		{in: "-1:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
