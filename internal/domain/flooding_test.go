package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fiveMinuteTimes(n int) []time.Time {
	start := time.Date(2024, time.January, 1, 0, 5, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * 5 * time.Minute)
	}
	return out
}

func TestBuildFloodSummary(t *testing.T) {
	rows := map[string]FloodingRow{
		"J1":    {Node: "J1", HoursFlooded: 0.25, MaxRateCMS: 0.123, TimeOfMaxDays: 0, TimeOfMaxHrMin: "00:15", TotalVolume10e6: 0.012},
		"J3":    {Node: "J3", HoursFlooded: 0.01, MaxRateCMS: 0.001, TimeOfMaxDays: 1, TimeOfMaxHrMin: "02:30", TotalVolume10e6: 0},
		"GHOST": {Node: "GHOST", HoursFlooded: 3},
	}
	series := FloodSeries{
		Times: fiveMinuteTimes(4),
		Nodes: []string{"J1", "J2", "J3"},
		Flooding: map[string][]float64{
			"J1": {0, 0, 0.05, 0.1},
			"J2": {0, 0.2, 0, 0},
			"J3": {0, 0, 0, 0},
		},
	}

	summary := BuildFloodSummary(rows, series, "network.rpt", "network.out")

	wantList := []NodeRow{
		{Node: "J1", NodeFlooding: NodeFlooding{HoursFlooded: 0.25, MaxRateCMS: 0.123, TimeOfMaxHrMin: "00:15", TotalVolume10e6: 0.012, TimeAfterRainingMin: 10}},
		{Node: "J2", NodeFlooding: NodeFlooding{TimeOfMaxHrMin: "0:00"}},
		{Node: "J3", NodeFlooding: NodeFlooding{HoursFlooded: 0.01, MaxRateCMS: 0.001, TimeOfMaxDays: 1, TimeOfMaxHrMin: "02:30"}},
	}
	if diff := cmp.Diff(wantList, summary.NodesList); diff != "" {
		t.Fatalf("nodes_list mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, summary.NodesDict, 3)
	assert.Equal(t, wantList[0].NodeFlooding, summary.NodesDict["J1"])
	assert.NotContains(t, summary.NodesDict, "GHOST")

	assert.Equal(t, 3, summary.Metadata.TotalNodes)
	assert.Equal(t, 2, summary.Metadata.FloodedNodes)
	assert.Equal(t, 1, summary.Metadata.NonFloodedNodes)
	assert.Equal(t, "network.rpt", summary.Metadata.ReportFile)
	assert.Equal(t, "network.out", summary.Metadata.OutputFile)
}

func TestBuildFloodSummary_EmptySeries(t *testing.T) {
	summary := BuildFloodSummary(map[string]FloodingRow{"J1": {HoursFlooded: 1}}, FloodSeries{}, "a.rpt", "a.out")
	assert.Empty(t, summary.NodesList)
	assert.NotNil(t, summary.NodesDict)
	assert.Zero(t, summary.Metadata.TotalNodes)
}

func TestMinutesToFirstOverflow(t *testing.T) {
	times := fiveMinuteTimes(5)

	tests := []struct {
		name     string
		times    []time.Time
		flooding []float64
		want     float64
	}{
		{"no overflow", times, []float64{0, 0, 0, 0, 0}, 0},
		{"overflow at start", times, []float64{0.1, 0, 0, 0, 0}, 0},
		{"overflow at fourth period", times, []float64{0, 0, 0, 0.3, 0}, 15},
		{"negative ignored", times, []float64{-1, 0, 0.2, 0, 0}, 10},
		{"empty series", nil, nil, 0},
		{"series longer than times", times[:2], []float64{0, 0, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MinutesToFirstOverflow(tt.times, tt.flooding))
		})
	}
}

func TestMinutesToFirstOverflow_RoundsToTwoDecimals(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{start, start.Add(10*time.Second + 333*time.Millisecond)}
	assert.Equal(t, 0.17, MinutesToFirstOverflow(times, []float64{0, 1}))
}

func TestTimeOfMaxHours(t *testing.T) {
	assert.Equal(t, 26.5, TimeOfMaxHours(1, "02:30"))
	assert.Equal(t, 0.25, TimeOfMaxHours(0, "0:15"))
	assert.Equal(t, 48.0, TimeOfMaxHours(2, "bogus"))
	assert.Equal(t, 0.0, TimeOfMaxHours(0, "0:00"))
}

func TestNodeFlooding_Features(t *testing.T) {
	nf := NodeFlooding{
		HoursFlooded:        1.5,
		MaxRateCMS:          0.2,
		TimeOfMaxDays:       0,
		TimeOfMaxHrMin:      "01:30",
		TotalVolume10e6:     0.4,
		TimeAfterRainingMin: 35,
	}
	assert.Equal(t, []float64{1.5, 0.2, 1.5, 0.4, 35}, nf.Features())
	assert.Len(t, nf.Features(), len(FeatureNames))
}
