package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// noFloodTimeOfMax is reported for nodes without a flooding table row.
const noFloodTimeOfMax = "0:00"

// FloodingRow is one data row of the report's Node Flooding Summary table.
type FloodingRow struct {
	Node            string
	HoursFlooded    float64
	MaxRateCMS      float64
	TimeOfMaxDays   float64
	TimeOfMaxHrMin  string
	TotalVolume10e6 float64 // 10^6 liters
}

// FloodSeries holds the per-node flooding rate series from the binary output,
// with nodes in output-file order.
type FloodSeries struct {
	Times    []time.Time
	Nodes    []string
	Flooding map[string][]float64 // cms per reporting period
}

// NodeFlooding is the per-node result keyed by node id in nodes_dict.
type NodeFlooding struct {
	HoursFlooded          float64 `json:"Hours_Flooded"`
	MaxRateCMS            float64 `json:"Maximum_Rate_CMS"`
	TimeOfMaxDays         float64 `json:"Time_of_Max_days"`
	TimeOfMaxHrMin        string  `json:"Time_of_Max_hr_min"`
	TotalVolume10e6       float64 `json:"Total_Flood_Volume_10e6_ltr"`
	TimeAfterRainingMin   float64 `json:"Time_After_Raining_min"`
	VulnerabilityCluster  *int    `json:"Vulnerability_Cluster,omitempty"`
	VulnerabilityCategory string  `json:"Vulnerability,omitempty"`
}

// NodeRow is a NodeFlooding entry of nodes_list, carrying its node id.
type NodeRow struct {
	Node string `json:"Node"`
	NodeFlooding
}

// StructureInfo documents the two node collections for API consumers.
type StructureInfo struct {
	NodesList string `json:"nodes_list"`
	NodesDict string `json:"nodes_dict"`
}

// SummaryMetadata describes a flood summary.
type SummaryMetadata struct {
	RunID           string        `json:"run_id,omitempty"`
	TotalNodes      int           `json:"total_nodes"`
	FloodedNodes    int           `json:"flooded_nodes"`
	NonFloodedNodes int           `json:"non_flooded_nodes"`
	ReportFile      string        `json:"rpt_file"`
	OutputFile      string        `json:"out_file"`
	StructureInfo   StructureInfo `json:"structure_info"`
}

// FloodSummary lists every node twice: as an ordered array for iteration and
// as a map for lookup by id.
type FloodSummary struct {
	Metadata  SummaryMetadata         `json:"metadata"`
	NodesList []NodeRow               `json:"nodes_list"`
	NodesDict map[string]NodeFlooding `json:"nodes_dict"`
}

// BuildFloodSummary joins report rows with the output series. Every node in the
// output appears once; nodes without a report row are zero-valued. Report rows
// for nodes missing from the output are dropped.
func BuildFloodSummary(rows map[string]FloodingRow, series FloodSeries, reportFile, outputFile string) FloodSummary {
	summary := FloodSummary{
		Metadata: SummaryMetadata{
			ReportFile: reportFile,
			OutputFile: outputFile,
			StructureInfo: StructureInfo{
				NodesList: "Array format - use for iteration and listing all nodes",
				NodesDict: "Dictionary format - use for fast O(1) lookup by node ID",
			},
		},
		NodesList: make([]NodeRow, 0, len(series.Nodes)),
		NodesDict: make(map[string]NodeFlooding, len(series.Nodes)),
	}

	for _, id := range series.Nodes {
		nf := NodeFlooding{TimeOfMaxHrMin: noFloodTimeOfMax}
		if row, ok := rows[id]; ok {
			nf = NodeFlooding{
				HoursFlooded:        row.HoursFlooded,
				MaxRateCMS:          row.MaxRateCMS,
				TimeOfMaxDays:       row.TimeOfMaxDays,
				TimeOfMaxHrMin:      row.TimeOfMaxHrMin,
				TotalVolume10e6:     row.TotalVolume10e6,
				TimeAfterRainingMin: MinutesToFirstOverflow(series.Times, series.Flooding[id]),
			}
		}
		summary.NodesList = append(summary.NodesList, NodeRow{Node: id, NodeFlooding: nf})
		summary.NodesDict[id] = nf
		if nf.HoursFlooded > 0 {
			summary.Metadata.FloodedNodes++
		}
	}

	summary.Metadata.TotalNodes = len(summary.NodesList)
	summary.Metadata.NonFloodedNodes = summary.Metadata.TotalNodes - summary.Metadata.FloodedNodes
	return summary
}

// MinutesToFirstOverflow measures from the first reporting period to the first
// period with a positive flooding rate, rounded to two decimals. Returns 0 when
// the node never overflows.
func MinutesToFirstOverflow(times []time.Time, flooding []float64) float64 {
	if len(times) == 0 || len(flooding) == 0 {
		return 0
	}
	start := times[0]
	for i, v := range flooding {
		if i >= len(times) {
			break
		}
		if v > 0 {
			return round2(times[i].Sub(start).Minutes())
		}
	}
	return 0
}

// TimeOfMaxHours converts the report's (days, hr:min) pair into elapsed hours.
// A malformed hr:min contributes zero.
func TimeOfMaxHours(days float64, hrMin string) float64 {
	hours := days * 24
	h, m, ok := strings.Cut(hrMin, ":")
	if !ok {
		return hours
	}
	hh, errH := strconv.Atoi(strings.TrimSpace(h))
	mm, errM := strconv.Atoi(strings.TrimSpace(m))
	if errH != nil || errM != nil {
		return hours
	}
	return hours + float64(hh) + float64(mm)/60
}

// Features returns the vulnerability feature vector in FeatureNames order.
func (nf NodeFlooding) Features() []float64 {
	v := []float64{
		nf.HoursFlooded,
		nf.MaxRateCMS,
		TimeOfMaxHours(nf.TimeOfMaxDays, nf.TimeOfMaxHrMin),
		nf.TotalVolume10e6,
		nf.TimeAfterRainingMin,
	}
	for i := range v {
		if math.IsNaN(v[i]) {
			v[i] = 0
		}
	}
	return v
}
