package domain

import (
	"context"
	"log/slog"
)

// FeatureNames is the order of the vulnerability feature vector.
var FeatureNames = []string{
	"Hours_Flooded",
	"Maximum_Rate_CMS",
	"Time_of_Max_hours",
	"Total_Flood_Volume_10e6_ltr",
	"Time_After_Raining_min",
}

// Vulnerability is a clustering model's verdict for one node.
type Vulnerability struct {
	Cluster  int
	Category string
}

// Classifier assigns a vulnerability category to a feature vector.
type Classifier interface {
	Classify(ctx context.Context, features []float64) (Vulnerability, error)
}

// ClassifyNodes labels every node of the summary. A nil classifier leaves the
// summary untouched; a failed node is logged and left unlabelled.
func ClassifyNodes(ctx context.Context, summary FloodSummary, classifier Classifier, logger *slog.Logger) FloodSummary {
	if classifier == nil {
		return summary
	}

	for i := range summary.NodesList {
		row := &summary.NodesList[i]
		v, err := classifier.Classify(ctx, row.Features())
		if err != nil {
			logger.Warn("vulnerability classification failed",
				"node", row.Node,
				"error", err,
			)
			continue
		}
		cluster := v.Cluster
		row.VulnerabilityCluster = &cluster
		row.VulnerabilityCategory = v.Category
		summary.NodesDict[row.Node] = row.NodeFlooding
	}
	return summary
}
