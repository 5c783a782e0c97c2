package domain

// NoiseClusterID labels themes that density clustering left unassigned.
const NoiseClusterID = -1

// NoiseLabel is the exemplar label written for the noise bucket.
const NoiseLabel = "noise"

// Algorithm names written to the summary.
const (
	AlgorithmHDBSCAN = "HDBSCAN"
	AlgorithmKMeans  = "KMeans"
)

// Cluster summary column names.
const (
	ColClusterID     = "cluster_id"
	ColClusterLabel  = "cluster_label"
	ColCount         = "count"
	ColExampleThemes = "example_themes"
	ColAlgorithm     = "algorithm"
)

// ClusterSummaryColumns is the header of the cluster summary table.
var ClusterSummaryColumns = []string{
	ColClusterID,
	ColClusterLabel,
	ColCount,
	ColExampleThemes,
	ColAlgorithm,
}

// ClusterSummary describes one theme cluster.
type ClusterSummary struct {
	ClusterID     int
	Label         string
	Count         int
	ExampleThemes []string
	Algorithm     string
}
