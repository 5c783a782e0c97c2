package cluster

import (
	"context"
	"fmt"
	"sort"

	"commentreview/internal/domain"
	"commentreview/internal/logger"
	"commentreview/internal/sheet"
)

const maxSweepK = 50

// Embedder is the slice of the model gateway clustering needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Clusterer groups the themes of a processed table.
type Clusterer struct {
	Embedder Embedder
	Log      *logger.Logger
}

// Result describes one ClusterThemes run.
type Result struct {
	Clusters   int
	Algorithm  string
	OutputPath string
	Summary    []domain.ClusterSummary
}

// ClusterThemes reads the themes column, clusters the distinct themes and
// writes the summary to outputPath, replacing any existing file.
func (c *Clusterer) ClusterThemes(ctx context.Context, inputPath, outputPath, themesColumn string, minClusterSize int) (Result, error) {
	table, err := sheet.Read(inputPath)
	if err != nil {
		return Result{}, err
	}
	cells, ok := table.Column(themesColumn)
	if !ok {
		return Result{}, fmt.Errorf("%w: missing themes column: %s", domain.ErrConfig, themesColumn)
	}

	occurrences := map[string]int{}
	for _, cell := range cells {
		for _, theme := range ParseThemesCell(cell) {
			occurrences[theme]++
		}
	}
	themes := make([]string, 0, len(occurrences))
	for t := range occurrences {
		themes = append(themes, t)
	}
	sort.Strings(themes)

	log := c.log().With("input", inputPath)
	if len(themes) == 0 {
		log.Info("no themes to cluster")
		if err := sheet.Write(outputPath, summaryTable(nil)); err != nil {
			return Result{}, err
		}
		return Result{OutputPath: outputPath}, nil
	}

	vectors, err := c.Embedder.Embed(ctx, themes)
	if err != nil {
		return Result{}, fmt.Errorf("embed themes: %w", err)
	}
	if err := checkVectors(vectors, len(themes)); err != nil {
		return Result{}, err
	}

	summary, algorithm := Cluster(themes, vectors, occurrences, minClusterSize)
	if err := sheet.Write(outputPath, summaryTable(summary)); err != nil {
		return Result{}, err
	}
	log.Info("wrote cluster summary", "output", outputPath, "themes", len(themes), "clusters", len(summary), "algorithm", algorithm)
	return Result{Clusters: len(summary), Algorithm: algorithm, OutputPath: outputPath, Summary: summary}, nil
}

// Cluster runs density clustering on the standardized vectors and falls
// back to a silhouette-scored k-means sweep when fewer than two clusters
// emerge.
func Cluster(themes []string, vectors [][]float32, occurrences map[string]int, minClusterSize int) ([]domain.ClusterSummary, string) {
	x := standardize(vectors)
	labels := hdbscan(x, minClusterSize)
	algorithm := domain.AlgorithmHDBSCAN

	if distinctClusters(labels) < 2 && len(themes) >= 2 {
		if km := sweepKMeans(x); km != nil {
			labels, algorithm = km, domain.AlgorithmKMeans
		}
	}
	return summarize(themes, labels, x, occurrences, algorithm), algorithm
}

// sweepKMeans tries k = 2..min(50, n) and keeps the labels with the highest
// silhouette. Ties keep the smaller k. nil when no k could be scored.
func sweepKMeans(x [][]float64) []int {
	dist := distanceMatrix(x)
	var best []int
	bestScore := -1.0
	for k := 2; k <= min(maxSweepK, len(x)); k++ {
		labels := kmeans(x, k)
		score, err := silhouette(dist, labels)
		if err != nil {
			continue
		}
		if score > bestScore {
			best, bestScore = labels, score
		}
	}
	return best
}

func distinctClusters(labels []int) int {
	seen := map[int]bool{}
	for _, l := range labels {
		if l != domain.NoiseClusterID {
			seen[l] = true
		}
	}
	return len(seen)
}

func checkVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("embed themes: got %d vectors for %d themes", len(vectors), want)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("embed themes: empty vectors")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("embed themes: vector %d has %d dimensions, want %d", i, len(v), dim)
		}
	}
	return nil
}

func (c *Clusterer) log() *logger.Logger {
	if c.Log == nil {
		return logger.Nop()
	}
	return c.Log
}
