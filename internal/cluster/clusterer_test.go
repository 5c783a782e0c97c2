package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"commentreview/internal/domain"
	"commentreview/internal/sheet"
)

type mapEmbedder struct {
	vectors map[string][]float32
	calls   int
	err     error
}

func (m *mapEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vectors[t]
	}
	return out, nil
}

func writeThemes(t *testing.T, cells []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "processed.csv")
	tb := &sheet.Table{Header: []string{"comment", "themes"}}
	for _, c := range cells {
		tb.Rows = append(tb.Rows, []string{"c", c})
	}
	if err := sheet.Write(path, tb); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClusterThemesNoThemes(t *testing.T) {
	in := writeThemes(t, []string{"[]", "", "[]"})
	out := filepath.Join(t.TempDir(), "clusters.csv")
	emb := &mapEmbedder{}
	c := &Clusterer{Embedder: emb}

	res, err := c.ClusterThemes(context.Background(), in, out, "themes", 5)
	if err != nil {
		t.Fatalf("ClusterThemes: %v", err)
	}
	if res.Clusters != 0 || emb.calls != 0 {
		t.Fatalf("clusters = %d embed calls = %d, want 0", res.Clusters, emb.calls)
	}
	got, err := sheet.Read(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Rows) != 0 || len(got.Header) != len(domain.ClusterSummaryColumns) {
		t.Fatalf("want header-only summary, got %v / %d rows", got.Header, len(got.Rows))
	}
}

func TestClusterThemesCountsOccurrences(t *testing.T) {
	in := writeThemes(t, []string{
		`["wait times","staffing"]`,
		`["wait times","phone queue"]`,
		`["cost of living"]`,
		`wait times; benefit amount`,
		`[]`,
	})
	out := filepath.Join(t.TempDir(), "clusters.csv")
	emb := &mapEmbedder{vectors: map[string][]float32{
		"wait times":     {0, 0},
		"phone queue":    {0, 1},
		"staffing":       {1, 0},
		"cost of living": {20, 20},
		"benefit amount": {20, 21},
	}}
	c := &Clusterer{Embedder: emb}

	res, err := c.ClusterThemes(context.Background(), in, out, "themes", 5)
	if err != nil {
		t.Fatalf("ClusterThemes: %v", err)
	}
	if res.Algorithm != domain.AlgorithmKMeans {
		t.Fatalf("algorithm = %s, want KMeans fallback", res.Algorithm)
	}

	total := 0
	for _, s := range res.Summary {
		total += s.Count
	}
	if total != 7 {
		t.Fatalf("counts sum to %d, want 7 occurrences", total)
	}

	got, err := sheet.Read(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Rows) != res.Clusters {
		t.Fatalf("summary rows = %d, want %d", len(got.Rows), res.Clusters)
	}
	ids, _ := got.Column("cluster_id")
	for i := 1; i < len(ids); i++ {
		if ids[i-1] >= ids[i] {
			t.Fatalf("summary not sorted by cluster_id: %v", ids)
		}
	}
	examples, _ := got.Column("example_themes")
	for _, e := range examples {
		var list []string
		if err := json.Unmarshal([]byte(e), &list); err != nil || len(list) == 0 || len(list) > 5 {
			t.Fatalf("example_themes = %q", e)
		}
	}
	labels, _ := got.Column("cluster_label")
	for _, l := range labels {
		if _, ok := emb.vectors[l]; !ok {
			t.Fatalf("cluster_label %q is not a member theme", l)
		}
	}
}

func TestClusterSingleThemeIsNoise(t *testing.T) {
	summary, algorithm := Cluster([]string{"only"}, [][]float32{{1, 2}}, map[string]int{"only": 3}, 5)
	if algorithm != domain.AlgorithmHDBSCAN {
		t.Fatalf("algorithm = %s", algorithm)
	}
	if len(summary) != 1 || summary[0].ClusterID != -1 || summary[0].Label != "noise" || summary[0].Count != 3 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestClusterKeepsHDBSCANWhenItFindsClusters(t *testing.T) {
	var themes []string
	var vectors [][]float32
	occ := map[string]int{}
	for i, p := range append(blob(0, 0, 6), blob(50, 50, 6)...) {
		name := string(rune('a' + i))
		themes = append(themes, name)
		vectors = append(vectors, []float32{float32(p[0]), float32(p[1])})
		occ[name] = 1
	}
	summary, algorithm := Cluster(themes, vectors, occ, 5)
	if algorithm != domain.AlgorithmHDBSCAN || len(summary) != 2 {
		t.Fatalf("algorithm = %s clusters = %d", algorithm, len(summary))
	}
	if summary[0].ClusterID != 0 || summary[1].ClusterID != 1 {
		t.Fatalf("cluster ids = %d, %d", summary[0].ClusterID, summary[1].ClusterID)
	}
}

func TestClusterThemesMissingColumn(t *testing.T) {
	in := writeThemes(t, []string{"[]"})
	c := &Clusterer{Embedder: &mapEmbedder{}}
	_, err := c.ClusterThemes(context.Background(), in, filepath.Join(t.TempDir(), "o.csv"), "topics", 5)
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}

func TestClusterThemesEmbeddingFailure(t *testing.T) {
	in := writeThemes(t, []string{`["a","b"]`})
	c := &Clusterer{Embedder: &mapEmbedder{err: errors.New("unreachable")}}
	if _, err := c.ClusterThemes(context.Background(), in, filepath.Join(t.TempDir(), "o.csv"), "themes", 5); err == nil {
		t.Fatal("expected embedding failure to surface")
	}
}
