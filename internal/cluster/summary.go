package cluster

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"commentreview/internal/domain"
	"commentreview/internal/sheet"
)

const maxExampleThemes = 5

// summarize builds one row per label, ascending by cluster id. themes are
// the distinct themes in the order they were clustered; occurrences maps
// each theme to how many times it appeared across all rows.
func summarize(themes []string, labels []int, x [][]float64, occurrences map[string]int, algorithm string) []domain.ClusterSummary {
	members := map[int][]int{}
	for i, l := range labels {
		members[l] = append(members[l], i)
	}
	ids := make([]int, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]domain.ClusterSummary, 0, len(ids))
	for _, id := range ids {
		idx := members[id]
		s := domain.ClusterSummary{ClusterID: id, Algorithm: algorithm}
		for _, i := range idx {
			s.Count += occurrences[themes[i]]
		}
		for _, i := range idx[:min(len(idx), maxExampleThemes)] {
			s.ExampleThemes = append(s.ExampleThemes, themes[i])
		}
		if id == domain.NoiseClusterID {
			s.Label = domain.NoiseLabel
		} else {
			s.Label = themes[medoid(x, idx)]
		}
		out = append(out, s)
	}
	return out
}

// medoid returns the member nearest the members' centroid.
func medoid(x [][]float64, idx []int) int {
	centroid := make([]float64, len(x[idx[0]]))
	for _, i := range idx {
		for j, v := range x[i] {
			centroid[j] += v
		}
	}
	for j := range centroid {
		centroid[j] /= float64(len(idx))
	}
	best, bestD := idx[0], math.Inf(1)
	for _, i := range idx {
		if d := sqDist(x[i], centroid); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

func summaryTable(rows []domain.ClusterSummary) *sheet.Table {
	t := &sheet.Table{Header: append([]string(nil), domain.ClusterSummaryColumns...), Rows: [][]string{}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(r.ClusterID),
			r.Label,
			strconv.Itoa(r.Count),
			jsonList(r.ExampleThemes),
			r.Algorithm,
		})
	}
	return t
}

func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "[]"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
