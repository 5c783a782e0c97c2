package cluster

import (
	"errors"
	"math"
	"math/rand"
)

const (
	kmeansSeed    = 42
	kmeansInits   = 10
	kmeansMaxIter = 300
)

// kmeans runs Lloyd's algorithm from kmeansInits k-means++ seedings drawn
// from one fixed-seed source and keeps the lowest-inertia result.
func kmeans(x [][]float64, k int) []int {
	rng := rand.New(rand.NewSource(kmeansSeed))
	var best []int
	bestInertia := math.Inf(1)
	for init := 0; init < kmeansInits; init++ {
		labels, inertia := lloyd(x, seedPlusPlus(x, k, rng))
		if inertia < bestInertia {
			best, bestInertia = labels, inertia
		}
	}
	return best
}

func seedPlusPlus(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(x)
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(x[rng.Intn(n)]))
	d2 := make([]float64, n)
	for i := range x {
		d2[i] = sqDist(x[i], centers[0])
	}
	for len(centers) < k {
		var total float64
		for _, d := range d2 {
			total += d
		}
		pick := rng.Intn(n)
		if total > 0 {
			target := rng.Float64() * total
			for i, d := range d2 {
				target -= d
				if target <= 0 {
					pick = i
					break
				}
			}
		}
		c := clone(x[pick])
		centers = append(centers, c)
		for i := range x {
			d2[i] = math.Min(d2[i], sqDist(x[i], c))
		}
	}
	return centers
}

func lloyd(x [][]float64, centers [][]float64) ([]int, float64) {
	n, k := len(x), len(centers)
	dim := len(x[0])
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i := range x {
			c := nearest(x[i], centers)
			if c != labels[i] {
				labels[i], changed = c, true
			}
		}
		if !changed {
			break
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, c := range labels {
			counts[c]++
			for j, v := range x[i] {
				sums[c][j] += v
			}
		}
		for c := range centers {
			if counts[c] == 0 {
				// Re-seed an empty cluster at the point farthest from its centre.
				far := farthestPoint(x, labels, centers)
				centers[c] = clone(x[far])
				labels[far] = c
				continue
			}
			for j := range sums[c] {
				centers[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}

	var inertia float64
	for i, c := range labels {
		inertia += sqDist(x[i], centers[c])
	}
	return labels, inertia
}

func nearest(p []float64, centers [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for c, ctr := range centers {
		if d := sqDist(p, ctr); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

func farthestPoint(x [][]float64, labels []int, centers [][]float64) int {
	far, farD := 0, -1.0
	for i, c := range labels {
		if d := sqDist(x[i], centers[c]); d > farD {
			far, farD = i, d
		}
	}
	return far
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}

var errSilhouetteLabels = errors.New("silhouette needs between 2 and n-1 distinct labels")

// silhouette is the mean silhouette coefficient. Samples alone in their
// cluster score 0.
func silhouette(dist [][]float64, labels []int) (float64, error) {
	n := len(labels)
	members := map[int][]int{}
	for i, l := range labels {
		members[l] = append(members[l], i)
	}
	if len(members) < 2 || len(members) > n-1 {
		return 0, errSilhouetteLabels
	}

	var total float64
	for i, own := range labels {
		if len(members[own]) == 1 {
			continue
		}
		var a float64
		for _, j := range members[own] {
			a += dist[i][j]
		}
		a /= float64(len(members[own]) - 1)

		b := math.Inf(1)
		for l, idx := range members {
			if l == own {
				continue
			}
			var s float64
			for _, j := range idx {
				s += dist[i][j]
			}
			b = math.Min(b, s/float64(len(idx)))
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n), nil
}
