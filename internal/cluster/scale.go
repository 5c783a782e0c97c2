package cluster

import "math"

// standardize centres each dimension on zero and scales it to unit
// population variance. Constant dimensions are centred but not scaled.
func standardize(vectors [][]float32) [][]float64 {
	n := len(vectors)
	if n == 0 {
		return nil
	}
	dim := len(vectors[0])
	mean := make([]float64, dim)
	for _, v := range vectors {
		for j := 0; j < dim; j++ {
			mean[j] += float64(v[j])
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	scale := make([]float64, dim)
	for _, v := range vectors {
		for j := 0; j < dim; j++ {
			d := float64(v[j]) - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / float64(n))
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	out := make([][]float64, n)
	for i, v := range vectors {
		row := make([]float64, dim)
		for j := 0; j < dim; j++ {
			row[j] = (float64(v[j]) - mean[j]) / scale[j]
		}
		out[i] = row
	}
	return out
}

func euclidean(a, b []float64) float64 {
	return math.Sqrt(sqDist(a, b))
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func distanceMatrix(x [][]float64) [][]float64 {
	n := len(x)
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := euclidean(x[i], x[j])
			d[i][j], d[j][i] = v, v
		}
	}
	return d
}
