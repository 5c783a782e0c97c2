package cluster

import (
	"math"
	"sort"

	"commentreview/internal/domain"
)

type mstEdge struct {
	a, b int
	w    float64
}

// condensed tree entries
type pointExit struct {
	parent int
	point  int
	lambda float64
}

type clusterSplit struct {
	parent int
	child  int
	lambda float64
	size   int
}

// hdbscan labels points by density using Euclidean mutual reachability,
// a condensed cluster tree and excess-of-mass selection. The root cluster
// is never selected; unassigned points get domain.NoiseClusterID.
func hdbscan(x [][]float64, minClusterSize int) []int {
	n := len(x)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = domain.NoiseClusterID
	}
	if minClusterSize < 2 {
		minClusterSize = 2
	}
	if n < 2 {
		return labels
	}

	dist := distanceMatrix(x)
	core := coreDistances(dist, minClusterSize)
	edges := primMST(dist, core)
	left, right, height, size := singleLinkage(n, edges)
	points, splits := condense(n, left, right, height, size, minClusterSize)
	selected := selectEOM(points, splits)

	parentOf := map[int]int{}
	for _, s := range splits {
		parentOf[s.child] = s.parent
	}
	ids := make([]int, 0, len(selected))
	for c := range selected {
		ids = append(ids, c)
	}
	sort.Ints(ids)
	labelOf := make(map[int]int, len(ids))
	for i, c := range ids {
		labelOf[c] = i
	}
	for _, p := range points {
		for c := p.parent; ; {
			if selected[c] {
				labels[p.point] = labelOf[c]
				break
			}
			parent, ok := parentOf[c]
			if !ok {
				break
			}
			c = parent
		}
	}
	return labels
}

// coreDistances is the distance to the k-th nearest point, the point itself
// counting as the first.
func coreDistances(dist [][]float64, k int) []float64 {
	n := len(dist)
	if k > n {
		k = n
	}
	core := make([]float64, n)
	row := make([]float64, n)
	for i := range dist {
		copy(row, dist[i])
		sort.Float64s(row)
		core[i] = row[k-1]
	}
	return core
}

func primMST(dist [][]float64, core []float64) []mstEdge {
	n := len(dist)
	inTree := make([]bool, n)
	best := make([]float64, n)
	from := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}
	edges := make([]mstEdge, 0, n-1)
	current := 0
	inTree[0] = true
	for len(edges) < n-1 {
		next, nextW := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			mr := math.Max(dist[current][j], math.Max(core[current], core[j]))
			if mr < best[j] {
				best[j], from[j] = mr, current
			}
			if best[j] < nextW {
				next, nextW = j, best[j]
			}
		}
		inTree[next] = true
		edges = append(edges, mstEdge{a: from[next], b: next, w: nextW})
		current = next
	}
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].w < edges[j].w })
	return edges
}

// singleLinkage merges MST edges in weight order. Nodes 0..n-1 are points;
// node n+i is the i-th merge. The root is node 2n-2.
func singleLinkage(n int, edges []mstEdge) (left, right []int, height []float64, size []int) {
	total := 2*n - 1
	left = make([]int, total)
	right = make([]int, total)
	height = make([]float64, total)
	size = make([]int, total)
	parent := make([]int, total)
	for i := 0; i < total; i++ {
		parent[i] = i
		left[i], right[i] = -1, -1
		if i < n {
			size[i] = 1
		}
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	for i, e := range edges {
		node := n + i
		ra, rb := find(e.a), find(e.b)
		left[node], right[node] = ra, rb
		height[node] = e.w
		size[node] = size[ra] + size[rb]
		parent[ra], parent[rb] = node, node
	}
	return left, right, height, size
}

// condense walks the single-linkage tree from the root. A split where both
// sides reach minClusterSize births two child clusters; otherwise the small
// side's points leave the current cluster at that split's lambda. With
// minClusterSize >= 2 only internal nodes are ever pushed.
func condense(n int, left, right []int, height []float64, size []int, minClusterSize int) ([]pointExit, []clusterSplit) {
	var points []pointExit
	var splits []clusterSplit
	nextID := 1

	type frame struct{ node, cluster int }
	stack := []frame{{node: 2*n - 2, cluster: 0}}
	var leaves func(node int, out []int) []int
	leaves = func(node int, out []int) []int {
		if node < n {
			return append(out, node)
		}
		return leaves(right[node], leaves(left[node], out))
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		lambda := 1 / math.Max(height[f.node], 1e-12)
		l, r := left[f.node], right[f.node]
		lBig, rBig := size[l] >= minClusterSize, size[r] >= minClusterSize
		switch {
		case lBig && rBig:
			for _, child := range []int{l, r} {
				id := nextID
				nextID++
				splits = append(splits, clusterSplit{parent: f.cluster, child: id, lambda: lambda, size: size[child]})
				stack = append(stack, frame{node: child, cluster: id})
			}
		case !lBig && !rBig:
			for _, p := range leaves(r, leaves(l, nil)) {
				points = append(points, pointExit{parent: f.cluster, point: p, lambda: lambda})
			}
		case !lBig:
			for _, p := range leaves(l, nil) {
				points = append(points, pointExit{parent: f.cluster, point: p, lambda: lambda})
			}
			stack = append(stack, frame{node: r, cluster: f.cluster})
		default:
			for _, p := range leaves(r, nil) {
				points = append(points, pointExit{parent: f.cluster, point: p, lambda: lambda})
			}
			stack = append(stack, frame{node: l, cluster: f.cluster})
		}
	}
	return points, splits
}

// selectEOM picks the flat clustering with the most excess of mass. Child
// ids are always larger than their parent's, so walking ids downwards sees
// children first.
func selectEOM(points []pointExit, splits []clusterSplit) map[int]bool {
	birth := map[int]float64{0: 0}
	children := map[int][]int{}
	maxID := 0
	for _, s := range splits {
		birth[s.child] = s.lambda
		children[s.parent] = append(children[s.parent], s.child)
		maxID = max(maxID, s.child)
	}
	stability := make([]float64, maxID+1)
	for _, p := range points {
		stability[p.parent] += p.lambda - birth[p.parent]
	}
	for _, s := range splits {
		stability[s.parent] += float64(s.size) * (s.lambda - birth[s.parent])
	}

	selected := map[int]bool{}
	var unselect func(c int)
	unselect = func(c int) {
		for _, ch := range children[c] {
			delete(selected, ch)
			unselect(ch)
		}
	}
	for c := maxID; c >= 1; c-- {
		var sub float64
		for _, ch := range children[c] {
			sub += stability[ch]
		}
		if sub > stability[c] {
			stability[c] = sub
			continue
		}
		selected[c] = true
		unselect(c)
	}
	return selected
}
