package altimetry

import "math"

// Density-based clustering over 2-D feature points. This is the engine
// behind the elliptical filter: features are (along-track index, scaled
// elevation), so a single isotropic radius expresses the anisotropic
// neighbourhood.

// featurePoint is one point in the 2-D clustering feature space.
type featurePoint struct {
	X, Y float64
}

// estimatedPointsPerCell sizes the spatial index's initial capacity.
const estimatedPointsPerCell = 4

// gridIndex provides neighbourhood queries over feature points using a
// regular grid. Cell size matches the DBSCAN eps so a 3x3 cell scan covers
// every candidate neighbour.
type gridIndex struct {
	cellSize float64
	cells    map[int64][]int
}

func newGridIndex(points []featurePoint, cellSize float64) *gridIndex {
	gi := &gridIndex{
		cellSize: cellSize,
		cells:    make(map[int64][]int, len(points)/estimatedPointsPerCell+1),
	}
	for i, p := range points {
		id := gi.cellID(p.X, p.Y)
		gi.cells[id] = append(gi.cells[id], i)
	}
	return gi
}

func (gi *gridIndex) cellID(x, y float64) int64 {
	cx := int64(math.Floor(x / gi.cellSize))
	cy := int64(math.Floor(y / gi.cellSize))
	return pairCells(cx, cy)
}

// pairCells maps a signed cell coordinate pair to a unique non-negative
// key using zigzag encoding followed by Szudzik's pairing function.
func pairCells(cx, cy int64) int64 {
	var a, b int64
	if cx >= 0 {
		a = 2 * cx
	} else {
		a = -2*cx - 1
	}
	if cy >= 0 {
		b = 2 * cy
	} else {
		b = -2*cy - 1
	}
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

// regionQuery returns indices of all points within eps of points[idx],
// including idx itself.
func (gi *gridIndex) regionQuery(points []featurePoint, idx int, eps float64) []int {
	p := points[idx]
	eps2 := eps * eps
	cx := int64(math.Floor(p.X / gi.cellSize))
	cy := int64(math.Floor(p.Y / gi.cellSize))

	var neighbours []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, ci := range gi.cells[pairCells(cx+dx, cy+dy)] {
				c := points[ci]
				ddx := c.X - p.X
				ddy := c.Y - p.Y
				if ddx*ddx+ddy*ddy <= eps2 {
					neighbours = append(neighbours, ci)
				}
			}
		}
	}
	return neighbours
}

// dbscan labels every feature point. Labels are -1 for noise and 1..n for
// cluster membership; n is returned as the cluster count. Cluster ids are
// assigned in scan order over the input, which makes labelling (and the
// lowest-id tie-break built on it) deterministic for identical input.
func dbscan(points []featurePoint, eps float64, minPts int) (labels []int, clusters int) {
	n := len(points)
	labels = make([]int, n) // 0 = unvisited, -1 = noise, >0 = cluster id
	if n == 0 {
		return labels, 0
	}

	index := newGridIndex(points, eps)
	clusterID := 0

	for i := 0; i < n; i++ {
		if labels[i] != 0 {
			continue
		}
		neighbours := index.regionQuery(points, i, eps)
		if len(neighbours) < minPts {
			labels[i] = -1
			continue
		}
		clusterID++
		expandCluster(points, index, labels, i, neighbours, clusterID, eps, minPts)
	}
	return labels, clusterID
}

// expandCluster grows a cluster outward from a core point using a
// queue-based sweep over the neighbourhood.
func expandCluster(points []featurePoint, index *gridIndex, labels []int,
	seed int, neighbours []int, clusterID int, eps float64, minPts int) {

	labels[seed] = clusterID

	for j := 0; j < len(neighbours); j++ {
		idx := neighbours[j]
		if labels[idx] == -1 {
			labels[idx] = clusterID // noise becomes a border point
		}
		if labels[idx] != 0 {
			continue
		}
		labels[idx] = clusterID
		next := index.regionQuery(points, idx, eps)
		if len(next) >= minPts {
			neighbours = append(neighbours, next...)
		}
	}
}

// largestCluster returns the id of the biggest cluster, breaking size ties
// in favour of the lowest id. Returns 0 when no cluster exists.
func largestCluster(labels []int, clusters int) int {
	if clusters == 0 {
		return 0
	}
	counts := make([]int, clusters+1)
	for _, l := range labels {
		if l > 0 {
			counts[l]++
		}
	}
	best, bestCount := 0, 0
	for id := 1; id <= clusters; id++ {
		if counts[id] > bestCount {
			best, bestCount = id, counts[id]
		}
	}
	return best
}
