package fixation

import (
	"math"
	"sort"
)

// spatialIndex buckets fixation centres into a uniform grid so
// neighbourhood queries touch only the 3x3 cell block around a point,
// instead of scanning the whole fixation list per query.
type spatialIndex struct {
	cellSize float64
	grid     map[int64][]int
}

func newSpatialIndex(cellSize float64) *spatialIndex {
	return &spatialIndex{cellSize: cellSize, grid: make(map[int64][]int)}
}

func (si *spatialIndex) build(points []Fixation) {
	for i, p := range points {
		id := si.cellID(p.X, p.Y)
		si.grid[id] = append(si.grid[id], i)
	}
}

// cellID pairs the zigzag-encoded cell coordinates with Szudzik's
// function so negative cells get a unique non-negative key.
func (si *spatialIndex) cellID(x, y float64) int64 {
	cx := int64(math.Floor(x / si.cellSize))
	cy := int64(math.Floor(y / si.cellSize))
	return szudzikPair(zigzag(cx), zigzag(cy))
}

func zigzag(v int64) int64 {
	if v >= 0 {
		return 2 * v
	}
	return -2*v - 1
}

func szudzikPair(a, b int64) int64 {
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

func (si *spatialIndex) regionQuery(points []Fixation, idx int, eps float64) []int {
	p := points[idx]
	eps2 := eps * eps
	cx := int64(math.Floor(p.X / si.cellSize))
	cy := int64(math.Floor(p.Y / si.cellSize))

	var neighbors []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			id := szudzikPair(zigzag(cx+dx), zigzag(cy+dy))
			for _, j := range si.grid[id] {
				q := points[j]
				ddx := q.X - p.X
				ddy := q.Y - p.Y
				if ddx*ddx+ddy*ddy <= eps2 {
					neighbors = append(neighbors, j)
				}
			}
		}
	}
	return neighbors
}

// DBSCAN clusters fixation centres in 2D screen space, returning
// ROIClusters sorted by descending total fixation duration.
func DBSCAN(fixations []Fixation, eps float64, minPts int) []ROICluster {
	if len(fixations) == 0 {
		return nil
	}

	n := len(fixations)
	labels := make([]int, n) // 0 = unvisited, -1 = noise, >0 = cluster id
	clusterID := 0

	idx := newSpatialIndex(eps)
	idx.build(fixations)

	for i := 0; i < n; i++ {
		if labels[i] != 0 {
			continue
		}
		neighbors := idx.regionQuery(fixations, i, eps)
		if len(neighbors) < minPts {
			labels[i] = -1
			continue
		}
		clusterID++
		expandCluster(fixations, idx, labels, neighbors, clusterID, eps, minPts)
	}

	return buildClusters(fixations, labels, clusterID, eps)
}

func expandCluster(points []Fixation, idx *spatialIndex, labels []int, neighbors []int, clusterID int, eps float64, minPts int) {
	for j := 0; j < len(neighbors); j++ {
		i := neighbors[j]
		if labels[i] == -1 {
			labels[i] = clusterID
		}
		if labels[i] != 0 {
			continue
		}
		labels[i] = clusterID
		more := idx.regionQuery(points, i, eps)
		if len(more) >= minPts {
			neighbors = append(neighbors, more...)
		}
	}
}

func buildClusters(points []Fixation, labels []int, maxID int, eps float64) []ROICluster {
	buckets := make([][]Fixation, maxID+1)
	for i, l := range labels {
		if l >= 1 {
			buckets[l] = append(buckets[l], points[i])
		}
	}

	clusters := make([]ROICluster, 0, maxID)
	for cid := 1; cid <= maxID; cid++ {
		members := buckets[cid]
		if len(members) == 0 {
			continue
		}

		var sumX, sumY, totalDuration float64
		for _, f := range members {
			sumX += f.X
			sumY += f.Y
			totalDuration += f.Duration
		}
		cx := sumX / float64(len(members))
		cy := sumY / float64(len(members))

		var maxDist float64
		for _, f := range members {
			d := math.Hypot(f.X-cx, f.Y-cy)
			if d > maxDist {
				maxDist = d
			}
		}

		clusters = append(clusters, ROICluster{
			CenterX:       cx,
			CenterY:       cy,
			TotalDuration: totalDuration,
			FixationCount: len(members),
			Radius:        maxDist + eps/2,
		})
	}

	sort.Slice(clusters, func(i, j int) bool { return clusters[i].TotalDuration > clusters[j].TotalDuration })
	for i := range clusters {
		clusters[i].ID = i
	}
	return clusters
}
