package analytics

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// StudentCluster assigns a user to a cluster. Profile is the cluster centroid
// in original feature units. Label is only set by the quadrant rule.
type StudentCluster struct {
	UserID    int64     `json:"user_id"`
	ClusterID int       `json:"cluster_id"`
	Label     string    `json:"label,omitempty"`
	Profile   []float64 `json:"cluster_profile"`
}

// Cluster dispatches to the configured strategy
func Cluster(profiles []StudentProfile, opts Options) []StudentCluster {
	if opts.Clustering == StrategyQuadrant {
		return SegmentQuadrant(profiles)
	}
	return ClusterKMeans(profiles, opts.K, opts.Seed, opts.NInit, opts.MaxIter)
}

// ClusterKMeans groups users by their weekday activity pattern. Features are
// standardized to zero mean and unit variance before fitting. The best of
// nInit k-means++ seeded runs is kept, and ids are renumbered by first
// appearance so a fixed seed always yields the same assignment.
func ClusterKMeans(profiles []StudentProfile, k int, seed int64, nInit, maxIter int) []StudentCluster {
	out := make([]StudentCluster, 0, len(profiles))
	if len(profiles) == 0 || k <= 0 {
		return out
	}

	raw := make([][]float64, len(profiles))
	for i, p := range profiles {
		raw[i] = append([]float64(nil), p.WeekdayActions[:]...)
	}
	points := standardize(raw)

	if distinct := countDistinct(points); k > distinct {
		k = distinct
	}
	if nInit < 1 {
		nInit = 1
	}

	rng := rand.New(rand.NewSource(seed))
	var best []int
	bestInertia := math.Inf(1)
	for run := 0; run < nInit; run++ {
		labels, inertia := lloyd(points, kmeansPlusPlus(points, k, rng), maxIter)
		if inertia < bestInertia {
			best, bestInertia = labels, inertia
		}
	}

	remap := make(map[int]int)
	for i, l := range best {
		if _, ok := remap[l]; !ok {
			remap[l] = len(remap)
		}
		best[i] = remap[l]
	}

	centroids := centroidsOf(raw, best, len(remap))
	for i, p := range profiles {
		out = append(out, StudentCluster{
			UserID:    p.UserID,
			ClusterID: best[i],
			Profile:   centroids[best[i]],
		})
	}
	return out
}

// standardize scales every column to zero mean and unit population variance.
// Constant columns become 0.
func standardize(rows [][]float64) [][]float64 {
	if len(rows) == 0 {
		return rows
	}
	dims := len(rows[0])
	out := make([][]float64, len(rows))
	for i := range out {
		out[i] = make([]float64, dims)
	}
	column := make([]float64, len(rows))
	for d := 0; d < dims; d++ {
		for i, r := range rows {
			column[i] = r[d]
		}
		mu, sigma := stat.PopMeanStdDev(column, nil)
		if sigma == 0 {
			continue
		}
		for i, r := range rows {
			out[i][d] = (r[d] - mu) / sigma
		}
	}
	return out
}

func countDistinct(points [][]float64) int {
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		seen[fmt.Sprint(p)] = struct{}{}
	}
	return len(seen)
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

// kmeansPlusPlus picks k initial centres, each with probability proportional
// to its squared distance from the nearest centre already chosen
func kmeansPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centres := make([][]float64, 0, k)
	centres = append(centres, points[rng.Intn(len(points))])

	nearest := make([]float64, len(points))
	for len(centres) < k {
		total := 0.0
		for i, p := range points {
			nearest[i] = math.Inf(1)
			for _, c := range centres {
				nearest[i] = math.Min(nearest[i], sqDist(p, c))
			}
			total += nearest[i]
		}
		if total == 0 {
			break
		}
		target := rng.Float64() * total
		chosen := len(points) - 1
		for i, d := range nearest {
			target -= d
			if target < 0 {
				chosen = i
				break
			}
		}
		centres = append(centres, points[chosen])
	}

	out := make([][]float64, len(centres))
	for i, c := range centres {
		out[i] = append([]float64(nil), c...)
	}
	return out
}

// lloyd refines centres until assignments settle or maxIter is reached.
// An emptied cluster keeps its previous centre.
func lloyd(points, centres [][]float64, maxIter int) ([]int, float64) {
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}
	dims := len(points[0])

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			best, bestDist := 0, math.Inf(1)
			for c, centre := range centres {
				if d := sqDist(p, centre); d < bestDist {
					best, bestDist = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		sums := make([][]float64, len(centres))
		counts := make([]int, len(centres))
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, p := range points {
			floats.Add(sums[labels[i]], p)
			counts[labels[i]]++
		}
		for c := range centres {
			if counts[c] == 0 {
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			centres[c] = sums[c]
		}
	}

	inertia := 0.0
	for i, p := range points {
		inertia += sqDist(p, centres[labels[i]])
	}
	return labels, inertia
}

func centroidsOf(rows [][]float64, labels []int, k int) [][]float64 {
	dims := len(rows[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	for i, r := range rows {
		floats.Add(sums[labels[i]], r)
		counts[labels[i]]++
	}
	for c := range sums {
		if counts[c] > 0 {
			floats.Scale(1/float64(counts[c]), sums[c])
		}
	}
	return sums
}
