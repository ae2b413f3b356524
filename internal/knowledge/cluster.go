package knowledge

// Cluster groups ids whose pairwise similarity reaches threshold, using
// single linkage over the square matrix sims. Clusters keep input order,
// and singletons are returned as their own cluster.
func Cluster(ids []string, sims [][]float64, threshold float64) [][]string {
	parent := make([]int, len(ids))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			if sims[i][j] >= threshold {
				ri, rj := find(i), find(j)
				if ri != rj {
					if ri < rj {
						parent[rj] = ri
					} else {
						parent[ri] = rj
					}
				}
			}
		}
	}

	slot := make(map[int]int)
	var clusters [][]string
	for i, id := range ids {
		root := find(i)
		k, ok := slot[root]
		if !ok {
			k = len(clusters)
			slot[root] = k
			clusters = append(clusters, nil)
		}
		clusters[k] = append(clusters[k], id)
	}
	return clusters
}
