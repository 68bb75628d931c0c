package routing

// ComputeEdgeNodes returns, in ascending order, the indices 0..len(tables)-1
// that never appear as a relay in tables[root]. A relay is any index at path
// positions 0..HopCount-2 of some entry. The root itself is included unless
// one of its own routes lists it as a relay.
func ComputeEdgeNodes(root int, tables []Table) []int {
	n := len(tables)
	relay := make([]bool, n)
	if root >= 0 && root < n {
		for _, e := range tables[root] {
			for i := 0; i < e.HopCount-1 && i < len(e.Path); i++ {
				if p := e.Path[i]; p >= 0 && p < n {
					relay[p] = true
				}
			}
		}
	}
	edges := make([]int, 0, n)
	for i, r := range relay {
		if !r {
			edges = append(edges, i)
		}
	}
	return edges
}
