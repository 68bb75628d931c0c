package session

import "github.com/Syracusa/ce-ef/pkg/geo"

// LinkMatrix returns the upper-triangular distance matrix of all registered
// nodes: row i holds the distances in meters from node i to nodes i+1..N-1,
// rounded to centimeters. A pair with a missing position gets unknown.
func LinkMatrix(nodes NodeLocator, unknown float64) [][]float64 {
	n := nodes.Count()
	pos := make([]geo.Position, n)
	ok := make([]bool, n)
	for i := range pos {
		pos[i], ok[i] = nodes.Position(i)
	}

	links := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, 0, n-1-i)
		for j := i + 1; j < n; j++ {
			d := unknown
			if ok[i] && ok[j] {
				d = geo.Distance(pos[i], pos[j])
			}
			row = append(row, geo.Round2(d))
		}
		links[i] = row
	}
	return links
}
