package simulator

import (
	"container/heap"
	"math"

	"go.uber.org/zap"

	"github.com/Syracusa/ce-ef/pkg/protocol"
)

// graph holds symmetric radio links between nodes closer than the range.
type graph struct {
	n   int
	adj [][]link
}

type link struct {
	to int
	w  float64
}

// buildGraph reads the upper-triangular distance matrix sent in LinkInfo:
// links[i][j-i-1] is the distance from i to j.
func buildGraph(links [][]float64, rangeM float64) graph {
	n := len(links)
	g := graph{n: n, adj: make([][]link, n)}
	for i, row := range links {
		for k, d := range row {
			j := i + 1 + k
			if j >= n || d > rangeM || math.IsNaN(d) {
				continue
			}
			w := edgeWeight(d, rangeM)
			g.adj[i] = append(g.adj[i], link{to: j, w: w})
			g.adj[j] = append(g.adj[j], link{to: i, w: w})
		}
	}
	zap.L().Debug("link graph built", zap.Int("nodes", n))
	return g
}

// edgeWeight prefers fewer hops and, among equal hop counts, shorter links.
func edgeWeight(d, rangeM float64) float64 {
	if rangeM <= 0 {
		return 1
	}
	return 1 + d/rangeM
}

// shortestPath returns the node sequence src..dst, or nil when dst is not
// reachable.
func (g graph) shortestPath(src, dst int) []int {
	if src < 0 || src >= g.n || dst < 0 || dst >= g.n {
		return nil
	}
	dist := make([]float64, g.n)
	prev := make([]int, g.n)
	visited := make([]bool, g.n)
	for i := range dist {
		dist[i] = math.Inf(1)
		prev[i] = -1
	}
	dist[src] = 0
	pq := &nodePQ{}
	heap.Push(pq, nodeItem{id: src, prio: 0})

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(nodeItem)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true
		if cur.id == dst {
			break
		}
		for _, l := range g.adj[cur.id] {
			if nd := dist[cur.id] + l.w; nd < dist[l.to] {
				dist[l.to] = nd
				prev[l.to] = cur.id
				heap.Push(pq, nodeItem{id: l.to, prio: nd})
			}
		}
	}
	if math.IsInf(dist[dst], 1) {
		return nil
	}
	var rev []int
	for at := dst; at != -1; at = prev[at] {
		rev = append(rev, at)
	}
	path := make([]int, len(rev))
	for i := range rev {
		path[i] = rev[len(rev)-1-i]
	}
	return path
}

// PlanRoutes computes the route from every node to every other reachable
// node. Path holds only the relays between the two, so
// len(Path) == HopCount-1.
func PlanRoutes(links [][]float64, rangeM float64) []protocol.Route {
	g := buildGraph(links, rangeM)
	var out []protocol.Route
	for src := 0; src < g.n; src++ {
		for dst := 0; dst < g.n; dst++ {
			if src == dst {
				continue
			}
			p := g.shortestPath(src, dst)
			if len(p) < 2 {
				continue
			}
			out = append(out, protocol.Route{
				Node:     src,
				Target:   dst,
				HopCount: len(p) - 1,
				Path:     p[1 : len(p)-1],
			})
		}
	}
	return out
}

type nodeItem struct {
	id   int
	prio float64
}

type nodePQ []nodeItem

func (p nodePQ) Len() int            { return len(p) }
func (p nodePQ) Less(i, j int) bool  { return p[i].prio < p[j].prio }
func (p nodePQ) Swap(i, j int)       { p[i], p[j] = p[j], p[i] }
func (p *nodePQ) Push(x interface{}) { *p = append(*p, x.(nodeItem)) }
func (p *nodePQ) Pop() interface{} {
	old := *p
	n := len(old)
	x := old[n-1]
	*p = old[:n-1]
	return x
}
