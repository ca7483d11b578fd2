package hexmap

import "container/heap"

// MaxAStarSteps bounds a single search; it gives up rather than
// exhaust the open set on a pathological map (§4.5).
const MaxAStarSteps = 65536

// Search runs a bounded A* from start to end over m, using hex
// distance to end as the heuristic and a uniform edge cost of 1.
// viable, when non-nil, is consulted on every candidate neighbour in
// addition to the map's own bounds/barrier filtering — the hook the
// exploration core uses for visibility gating. Barrier points are
// never expanded. Returns (nil, false) if the open set empties
// without reaching end, or if the step cap is hit.
func Search(m *Map, start, end Point, viable func(Point) bool) ([]Point, bool) {
	type key = [2]int
	coord := func(p Point) key { return key{p.X, p.Y} }

	open := &nodeHeap{}
	heap.Init(open)
	heap.Push(open, &node{p: start, g: 0, f: Distance(start, end)})

	gScore := map[key]int{coord(start): 0}
	cameFrom := make(map[key]Point)
	closed := make(map[key]bool)

	steps := 0
	for open.Len() > 0 {
		steps++
		if steps > MaxAStarSteps {
			return nil, false
		}

		cur := heap.Pop(open).(*node)
		ck := coord(cur.p)
		if closed[ck] {
			continue
		}
		closed[ck] = true

		if cur.p.X == end.X && cur.p.Y == end.Y {
			return reconstructPath(cameFrom, cur.p, start), true
		}

		for _, n := range m.Neighbours(cur.p) {
			if n.Barrier() {
				continue
			}
			nk := coord(n)
			if closed[nk] {
				continue
			}
			if viable != nil && !viable(n) {
				continue
			}
			tentativeG := cur.g + 1
			if existing, ok := gScore[nk]; ok && tentativeG >= existing {
				continue
			}
			gScore[nk] = tentativeG
			cameFrom[nk] = cur.p
			heap.Push(open, &node{p: n, g: tentativeG, f: tentativeG + Distance(n, end)})
		}
	}
	return nil, false
}

func reconstructPath(cameFrom map[[2]int]Point, cur, start Point) []Point {
	path := []Point{cur}
	for !(cur.X == start.X && cur.Y == start.Y) {
		prev, ok := cameFrom[[2]int{cur.X, cur.Y}]
		if !ok {
			break
		}
		path = append(path, prev)
		cur = prev
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// node is one A* open-set entry: the point, its accumulated cost g,
// and its total estimated cost f = g + heuristic.
type node struct {
	p     Point
	g, f  int
	index int
}

// nodeHeap is a container/heap min-heap on f-score, so the lowest
// f-score node is always popped first.
type nodeHeap []*node

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].f < h[j].f }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *nodeHeap) Push(x any) {
	n := x.(*node)
	n.index = len(*h)
	*h = append(*h, n)
}
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}
