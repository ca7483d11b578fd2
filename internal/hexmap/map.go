package hexmap

// MaxMapWidth bounds the ring-expansion used to construct a grid,
// regardless of the map's own declared width/height (§4.5).
const MaxMapWidth = 400

// Map is a bounded hex grid: an ordered point list built by ring
// expansion around the origin and clipped to orientation-specific
// bounds, with a subset of point ids bound as barriers.
type Map struct {
	ID         uint32
	Width      uint16
	Height     uint16
	Horizontal bool

	barriers map[uint16]struct{}
	points   map[[2]int]Point
	order    []Point
}

// NewMap constructs a Map, binding every point whose id appears in
// barrierIDs as a barrier point.
func NewMap(id uint32, width, height uint16, horizontal bool, barrierIDs []uint16) *Map {
	m := &Map{
		ID:         id,
		Width:      width,
		Height:     height,
		Horizontal: horizontal,
		barriers:   make(map[uint16]struct{}, len(barrierIDs)),
		points:     make(map[[2]int]Point),
	}
	for _, id := range barrierIDs {
		m.barriers[id] = struct{}{}
	}
	m.build()
	return m
}

func (m *Map) build() {
	add := func(p Point) {
		if !m.inBounds(p) {
			return
		}
		key := [2]int{p.X, p.Y}
		if _, seen := m.points[key]; seen {
			return
		}
		if _, isBarrier := m.barriers[p.ID()]; isBarrier {
			p.BindBarrier()
		}
		m.points[key] = p
		m.order = append(m.order, p)
	}

	// Square rings of growing radius around the origin: ring r is every
	// point with max(|x|, |y|) == r, so the whole square is covered.
	add(NewPoint(0, 0))
	for r := 1; r <= MaxMapWidth; r++ {
		for i := -r; i < r; i++ {
			add(NewPoint(i, -r))
			add(NewPoint(r, i))
			add(NewPoint(-i, r))
			add(NewPoint(-r, -i))
		}
	}
}

// inBounds applies the orientation-specific filter from §4.5.
func (m *Map) inBounds(p Point) bool {
	if m.Horizontal {
		if p.Y < 0 || p.Y > int(m.Height)-1 {
			return false
		}
		half := float64(p.Y)/2 + 0.5
		lower := -half
		upper := float64(m.Width) + 1 - half
		x := float64(p.X)
		return x >= lower && x <= upper
	}

	if p.X < 0 || p.X > int(m.Width)-1 {
		return false
	}
	half := float64(p.X) / 2
	lower := -(half + 0.5)
	upper := float64(m.Height) - 1 - half + 0.5
	y := float64(p.Y)
	return y >= lower && y <= upper
}

// At looks up the point at (x, y). ok is false outside the grid.
func (m *Map) At(x, y int) (Point, bool) {
	p, ok := m.points[[2]int{x, y}]
	return p, ok
}

// Points returns the map's ordered point list. Callers must not
// mutate the returned slice.
func (m *Map) Points() []Point { return m.order }

// Neighbours returns the in-grid points reachable from p under the
// four-vector direction set (including the zero vector, which is
// never useful to a caller since p is always already closed by the
// time Search consults its own neighbours).
func (m *Map) Neighbours(p Point) []Point {
	out := make([]Point, 0, len(Directions))
	for _, d := range Directions {
		if n, ok := m.At(p.X+d.DX, p.Y+d.DY); ok {
			out = append(out, n)
		}
	}
	return out
}
