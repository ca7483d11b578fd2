package hexmap

import "testing"

// TestBindPointIdempotent covers invariant 1: applying BindBarrier
// twice yields the same state bits as applying it once.
func TestBindPointIdempotent(t *testing.T) {
	p := NewPoint(3, 4)
	p.BindBarrier()
	once := p
	p.BindBarrier()
	if p != once {
		t.Fatalf("BindBarrier is not idempotent: %+v != %+v", p, once)
	}
	if !p.Barrier() {
		t.Fatal("expected barrier bit set")
	}
}

// TestDistanceIsMetric covers invariant 2: d(a,a)=0, symmetry, and the
// triangle inequality.
func TestDistanceIsMetric(t *testing.T) {
	pts := []Point{
		NewPoint(0, 0), NewPoint(3, -2), NewPoint(-4, 5), NewPoint(10, 10), NewPoint(-1, -1),
	}
	for _, a := range pts {
		if d := Distance(a, a); d != 0 {
			t.Fatalf("Distance(a,a) = %d, want 0", d)
		}
	}
	for _, a := range pts {
		for _, b := range pts {
			if Distance(a, b) != Distance(b, a) {
				t.Fatalf("distance not symmetric for %+v, %+v", a, b)
			}
		}
	}
	for _, a := range pts {
		for _, b := range pts {
			for _, c := range pts {
				if Distance(a, c) > Distance(a, b)+Distance(b, c) {
					t.Fatalf("triangle inequality violated for %+v %+v %+v", a, b, c)
				}
			}
		}
	}
}

// TestPointIDClipping covers the id = clip15(max(x*y,0)) invariant.
func TestPointIDClipping(t *testing.T) {
	cases := []struct {
		x, y int
		want uint16
	}{
		{0, 0, 0},
		{3, 4, 12},
		{-3, 4, 0},
		{3, -4, 0},
		{300, 300, (300 * 300) & idMask},
	}
	for _, c := range cases {
		got := NewPoint(c.x, c.y).ID()
		if got != c.want {
			t.Errorf("NewPoint(%d,%d).ID() = %d, want %d", c.x, c.y, got, c.want)
		}
	}
}

// TestAStarPathOnBarrierMap covers scenario 2: a 10x10 horizontal map
// with barriers {1,2,3,4,5}, path from (0,1) to (1,3) uses only
// direction-vector moves, avoids every barrier id, and its length is
// at least the hex distance between the endpoints.
func TestAStarPathOnBarrierMap(t *testing.T) {
	m := NewMap(1, 10, 10, true, []uint16{1, 2, 3, 4, 5})

	start, ok := m.At(0, 1)
	if !ok {
		t.Fatal("start point not in grid")
	}
	end, ok := m.At(1, 3)
	if !ok {
		t.Fatal("end point not in grid")
	}

	path, ok := Search(m, start, end, nil)
	if !ok {
		t.Fatal("expected a path to be found")
	}

	wantMinLen := Distance(start, end) + 1 // steps including start
	if len(path) < wantMinLen {
		t.Fatalf("path length %d shorter than hex distance+1 (%d)", len(path), wantMinLen)
	}

	barrierSet := map[uint16]struct{}{1: {}, 2: {}, 3: {}, 4: {}, 5: {}}
	for i, p := range path {
		if _, isBarrier := barrierSet[p.ID()]; isBarrier {
			t.Fatalf("path step %d (%+v) is a barrier point", i, p)
		}
		if i == 0 {
			continue
		}
		prev := path[i-1]
		dx, dy := p.X-prev.X, p.Y-prev.Y
		matched := false
		for _, d := range Directions {
			if d.DX == dx && d.DY == dy {
				matched = true
				break
			}
		}
		if !matched {
			t.Fatalf("step %d->%d is not a direction-vector move: (%d,%d)", i-1, i, dx, dy)
		}
	}
}

// TestAStarNoBarriersReachesTarget covers invariant 3's
// absence-of-barriers case: the search finds a path that terminates
// exactly at the target and takes no more steps than the hex distance.
func TestAStarNoBarriersReachesTarget(t *testing.T) {
	m := NewMap(2, 20, 20, true, nil)

	start, _ := m.At(0, 0)
	end, _ := m.At(3, 5)

	path, ok := Search(m, start, end, nil)
	if !ok {
		t.Fatal("expected a path")
	}
	if last := path[len(path)-1]; last.X != end.X || last.Y != end.Y {
		t.Fatalf("path does not end at target: %+v", last)
	}
	if steps := len(path) - 1; steps > Distance(start, end) {
		t.Fatalf("path took %d steps, more than the hex distance %d", steps, Distance(start, end))
	}
}

// TestAStarReturnsFalseWhenUnreachable covers the "heap empties
// without a match" termination case.
func TestAStarReturnsFalseWhenUnreachable(t *testing.T) {
	m := NewMap(3, 5, 5, true, nil)
	start, _ := m.At(0, 0)
	unreachable := NewPoint(999, 999) // outside the grid entirely

	_, ok := Search(m, start, unreachable, nil)
	if ok {
		t.Fatal("expected no path to an out-of-grid point")
	}
}
