package geom

import "testing"

func TestMergeContainsBoth(t *testing.T) {
	a := New(0, 0, 10, 10)
	b := New(5, 5, 10, 10)
	m := a.Merge(b)

	if !m.Contains(a) || !m.Contains(b) {
		t.Fatalf("merge %+v does not contain both inputs %+v %+v", m, a, b)
	}
	if m.Area() < a.Area() || m.Area() < b.Area() {
		t.Fatalf("merge area %d smaller than an input area", m.Area())
	}
}

func TestMergeCommutative(t *testing.T) {
	a := New(3, 4, 20, 6)
	b := New(-2, 1, 5, 5)

	ab := a.Merge(b)
	ba := b.Merge(a)
	if ab != ba {
		t.Fatalf("merge not commutative: %+v vs %+v", ab, ba)
	}
}

func TestOverlapsDisjoint(t *testing.T) {
	a := New(0, 0, 10, 10)
	b := New(20, 20, 10, 10)
	if a.Overlaps(b) {
		t.Fatalf("disjoint rectangles reported as overlapping")
	}
}

func TestOverlapsTouchingEdgeIsNotOverlap(t *testing.T) {
	a := New(0, 0, 10, 10)
	b := New(10, 0, 10, 10)
	if a.Overlaps(b) {
		t.Fatalf("edge-touching rectangles should not overlap (half-open intervals)")
	}
}

func TestMergeAdjacentTransitiveClosure(t *testing.T) {
	rects := []Rectangle{
		New(0, 0, 10, 10),
		New(8, 0, 10, 10),
		New(16, 0, 10, 10),
		New(100, 100, 5, 5),
	}

	merged := MergeAdjacent(rects)
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged rectangles (chain + isolated), got %d: %+v", len(merged), merged)
	}

	for _, m := range merged {
		if m.Area() == 25 {
			continue
		}
		for _, r := range rects[:3] {
			if !m.Contains(r) {
				t.Fatalf("merged chain %+v does not contain %+v", m, r)
			}
		}
	}
}
