package shuffle

import "testing"

func TestDrawExhaustsCycleExactlyOnce(t *testing.T) {
	d := New(5)
	seen := make(map[int]int)
	for i := 0; i < 5; i++ {
		seen[d.Draw()]++
	}
	if !d.CycleDone() {
		t.Fatalf("expected cycle done after draining size draws")
	}
	for i := 0; i < 5; i++ {
		if seen[i] != 1 {
			t.Errorf("index %d drawn %d times, want exactly 1", i, seen[i])
		}
	}
}

func TestDrawAutoResetsAcrossCycles(t *testing.T) {
	d := New(3)
	for i := 0; i < 3; i++ {
		d.Draw()
	}
	if !d.CycleDone() {
		t.Fatalf("expected cycle done")
	}
	seen := make(map[int]int)
	for i := 0; i < 3; i++ {
		seen[d.Draw()]++
	}
	for i := 0; i < 3; i++ {
		if seen[i] != 1 {
			t.Errorf("second cycle: index %d drawn %d times, want 1", i, seen[i])
		}
	}
}

func TestResetRestoresCanonicalContents(t *testing.T) {
	d := New(4)
	d.Draw()
	d.Draw()
	d.Reset()
	if d.CycleDone() {
		t.Fatalf("reset deck should not be cycle-done")
	}
	seen := make(map[int]int)
	for i := 0; i < 4; i++ {
		seen[d.Draw()]++
	}
	for i := 0; i < 4; i++ {
		if seen[i] != 1 {
			t.Errorf("index %d drawn %d times after reset-cycle, want 1", i, seen[i])
		}
	}
}

func TestAddGrowsAndKeepsNewIndicesDrawable(t *testing.T) {
	d := New(2)
	d.Draw() // partially drawn: end == 1
	d.Add(3) // size becomes 5; the three new indices and the one old undrawn index surface exactly once this cycle

	seen := make(map[int]int)
	for !d.CycleDone() {
		seen[d.Draw()]++
	}
	if d.Size() != 5 {
		t.Fatalf("size = %d, want 5", d.Size())
	}
	// Every index 2..4 (newly added) must appear; 0 or 1 (one already
	// drawn before Add) must not reappear this cycle.
	for i := 2; i < 5; i++ {
		if seen[i] != 1 {
			t.Errorf("new index %d seen %d times, want 1", i, seen[i])
		}
	}
}

func TestRemoveShrinksAndAdjustsEnd(t *testing.T) {
	d := New(8)
	d.Draw()
	d.Draw()
	d.Draw() // end == 5
	d.Remove(3)
	if d.Size() != 5 {
		t.Fatalf("size = %d, want 5", d.Size())
	}
	if d.end != 2 {
		t.Fatalf("end = %d, want 2", d.end)
	}
}

func TestRemoveMoreThanEndZeroesEnd(t *testing.T) {
	d := New(8)
	d.Draw()
	d.Draw() // end == 6
	d.Remove(7)
	if d.Size() != 1 {
		t.Fatalf("size = %d, want 1", d.Size())
	}
	if d.end != 0 {
		t.Fatalf("end = %d, want 0", d.end)
	}
}

func TestCapacityFloor(t *testing.T) {
	d := New(1)
	d.Remove(0) // no-op
	if cap(d.items) < minCapacity {
		t.Fatalf("capacity %d below floor %d", cap(d.items), minCapacity)
	}
}

func TestNewZero(t *testing.T) {
	d := New(0)
	if !d.CycleDone() {
		t.Fatalf("empty deck should report cycle done")
	}
}
