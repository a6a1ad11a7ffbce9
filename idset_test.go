package sqlitex

import "testing"

func mustAscending(t *testing.T, s *IDSet) {
	t.Helper()
	vals := s.Values()
	for i := 1; i < len(vals); i++ {
		if vals[i-1] >= vals[i] {
			t.Fatalf("storage not strictly ascending: %v", vals)
		}
	}
}

func TestIDSetInsertErase(t *testing.T) {
	s := NewIDSet()
	if _, ok := s.Insert(5); !ok {
		t.Fatal("expected first insert of 5 to report inserted")
	}
	if _, ok := s.Insert(5); ok {
		t.Fatal("expected duplicate insert of 5 to report not-inserted")
	}
	s.Insert(1)
	s.Insert(3)
	mustAscending(t, s)
	if got := s.Values(); len(got) != 3 {
		t.Fatalf("Values() = %v, want 3 elements", got)
	}
	if n := s.Erase(3); n != 1 {
		t.Fatalf("Erase(3) = %d, want 1", n)
	}
	if n := s.Erase(3); n != 0 {
		t.Fatalf("Erase(3) again = %d, want 0", n)
	}
}

// TestIDSetIntermixedInsert implements scenario S4 from the specification:
// set = {2,4,6,8}; insert({0,1,3,5,7,9,10}) returns 7 and the set becomes
// {0,1,2,3,4,5,6,7,8,9,10}.
func TestIDSetIntermixedInsert(t *testing.T) {
	s := NewIDSet()
	s.InsertRange([]int64{2, 4, 6, 8})

	added := s.InsertRange([]int64{0, 1, 3, 5, 7, 9, 10})
	if added != 7 {
		t.Fatalf("InsertRange added %d, want 7", added)
	}
	want := []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	got := s.Values()
	if len(got) != len(want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Values() = %v, want %v", got, want)
		}
	}
}

func TestIDSetIntersect(t *testing.T) {
	s := NewIDSet()
	s.InsertRange([]int64{1, 2, 3, 4, 5})
	other := NewIDSet()
	other.InsertRange([]int64{2, 4, 6})

	removed := s.Intersect(other)
	if removed != 3 {
		t.Fatalf("Intersect removed %d, want 3", removed)
	}
	want := []int64{2, 4}
	got := s.Values()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Values() after Intersect = %v, want %v", got, want)
	}
}

func TestIDSetSymmetricDifference(t *testing.T) {
	s := NewIDSet()
	s.InsertRange([]int64{1, 2, 3})
	other := NewIDSet()
	other.InsertRange([]int64{2, 3, 4})

	s.SymmetricDifference(other)
	want := []int64{1, 4}
	got := s.Values()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Values() after SymmetricDifference = %v, want %v", got, want)
	}
}

func TestIDSetSwapKeepsNamesStable(t *testing.T) {
	a := NewIDSet()
	a.InsertRange([]int64{1, 2, 3})
	b := NewIDSet()
	b.InsertRange([]int64{9, 8})

	nameA, nameB := a.Name(), b.Name()
	if err := a.Swap(b); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	if a.Name() != nameA || b.Name() != nameB {
		t.Fatalf("Swap must not change SQL names: got (%s, %s), want (%s, %s)", a.Name(), b.Name(), nameA, nameB)
	}
	if got := a.Values(); len(got) != 2 {
		t.Fatalf("a.Values() after swap = %v, want b's original contents", got)
	}
	if got := b.Values(); len(got) != 3 {
		t.Fatalf("b.Values() after swap = %v, want a's original contents", got)
	}
}

func TestIDSetCompareIgnoresAttachment(t *testing.T) {
	a := NewIDSet()
	a.InsertRange([]int64{1, 2, 3})
	if err := a.Attach(newMemorySession(t)); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer a.Detach()
	b := NewIDSet()
	b.InsertRange([]int64{1, 2, 3})
	if !a.Equal(b) {
		t.Fatal("expected equal sets with identical contents")
	}
	c := NewIDSet()
	c.InsertRange([]int64{1, 2, 4})
	if a.Compare(c) >= 0 {
		t.Fatalf("Compare({1,2,3}, {1,2,4}) = %d, want negative", a.Compare(c))
	}
}
