package sqlitex

import "testing"

// TestVtabCursorSurvivesConcurrentErase implements scenario S6: a cursor
// opened over {1,2,3,4,5}, after visiting id=2, must yield 4 (not 3, not
// 2 again) once id=3 is erased out from under it, then 5, then EOF.
func TestVtabCursorSurvivesConcurrentErase(t *testing.T) {
	s := newMemorySession(t)
	set := NewIDSet()
	set.InsertRange([]int64{1, 2, 3, 4, 5})
	if err := set.Attach(s); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer set.Detach()

	st, _, err := s.Prepare("SELECT id FROM " + set.Name() + " ORDER BY id")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	defer st.Finalize()

	row, err := st.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if got := row.Int64(0); got != 1 {
		t.Fatalf("first row = %d, want 1", got)
	}
	row, err = row.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got := row.Int64(0); got != 2 {
		t.Fatalf("second row = %d, want 2", got)
	}

	if n := set.Erase(3); n != 1 {
		t.Fatalf("Erase(3) = %d, want 1", n)
	}

	row, err = row.Next()
	if err != nil {
		t.Fatalf("next after concurrent erase: %v", err)
	}
	if row.Empty() {
		t.Fatal("expected a row for id=4")
	}
	if got := row.Int64(0); got != 4 {
		t.Fatalf("row after erase of 3 = %d, want 4 (not repeated 2, not erased 3)", got)
	}

	row, err = row.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got := row.Int64(0); got != 5 {
		t.Fatalf("next row = %d, want 5", got)
	}

	row, err = row.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !row.Empty() {
		t.Fatal("expected EOF after id=5")
	}
}
