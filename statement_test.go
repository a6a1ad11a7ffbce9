package sqlitex

import "testing"

func TestStatementLifecycle(t *testing.T) {
	s := newMemorySession(t)
	st, tail, err := s.Prepare("SELECT 1; SELECT 2")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if tail != "SELECT 2" {
		t.Fatalf("tail = %q, want %q", tail, "SELECT 2")
	}
	if !st.Prepared() {
		t.Fatal("expected Prepared() true right after Prepare")
	}

	row, err := st.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if row.Empty() {
		t.Fatal("expected a row")
	}
	if !st.Active() {
		t.Fatal("expected Active() true after Begin yields a row")
	}

	next, err := st.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !next.Empty() {
		t.Fatal("expected no more rows")
	}
	if st.Active() {
		t.Fatal("expected Active() false after exhausting the result")
	}

	if err := st.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if st.Prepared() {
		t.Fatal("expected Prepared() false after Finalize")
	}
	if err := st.Finalize(); err != nil {
		t.Fatalf("second Finalize should be a no-op, got: %v", err)
	}
}

func TestStatementBindResetsActive(t *testing.T) {
	s := newMemorySession(t)
	st, _, err := s.Prepare("SELECT ?1")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	defer st.Finalize()

	if err := st.Bind(1, int64(1)); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := st.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !st.Active() {
		t.Fatal("expected Active() true")
	}

	if err := st.Bind(1, int64(2)); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if st.Active() {
		t.Fatal("a successful bind on an active statement must implicitly reset it")
	}
}

func TestStatementBindInvalidIndex(t *testing.T) {
	s := newMemorySession(t)
	st, _, err := s.Prepare("SELECT ?1")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	defer st.Finalize()

	if err := st.Bind(0, int64(1)); err == nil {
		t.Fatal("expected error for zero parameter index")
	}
}

func TestStatementBindAllLeavesTrailingNull(t *testing.T) {
	s := newMemorySession(t)
	st, _, err := s.Prepare("SELECT ?1, ?2")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	defer st.Finalize()

	if err := st.BindAll(int64(7)); err != nil {
		t.Fatalf("BindAll: %v", err)
	}
	row, err := st.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if got := row.Int64(0); got != 7 {
		t.Fatalf("column 0 = %d, want 7", got)
	}
	if !row.IsNull(1) {
		t.Fatal("expected column 1 to remain null")
	}
}

func TestRowColumnByName(t *testing.T) {
	s := newMemorySession(t)
	_, row, err := s.Exec("SELECT 1 AS a, 'x' AS b")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	v, err := row.ColumnInt64("a")
	if err != nil {
		t.Fatalf("ColumnInt64: %v", err)
	}
	if v != 1 {
		t.Fatalf("a = %d, want 1", v)
	}
	if _, err := row.ColumnInt64("nonexistent"); err == nil {
		t.Fatal("expected error for unknown column name")
	}
}
