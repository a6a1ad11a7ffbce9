package sqlitex

import "testing"

func newMemorySession(t *testing.T) *Session {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionExecAdHoc(t *testing.T) {
	s := newMemorySession(t)
	if _, _, err := s.Exec("CREATE TABLE offices (city TEXT, phone TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, _, err := s.Exec("INSERT INTO offices (city, phone) VALUES (?1, ?2)", "London", "+44 20 7877 2041"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, row, err := s.Exec("SELECT phone FROM offices WHERE city = 'London'")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if row.Empty() {
		t.Fatal("expected one row")
	}
	if got := row.Text(0); got != "+44 20 7877 2041" {
		t.Fatalf("phone = %q, want %q", got, "+44 20 7877 2041")
	}
	next, err := row.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if !next.Empty() {
		t.Fatal("expected exactly one matching row")
	}
}

// TestSessionExecIDPrecompiled implements scenario S1 from the
// specification: a statement registered ahead of time, looked up by id,
// yields the expected single row.
func TestSessionExecIDPrecompiled(t *testing.T) {
	s := newMemorySession(t)
	if _, _, err := s.Exec("CREATE TABLE offices (city TEXT, phone TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, _, err := s.Exec("INSERT INTO offices (city, phone) VALUES ('London', '+44 20 7877 2041')"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	id := Register("SELECT phone FROM offices WHERE city = 'London'")
	_, row, err := s.ExecID(id)
	if err != nil {
		t.Fatalf("ExecID: %v", err)
	}
	if row.Empty() {
		t.Fatal("expected one row")
	}
	if got := row.Text(0); got != "+44 20 7877 2041" {
		t.Fatalf("phone = %q, want %q", got, "+44 20 7877 2041")
	}
}

func TestSessionRoundTripBindings(t *testing.T) {
	s := newMemorySession(t)

	cases := []interface{}{int64(42), -17, 3.25, "hello world", true}
	for _, v := range cases {
		_, row, err := s.Exec("SELECT ?1", v)
		if err != nil {
			t.Fatalf("SELECT ?1 with %v: %v", v, err)
		}
		if row.Empty() {
			t.Fatalf("expected a row for %v", v)
		}
		switch want := v.(type) {
		case int64:
			if got := row.Int64(0); got != want {
				t.Fatalf("int64 round trip: got %d want %d", got, want)
			}
		case int:
			if got := row.Int64(0); got != int64(want) {
				t.Fatalf("int round trip: got %d want %d", got, want)
			}
		case float64:
			if got := row.Float64(0); got != want {
				t.Fatalf("float64 round trip: got %v want %v", got, want)
			}
		case string:
			if got := row.Text(0); got != want {
				t.Fatalf("string round trip: got %q want %q", got, want)
			}
		case bool:
			want64 := int64(0)
			if want {
				want64 = 1
			}
			if got := row.Int64(0); got != want64 {
				t.Fatalf("bool round trip: got %d want %d", got, want64)
			}
		}
	}
}

func TestSessionRoundTripNull(t *testing.T) {
	s := newMemorySession(t)
	_, row, err := s.Exec("SELECT NULL")
	if err != nil {
		t.Fatalf("SELECT NULL: %v", err)
	}
	if !row.IsNull(0) {
		t.Fatal("expected NULL column")
	}
	if f := row.Float64(0); f == f {
		t.Fatalf("Float64 of NULL = %v, want NaN", f)
	}
	if i := row.Int64(0); i != 0 {
		t.Fatalf("Int64 of NULL = %v, want 0", i)
	}
}

func TestSessionUnrecognisedScheme(t *testing.T) {
	s := NewSession()
	if err := s.Open("postgres://localhost/db"); err == nil {
		t.Fatal("expected error for unrecognised scheme")
	}
}

func TestSessionLastInsertRowIDAndRowsAffected(t *testing.T) {
	s := newMemorySession(t)
	if _, _, err := s.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, _, err := s.Exec("INSERT INTO t (v) VALUES ('a')"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id := s.LastInsertRowID(); id != 1 {
		t.Fatalf("LastInsertRowID() = %d, want 1", id)
	}
	if _, _, err := s.Exec("UPDATE t SET v = 'b' WHERE id = 1"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n := s.RowsAffected(); n != 1 {
		t.Fatalf("RowsAffected() = %d, want 1", n)
	}
}
