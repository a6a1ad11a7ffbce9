package sqlitex

import "testing"

func TestRegisterIdempotent(t *testing.T) {
	sql := "SELECT 1 FROM registry_test_fixture_unique_marker"
	id1 := Register(sql)
	id2 := Register(sql)
	if id1 != id2 {
		t.Fatalf("Register(%q) returned different ids: %d != %d", sql, id1, id2)
	}
	text, err := RegistryText(id1)
	if err != nil {
		t.Fatalf("RegistryText: %v", err)
	}
	if text != sql {
		t.Fatalf("RegistryText(%d) = %q, want %q", id1, text, sql)
	}
}

func TestRegisterDistinctText(t *testing.T) {
	a := Register("SELECT a FROM registry_test_distinct_1")
	b := Register("SELECT b FROM registry_test_distinct_2")
	if a == b {
		t.Fatalf("distinct SQL text produced the same id %d", a)
	}
}

func TestRegistryTextOutOfRange(t *testing.T) {
	if _, err := RegistryText(-1); err == nil {
		t.Fatal("expected error for negative id")
	}
	if _, err := RegistryText(1 << 30); err == nil {
		t.Fatal("expected error for id beyond the interned range")
	}
}
