package sqlitex

import (
	"errors"
	"strings"
	"testing"
)

func TestNewEngineErrorClassification(t *testing.T) {
	var busy *BusyError
	if err := newEngineError(engineBusy, "db busy", "SELECT 1"); !errors.As(err, &busy) {
		t.Fatalf("newEngineError(engineBusy) did not classify as BusyError: %v", err)
	}
	if err := newEngineError(engineLocked, "locked", "SELECT 1"); !errors.As(err, &busy) {
		t.Fatalf("newEngineError(engineLocked) did not classify as BusyError: %v", err)
	}

	var interrupt *InterruptError
	if err := newEngineError(engineInterrupt, "interrupted", "SELECT 1"); !errors.As(err, &interrupt) {
		t.Fatalf("newEngineError(engineInterrupt) did not classify as InterruptError: %v", err)
	}

	var generic *Error
	if err := newEngineError(engineError, "syntax error", "SELEC 1"); !errors.As(err, &generic) {
		t.Fatalf("newEngineError(engineError) did not classify as Error: %v", err)
	}
}

func TestErrorMessagesCarrySQL(t *testing.T) {
	err := &Error{Code: engineError, Message: "no such table", SQL: "SELECT * FROM missing"}
	if got := err.Error(); !strings.Contains(got, err.SQL) {
		t.Fatalf("Error() = %q, want it to contain the SQL text %q", got, err.SQL)
	}
}
