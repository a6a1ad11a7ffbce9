package sqlitex

import "fmt"

// Error reports a non-transient failure from the engine: a malformed
// statement, a constraint violation, a misuse of a handle, and so on. It
// carries both the engine's message and the SQL text that produced it so a
// caller logging the error doesn't need to thread the statement through
// separately.
type Error struct {
	Code    int
	Message string
	SQL     string
}

func (e *Error) Error() string {
	if e.SQL == "" {
		return fmt.Sprintf("sqlitex: %s (code %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("sqlitex: %s (code %d): %s", e.Message, e.Code, e.SQL)
}

// BusyError reports that the engine could not acquire the lock it needed:
// it reported the database as busy or locked, or registering for an unlock
// notification reported a possible deadlock. Session.Exec and
// Session.ExecID return this, as does Begin when it is raised inside a
// nested frame (an outermost frame retries instead), so callers can
// distinguish "try again later" from a real statement defect.
type BusyError struct {
	Message string
	SQL     string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("sqlitex: busy: %s: %s", e.Message, e.SQL)
}

// InterruptError reports that Session.interrupt fired while a statement was
// stepping. The statement that was interrupted is left reset; the caller
// may re-issue it.
type InterruptError struct {
	Message string
	SQL     string
}

func (e *InterruptError) Error() string {
	return fmt.Sprintf("sqlitex: interrupted: %s: %s", e.Message, e.SQL)
}

// newEngineError classifies a raw engine status/message pair into one of
// the three error kinds the rest of the package deals in. Callers that only
// care about "did this fail" can keep treating the result as a plain error;
// callers that care about *why* use errors.As against BusyError or
// InterruptError.
func newEngineError(code int, message, sql string) error {
	switch code {
	case engineBusy, engineLocked:
		return &BusyError{Message: message, SQL: sql}
	case engineInterrupt:
		return &InterruptError{Message: message, SQL: sql}
	default:
		return &Error{Code: code, Message: message, SQL: sql}
	}
}
