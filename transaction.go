package sqlitex

import "errors"

type txState int

const (
	txDefault txState = iota
	txCommitted
	txRolledBack
)

// Transaction is a unit of atomic work, possibly nested, implementing the
// retry-on-Busy loop and commit/rollback hook draining described in spec
// §4.5. The zero value is not usable; obtain one via Begin.
type Transaction struct {
	session *Session
	outer   *Transaction
	state   txState
}

// Active reports whether this frame still has a live session pointer
// (spec §3: active ⇔ session ≠ null).
func (t *Transaction) Active() bool { return t != nil && t.session != nil }

// Nested reports whether this frame has an outer frame on the same session.
func (t *Transaction) Nested() bool { return t != nil && t.outer != nil }

// Committed reports whether this frame has been tagged Committed.
func (t *Transaction) Committed() bool { return t != nil && t.state == txCommitted }

// RolledBack reports whether this frame has been tagged RolledBack.
func (t *Transaction) RolledBack() bool { return t != nil && t.state == txRolledBack }

// Begin opens a new frame on session and invokes body(txn). If the session
// already has an inner frame, the new frame is nested; otherwise BEGIN is
// issued to the engine. On normal return the frame commits. If body raises
// Busy and the frame is outermost, the frame is rolled back and body is
// re-invoked from scratch until it returns without Busy (commit) or raises
// any other error (propagated after automatic rollback). A Busy raised
// from a nested frame propagates unchanged.
//
// body's side effects outside the database (logging, counters) re-execute
// on every retry; callers relying on exactly-once semantics there must
// guard for that themselves.
func Begin(session *Session, body func(*Transaction) error) error {
	for {
		t, err := newTransaction(session)
		if err != nil {
			return err
		}
		bodyErr := body(t)
		if bodyErr == nil {
			return t.Commit()
		}

		var busy *BusyError
		isBusy := errors.As(bodyErr, &busy)

		if t.Active() {
			_ = t.Rollback()
		}

		if isBusy && !t.Nested() {
			continue
		}
		return bodyErr
	}
}

func newTransaction(session *Session) (*Transaction, error) {
	t := &Transaction{session: session}
	outer := session.addTransaction(t)
	t.outer = outer
	if outer == nil {
		if err := engineExec(session.conn, "BEGIN"); err != nil {
			session.removeTransaction(t)
			t.session = nil
			return nil, err
		}
	}
	return t, nil
}

// Commit ends the frame. If active and outermost, it issues COMMIT, drains
// commit hooks in FIFO order, and discards rollback hooks. If active and
// nested, it unlinks without touching the engine; visibility is deferred
// to the outermost frame. Idempotent.
func (t *Transaction) Commit() error {
	if !t.Active() {
		return nil
	}
	session := t.session
	if !t.Nested() {
		if err := engineExec(session.conn, "COMMIT"); err != nil {
			return err
		}
		session.removeTransaction(t)
		t.state = txCommitted
		t.session = nil
		session.drainCommitHooks()
		return nil
	}
	session.removeTransaction(t)
	t.state = txCommitted
	t.session = nil
	return nil
}

// Rollback ends the frame. ROLLBACK is issued whenever the session's
// transaction stack is non-empty; the engine's autocommit state is not
// checked first, so if the engine has already ended the transaction on its
// own, the error from that ROLLBACK is returned. The stack is then walked
// downward, tagging every frame RolledBack and clearing its session
// pointer. Rollback hooks drain in LIFO order; commit hooks are discarded.
// Idempotent.
func (t *Transaction) Rollback() error {
	if !t.Active() {
		return nil
	}
	session := t.session
	var execErr error
	if session.innermost != nil {
		execErr = engineExec(session.conn, "ROLLBACK")
	}

	for cur := session.innermost; cur != nil; {
		next := cur.outer
		cur.state = txRolledBack
		cur.session = nil
		cur = next
	}
	session.innermost = nil
	session.drainRollbackHooks()
	return execErr
}

// Close rolls the frame back if it is still active, matching the
// destructor-triggered rollback described in spec §3/§4.5.
func (t *Transaction) Close() error {
	if t.Active() {
		return t.Rollback()
	}
	return nil
}
