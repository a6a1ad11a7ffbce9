package sqlitex

// Statement is a prepared-statement handle owned by a Session (spec §3,
// §4.3). The zero value is not usable; obtain one via Session.Prepare,
// Session.Exec, or Session.ExecID.
type Statement struct {
	session *Session
	stmt    *engineStmt
	sql     string

	active   bool
	numCols  int
	colNames []string

	// keepAlive holds the Go values bound with SQLITE_STATIC semantics so
	// the garbage collector cannot reclaim them while the engine still
	// holds their addresses. Cleared on ClearBindings and finalize; Reset
	// keeps it, since bindings survive a reset.
	keepAlive []interface{}
}

// Prepare compiles the first statement out of sql and returns the
// left-trimmed remainder for chained parsing (spec §4.3). Prepare on an
// already-prepared Statement finalizes it first.
func (s *Session) Prepare(sql string) (*Statement, string, error) {
	if err := s.requireOpen(); err != nil {
		return nil, "", err
	}
	return s.prepareLocked(sql)
}

func (s *Session) prepareLocked(sql string) (*Statement, string, error) {
	st := &Statement{session: s, sql: sql}
	tail, err := st.doPrepare(sql)
	if err != nil {
		return nil, "", err
	}
	return st, tail, nil
}

func (st *Statement) doPrepare(sql string) (string, error) {
	if st.stmt != nil {
		_ = st.finalizeLocked()
	}
	for {
		eng, tail, rc, err := enginePrepare(st.session.conn, sql)
		if err == nil {
			st.stmt = eng
			st.sql = sql
			st.active = false
			st.numCols = engineColumnCount(eng)
			st.colNames = make([]string, st.numCols)
			for i := range st.colNames {
				st.colNames[i] = engineColumnName(eng, i)
			}
			return tail, nil
		}
		if rc == engineLocked {
			if st.session.conn.waitForUnlock() {
				return "", &BusyError{Message: "deadlock detected while preparing", SQL: sql}
			}
			continue
		}
		return "", err
	}
}

// Finalize releases the compiled handle. Idempotent; resets first to
// release any engine-side row state.
func (st *Statement) Finalize() error {
	return st.finalizeLocked()
}

func (st *Statement) finalizeLocked() error {
	if st.stmt == nil {
		return nil
	}
	_ = st.Reset()
	err := engineFinalize(st.stmt)
	st.stmt = nil
	st.keepAlive = nil
	return err
}

// Prepared reports whether the Statement currently owns a compiled handle.
func (st *Statement) Prepared() bool { return st.stmt != nil }

// Active reports whether the engine has produced at least one row that may
// still have successors (spec §3: active ⇒ prepared).
func (st *Statement) Active() bool { return st.active }

// Reset cancels iteration; bindings are preserved.
func (st *Statement) Reset() error {
	if st.stmt == nil {
		return nil
	}
	st.active = false
	return engineReset(st.stmt)
}

// ClearBindings clears all parameter bindings, implicitly resetting the
// statement first if it was active.
func (st *Statement) ClearBindings() error {
	if st.stmt == nil {
		return nil
	}
	if st.active {
		if err := st.Reset(); err != nil {
			return err
		}
	}
	st.keepAlive = nil
	return engineClearBindings(st.stmt)
}

// Bind sets parameter idx (1-based) to v. A successful bind on an active
// statement implicitly resets it first.
func (st *Statement) Bind(idx int, v interface{}) error {
	if st.stmt == nil {
		return &Error{Message: "bind on unprepared statement", SQL: st.sql}
	}
	if idx < 1 {
		return &Error{Message: "invalid parameter index", SQL: st.sql}
	}
	if st.active {
		if err := st.Reset(); err != nil {
			return err
		}
	}

	var rc int
	switch val := v.(type) {
	case nil:
		rc = engineBindNull(st.stmt, idx)
	case bool:
		i := int64(0)
		if val {
			i = 1
		}
		rc = engineBindInt64(st.stmt, idx, i)
	case int:
		rc = engineBindInt64(st.stmt, idx, int64(val))
	case int8:
		rc = engineBindInt64(st.stmt, idx, int64(val))
	case int16:
		rc = engineBindInt64(st.stmt, idx, int64(val))
	case int32:
		rc = engineBindInt64(st.stmt, idx, int64(val))
	case int64:
		rc = engineBindInt64(st.stmt, idx, val)
	case uint:
		rc = engineBindInt64(st.stmt, idx, int64(val))
	case uint8:
		rc = engineBindInt64(st.stmt, idx, int64(val))
	case uint16:
		rc = engineBindInt64(st.stmt, idx, int64(val))
	case uint32:
		rc = engineBindInt64(st.stmt, idx, int64(val))
	case uint64:
		// reinterpreted as signed per spec §4.3; callers wanting the
		// logical unsigned value back must re-interpret themselves.
		rc = engineBindInt64(st.stmt, idx, int64(val))
	case float32:
		rc = engineBindDouble(st.stmt, idx, float64(val))
	case float64:
		rc = engineBindDouble(st.stmt, idx, val)
	case string:
		st.keepAlive = append(st.keepAlive, val)
		rc = engineBindText(st.stmt, idx, val)
	case []byte:
		st.keepAlive = append(st.keepAlive, val)
		var err error
		rc, err = engineBindBlob(st.stmt, idx, val, nil)
		if err != nil {
			return err
		}
	default:
		return &Error{Message: "unsupported bind type", SQL: st.sql}
	}

	if rc != engineOK {
		return newEngineError(rc, "bind failed", st.sql)
	}
	return nil
}

// BindBlob binds a byte slice with an optional destructor invoked exactly
// once when the engine releases the buffer (spec §4.3, §9). Registering a
// second destructor for the same backing array fails with Error.
func (st *Statement) BindBlob(idx int, v []byte, destructor func()) error {
	if st.stmt == nil {
		return &Error{Message: "bind on unprepared statement", SQL: st.sql}
	}
	if st.active {
		if err := st.Reset(); err != nil {
			return err
		}
	}
	st.keepAlive = append(st.keepAlive, v)
	rc, err := engineBindBlob(st.stmt, idx, v, destructor)
	if err != nil {
		return err
	}
	if rc != engineOK {
		return newEngineError(rc, "bind blob failed", st.sql)
	}
	return nil
}

// BindAll clears all bindings, then binds args positionally starting at 1.
// Missing trailing parameters remain null.
func (st *Statement) BindAll(args ...interface{}) error {
	if err := st.ClearBindings(); err != nil {
		return err
	}
	for i, a := range args {
		if err := st.Bind(i+1, a); err != nil {
			return err
		}
	}
	return nil
}

// Begin transitions an inactive prepared statement to active and fetches
// the first row.
func (st *Statement) Begin() (*Row, error) {
	return st.step()
}

// Next advances to the following row; on exhaustion it returns a nil Row
// and resets the statement to inactive while preserving bindings.
func (st *Statement) Next() (*Row, error) {
	return st.step()
}

// currentRow returns st's current row without stepping if it is already
// active, otherwise it begins iteration and returns the first row. Used by
// the IDSet column-consuming operations, which accept a Statement that may
// already be mid-iteration (e.g. one returned by Session.Exec).
func (st *Statement) currentRow() (*Row, error) {
	if st.active {
		return &Row{stmt: st}, nil
	}
	return st.Begin()
}

func (st *Statement) step() (*Row, error) {
	if st.stmt == nil {
		return nil, &Error{Message: "step on unprepared statement", SQL: st.sql}
	}
	for {
		rc := engineStep(st.session.conn, st.stmt)
		switch rc {
		case engineRow:
			st.active = true
			return &Row{stmt: st}, nil
		case engineDone:
			_ = st.Reset()
			return nil, nil
		case engineInterrupt:
			_ = st.Reset()
			return nil, &InterruptError{Message: "statement interrupted", SQL: st.sql}
		case engineLocked:
			if st.session.conn.waitForUnlock() {
				_ = st.Reset()
				return nil, &BusyError{Message: "deadlock detected", SQL: st.sql}
			}
			continue
		case engineBusy:
			_ = st.Reset()
			return nil, &BusyError{Message: "database busy", SQL: st.sql}
		default:
			_ = st.Reset()
			return nil, newEngineError(rc, "step failed", st.sql)
		}
	}
}
