package sqlitex

import (
	"log/slog"
	"strings"
)

// Session represents one open connection to a local database (spec C4). A
// Session is not safe for concurrent use from multiple threads; distinct
// Sessions on the same database file are.
type Session struct {
	conn *engineConn
	uri  string

	logger *slog.Logger

	cache map[int]*Statement

	innermost *Transaction

	commitHooks   []func()
	rollbackHooks []func()

	progressInterval int
	pendingProgress  func() bool
}

// NewSession constructs an unopened Session. Call Open before issuing any
// statements.
func NewSession() *Session {
	return &Session{
		cache:            make(map[int]*Statement),
		logger:           slog.Default(),
		progressInterval: progressStepInterval,
	}
}

func (s *Session) requireOpen() error {
	if s.conn == nil {
		return &Error{Message: "session is closed"}
	}
	return nil
}

// Open accepts a URI with an optional "scheme:" prefix (spec §4.4).
// Recognized schemes are "sqlite3" and "file", case-insensitive; anything
// else fails with Error. If a prior connection was open, it is closed
// first; the new connection replaces it even if opening fails, and the
// original open error is the one returned. The ALPHANUM collation is
// registered on the new connection automatically.
func (s *Session) Open(uri string) error {
	rewritten, err := rewriteURI(uri)
	if err != nil {
		return err
	}

	if s.conn != nil {
		_ = s.closeLocked()
	}

	conn, openErr := engineOpen(rewritten)
	s.conn = conn
	s.uri = uri
	s.cache = make(map[int]*Statement)
	if openErr != nil {
		s.conn = nil
		return openErr
	}
	if s.pendingProgress != nil {
		s.conn.setProgress(s.pendingProgress)
	}
	s.logger.Debug("session opened", slog.String("uri", uri))
	return nil
}

func rewriteURI(uri string) (string, error) {
	if idx := strings.Index(uri, ":"); idx > 0 {
		scheme := strings.ToLower(uri[:idx])
		rest := uri[idx+1:]
		switch scheme {
		case "sqlite3", "file":
			return "file:" + rest, nil
		default:
			// A bare Windows-style drive letter ("C:\...") or a path that
			// simply contains a colon is not a recognized scheme prefix
			// unless it looks like one; treat single-letter prefixes as
			// part of the path instead of rejecting them outright.
			if len(scheme) > 1 {
				return "", &Error{Message: "unrecognised database type: " + scheme, SQL: uri}
			}
		}
	}
	// No recognized scheme prefix: pass through unchanged. sqlite3_open_v2
	// only interprets a name as a URI when it begins with "file:"; anything
	// else (":memory:", a bare relative path, an absolute path) is opened as
	// an ordinary filename even with the URI flag set, which is what we want
	// here since wrapping in "file://" would introduce an authority
	// component that SQLite rejects for names like ":memory:" or "test.db".
	return uri, nil
}

// Close drops the per-session statement cache, finalizing each entry, then
// closes the engine connection. A non-OK engine status (e.g. outstanding
// live statements) raises Error.
func (s *Session) Close() error {
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if s.conn == nil {
		return nil
	}
	for id, st := range s.cache {
		_ = st.Finalize()
		delete(s.cache, id)
	}
	s.conn.setProgress(nil)
	err := engineClose(s.conn)
	s.conn = nil
	return err
}

// Exec is the ad-hoc execution path (spec §4.4): it compiles sql fresh on
// every call, binds args, steps to the first row, and returns the
// Statement so the caller may continue iteration.
func (s *Session) Exec(sql string, args ...interface{}) (*Statement, *Row, error) {
	if err := s.requireOpen(); err != nil {
		return nil, nil, err
	}
	st, _, err := s.prepareLocked(sql)
	if err != nil {
		return nil, nil, err
	}
	if err := st.BindAll(args...); err != nil {
		_ = st.Finalize()
		return nil, nil, err
	}
	row, err := st.Begin()
	if err != nil {
		_ = st.Finalize()
		return nil, nil, err
	}
	return st, row, nil
}

// ExecID is the precompiled execution path (spec §4.4): it looks up the
// cached Statement for id, compiling and installing it from the registry
// if absent. If the cached Statement is already active, a private copy is
// compiled instead so concurrent iterations on the same registered text
// within one thread do not clobber each other.
func (s *Session) ExecID(id int, args ...interface{}) (*Statement, *Row, error) {
	if err := s.requireOpen(); err != nil {
		return nil, nil, err
	}
	sql, err := RegistryText(id)
	if err != nil {
		return nil, nil, err
	}

	st, cached := s.cache[id]
	var target *Statement
	if cached && st.Prepared() {
		if st.active {
			target = &Statement{session: s, sql: sql}
			if _, err := target.doPrepare(sql); err != nil {
				return nil, nil, err
			}
		} else {
			target = st
		}
	} else {
		target = &Statement{session: s, sql: sql}
		if _, err := target.doPrepare(sql); err != nil {
			return nil, nil, err
		}
		s.cache[id] = target
	}

	if err := target.BindAll(args...); err != nil {
		return nil, nil, err
	}
	row, err := target.Begin()
	if err != nil {
		return nil, nil, err
	}
	return target, row, nil
}

// Interrupt signals the engine to abort any in-flight step on this
// connection. Safe to call from any thread; the interrupted thread
// observes InterruptError.
func (s *Session) Interrupt() {
	if s.conn != nil {
		engineInterrupt(s.conn)
	}
}

// LastInsertRowID returns the id of the most recently inserted row, even
// if the insert was later rolled back.
func (s *Session) LastInsertRowID() int64 {
	if s.conn == nil {
		return 0
	}
	return engineLastInsertRowID(s.conn)
}

// RowsAffected returns the number of rows changed by the most recent
// mutating statement on this connection.
func (s *Session) RowsAffected() int {
	if s.conn == nil {
		return 0
	}
	return engineChanges(s.conn)
}

// SetProgressHandler installs fn to be invoked roughly every 10,000
// virtual-machine steps; returning true aborts the current statement,
// surfacing as InterruptError in the executing thread. A nil fn detaches
// the handler.
func (s *Session) SetProgressHandler(fn func() bool) {
	s.pendingProgress = fn
	if s.conn != nil {
		s.conn.setProgress(fn)
	}
}

// SetLogger overrides the structured logger used for session-lifecycle
// events. A Session built by NewSession uses slog.Default().
func (s *Session) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// addTransaction pushes t onto the session's transaction stack and returns
// the previous head, which becomes t's outer frame.
func (s *Session) addTransaction(t *Transaction) *Transaction {
	prev := s.innermost
	s.innermost = t
	return prev
}

// removeTransaction unlinks t from the stack, restoring its outer frame as
// the new head.
func (s *Session) removeTransaction(t *Transaction) {
	if s.innermost == t {
		s.innermost = t.outer
	}
}

// replaceTransaction supports move semantics on Transaction values: it
// swaps b in for a wherever a appears in the stack, without disturbing
// order.
func (s *Session) replaceTransaction(a, b *Transaction) {
	if s.innermost == a {
		s.innermost = b
		return
	}
	for cur := s.innermost; cur != nil; cur = cur.outer {
		if cur.outer == a {
			cur.outer = b
			return
		}
	}
}

// onFinalCommit appends action to the FIFO queue that drains on outermost
// commit. If no transaction is active, the action executes immediately.
func (s *Session) onFinalCommit(action func()) {
	if s.innermost == nil {
		action()
		return
	}
	s.commitHooks = append(s.commitHooks, action)
}

// onRollback appends action to the LIFO queue that drains on rollback
// reaching the outermost frame. If no transaction is active, the action is
// dropped silently.
func (s *Session) onRollback(action func()) {
	if s.innermost == nil {
		return
	}
	s.rollbackHooks = append(s.rollbackHooks, action)
}

// drainCommitHooks runs the commit queue in FIFO order and discards the
// rollback queue.
func (s *Session) drainCommitHooks() {
	hooks := s.commitHooks
	s.commitHooks = nil
	s.rollbackHooks = nil
	for _, h := range hooks {
		h()
	}
}

// drainRollbackHooks runs the rollback queue in LIFO order and discards
// the commit queue.
func (s *Session) drainRollbackHooks() {
	hooks := s.rollbackHooks
	s.commitHooks = nil
	s.rollbackHooks = nil
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
}
