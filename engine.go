package sqlitex

/*
#cgo pkg-config: sqlite3
#include <sqlite3.h>
#include <stdlib.h>
#include <string.h>

extern int go_alphanum_xcmp(void *ctx, int alen, const void *a, int blen, const void *b);
extern int go_progress_tramp(void *ctx);
extern void go_unlock_notify_tramp(void **apArg, int nArg);
extern void go_blob_destructor_tramp(void *ptr);

static int sqlitex_create_collation(sqlite3 *db) {
	return sqlite3_create_collation(db, "ALPHANUM", SQLITE_UTF8, NULL,
		(int(*)(void*,int,const void*,int,const void*))go_alphanum_xcmp);
}

static void sqlitex_progress_handler(sqlite3 *db, int n, void *ctx) {
	sqlite3_progress_handler(db, n, (int(*)(void*))go_progress_tramp, ctx);
}

static void sqlitex_clear_progress_handler(sqlite3 *db) {
	sqlite3_progress_handler(db, 0, NULL, NULL);
}

static int sqlitex_unlock_notify(sqlite3 *db) {
	return sqlite3_unlock_notify(db, go_unlock_notify_tramp, db);
}

static int sqlitex_bind_text_static(sqlite3_stmt *s, int idx, const char *p, int n) {
	return sqlite3_bind_text(s, idx, p, n, SQLITE_STATIC);
}

static int sqlitex_bind_blob_destructor(sqlite3_stmt *s, int idx, const void *p, int n, void *ctx) {
	return sqlite3_bind_blob64(s, idx, p, n, go_blob_destructor_tramp);
}
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/mattn/go-pointer"
)

// engineConn wraps the native connection handle. Only this file and
// vtab.go reach into the C layer; the rest of the package operates on this
// opaque type.
type engineConn struct {
	db *C.sqlite3

	progressMu sync.Mutex
	progressFn func() bool
	progressTk unsafe.Pointer

	unlockMu   sync.Mutex
	unlockCond *sync.Cond
	waiting    bool
	deadlock   bool
}

// engineStmt wraps a compiled statement handle.
type engineStmt struct {
	stmt *C.sqlite3_stmt
}

func init() {
	unlockRegistry.conns = make(map[uintptr]*engineConn)
	blobDestructors.m = make(map[unsafe.Pointer]func())
}

// engineOpen opens uri in read-write/create/URI mode and registers the
// ALPHANUM collation on the resulting connection.
func engineOpen(uri string) (*engineConn, error) {
	curi := C.CString(uri)
	defer C.free(unsafe.Pointer(curi))

	var db *C.sqlite3
	rc := C.sqlite3_open_v2(curi, &db, C.int(openReadWrite|openCreate|openURI), nil)
	if rc != engineOK {
		msg := "failed to open database"
		if db != nil {
			msg = C.GoString(C.sqlite3_errmsg(db))
			C.sqlite3_close(db)
		}
		return nil, newEngineError(int(rc), msg, uri)
	}

	c := &engineConn{db: db}
	c.unlockCond = sync.NewCond(&c.unlockMu)
	unlockRegistry.put(db, c)

	if rc := C.sqlitex_create_collation(db); rc != engineOK {
		msg := C.GoString(C.sqlite3_errmsg(db))
		C.sqlite3_close(db)
		unlockRegistry.drop(db)
		return nil, newEngineError(int(rc), msg, uri)
	}
	return c, nil
}

// engineClose closes the connection. Any outstanding prepared statement
// keeps the close from succeeding, matching the underlying engine's rule.
func engineClose(c *engineConn) error {
	c.setProgress(nil)
	rc := C.sqlite3_close(c.db)
	unlockRegistry.drop(c.db)
	if rc != engineOK {
		return newEngineError(int(rc), C.GoString(C.sqlite3_errmsg(c.db)), "")
	}
	return nil
}

// enginePrepare compiles the first statement in sql and returns the
// left-trimmed remainder for chained parsing, mirroring sqlite3_prepare_v2's
// pzTail output. It returns the raw engine status code alongside any error
// so callers can special-case engineLocked with the unlock-wait protocol
// before deciding whether to surface Busy.
func enginePrepare(c *engineConn, sql string) (*engineStmt, string, int, error) {
	csql := C.CString(sql)
	defer C.free(unsafe.Pointer(csql))

	var stmt *C.sqlite3_stmt
	var tail *C.char
	rc := C.sqlite3_prepare_v2(c.db, csql, C.int(len(sql)+1), &stmt, &tail)
	if rc != engineOK {
		return nil, "", int(rc), newEngineError(int(rc), C.GoString(C.sqlite3_errmsg(c.db)), sql)
	}
	remainder := ""
	if tail != nil {
		off := int(uintptr(unsafe.Pointer(tail)) - uintptr(unsafe.Pointer(csql)))
		if off >= 0 && off < len(sql) {
			remainder = trimLeftSpace(sql[off:])
		}
	}
	return &engineStmt{stmt: stmt}, remainder, engineOK, nil
}

func trimLeftSpace(s string) string {
	i := 0
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\r', ';':
			i++
		default:
			return s[i:]
		}
	}
	return ""
}

func engineFinalize(s *engineStmt) error {
	if s == nil || s.stmt == nil {
		return nil
	}
	rc := C.sqlite3_finalize(s.stmt)
	s.stmt = nil
	if rc != engineOK {
		return newEngineError(int(rc), "finalize failed", "")
	}
	return nil
}

func engineReset(s *engineStmt) error {
	rc := C.sqlite3_reset(s.stmt)
	if rc != engineOK {
		return newEngineError(int(rc), "reset failed", "")
	}
	return nil
}

func engineClearBindings(s *engineStmt) error {
	rc := C.sqlite3_clear_bindings(s.stmt)
	if rc != engineOK {
		return newEngineError(int(rc), "clear bindings failed", "")
	}
	return nil
}

// engineStep advances the statement one step and returns the raw engine
// status (engineRow, engineDone, or a failure code); callers classify it.
func engineStep(c *engineConn, s *engineStmt) int {
	return int(C.sqlite3_step(s.stmt))
}

func engineBindNull(s *engineStmt, idx int) int {
	return int(C.sqlite3_bind_null(s.stmt, C.int(idx)))
}

func engineBindInt64(s *engineStmt, idx int, v int64) int {
	return int(C.sqlite3_bind_int64(s.stmt, C.int(idx), C.sqlite3_int64(v)))
}

func engineBindDouble(s *engineStmt, idx int, v float64) int {
	return int(C.sqlite3_bind_double(s.stmt, C.int(idx), C.double(v)))
}

// engineBindText binds a string with SQLITE_STATIC semantics: the engine is
// told it may hold the pointer without copying, so the caller (Statement)
// must keep the backing memory alive (Statement.keepAlive) until the
// bindings are cleared or the statement is finalized.
func engineBindText(s *engineStmt, idx int, v string) int {
	if len(v) == 0 {
		return int(C.sqlitex_bind_text_static(s.stmt, C.int(idx), (*C.char)(nil), 0))
	}
	cstr := unsafe.StringData(v)
	return int(C.sqlitex_bind_text_static(s.stmt, C.int(idx), (*C.char)(unsafe.Pointer(cstr)), C.int(len(v))))
}

// engineBindBlob binds a byte slice with an optional destructor, following
// the blob-destructor-registry design (spec §9): the destructor map is
// keyed by the pointer handed to the engine, and the C trampoline looks it
// up and invokes it exactly once when the engine releases the buffer.
func engineBindBlob(s *engineStmt, idx int, v []byte, destructor func()) (int, error) {
	if len(v) == 0 {
		return int(C.sqlite3_bind_zeroblob(s.stmt, C.int(idx), 0)), nil
	}
	ptr := unsafe.Pointer(&v[0])
	if destructor != nil {
		if err := blobDestructors.register(ptr, destructor); err != nil {
			return 0, err
		}
	}
	rc := C.sqlitex_bind_blob_destructor(s.stmt, C.int(idx), ptr, C.int(len(v)), nil)
	return int(rc), nil
}

func engineColumnCount(s *engineStmt) int {
	return int(C.sqlite3_column_count(s.stmt))
}

func engineColumnName(s *engineStmt, i int) string {
	return C.GoString(C.sqlite3_column_name(s.stmt, C.int(i)))
}

func engineColumnType(s *engineStmt, i int) int {
	return int(C.sqlite3_column_type(s.stmt, C.int(i)))
}

func engineColumnInt64(s *engineStmt, i int) int64 {
	return int64(C.sqlite3_column_int64(s.stmt, C.int(i)))
}

func engineColumnDouble(s *engineStmt, i int) float64 {
	return float64(C.sqlite3_column_double(s.stmt, C.int(i)))
}

func engineColumnText(s *engineStmt, i int) string {
	p := C.sqlite3_column_text(s.stmt, C.int(i))
	n := C.sqlite3_column_bytes(s.stmt, C.int(i))
	if p == nil || n == 0 {
		return ""
	}
	return C.GoStringN((*C.char)(unsafe.Pointer(p)), n)
}

func engineColumnBlob(s *engineStmt, i int) []byte {
	p := C.sqlite3_column_blob(s.stmt, C.int(i))
	n := C.sqlite3_column_bytes(s.stmt, C.int(i))
	if p == nil || n == 0 {
		return nil
	}
	return C.GoBytes(p, n)
}

func engineLastInsertRowID(c *engineConn) int64 {
	return int64(C.sqlite3_last_insert_rowid(c.db))
}

func engineChanges(c *engineConn) int {
	return int(C.sqlite3_changes(c.db))
}

func engineInterrupt(c *engineConn) {
	C.sqlite3_interrupt(c.db)
}

func engineExec(c *engineConn, sql string) error {
	csql := C.CString(sql)
	defer C.free(unsafe.Pointer(csql))
	var errmsg *C.char
	rc := C.sqlite3_exec(c.db, csql, nil, nil, &errmsg)
	if rc != engineOK {
		msg := "exec failed"
		if errmsg != nil {
			msg = C.GoString(errmsg)
			C.sqlite3_free(unsafe.Pointer(errmsg))
		}
		return newEngineError(int(rc), msg, sql)
	}
	return nil
}

// setProgress installs (or, with fn == nil, removes) the progress callback
// invoked roughly every interval virtual-machine steps (spec: ~10000).
func (c *engineConn) setProgress(fn func() bool) {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	if c.progressTk != nil {
		pointer.Unref(c.progressTk)
		c.progressTk = nil
	}
	c.progressFn = fn
	if fn == nil {
		C.sqlitex_clear_progress_handler(c.db)
		return
	}
	c.progressTk = pointer.Save(c)
	C.sqlitex_progress_handler(c.db, progressStepInterval, c.progressTk)
}

const progressStepInterval = 10000

//export go_progress_tramp
func go_progress_tramp(ctx unsafe.Pointer) C.int {
	v := pointer.Restore(ctx)
	c, ok := v.(*engineConn)
	if !ok || c == nil {
		return 0
	}
	c.progressMu.Lock()
	fn := c.progressFn
	c.progressMu.Unlock()
	if fn == nil {
		return 0
	}
	if fn() {
		return 1
	}
	return 0
}

//export go_alphanum_xcmp
func go_alphanum_xcmp(ctx unsafe.Pointer, alen C.int, a unsafe.Pointer, blen C.int, b unsafe.Pointer) C.int {
	as := C.GoStringN((*C.char)(a), alen)
	bs := C.GoStringN((*C.char)(b), blen)
	return C.int(alphanumCompare(as, bs))
}

// blobDestructorMap backs the process-wide registry named in spec §9: the
// engine's C destructor signature carries only a pointer, so a richer Go
// closure has to be looked up out of band.
type blobDestructorMap struct {
	mu sync.Mutex
	m  map[unsafe.Pointer]func()
}

var blobDestructors blobDestructorMap

func (b *blobDestructorMap) register(ptr unsafe.Pointer, fn func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.m[ptr]; exists {
		return &Error{Message: "duplicate blob destructor registration for buffer"}
	}
	b.m[ptr] = fn
	return nil
}

func (b *blobDestructorMap) fire(ptr unsafe.Pointer) {
	b.mu.Lock()
	fn, ok := b.m[ptr]
	if ok {
		delete(b.m, ptr)
	}
	b.mu.Unlock()
	if ok {
		fn()
	}
}

//export go_blob_destructor_tramp
func go_blob_destructor_tramp(ptr unsafe.Pointer) {
	blobDestructors.fire(ptr)
}

// unlockNotifyRegistry maps a raw *sqlite3 handle back to the engineConn
// that owns it, because sqlite3_unlock_notify's callback receives only the
// array of database handles it was registered against.
type unlockNotifyRegistry struct {
	mu    sync.Mutex
	conns map[uintptr]*engineConn
}

var unlockRegistry unlockNotifyRegistry

func (r *unlockNotifyRegistry) put(db *C.sqlite3, c *engineConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[uintptr(unsafe.Pointer(db))] = c
}

func (r *unlockNotifyRegistry) drop(db *C.sqlite3) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, uintptr(unsafe.Pointer(db)))
}

func (r *unlockNotifyRegistry) get(db *C.sqlite3) *engineConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[uintptr(unsafe.Pointer(db))]
}

//export go_unlock_notify_tramp
func go_unlock_notify_tramp(apArg *unsafe.Pointer, nArg C.int) {
	args := unsafe.Slice(apArg, int(nArg))
	for _, a := range args {
		db := (*C.sqlite3)(a)
		if c := unlockRegistry.get(db); c != nil {
			c.unlockMu.Lock()
			c.waiting = false
			c.unlockCond.Broadcast()
			c.unlockMu.Unlock()
		}
	}
}

// waitForUnlock implements Session's unlock-wait protocol (spec §4.4): a
// single-shot registration with the engine, blocking on a condition
// variable until either the notify callback fires or the registration
// itself reports a deadlock.
func (c *engineConn) waitForUnlock() (deadlockDetected bool) {
	c.unlockMu.Lock()
	c.waiting = true
	c.unlockMu.Unlock()

	rc := C.sqlitex_unlock_notify(c.db)
	if rc != engineOK {
		c.unlockMu.Lock()
		c.waiting = false
		c.unlockMu.Unlock()
		return true
	}

	c.unlockMu.Lock()
	for c.waiting {
		c.unlockCond.Wait()
	}
	c.unlockMu.Unlock()
	return false
}
