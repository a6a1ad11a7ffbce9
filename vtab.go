package sqlitex

/*
#cgo pkg-config: sqlite3
#include <sqlite3.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
	sqlite3_vtab base;
	void *impl;
} sdig_vtab;

typedef struct {
	sqlite3_vtab_cursor base;
	void *impl;
} sdig_cursor;

extern int go_vtab_connect(sqlite3*, void*, int, char**, sqlite3_vtab**, char**);
extern int go_vtab_disconnect(sqlite3_vtab*);
extern int go_vtab_best_index(sqlite3_vtab*, sqlite3_index_info*);
extern int go_vtab_open(sqlite3_vtab*, sqlite3_vtab_cursor**);
extern int go_vtab_close(sqlite3_vtab_cursor*);
extern int go_vtab_filter(sqlite3_vtab_cursor*, int, char*, int, sqlite3_value**);
extern int go_vtab_next(sqlite3_vtab_cursor*);
extern int go_vtab_eof(sqlite3_vtab_cursor*);
extern int go_vtab_column(sqlite3_vtab_cursor*, sqlite3_context*, int);
extern int go_vtab_rowid(sqlite3_vtab_cursor*, sqlite3_int64*);
extern int go_vtab_update(sqlite3_vtab*, int, sqlite3_value**, sqlite3_int64*);
extern int go_vtab_rename(sqlite3_vtab*, const char*);

static sqlite3_module sdig_module = {
	.iVersion   = 0,
	.xCreate    = go_vtab_connect,
	.xConnect   = go_vtab_connect,
	.xBestIndex = go_vtab_best_index,
	.xDisconnect = go_vtab_disconnect,
	.xDestroy   = go_vtab_disconnect,
	.xOpen      = go_vtab_open,
	.xClose     = go_vtab_close,
	.xFilter    = go_vtab_filter,
	.xNext      = go_vtab_next,
	.xEof       = go_vtab_eof,
	.xColumn    = go_vtab_column,
	.xRowid     = go_vtab_rowid,
	.xUpdate    = go_vtab_update,
	.xRename    = go_vtab_rename,
};

static int sdig_register(sqlite3 *db) {
	return sqlite3_create_module_v2(db, "sdig_idset", &sdig_module, NULL, NULL);
}

static void sdig_set_error(sqlite3_vtab *vtab, const char *msg) {
	if (vtab->zErrMsg) sqlite3_free(vtab->zErrMsg);
	vtab->zErrMsg = sqlite3_mprintf("%s", msg);
}

static sdig_vtab *sdig_alloc_vtab(void) {
	return (sdig_vtab*)sqlite3_malloc(sizeof(sdig_vtab));
}

static sdig_cursor *sdig_alloc_cursor(void) {
	return (sdig_cursor*)sqlite3_malloc(sizeof(sdig_cursor));
}

static int sdig_constraint_count(sqlite3_index_info *info) { return info->nConstraint; }
static int sdig_constraint_column(sqlite3_index_info *info, int i) { return info->aConstraint[i].iColumn; }
static unsigned char sdig_constraint_op(sqlite3_index_info *info, int i) { return info->aConstraint[i].op; }
static unsigned char sdig_constraint_usable(sqlite3_index_info *info, int i) { return info->aConstraint[i].usable; }
static void sdig_usage_set(sqlite3_index_info *info, int i, int argvIndex, int omit) {
	info->aConstraintUsage[i].argvIndex = argvIndex;
	info->aConstraintUsage[i].omit = (unsigned char)omit;
}
static int sdig_orderby_count(sqlite3_index_info *info) { return info->nOrderBy; }
static int sdig_orderby_column(sqlite3_index_info *info, int i) { return info->aOrderBy[i].iColumn; }
static unsigned char sdig_orderby_desc(sqlite3_index_info *info, int i) { return info->aOrderBy[i].desc; }
*/
import "C"

import (
	"sort"
	"sync"
	"unsafe"

	"github.com/mattn/go-pointer"
)

const vtabModuleName = "sdig_idset"

func sdigSetError(vtab *C.sqlite3_vtab, msg string) {
	cmsg := C.CString(msg)
	defer C.free(unsafe.Pointer(cmsg))
	C.sdig_set_error(vtab, cmsg)
}

// vtabRegistry maps a virtual table's SQL name to the idsetBody that
// backs it. xConnect receives the table name as one of its standard
// arguments and uses this to recover the body it should bridge to,
// grounded on the same "shared module, per-call instantiation" shape used
// for purego-based handle resolution elsewhere in this package's lineage.
var vtabRegistry = struct {
	mu sync.Mutex
	m  map[string]*idsetBody
}{m: make(map[string]*idsetBody)}

func vtabRegistryPut(name string, body *idsetBody) {
	vtabRegistry.mu.Lock()
	defer vtabRegistry.mu.Unlock()
	vtabRegistry.m[name] = body
}

func vtabRegistryDrop(name string) {
	vtabRegistry.mu.Lock()
	defer vtabRegistry.mu.Unlock()
	delete(vtabRegistry.m, name)
}

func vtabRegistryGet(name string) *idsetBody {
	vtabRegistry.mu.Lock()
	defer vtabRegistry.mu.Unlock()
	return vtabRegistry.m[name]
}

var moduleRegisteredConns = struct {
	mu sync.Mutex
	m  map[*engineConn]bool
}{m: make(map[*engineConn]bool)}

// ensureVtabModule registers the sdig_idset module on conn the first time
// any IDSet attaches to it; subsequent attaches on the same connection are
// no-ops.
func ensureVtabModule(conn *engineConn) error {
	moduleRegisteredConns.mu.Lock()
	defer moduleRegisteredConns.mu.Unlock()
	if moduleRegisteredConns.m[conn] {
		return nil
	}
	if rc := C.sdig_register(conn.db); rc != engineOK {
		return newEngineError(int(rc), "failed to register virtual table module", "")
	}
	moduleRegisteredConns.m[conn] = true
	return nil
}

// vtabHandle is the Go-side state for one connected virtual table
// instance, threaded through sdig_vtab.impl via a go-pointer handle.
type vtabHandle struct {
	body *idsetBody
	db   *C.sqlite3
}

// vtabCursor is the Go-side state for one open cursor, threaded through
// sdig_cursor.impl. It implements the live-sync rule from spec §4.6: the
// cursor re-seeks on its last-known id whenever the body's storage has
// moved out from under it.
type vtabCursor struct {
	body   *idsetBody
	pos    int
	lastID int64
	hasID  bool
	eof    bool
	eqOnly bool
}

func (c *vtabCursor) seedAt(idx int) {
	if idx < len(c.body.ids) {
		c.pos = idx
		c.lastID = c.body.ids[idx]
		c.hasID = true
		c.eof = false
		return
	}
	c.hasID = false
	c.eof = true
}

func (c *vtabCursor) filter(op int, hasVal bool, val int64) {
	c.eqOnly = false
	ids := c.body.ids
	if !hasVal {
		c.seedAt(0)
		return
	}
	switch IndexConstraintOp(op) {
	case ConstraintEQ:
		idx := sort.Search(len(ids), func(i int) bool { return ids[i] >= val })
		if idx < len(ids) && ids[idx] == val {
			c.seedAt(idx)
			c.eqOnly = true
		} else {
			c.hasID = false
			c.eof = true
		}
	case ConstraintGE:
		idx := sort.Search(len(ids), func(i int) bool { return ids[i] >= val })
		c.seedAt(idx)
	case ConstraintGT:
		idx := sort.Search(len(ids), func(i int) bool { return ids[i] > val })
		c.seedAt(idx)
	default:
		// LT/LE (and anything unrecognized) fall back to a full ascending
		// scan; SQLite rechecks the predicate itself since these operators
		// are not marked omit in BestIndex.
		c.seedAt(0)
	}
}

// advance implements the live-sync resync rule.
func (c *vtabCursor) advance() {
	if c.eqOnly {
		c.eof = true
		c.hasID = false
		return
	}
	ids := c.body.ids
	if !c.hasID {
		c.seedAt(0)
		return
	}
	idx := sort.Search(len(ids), func(i int) bool { return ids[i] >= c.lastID })
	if idx < len(ids) && ids[idx] == c.lastID {
		idx++
	}
	c.seedAt(idx)
}

//export go_vtab_connect
func go_vtab_connect(db *C.sqlite3, pAux unsafe.Pointer, argc C.int, argv **C.char, ppVTab **C.sqlite3_vtab, pzErr **C.char) C.int {
	args := unsafe.Slice(argv, int(argc))
	if argc < 3 {
		return C.SQLITE_ERROR
	}
	name := C.GoString(args[2])
	body := vtabRegistryGet(name)
	if body == nil {
		return C.SQLITE_ERROR
	}

	schema := C.CString("CREATE TABLE x(id INTEGER PRIMARY KEY)")
	rc := C.sqlite3_declare_vtab(db, schema)
	C.free(unsafe.Pointer(schema))
	if rc != engineOK {
		return rc
	}

	v := C.sdig_alloc_vtab()
	if v == nil {
		return C.SQLITE_NOMEM
	}
	C.memset(unsafe.Pointer(v), 0, C.size_t(unsafe.Sizeof(*v)))
	v.impl = pointer.Save(&vtabHandle{body: body, db: db})
	*ppVTab = (*C.sqlite3_vtab)(unsafe.Pointer(v))
	return C.SQLITE_OK
}

//export go_vtab_disconnect
func go_vtab_disconnect(pVTab *C.sqlite3_vtab) C.int {
	v := (*C.sdig_vtab)(unsafe.Pointer(pVTab))
	if v.impl != nil {
		pointer.Unref(v.impl)
	}
	C.sqlite3_free(unsafe.Pointer(v))
	return C.SQLITE_OK
}

//export go_vtab_best_index
func go_vtab_best_index(pVTab *C.sqlite3_vtab, info *C.sqlite3_index_info) C.int {
	n := int(C.sdig_constraint_count(info))
	chosen := -1
	var chosenOp C.uchar
	for i := 0; i < n; i++ {
		if C.sdig_constraint_usable(info, C.int(i)) == 0 {
			continue
		}
		if C.sdig_constraint_column(info, C.int(i)) != 0 {
			continue
		}
		op := C.sdig_constraint_op(info, C.int(i))
		switch IndexConstraintOp(op) {
		case ConstraintEQ, ConstraintGT, ConstraintLE, ConstraintLT, ConstraintGE:
			chosen = i
			chosenOp = op
		}
		if IndexConstraintOp(op) == ConstraintEQ {
			break
		}
	}

	if chosen >= 0 {
		omit := 0
		switch IndexConstraintOp(chosenOp) {
		case ConstraintEQ, ConstraintGE, ConstraintGT:
			omit = 1
		}
		C.sdig_usage_set(info, C.int(chosen), 1, C.int(omit))
		info.idxNum = C.int(chosenOp)
	} else {
		info.idxNum = 0
	}

	if int(C.sdig_orderby_count(info)) == 1 && C.sdig_orderby_column(info, 0) == 0 && C.sdig_orderby_desc(info, 0) == 0 {
		info.orderByConsumed = 1
	}
	info.estimatedCost = C.double(1000)
	return C.SQLITE_OK
}

//export go_vtab_open
func go_vtab_open(pVTab *C.sqlite3_vtab, ppCursor **C.sqlite3_vtab_cursor) C.int {
	v := (*C.sdig_vtab)(unsafe.Pointer(pVTab))
	h := pointer.Restore(v.impl).(*vtabHandle)

	c := C.sdig_alloc_cursor()
	if c == nil {
		return C.SQLITE_NOMEM
	}
	C.memset(unsafe.Pointer(c), 0, C.size_t(unsafe.Sizeof(*c)))
	c.impl = pointer.Save(&vtabCursor{body: h.body})
	*ppCursor = (*C.sqlite3_vtab_cursor)(unsafe.Pointer(c))
	return C.SQLITE_OK
}

//export go_vtab_close
func go_vtab_close(pCursor *C.sqlite3_vtab_cursor) C.int {
	c := (*C.sdig_cursor)(unsafe.Pointer(pCursor))
	if c.impl != nil {
		pointer.Unref(c.impl)
	}
	C.sqlite3_free(unsafe.Pointer(c))
	return C.SQLITE_OK
}

//export go_vtab_filter
func go_vtab_filter(pCursor *C.sqlite3_vtab_cursor, idxNum C.int, idxStr *C.char, argc C.int, argv **C.sqlite3_value) C.int {
	c := (*C.sdig_cursor)(unsafe.Pointer(pCursor))
	cur := pointer.Restore(c.impl).(*vtabCursor)

	if int(argc) > 0 {
		vals := unsafe.Slice(argv, int(argc))
		val := int64(C.sqlite3_value_int64(vals[0]))
		cur.filter(int(idxNum), true, val)
	} else {
		cur.filter(int(idxNum), false, 0)
	}
	return C.SQLITE_OK
}

//export go_vtab_next
func go_vtab_next(pCursor *C.sqlite3_vtab_cursor) C.int {
	c := (*C.sdig_cursor)(unsafe.Pointer(pCursor))
	cur := pointer.Restore(c.impl).(*vtabCursor)
	cur.advance()
	return C.SQLITE_OK
}

//export go_vtab_eof
func go_vtab_eof(pCursor *C.sqlite3_vtab_cursor) C.int {
	c := (*C.sdig_cursor)(unsafe.Pointer(pCursor))
	cur := pointer.Restore(c.impl).(*vtabCursor)
	if cur.eof {
		return 1
	}
	return 0
}

//export go_vtab_column
func go_vtab_column(pCursor *C.sqlite3_vtab_cursor, ctx *C.sqlite3_context, n C.int) C.int {
	c := (*C.sdig_cursor)(unsafe.Pointer(pCursor))
	cur := pointer.Restore(c.impl).(*vtabCursor)
	C.sqlite3_result_int64(ctx, C.sqlite3_int64(cur.lastID))
	return C.SQLITE_OK
}

//export go_vtab_rowid
func go_vtab_rowid(pCursor *C.sqlite3_vtab_cursor, pRowid *C.sqlite3_int64) C.int {
	c := (*C.sdig_cursor)(unsafe.Pointer(pCursor))
	cur := pointer.Restore(c.impl).(*vtabCursor)
	*pRowid = C.sqlite3_int64(cur.lastID)
	return C.SQLITE_OK
}

//export go_vtab_update
func go_vtab_update(pVTab *C.sqlite3_vtab, argc C.int, argv **C.sqlite3_value, pRowid *C.sqlite3_int64) C.int {
	v := (*C.sdig_vtab)(unsafe.Pointer(pVTab))
	h := pointer.Restore(v.impl).(*vtabHandle)
	args := unsafe.Slice(argv, int(argc))
	conflict := int(C.sqlite3_vtab_on_conflict(h.db))

	if argc == 1 {
		// DELETE(rowid)
		rowid := int64(C.sqlite3_value_int64(args[0]))
		h.body.erase(rowid)
		return C.SQLITE_OK
	}

	oldIsNull := C.sqlite3_value_type(args[0]) == C.SQLITE_NULL
	newRowidIsNull := C.sqlite3_value_type(args[1]) == C.SQLITE_NULL
	idIsNull := int(argc) < 3 || C.sqlite3_value_type(args[2]) == C.SQLITE_NULL

	if oldIsNull {
		// INSERT
		if idIsNull {
			if conflict == conflictIgnore {
				return C.SQLITE_OK
			}
			sdigSetError(pVTab, "NOT NULL constraint failed: idset.id")
			return C.SQLITE_CONSTRAINT
		}
		idVal := int64(C.sqlite3_value_int64(args[2]))
		if !newRowidIsNull {
			newRowid := int64(C.sqlite3_value_int64(args[1]))
			if newRowid != idVal {
				return C.SQLITE_MISUSE
			}
		}
		if _, inserted := h.body.insert(idVal); !inserted {
			switch conflict {
			case conflictReplace:
				// already present; nothing further to do
			case conflictIgnore:
				return C.SQLITE_CONSTRAINT
			default:
				sdigSetError(pVTab, "UNIQUE constraint failed: idset.id")
				return C.SQLITE_CONSTRAINT
			}
		}
		*pRowid = C.sqlite3_int64(idVal)
		return C.SQLITE_OK
	}

	// UPDATE
	oldRowid := int64(C.sqlite3_value_int64(args[0]))
	if newRowidIsNull || idIsNull {
		return C.SQLITE_MISUSE
	}
	newRowid := int64(C.sqlite3_value_int64(args[1]))
	idVal := int64(C.sqlite3_value_int64(args[2]))
	if newRowid != idVal {
		return C.SQLITE_MISUSE
	}
	if newRowid == oldRowid {
		return C.SQLITE_OK
	}
	if _, found := h.body.search(idVal); found {
		switch conflict {
		case conflictReplace:
			h.body.erase(oldRowid)
		case conflictIgnore:
			return C.SQLITE_CONSTRAINT
		default:
			sdigSetError(pVTab, "UNIQUE constraint failed: idset.id")
			return C.SQLITE_CONSTRAINT
		}
	} else {
		h.body.erase(oldRowid)
		h.body.insert(idVal)
	}
	*pRowid = C.sqlite3_int64(idVal)
	return C.SQLITE_OK
}

//export go_vtab_rename
func go_vtab_rename(pVTab *C.sqlite3_vtab, zNew *C.char) C.int {
	v := (*C.sdig_vtab)(unsafe.Pointer(pVTab))
	h := pointer.Restore(v.impl).(*vtabHandle)
	// Only a self-rename (the name SQLite derives is already the table's
	// own name) is permitted; any other target would require migrating the
	// vtabRegistry entry to a name the IDSet no longer reports via Name(),
	// which would break re-Attach and Detach for the owning *IDSet.
	if C.GoString(zNew) != idsetName(h.body) {
		return C.SQLITE_MISUSE
	}
	return C.SQLITE_OK
}
