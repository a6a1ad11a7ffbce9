package sqlitex

// Engine result codes. Values match SQLite's own result-code numbering so
// that log output and error messages line up with what an operator would
// see from any other SQLite tool.
const (
	engineOK        = 0
	engineError     = 1
	engineBusy      = 5
	engineLocked    = 6
	engineNoMem     = 7
	engineInterrupt = 9
	engineNotFound  = 12
	engineTooBig    = 18
	engineConstr    = 19
	engineRange     = 25
	engineRow       = 100
	engineDone      = 101
)

// Column storage classes, as reported by sqlite3_column_type.
const (
	typeInteger = 1
	typeFloat   = 2
	typeText    = 3
	typeBlob    = 4
	typeNull    = 5
)

// Open flags, mirroring the sqlite3_open_v2 bit values.
const (
	openReadWrite = 0x00000002
	openCreate    = 0x00000004
	openURI       = 0x00000040
)

// Conflict-resolution actions, as reported by sqlite3_vtab_on_conflict.
const (
	conflictRollback = 1
	conflictIgnore   = 2
	conflictFail     = 3
	conflictAbort    = 4
	conflictReplace  = 5
)

// IndexConstraintOp mirrors the SQLITE_INDEX_CONSTRAINT_* family used by
// BestIndex planning (spec §4.6). Only the operators IDSet actually accepts
// are named; anything else is reported to the planner as unusable.
type IndexConstraintOp int

const (
	ConstraintEQ IndexConstraintOp = 2
	ConstraintGT IndexConstraintOp = 4
	ConstraintLE IndexConstraintOp = 8
	ConstraintLT IndexConstraintOp = 16
	ConstraintGE IndexConstraintOp = 32
)
