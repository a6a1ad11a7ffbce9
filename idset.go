package sqlitex

import (
	"fmt"
	"sort"
	"unsafe"
)

// idsetBody is the heap-stable storage cell backing an IDSet (spec §3,
// §4.6, design note "virtual-table ↔ container aliasing"). Its address
// never changes for the cell's lifetime, which is what lets the derived
// SQL name stay valid across Go-level moves of the IDSet value that
// references it.
type idsetBody struct {
	ids []int64
}

// IDSet is an in-memory ordered set of unique 64-bit integer keys that can
// simultaneously be exposed to SQL as a queryable, updatable virtual table
// (spec C6). The zero value has no storage cell and is not usable; obtain
// an empty, unattached set from NewIDSet.
type IDSet struct {
	body    *idsetBody
	session *Session
}

// NewIDSet returns an empty, unattached IDSet.
func NewIDSet() *IDSet {
	return &IDSet{body: &idsetBody{}}
}

// Name returns the set's SQL-visible name, derived from the stable heap
// address of its storage cell: idset_<hex>. Swapping two sets' storage
// (Swap) never changes either set's Name.
func (s *IDSet) Name() string {
	return idsetName(s.body)
}

// idsetName derives the SQL-visible name from a storage cell's stable heap
// address. Shared with vtab.go so the rename trampoline can recognize a
// self-rename without holding an *IDSet.
func idsetName(body *idsetBody) string {
	return fmt.Sprintf("idset_%x", uintptr(unsafe.Pointer(body)))
}

// Len returns the number of elements currently stored.
func (s *IDSet) Len() int { return len(s.body.ids) }

// Values returns a copy of the ascending slice of stored ids.
func (s *IDSet) Values() []int64 {
	out := make([]int64, len(s.body.ids))
	copy(out, s.body.ids)
	return out
}

func (b *idsetBody) search(id int64) (int, bool) {
	i := sort.Search(len(b.ids), func(i int) bool { return b.ids[i] >= id })
	return i, i < len(b.ids) && b.ids[i] == id
}

// Insert adds id if not already present, using binary search on the
// sorted storage (spec §4.6). It reports the index and whether a new
// element was added.
func (s *IDSet) Insert(id int64) (int, bool) {
	return s.body.insert(id)
}

func (b *idsetBody) insert(id int64) (int, bool) {
	i, found := b.search(id)
	if found {
		return i, false
	}
	b.ids = append(b.ids, 0)
	copy(b.ids[i+1:], b.ids[i:])
	b.ids[i] = id
	return i, true
}

// Erase removes id if present, returning 1 if it was removed, else 0.
func (s *IDSet) Erase(id int64) int {
	return s.body.erase(id)
}

func (b *idsetBody) erase(id int64) int {
	i, found := b.search(id)
	if !found {
		return 0
	}
	b.ids = append(b.ids[:i], b.ids[i+1:]...)
	return 1
}

// InsertRange inserts every id in ids, preserving uniqueness, and returns
// the count of newly added elements.
func (s *IDSet) InsertRange(ids []int64) int {
	added := 0
	for _, id := range ids {
		if _, ok := s.body.insert(id); ok {
			added++
		}
	}
	return added
}

// InsertSet inserts every element of other into s, returning the count of
// newly added elements.
func (s *IDSet) InsertSet(other *IDSet) int {
	return s.InsertRange(other.body.ids)
}

// InsertStatement inserts the int64 value of column col from every row
// produced by st — starting from st's current row if it is already active,
// or from its first row otherwise — and returns the count of newly added
// elements (spec §4.6). st is left exhausted; the caller retains ownership
// and must Finalize it.
func (s *IDSet) InsertStatement(st *Statement, col int) (int, error) {
	row, err := st.currentRow()
	if err != nil {
		return 0, err
	}
	added := 0
	for row != nil {
		if _, ok := s.body.insert(row.Int64(col)); ok {
			added++
		}
		row, err = row.Next()
		if err != nil {
			return added, err
		}
	}
	return added, nil
}

// InsertColumn runs sql (with args) against session, inserting the int64
// value of column col from every row of the result, and returns the count
// of newly added elements.
func (s *IDSet) InsertColumn(session *Session, col int, sql string, args ...interface{}) (int, error) {
	st, _, err := session.Exec(sql, args...)
	if err != nil {
		return 0, err
	}
	defer st.Finalize()
	return s.InsertStatement(st, col)
}

// EraseRange erases every id in ids, returning the count removed.
func (s *IDSet) EraseRange(ids []int64) int {
	removed := 0
	for _, id := range ids {
		removed += s.body.erase(id)
	}
	return removed
}

// EraseSet erases every element of other from s, returning the count
// removed.
func (s *IDSet) EraseSet(other *IDSet) int {
	return s.EraseRange(other.body.ids)
}

// EraseStatement mirrors InsertStatement but erases instead of inserting.
func (s *IDSet) EraseStatement(st *Statement, col int) (int, error) {
	row, err := st.currentRow()
	if err != nil {
		return 0, err
	}
	removed := 0
	for row != nil {
		removed += s.body.erase(row.Int64(col))
		row, err = row.Next()
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// EraseColumn mirrors InsertColumn but erases instead of inserting.
func (s *IDSet) EraseColumn(session *Session, col int, sql string, args ...interface{}) (int, error) {
	st, _, err := session.Exec(sql, args...)
	if err != nil {
		return 0, err
	}
	defer st.Finalize()
	return s.EraseStatement(st, col)
}

// Intersect removes from s any element not present in other, which must
// already be sorted ascending, and returns the count removed.
func (s *IDSet) Intersect(other *IDSet) int {
	return s.body.intersect(other.body.ids)
}

// IntersectStatement removes from s any element not present among the
// int64 values of column col from every row produced by st — starting from
// st's current row if already active — and returns the count removed (spec
// §4.6). The rows need not arrive in sorted order; they are collected and
// deduplicated before intersecting.
func (s *IDSet) IntersectStatement(st *Statement, col int) (int, error) {
	row, err := st.currentRow()
	if err != nil {
		return 0, err
	}
	others, err := collectColumn(row, col)
	if err != nil {
		return 0, err
	}
	return s.body.intersect(others), nil
}

// IntersectColumn mirrors IntersectStatement, running sql (with args)
// against session to produce the column first.
func (s *IDSet) IntersectColumn(session *Session, col int, sql string, args ...interface{}) (int, error) {
	st, _, err := session.Exec(sql, args...)
	if err != nil {
		return 0, err
	}
	defer st.Finalize()
	return s.IntersectStatement(st, col)
}

func (b *idsetBody) intersect(other []int64) int {
	kept := b.ids[:0]
	removed := 0
	oi := 0
	for _, id := range b.ids {
		for oi < len(other) && other[oi] < id {
			oi++
		}
		if oi < len(other) && other[oi] == id {
			kept = append(kept, id)
		} else {
			removed++
		}
	}
	b.ids = kept
	return removed
}

// SymmetricDifference removes elements present in both sets and inserts
// elements present only in other; other must be sorted ascending.
func (s *IDSet) SymmetricDifference(other *IDSet) {
	s.symmetricDifference(other.body.ids)
}

// SymmetricDifferenceStatement mirrors SymmetricDifference, drawing the
// other set from the int64 values of column col in every row produced by
// st — starting from st's current row if already active (spec §4.6).
func (s *IDSet) SymmetricDifferenceStatement(st *Statement, col int) error {
	row, err := st.currentRow()
	if err != nil {
		return err
	}
	others, err := collectColumn(row, col)
	if err != nil {
		return err
	}
	s.symmetricDifference(others)
	return nil
}

// SymmetricDifferenceColumn mirrors SymmetricDifferenceStatement, running
// sql (with args) against session to produce the column first.
func (s *IDSet) SymmetricDifferenceColumn(session *Session, col int, sql string, args ...interface{}) error {
	st, _, err := session.Exec(sql, args...)
	if err != nil {
		return err
	}
	defer st.Finalize()
	return s.SymmetricDifferenceStatement(st, col)
}

func (s *IDSet) symmetricDifference(others []int64) {
	for _, id := range others {
		if _, found := s.body.search(id); found {
			s.body.erase(id)
		} else {
			s.body.insert(id)
		}
	}
}

// collectColumn gathers the int64 value of column col from row and every
// subsequent row into a sorted, deduplicated slice, consuming the iterator.
func collectColumn(row *Row, col int) ([]int64, error) {
	tmp := &idsetBody{}
	var err error
	for row != nil {
		tmp.insert(row.Int64(col))
		row, err = row.Next()
		if err != nil {
			return tmp.ids, err
		}
	}
	return tmp.ids, nil
}

// Clear removes every element.
func (s *IDSet) Clear() { s.body.ids = nil }

// Reserve grows the backing storage's capacity to at least n without
// changing its contents.
func (s *IDSet) Reserve(n int) {
	if cap(s.body.ids) >= n {
		return
	}
	grown := make([]int64, len(s.body.ids), n)
	copy(grown, s.body.ids)
	s.body.ids = grown
}

// ShrinkToFit releases any excess backing-storage capacity.
func (s *IDSet) ShrinkToFit() {
	if len(s.body.ids) == cap(s.body.ids) {
		return
	}
	shrunk := make([]int64, len(s.body.ids))
	copy(shrunk, s.body.ids)
	s.body.ids = shrunk
}

// Swap exchanges storage contents and attachments between s and other,
// re-attaching each to the other's session, but never swaps their stable
// SQL names (spec invariant 9). If both sets were attached to the same
// session, previously compiled statements referring to either name remain
// valid; otherwise callers must re-prepare.
func (s *IDSet) Swap(other *IDSet) error {
	s.body.ids, other.body.ids = other.body.ids, s.body.ids

	sSession, oSession := s.session, other.session
	if sSession == oSession {
		return nil
	}
	if s.session != nil {
		if err := s.Detach(); err != nil {
			return err
		}
	}
	if other.session != nil {
		if err := other.Detach(); err != nil {
			return err
		}
	}
	if sSession != nil {
		if err := other.Attach(sSession); err != nil {
			return err
		}
	}
	if oSession != nil {
		if err := s.Attach(oSession); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether s and other hold identical elements in the same
// order. Attachment state is irrelevant to comparisons.
func (s *IDSet) Equal(other *IDSet) bool {
	return compareInt64Slices(s.body.ids, other.body.ids) == 0
}

// Compare returns -1, 0, or 1 following the lexicographic order of the two
// sets' underlying storage. Attachment state is irrelevant to comparisons.
func (s *IDSet) Compare(other *IDSet) int {
	return compareInt64Slices(s.body.ids, other.body.ids)
}

func compareInt64Slices(a, b []int64) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Attach creates a virtual table named Name() in session's temp schema,
// backed by this set's storage, with a single INTEGER PRIMARY KEY column
// named id. Attaching to the session it is already attached to is a no-op;
// attaching elsewhere detaches first (spec §4.6, invariant 8).
func (s *IDSet) Attach(session *Session) error {
	if s.session == session {
		return nil
	}
	if s.session != nil {
		if err := s.Detach(); err != nil {
			return err
		}
	}
	if err := session.requireOpen(); err != nil {
		return err
	}
	if err := ensureVtabModule(session.conn); err != nil {
		return err
	}
	name := s.Name()
	vtabRegistryPut(name, s.body)
	sql := "CREATE VIRTUAL TABLE temp." + name + " USING " + vtabModuleName + "()"
	if err := engineExec(session.conn, sql); err != nil {
		vtabRegistryDrop(name)
		return err
	}
	s.session = session
	return nil
}

// Detach drops the set's virtual table from its attached session, if any.
func (s *IDSet) Detach() error {
	if s.session == nil {
		return nil
	}
	name := s.Name()
	err := engineExec(s.session.conn, "DROP TABLE temp."+name)
	vtabRegistryDrop(name)
	s.session = nil
	return err
}
