// Package sqlitex is an embedded-database access library sitting directly
// atop SQLite. It provides a Session (one connection, its statement
// cache, its progress callback, and its transaction stack), a
// Statement/Row pair (prepared-statement lifecycle with typed binding,
// row iteration, and automatic lock/deadlock handling), a Transaction
// type (nested transactions with automatic busy retry and commit/rollback
// hook queues), and an IDSet (an in-memory ordered set of 64-bit integer
// keys simultaneously exposed to SQL as a queryable, updatable virtual
// table).
package sqlitex
