package storage

import "errors"

// Table names, shared between the local store and the remote namespace.
const (
	TableWordRecords    = "wordRecords"
	TableChapterRecords = "chapterRecords"
	TableReviewRecords  = "reviewRecords"
)

// Counter names for the incrementally maintained aggregates.
const (
	CounterPracticeTime = "practiceTime"
	CounterWrongCount   = "wrongCount"
)

// ErrNotFound is returned by lookups that matched nothing. It marks an
// expected absence, not a storage fault.
var ErrNotFound = errors.New("record not found")

// ErrScheduleMissing is returned when a chapter save is attempted without a
// computed schedule block. The session pipeline must always schedule a
// chapter before saving it, so this is a contract violation at the caller.
var ErrScheduleMissing = errors.New("chapter record has no schedule")

// Row is one record in wire form: its key plus the full JSON-encoded
// record. Dump and ReplaceAll speak Row so reconciliation can move whole
// tables without knowing the record type.
type Row struct {
	Key  string
	Data []byte
}

// Cond is a single equality condition on an indexed column.
type Cond struct {
	Col string
	Val any
}
