package database

import (
	"errors"
	"time"

	"github.com/kozaktomas/face-auth/internal/descriptor"
)

// ErrStorageCorrupt is reported when the stored identity set cannot be read as
// a sequence of records at all.
var ErrStorageCorrupt = errors.New("identity storage is corrupt")

// StoredIdentity represents an enrolled identity as persisted by a backend
type StoredIdentity struct {
	Name       string
	Descriptor descriptor.Descriptor
	EnrolledAt time.Time
}

// LoadResult is the outcome of reading the durable identity set.
// Warnings hold non-fatal problems: records skipped with a
// *descriptor.CorruptRecordError, or ErrStorageCorrupt when the whole set was discarded.
type LoadResult struct {
	Identities []StoredIdentity
	Warnings   []error
}
