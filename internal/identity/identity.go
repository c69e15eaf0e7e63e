// Package identity owns the process-wide set of enrolled identities and keeps
// it in sync with durable storage.
package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/kozaktomas/face-auth/internal/descriptor"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrNameExists is returned when an identity with the same name is already enrolled.
	ErrNameExists = errors.New("name already enrolled")
	// ErrNotFound is returned when no identity has the given name.
	ErrNotFound = errors.New("identity not found")
	// ErrInvalidName is returned for names that are empty after normalisation.
	ErrInvalidName = errors.New("name must not be empty")
	// ErrStorageIO is returned when durable storage could not be read or written.
	// A mutation failing with it was not applied.
	ErrStorageIO = errors.New("identity storage I/O failed")
)

// Identity is an enrolled person. It is never mutated after enrollment.
type Identity struct {
	Name       string
	Descriptor descriptor.Descriptor
	EnrolledAt time.Time
}

// NormalizeName trims surrounding whitespace and converts name to Unicode NFC so
// that visually identical names compare equal. Comparison stays case-sensitive.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func (i Identity) clone() Identity {
	i.Descriptor = descriptor.Clone(i.Descriptor)
	return i
}
