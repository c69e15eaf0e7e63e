// Package descriptor holds the fixed-length face descriptor produced by the
// external face model, its durable JSON form and the distance used to compare
// two descriptors.
package descriptor

import (
	"errors"
	"fmt"
	"math"
)

// DefaultSize is the descriptor length of the 128-d face recognition model.
const DefaultSize = 128

var (
	// ErrNoFace is returned when the detector found no face in the image.
	ErrNoFace = errors.New("no face detected")
	// ErrInvalidDescriptor is returned for descriptors that cannot be stored or compared.
	ErrInvalidDescriptor = errors.New("invalid descriptor")
	// ErrCorruptDescriptor is returned when a durable form cannot be decoded.
	ErrCorruptDescriptor = errors.New("corrupt descriptor")
)

// Descriptor is a face descriptor. A nil Descriptor means no face was detected.
type Descriptor []float32

// Validate checks that d has exactly size finite components.
func Validate(d Descriptor, size int) error {
	if d == nil {
		return ErrNoFace
	}
	if len(d) != size {
		return fmt.Errorf("%w: got %d values, want %d", ErrInvalidDescriptor, len(d), size)
	}
	for i, v := range d {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: value %d is not finite", ErrInvalidDescriptor, i)
		}
	}
	return nil
}

// Clone returns a copy of d that does not share memory with it.
func Clone(d Descriptor) Descriptor {
	if d == nil {
		return nil
	}
	out := make(Descriptor, len(d))
	copy(out, d)
	return out
}

// Distance computes the Euclidean distance between two descriptors.
// Descriptors of different length are infinitely far apart.
func Distance(a, b Descriptor) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
