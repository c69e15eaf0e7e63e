package descriptor

import (
	"encoding/json"
	"fmt"
)

// Encode returns the durable JSON form of d: an array of numbers.
// float32 values are written in their shortest round-tripping form.
func Encode(d Descriptor) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil descriptor", ErrInvalidDescriptor)
	}
	if err := Validate(d, len(d)); err != nil {
		return nil, err
	}
	data, err := json.Marshal([]float32(d))
	if err != nil {
		return nil, fmt.Errorf("encoding descriptor: %w", err)
	}
	return data, nil
}

// Decode parses the durable JSON form of a descriptor of the given size.
func Decode(raw []byte, size int) (Descriptor, error) {
	var values []float32
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDescriptor, err)
	}
	if len(values) != size {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrCorruptDescriptor, len(values), size)
	}
	return Descriptor(values), nil
}

// CorruptRecordError reports a single stored record that could not be decoded.
type CorruptRecordError struct {
	Index int
	Name  string
	Err   error
}

func (e *CorruptRecordError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("record %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("record %d (%q): %v", e.Index, e.Name, e.Err)
}

func (e *CorruptRecordError) Unwrap() error {
	return e.Err
}
