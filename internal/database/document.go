package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kozaktomas/face-auth/internal/descriptor"
)

// documentRecord is one element of the stored JSON array. Unknown fields are
// ignored so records written by newer versions (or by the browser client,
// which has no enrolled_at) still load.
type documentRecord struct {
	Name       string          `json:"name"`
	Descriptor json.RawMessage `json:"descriptor"`
	EnrolledAt *time.Time      `json:"enrolled_at,omitempty"`
}

// EncodeDocument serializes identities to the JSON array stored by document backends.
func EncodeDocument(identities []StoredIdentity) ([]byte, error) {
	records := make([]documentRecord, 0, len(identities))
	for _, ident := range identities {
		raw, err := descriptor.Encode(ident.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("encoding %q: %w", ident.Name, err)
		}
		rec := documentRecord{Name: ident.Name, Descriptor: raw}
		if !ident.EnrolledAt.IsZero() {
			enrolled := ident.EnrolledAt.UTC()
			rec.EnrolledAt = &enrolled
		}
		records = append(records, rec)
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encoding identity document: %w", err)
	}
	return data, nil
}

// DecodeDocument parses a stored JSON array. It never fails: a document that is
// not an array yields an empty result with an ErrStorageCorrupt warning, and each
// malformed record is skipped with a *descriptor.CorruptRecordError warning.
func DecodeDocument(data []byte, size int) *LoadResult {
	result := &LoadResult{}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		result.Warnings = append(result.Warnings, fmt.Errorf("%w: %v", ErrStorageCorrupt, err))
		return result
	}

	for i, raw := range raws {
		var rec documentRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			result.Warnings = append(result.Warnings, &descriptor.CorruptRecordError{
				Index: i,
				Err:   fmt.Errorf("%w: malformed record: %v", descriptor.ErrCorruptDescriptor, err),
			})
			continue
		}
		if rec.Name == "" {
			result.Warnings = append(result.Warnings, &descriptor.CorruptRecordError{
				Index: i,
				Err:   fmt.Errorf("%w: record has no name", descriptor.ErrCorruptDescriptor),
			})
			continue
		}

		d, err := descriptor.Decode(rec.Descriptor, size)
		if err != nil {
			result.Warnings = append(result.Warnings, &descriptor.CorruptRecordError{Index: i, Name: rec.Name, Err: err})
			continue
		}

		ident := StoredIdentity{Name: rec.Name, Descriptor: d}
		if rec.EnrolledAt != nil {
			ident.EnrolledAt = *rec.EnrolledAt
		}
		result.Identities = append(result.Identities, ident)
	}

	return result
}
