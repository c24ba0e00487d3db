package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Patch is a partial update: a JSON object whose keys are record fields.
type Patch map[string]any

// Has reports whether the patch touches field.
func (p Patch) Has(field string) bool {
	_, ok := p[field]
	return ok
}

// Clone returns a shallow copy of p.
func (p Patch) Clone() Patch {
	out := make(Patch, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ValidatePatch checks p on its own, without the record it will be applied
// to: every key must be a patchable field of T, every value must decode into
// that field, and the rules of the patched fields must hold.
func ValidatePatch[T Entity](p Patch) error {
	if len(p) == 0 {
		return Invalid("patch is empty")
	}
	if err := checkOwnedFields(p); err != nil {
		return err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return Invalid("encoding patch: %v", err)
	}
	var v T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return Invalid("decoding %s patch: %v", v.Collection(), err)
	}
	return check(v.rules(), p)
}

// ApplyPatch merges p into v and validates the result. Identity and
// timestamp fields are owned by the store and cannot be patched.
func ApplyPatch[T Entity](v T, p Patch) (T, error) {
	var zero T
	if err := checkOwnedFields(p); err != nil {
		return zero, err
	}

	doc, err := toMap(v)
	if err != nil {
		return zero, err
	}
	for k, val := range p {
		doc[k] = val
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return zero, Invalid("encoding patch: %v", err)
	}
	out, err := DecodeEntity[T](merged)
	if err != nil {
		return zero, err
	}
	return out, nil
}

// DecodeEntity strictly decodes a record document and validates it.
func DecodeEntity[T Entity](data []byte) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, Invalid("decoding %s: %v", v.Collection(), err)
	}
	if err := v.Validate(); err != nil {
		return v, err
	}
	return v, nil
}

func checkOwnedFields(p Patch) error {
	for k := range p {
		switch k {
		case FieldID, FieldCreatedAt, FieldUpdatedAt:
			return Invalid("field %q cannot be updated", k)
		}
	}
	return nil
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return doc, nil
}
