package subtitle

import (
	"encoding/json"
	"fmt"
)

// EncodeJSON renders the canonical on-disk JSON form.
func EncodeJSON(d *Document) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode subtitle document: %w", err)
	}
	return data, nil
}

// DecodeJSON parses the canonical on-disk JSON form, then normalizes it —
// every load re-validates the invariants (spec §3: "enforced on load and
// on save").
func DecodeJSON(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode subtitle document: %w", err)
	}
	d.Normalize()
	return &d, nil
}
