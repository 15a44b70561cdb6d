package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeOne decodes a to-one relation that was selected as JSON. Depending on
// how the relation is expressed in SQL it arrives as an object, as null, or as
// an array; a one-element array is unwrapped and an empty one means absent.
// It reports whether a value was decoded.
func decodeOne(raw []byte, dst any) (bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}
	if raw[0] != '[' {
		if err := json.Unmarshal(raw, dst); err != nil {
			return false, err
		}
		return true, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return false, err
	}
	switch len(items) {
	case 0:
		return false, nil
	case 1:
		return decodeOne(items[0], dst)
	default:
		return false, fmt.Errorf("relation: expected at most one row, got %d", len(items))
	}
}
