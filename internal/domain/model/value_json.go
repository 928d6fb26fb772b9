package model

import (
	"encoding/json"
)

// MarshalJSON writes numeric values as bare JSON numbers and everything else
// as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Numeric {
		return []byte(v.Number.String()), nil
	}
	return json.Marshal(v.Text)
}
