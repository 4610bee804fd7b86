package utils

import (
	"bytes"
	"encoding/json"
)

// DecodeJSONList reads a nullable JSON array column. Empty and null decode to nil.
func DecodeJSONList[T any](raw []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeJSONList writes a non-null JSON array; nil becomes [].
func EncodeJSONList[T any](list []T) ([]byte, error) {
	if list == nil {
		list = []T{}
	}
	return json.Marshal(list)
}
