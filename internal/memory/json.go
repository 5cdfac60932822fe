package memory

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// JSON column helpers. Lists and maps on records are stored as
// datatypes.JSON; merges are unions so no partial update ever loses
// personalization history.

func decodeList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func encodeList(items []string) datatypes.JSON {
	if items == nil {
		items = []string{}
	}
	raw, _ := json.Marshal(items)
	return raw
}

func decodeMap(raw datatypes.JSON) map[string]interface{} {
	out := make(map[string]interface{})
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return make(map[string]interface{})
	}
	return out
}

func encodeMap(m map[string]interface{}) datatypes.JSON {
	if m == nil {
		m = map[string]interface{}{}
	}
	raw, _ := json.Marshal(m)
	return raw
}

// unionList appends entries of b missing from a, preserving order.
func unionList(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range b {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// appendIfNew appends v only when absent.
func appendIfNew(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// EncodeList and DecodeList expose the JSON list codec to packages
// that persist list-valued columns alongside memory models.
func EncodeList(items []string) datatypes.JSON { return encodeList(items) }

func DecodeList(raw datatypes.JSON) []string { return decodeList(raw) }
