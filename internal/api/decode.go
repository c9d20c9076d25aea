package api

import "encoding/json"

// decodeObjects reads a JSON list of objects, dropping anything else.
func decodeObjects(raw json.RawMessage) []map[string]interface{} {
	out := []map[string]interface{}{}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, it := range items {
		var obj map[string]interface{}
		if err := json.Unmarshal(it, &obj); err != nil || obj == nil {
			continue
		}
		out = append(out, obj)
	}
	return out
}
