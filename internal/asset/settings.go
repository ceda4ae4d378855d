package asset

import "encoding/json"

// decodeStringMap parses raw as a flat map[string]string, tolerating
// non-string values by stringifying them via JSON round-trip.
func decodeStringMap(raw json.RawMessage) (map[string]string, error) {
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(generic))
	for k, v := range generic {
		switch val := v.(type) {
		case string:
			out[k] = val
		default:
			b, err := json.Marshal(val)
			if err != nil {
				continue
			}
			out[k] = string(b)
		}
	}
	return out, nil
}
