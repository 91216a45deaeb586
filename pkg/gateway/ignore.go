package gateway

import "encoding/json"

// decodeIgnoreSet parses the store's JSON array of ignored device ids into a
// set for O(1) membership checks.
func decodeIgnoreSet(raw string) (map[string]struct{}, error) {
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
