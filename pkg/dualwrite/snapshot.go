package dualwrite

import (
	"encoding/json"

	"github.com/huddlehq/huddle/pkg/storage"
)

// Snapshot converts a storage record into the generic payload the mirror
// carries. The round trip through JSON keeps the projection's field names
// identical to the API's.
func Snapshot(v interface{}) storage.Payload {
	data, err := json.Marshal(v)
	if err != nil {
		return storage.Payload{}
	}
	var payload storage.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return storage.Payload{}
	}
	return payload
}
