package service

import (
	"encoding/json"
)

// JSONCodec lets connect carry plain Go structs as application/json. It
// replaces connect's protobuf JSON codec, which only accepts proto messages.
type JSONCodec struct{}

func (JSONCodec) Name() string {
	return "json"
}

func (JSONCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (JSONCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}
