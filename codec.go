package pgmq

import "encoding/json"

// Codec translates payload values to and from the opaque bytes stored in the
// queue. A Codec is bound to a Client at construction time (WithCodec) and is
// used by Send to encode values and by every read path to decode them.
//
// Implementations must be safe for concurrent use.
type Codec interface {
	// Encode serializes v into the byte form the store persists.
	Encode(v any) ([]byte, error)

	// Decode deserializes bytes previously produced by Encode.
	Decode(data []byte) (any, error)
}

// JSONCodec is the default Codec. It encodes with encoding/json, which also
// matches the jsonb column pgmq stores payloads in.
//
// Decode unmarshals into the generic JSON representation (map[string]any,
// []any, float64, string, bool, nil).
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
