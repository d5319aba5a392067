package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Cluster snapshots are plain structs of strings, ints and floats, so JSON
// round-trips them exactly. If you need a custom encoding, implement Codec
// and pass it to Save; the snapshot header records the codec name so the
// matching codec is selected on load.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used when none is configured.
var Default Codec = JSON{}
