// Package jsoncodec is the structured-clone codec used for every envelope that
// crosses a transport boundary.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

// defaultConfig is sonic.ConfigStd with integers decoded as int64, so ids
// and counters above 2^53 survive a clone.
var defaultConfig = sonic.Config{
	EscapeHTML:       true,
	SortMapKeys:      true,
	CompactMarshaler: true,
	CopyString:       true,
	ValidateString:   true,
	UseInt64:         true,
}.Froze()

// Marshal serializes v to JSON bytes.
func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

// Unmarshal deserializes JSON bytes into v.
func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// Encode writes v to w followed by a newline.
func Encode(w io.Writer, v any) error {
	return defaultConfig.NewEncoder(w).Encode(v)
}

// Convert re-shapes a decoded value (maps, slices, int64/float64 numbers) into the
// concrete type pointed to by target.
func Convert(src any, target any) error {
	data, err := Marshal(src)
	if err != nil {
		return err
	}
	return Unmarshal(data, target)
}

// Clone deep-copies v through a JSON round trip. The copy shares no identity
// with v: structs become maps, integers become int64 and other numbers float64.
func Clone(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	var out any
	if err := Convert(v, &out); err != nil {
		return nil, err
	}
	return out, nil
}
