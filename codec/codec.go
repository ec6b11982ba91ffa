// Package codec centralizes manifest encoding for archives.
//
// Archives are self-describing: the codec name is stored in the archive
// header, and the decoder is selected by name on load. Changing the default
// codec therefore never breaks existing archives.
package codec

import "fmt"

// Codec encodes and decodes archive manifests.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	case "sonnet":
		return Sonnet{}, true
	default:
		return nil, false
	}
}

// Default is the codec used for newly written archives. Existing archives
// record their codec name and are decoded with it regardless of Default.
var Default Codec = GoJSON{}

// MustMarshal is a helper for tests and benchmarks.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
