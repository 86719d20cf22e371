// Package confloader loads server configuration.
package confloader

import (
	"errors"
	"maps"

	koanfmaps "github.com/knadh/koanf/maps"
)

// ErrReadBytesNotSupported is returned when ReadBytes is called on a map
// provider.
var ErrReadBytesNotSupported = errors.New("confloader: ReadBytes not supported by map provider, use Read() instead")

// mapProvider is a koanf provider that serves configuration from a map.
// Dotted keys ("server.addr") are expanded into nested maps so the
// result merges and unmarshals like any other source.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	out := maps.Clone(map[string]any(m))
	koanfmaps.IntfaceKeysToStrings(out)
	return koanfmaps.Unflatten(out, "."), nil
}
