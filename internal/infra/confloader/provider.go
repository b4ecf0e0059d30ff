package confloader

import "errors"

// ErrReadBytesNotSupported is returned by mapProvider.ReadBytes.
var ErrReadBytesNotSupported = errors.New("confloader: map provider has no byte form")

// mapProvider feeds an in-memory nested map to koanf. koanf calls Read for
// providers that return a parsed map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
