package common

import "primenumbers/core/types"

// Store is the persistence surface engines share. Values are RLP encoded by
// the implementation and keys are hashed before they reach the database.
type Store interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	AppendEvent(evt *types.Event)
}

// Key joins a module namespace with its components using ':' separators.
func Key(module string, parts ...[]byte) []byte {
	size := len(module)
	for _, p := range parts {
		size += len(p) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, module...)
	for _, p := range parts {
		buf = append(buf, ':')
		buf = append(buf, p...)
	}
	return buf
}
