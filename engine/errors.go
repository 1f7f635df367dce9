package engine

import "errors"

// ErrClosed is returned by any operation on an Engine after Close has run.
var ErrClosed = errors.New("engine: closed")

// ErrReadOnly is returned by a mutating operation on a read-only engine.
var ErrReadOnly = errors.New("engine: read-only")

// ErrNotFound is returned by Find when the key is absent from both the
// mirror and the index.
var ErrNotFound = errors.New("engine: not found")

// ErrInvalidKeySize is returned by Replace when the key does not encode
// to the codec's fixed K_size.
var ErrInvalidKeySize = errors.New("engine: invalid key size")

// ErrInvalidValueSize is returned by Replace when the value does not
// encode to the codec's fixed V_size.
var ErrInvalidValueSize = errors.New("engine: invalid value size")

// ErrLocked is returned by Open when another writable handle already
// holds the root's advisory lock.
var ErrLocked = errors.New("engine: locked by another writer")
