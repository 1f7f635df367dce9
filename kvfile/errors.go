package kvfile

import "errors"

// ErrFileClosed is returned by any operation on a File whose Close has
// already run.
var ErrFileClosed = errors.New("kvfile: file is closed")

// ErrHeaderSizeMismatch is returned by SetHeader when the supplied blob
// does not match the length reserved when the file was created. Header
// size is fixed for the lifetime of a file; growing it in place would
// shift every payload offset already handed out to callers.
var ErrHeaderSizeMismatch = errors.New("kvfile: header blob size does not match reserved size")

// ErrCorruptHeader is returned by Open when the on-disk header is shorter
// than the fixed framing fields require.
var ErrCorruptHeader = errors.New("kvfile: corrupt header")
