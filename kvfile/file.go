// Package kvfile is the abstract append-only file backend used by the log
// and index files: create/open, append, read at offset, fsync, clear,
// rename-over and advisory locking, plus a small fixed-layout header that
// carries a generation counter and a serialized fan-out blob. It is
// deliberately dumb about what the payload means; that is the engine's
// job.
package kvfile

import (
	"fmt"
	"os"
	"sync"
)

// OpenOptions controls how Open creates or reuses a file.
type OpenOptions struct {
	// Fresh truncates an existing file (or creates a new one) instead of
	// reusing its contents.
	Fresh bool

	// ReadOnly opens the file O_RDONLY. Open fails if the file does not
	// exist; callers that want "absent is fine" should stat first.
	ReadOnly bool

	// ReserveBlob is the number of header blob bytes to reserve when a
	// new file is created. Ignored when an existing file is reused.
	ReserveBlob int
}

// File is a single append-only, header-carrying file on disk. It is safe
// for one writer and any number of concurrent readers of the same open
// handle, matching the engine's own single-writer-per-handle discipline.
type File struct {
	mu         sync.RWMutex
	path       string
	f          *os.File
	readOnly   bool
	closed     bool
	payloadOff int64
	writeOff   int64
	generation uint64
	blob       []byte
}

// Open creates or reuses the file at path according to opts.
func Open(path string, opts OpenOptions) (*File, error) {
	flags := os.O_RDWR | os.O_CREATE
	if opts.ReadOnly {
		flags = os.O_RDONLY
	}

	osf, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("kvfile: open %s: %w", path, err)
	}

	if opts.Fresh && !opts.ReadOnly {
		if err := osf.Truncate(0); err != nil {
			osf.Close()
			return nil, fmt.Errorf("kvfile: truncate %s: %w", path, err)
		}
	}

	f := &File{path: path, f: osf, readOnly: opts.ReadOnly}

	stat, err := osf.Stat()
	if err != nil {
		osf.Close()
		return nil, fmt.Errorf("kvfile: stat %s: %w", path, err)
	}

	if stat.Size() == 0 {
		blob := make([]byte, opts.ReserveBlob)
		if err := f.writeHeaderLocked(0, blob); err != nil {
			osf.Close()
			return nil, err
		}
		f.payloadOff = HeaderSize(len(blob))
		f.writeOff = 0
		return f, nil
	}

	if err := f.loadHeaderLocked(stat.Size()); err != nil {
		osf.Close()
		return nil, err
	}
	return f, nil
}

func (f *File) loadHeaderLocked(fileSize int64) error {
	probe := make([]byte, headerFrameSize)
	if _, err := f.f.ReadAt(probe, 0); err != nil {
		return fmt.Errorf("kvfile: read header of %s: %w", f.path, err)
	}

	blobLen := int(headerBlobLen(probe))
	full := make([]byte, headerFrameSize+blobLen)
	if _, err := f.f.ReadAt(full, 0); err != nil {
		return fmt.Errorf("kvfile: read header of %s: %w", f.path, err)
	}
	gen, blob, err := decodeHeader(full)
	if err != nil {
		return fmt.Errorf("kvfile: decode header of %s: %w", f.path, err)
	}

	f.generation = gen
	f.blob = blob
	f.payloadOff = HeaderSize(blobLen)
	f.writeOff = fileSize - f.payloadOff
	if f.writeOff < 0 {
		return fmt.Errorf("%w: %s", ErrCorruptHeader, f.path)
	}
	return nil
}

func (f *File) writeHeaderLocked(generation uint64, blob []byte) error {
	buf := encodeHeader(generation, blob)
	if _, err := f.f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("kvfile: write header of %s: %w", f.path, err)
	}
	f.generation = generation
	f.blob = blob
	return nil
}

// Path returns the current path of the file. After a successful
// RenameOver this reflects the new path.
func (f *File) Path() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.path
}

// Generation returns the generation counter cached from the last header
// read (at Open or ReloadHeader).
func (f *File) Generation() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.generation
}

// FanoutBlob returns a copy of the header's blob as cached from the last
// header read.
func (f *File) FanoutBlob() []byte {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]byte, len(f.blob))
	copy(out, f.blob)
	return out
}

// SetGeneration rewrites only the generation field of the header, in
// place. The blob is untouched.
func (f *File) SetGeneration(gen uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFileClosed
	}
	if _, err := f.f.WriteAt(encodeGeneration(gen), 0); err != nil {
		return fmt.Errorf("kvfile: set generation of %s: %w", f.path, err)
	}
	f.generation = gen
	return nil
}

// SetHeader rewrites the whole header in place. blob must have the same
// length as the blob reserved when the file was created or last written
// with SetHeader; header size never changes after payload offsets have
// been handed out.
func (f *File) SetHeader(gen uint64, blob []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFileClosed
	}
	if len(blob) != len(f.blob) {
		return ErrHeaderSizeMismatch
	}
	return f.writeHeaderLocked(gen, blob)
}

// ReloadHeader re-reads the header from disk, refreshing the cached
// generation and blob. Used by read-only observers to cheaply detect a
// generation bump on the log file without re-reading the whole file.
func (f *File) ReloadHeader() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFileClosed
	}
	buf := make([]byte, headerFrameSize+len(f.blob))
	if _, err := f.f.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("kvfile: reload header of %s: %w", f.path, err)
	}
	gen, blob, err := decodeHeader(buf)
	if err != nil {
		return err
	}
	f.generation = gen
	f.blob = blob
	return nil
}

// PayloadOffset is the absolute file offset where the entry payload
// begins, i.e. the header size.
func (f *File) PayloadOffset() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.payloadOff
}

// WriteOffset is the cached length of the payload region in bytes.
func (f *File) WriteOffset() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.writeOff
}

// RefreshOffset re-stats the file and refreshes the cached write offset,
// returning the new value. Read-only observers call this before deciding
// whether the log has grown.
func (f *File) RefreshOffset() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrFileClosed
	}
	stat, err := f.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("kvfile: stat %s: %w", f.path, err)
	}
	f.writeOff = stat.Size() - f.payloadOff
	if f.writeOff < 0 {
		return 0, fmt.Errorf("%w: %s", ErrCorruptHeader, f.path)
	}
	return f.writeOff, nil
}

// Append writes rec to the end of the payload region and returns the
// offset (relative to the payload region, i.e. not counting the header)
// at which it was written.
func (f *File) Append(rec []byte) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrFileClosed
	}
	offset := f.writeOff
	n, err := f.f.WriteAt(rec, f.payloadOff+offset)
	if err != nil {
		return 0, fmt.Errorf("kvfile: append to %s: %w", f.path, err)
	}
	f.writeOff += int64(n)
	return offset, nil
}

// ReadAt reads len(buf) bytes at offset (relative to the payload region)
// into buf.
func (f *File) ReadAt(buf []byte, offset int64) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return 0, ErrFileClosed
	}
	n, err := f.f.ReadAt(buf, f.payloadOff+offset)
	if err != nil {
		return n, fmt.Errorf("kvfile: read %s at %d: %w", f.path, offset, err)
	}
	return n, nil
}

// Sync fsyncs the underlying file.
func (f *File) Sync() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrFileClosed
	}
	if err := f.f.Sync(); err != nil {
		return fmt.Errorf("kvfile: sync %s: %w", f.path, err)
	}
	return nil
}

// Truncate clears the payload region back to zero length. The header
// (generation, blob) is left untouched; callers that also need to reset
// the generation call SetGeneration separately.
func (f *File) Truncate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFileClosed
	}
	if err := f.f.Truncate(f.payloadOff); err != nil {
		return fmt.Errorf("kvfile: truncate %s: %w", f.path, err)
	}
	f.writeOff = 0
	return nil
}

// RenameOver atomically renames this file over targetPath. The handle
// keeps its open file descriptor and simply adopts the new path: on
// POSIX, a rename does not invalidate file descriptors already open on
// the renamed inode, so the caller can keep reading through this same
// File after the swap becomes visible to everyone else.
func (f *File) RenameOver(targetPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrFileClosed
	}
	if err := os.Rename(f.path, targetPath); err != nil {
		return fmt.Errorf("kvfile: rename %s over %s: %w", f.path, targetPath, err)
	}
	f.path = targetPath
	return nil
}

// Close closes the underlying file. Idempotent.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if err := f.f.Close(); err != nil {
		return fmt.Errorf("kvfile: close %s: %w", f.path, err)
	}
	return nil
}

// Closed reports whether Close has run.
func (f *File) Closed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.closed
}
