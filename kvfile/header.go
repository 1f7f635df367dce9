package kvfile

import "encoding/binary"

// headerFrameSize is the size, in bytes, of the fixed portion of every
// header: an 8-byte generation counter followed by a 4-byte blob length.
// The blob itself (a serialized fanout, or nothing for the log file)
// follows immediately after.
const headerFrameSize = 8 + 4

// HeaderSize returns the total on-disk header size for a blob of the given
// length. It is known before any payload is written, which is what lets
// the merge procedure reserve header room up front and rewrite the blob
// content later without moving the payload.
func HeaderSize(blobLen int) int64 {
	return int64(headerFrameSize + blobLen)
}

// encodeHeader renders generation and blob into a headerFrameSize+len(blob)
// byte buffer.
func encodeHeader(generation uint64, blob []byte) []byte {
	buf := make([]byte, headerFrameSize+len(blob))
	binary.LittleEndian.PutUint64(buf[0:8], generation)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(blob)))
	copy(buf[headerFrameSize:], blob)
	return buf
}

// encodeGeneration renders just the 8-byte generation field, for in-place
// rewrites that leave the blob untouched.
func encodeGeneration(generation uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, generation)
	return buf
}

// headerBlobLen reads the blob-length field out of a probe buffer of at
// least headerFrameSize bytes, without requiring the blob itself to be
// present.
func headerBlobLen(probe []byte) uint32 {
	return binary.LittleEndian.Uint32(probe[8:12])
}

// decodeHeader parses a header previously written by encodeHeader.
func decodeHeader(buf []byte) (generation uint64, blob []byte, err error) {
	if len(buf) < headerFrameSize {
		return 0, nil, ErrCorruptHeader
	}
	generation = binary.LittleEndian.Uint64(buf[0:8])
	blobLen := binary.LittleEndian.Uint32(buf[8:12])
	if len(buf) < headerFrameSize+int(blobLen) {
		return 0, nil, ErrCorruptHeader
	}
	blob = make([]byte, blobLen)
	copy(blob, buf[headerFrameSize:headerFrameSize+int(blobLen)])
	return generation, blob, nil
}
