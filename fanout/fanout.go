// Package fanout implements the coarse hash-prefix partitioning table that
// narrows an interpolation search down to a small byte interval of the
// sorted index file before the first probe.
package fanout

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

const targetEntriesPerBucket = 4

// maxBucketBits bounds the fan-out table's size for pathologically large
// expected-entry estimates; 2^20 buckets is already generous for any
// realistically sized index.
const maxBucketBits = 20

// bucket holds the byte interval, within the sorted entries region, that
// encloses every entry whose hash falls in this bucket. An empty bucket
// (no entry ever fell in it) is represented by Low > High until Finalize
// patches it.
type bucket struct {
	Low  int64
	High int64
}

// Fan is a fan-out table: hash prefix -> enclosing byte interval.
type Fan struct {
	hashSize   int
	entrySize  int64
	bucketBits uint
	buckets    []bucket

	count      int64
	lastOffset int64
	finalized  bool
}

// Build constructs a fan-out sized from expectedEntries. hashSize is the
// number of bits the key hash is drawn from (64 for a uint64 hash).
// entrySize is E, the fixed on-disk size of one entry.
func Build(hashSize int, entrySize int64, expectedEntries int) *Fan {
	if expectedEntries < 1 {
		expectedEntries = 1
	}
	desiredBuckets := expectedEntries / targetEntriesPerBucket
	if desiredBuckets < 1 {
		desiredBuckets = 1
	}

	bits := uint(0)
	for (1 << bits) < desiredBuckets {
		bits++
	}
	if int(bits) > hashSize {
		bits = uint(hashSize)
	}
	if bits > maxBucketBits {
		bits = maxBucketBits
	}

	n := 1 << bits
	buckets := make([]bucket, n)
	for i := range buckets {
		buckets[i] = bucket{Low: 0, High: -1}
	}

	return &Fan{
		hashSize:   hashSize,
		entrySize:  entrySize,
		bucketBits: bits,
		buckets:    buckets,
		lastOffset: -entrySize,
	}
}

// bucketIndex extracts the top bucketBits bits of h.
func (fan *Fan) bucketIndex(h uint64) int {
	shift := uint(fan.hashSize) - fan.bucketBits
	if shift >= 64 {
		return 0
	}
	idx := h >> shift
	if fan.bucketBits < 64 {
		idx &= (uint64(1) << fan.bucketBits) - 1
	}
	return int(idx)
}

// Update records that an entry with the given hash begins at byteOffset.
// Update must be called for every emitted entry in ascending hash order.
func (fan *Fan) Update(h uint64, byteOffset int64) {
	idx := fan.bucketIndex(h)
	b := &fan.buckets[idx]
	if b.High < b.Low {
		b.Low = byteOffset
	}
	b.High = byteOffset
	fan.count++
	fan.lastOffset = byteOffset
}

// Finalize fills every empty bucket with the interval bounded by its
// nearest non-empty neighbors, so Search always returns a valid,
// lo<=hi-or-empty, monotone-in-h interval even for hash prefixes that no
// entry ever landed in.
func (fan *Fan) Finalize() {
	if fan.finalized {
		return
	}
	fan.finalized = true

	// Forward pass: empty buckets inherit a Low just past the previous
	// non-empty bucket's High.
	running := int64(0)
	for i := range fan.buckets {
		b := &fan.buckets[i]
		if b.High < b.Low {
			b.Low = running
		} else {
			running = b.High + fan.entrySize
		}
	}

	// Backward pass: empty buckets inherit a High just before the next
	// non-empty bucket's Low.
	running = fan.lastOffset
	for i := len(fan.buckets) - 1; i >= 0; i-- {
		b := &fan.buckets[i]
		if b.High < b.Low {
			// Still empty (not touched by the forward pass' "else"
			// branch): assign High from the trailing side.
			if b.High == -1 || b.High < b.Low {
				b.High = running
			}
		} else {
			running = b.Low - fan.entrySize
		}
	}
}

// Search returns the inclusive, E-aligned interval [low, high] of entry
// start offsets enclosing any entry with hash h. low <= high is only guaranteed when
// the interval is non-trivial; a caller that gets low > high should treat
// that as an immediate "not found" (there cannot be any matching entry).
func (fan *Fan) Search(h uint64) (low, high int64) {
	b := fan.buckets[fan.bucketIndex(h)]
	return b.Low, b.High
}

// EntrySize returns E, as supplied to Build.
func (fan *Fan) EntrySize() int64 {
	return fan.entrySize
}

// wireEnvelope carries the fixed-size metadata fields of a Fan. Its
// encoded size never changes across the life of a Fan (all fields are
// set once, at Build time), which is what lets the bucket table that
// follows it occupy a header of fixed, pre-reservable size.
type wireEnvelope struct {
	HashSize   int
	EntrySize  int64
	BucketBits uint
	BucketLen  int
}

// Serialize renders the fan-out as envelope-plus-raw-bucket-table: a
// msgpack-encoded wireEnvelope followed by a fixed-width binary array of
// (Low, High) int64 pairs. The bucket table is deliberately not
// msgpack-encoded: msgpack's integer varint framing means the placeholder
// encoding (all-zero buckets, written when header room is reserved) and
// the finalized encoding (real offsets) would not generally be the same
// length, which would violate the requirement that header size is fixed
// before the payload is written.
func (fan *Fan) Serialize() ([]byte, error) {
	env := wireEnvelope{
		HashSize:   fan.hashSize,
		EntrySize:  fan.entrySize,
		BucketBits: fan.bucketBits,
		BucketLen:  len(fan.buckets),
	}

	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, &codec.MsgpackHandle{})
	if err := enc.Encode(env); err != nil {
		return nil, fmt.Errorf("fanout: encode envelope: %w", err)
	}

	out := make([]byte, buf.Len()+len(fan.buckets)*16)
	copy(out, buf.Bytes())
	tail := out[buf.Len():]
	for i, b := range fan.buckets {
		binary.LittleEndian.PutUint64(tail[i*16:i*16+8], uint64(b.Low))
		binary.LittleEndian.PutUint64(tail[i*16+8:i*16+16], uint64(b.High))
	}
	return out, nil
}

// ExportedSize returns the length Serialize will produce, by serializing
// once and measuring the result. Safe to call at any point in a Fan's
// lifetime; the result never changes for a given Fan.
func (fan *Fan) ExportedSize() (int, error) {
	b, err := fan.Serialize()
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Deserialize parses a blob previously produced by Serialize.
func Deserialize(blob []byte) (*Fan, error) {
	dec := codec.NewDecoderBytes(blob, &codec.MsgpackHandle{})
	var env wireEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("fanout: decode envelope: %w", err)
	}

	envelopeLen := len(blob) - env.BucketLen*16
	if envelopeLen < 0 || envelopeLen > len(blob) {
		return nil, fmt.Errorf("fanout: corrupt blob: bad bucket length %d", env.BucketLen)
	}
	tail := blob[envelopeLen:]
	if len(tail) != env.BucketLen*16 {
		return nil, fmt.Errorf("fanout: corrupt blob: want %d bucket bytes, got %d", env.BucketLen*16, len(tail))
	}

	buckets := make([]bucket, env.BucketLen)
	lastOffset := int64(-env.EntrySize)
	for i := range buckets {
		low := int64(binary.LittleEndian.Uint64(tail[i*16 : i*16+8]))
		high := int64(binary.LittleEndian.Uint64(tail[i*16+8 : i*16+16]))
		buckets[i] = bucket{Low: low, High: high}
		if high >= low {
			lastOffset = high
		}
	}

	return &Fan{
		hashSize:   env.HashSize,
		entrySize:  env.EntrySize,
		bucketBits: env.BucketBits,
		buckets:    buckets,
		finalized:  true,
		lastOffset: lastOffset,
	}, nil
}
