// Package search implements interpolation search over a file-backed
// array of hash-ordered entries, narrowed first by a fan-out lookup.
package search

import (
	"errors"
	"math"

	"github.com/haldi/kvindex/array"
	"github.com/haldi/kvindex/entry"
	"github.com/haldi/kvindex/fanout"
)

// ErrNotFound is returned when no entry in the array matches the key.
var ErrNotFound = errors.New("search: not found")

// Find looks up k in arr, using fan to narrow the initial [lo, hi] range.
func Find[K comparable, V any](arr *array.Array[K, V], fan *fanout.Fan, codec *entry.Codec[K, V], k K) (V, error) {
	var zero V
	h := codec.Keys.Hash(k)
	lowByte, highByte := fan.Search(h)
	if highByte < lowByte {
		return zero, ErrNotFound
	}

	size := int64(codec.Size())
	lo := lowByte / size
	hi := highByte / size

	for lo <= hi {
		entryLo, err := arr.Get(lo)
		if err != nil {
			return zero, err
		}
		entryHi, err := arr.Get(hi)
		if err != nil {
			return zero, err
		}

		if h < entryLo.Hash || h > entryHi.Hash {
			return zero, ErrNotFound
		}

		if entryLo.Hash == entryHi.Hash {
			return linearScan(arr, lo, hi, k)
		}

		mid := interpolate(lo, entryLo.Hash, hi, entryHi.Hash, h)
		if mid < lo {
			mid = lo
		}
		if mid > hi {
			mid = hi
		}

		entryMid, err := arr.Get(mid)
		if err != nil {
			return zero, err
		}

		switch {
		case entryMid.Hash < h:
			lo = mid + 1
		case entryMid.Hash > h:
			hi = mid - 1
		default:
			return scanRun(arr, lo, hi, mid, h, k)
		}
	}

	return zero, ErrNotFound
}

// interpolate computes the pivot index via linear interpolation in hash
// space, rounded with round(x) = ceil(x - 0.5) + 0.5 then truncated.
func interpolate(lo int64, hashLo uint64, hi int64, hashHi uint64, h uint64) int64 {
	span := float64(hashHi) - float64(hashLo)
	p := (float64(h) - float64(hashLo)) / span
	pivotF := float64(lo) + p*float64(hi-lo)
	rounded := math.Ceil(pivotF-0.5) + 0.5
	return int64(rounded)
}

// linearScan handles the entry_lo.hash == entry_hi.hash collapse: every
// remaining candidate shares one hash, so the whole [lo, hi] run is
// scanned for key equality.
func linearScan[K comparable, V any](arr *array.Array[K, V], lo, hi int64, k K) (V, error) {
	var zero V
	for i := lo; i <= hi; i++ {
		e, err := arr.Get(i)
		if err != nil {
			return zero, err
		}
		if e.Key == k {
			return e.Value, nil
		}
	}
	return zero, ErrNotFound
}

// scanRun expands outward from mid over the contiguous run of entries
// sharing hash h, looking for a key match.
func scanRun[K comparable, V any](arr *array.Array[K, V], lo, hi, mid int64, h uint64, k K) (V, error) {
	var zero V

	e, err := arr.Get(mid)
	if err != nil {
		return zero, err
	}
	if e.Key == k {
		return e.Value, nil
	}

	left := mid - 1
	for left >= lo {
		e, err := arr.Get(left)
		if err != nil {
			return zero, err
		}
		if e.Hash != h {
			break
		}
		if e.Key == k {
			return e.Value, nil
		}
		left--
	}

	right := mid + 1
	for right <= hi {
		e, err := arr.Get(right)
		if err != nil {
			return zero, err
		}
		if e.Hash != h {
			break
		}
		if e.Key == k {
			return e.Value, nil
		}
		right++
	}

	return zero, ErrNotFound
}
