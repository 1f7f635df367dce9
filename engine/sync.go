package engine

import (
	"fmt"
	"os"

	"github.com/haldi/kvindex/kvfile"
)

// ErrInvariantViolation signals a condition the protocol guarantees
// cannot happen, observed anyway (e.g. the log shrinking between two
// sync_log observations without a generation bump).
var ErrInvariantViolation = fmt.Errorf("engine: invariant violation")

// syncLog is called at the start of every read operation on a
// read-only engine to cheaply detect and absorb a writer's merge.
func (e *Engine[K, V]) syncLog() error {
	if !e.logPresent {
		f, ok, err := tryOpenLogReadOnly(e.root)
		if err != nil {
			return err
		}
		if ok {
			e.logFile = f
			e.logPresent = true
			e.generation = f.Generation()
			if err := e.loadLogIntoMirror(); err != nil {
				return err
			}
		} else {
			return nil
		}
	}

	if err := e.logFile.ReloadHeader(); err != nil {
		return err
	}
	oldOffset := e.logFile.WriteOffset()
	newOffset, err := e.logFile.RefreshOffset()
	if err != nil {
		return err
	}
	observedGen := e.logFile.Generation()

	switch {
	case observedGen != e.generation:
		e.logMirror.Clear()
		if err := e.loadLogIntoMirror(); err != nil {
			return err
		}

		if e.indexFile != nil {
			if err := e.indexFile.Close(); err != nil {
				return err
			}
		}
		e.indexFile = nil
		e.indexPresent = false
		e.indexArray = nil
		e.fan = nil

		if observedGen == 0 {
			e.bloom = newBloomGuard(1, e.opts.BloomFP)
		} else {
			f, err := kvfile.Open(indexPath(e.root), kvfile.OpenOptions{ReadOnly: true})
			if err != nil {
				return err
			}
			if err := e.adoptIndexFile(f); err != nil {
				return err
			}
		}
		e.generation = observedGen

	case newOffset > oldOffset:
		if err := e.loadLogSuffixIntoMirror(oldOffset, newOffset); err != nil {
			return err
		}

	case newOffset < oldOffset:
		return fmt.Errorf("%w: log shrank from %d to %d without a generation bump", ErrInvariantViolation, oldOffset, newOffset)
	}

	return nil
}

// loadLogSuffixIntoMirror merges the entries newly appended in
// [from, to) into the mirror, without re-reading the whole log.
func (e *Engine[K, V]) loadLogSuffixIntoMirror(from, to int64) error {
	size := int64(e.codec.Size())
	buf := make([]byte, size)
	for off := from - from%size; off+size <= to; off += size {
		if _, err := e.logFile.ReadAt(buf, off); err != nil {
			return fmt.Errorf("engine: read log suffix at %d: %w", off, err)
		}
		ent, err := e.codec.Decode(buf)
		if err != nil {
			return fmt.Errorf("engine: decode log suffix at %d: %w", off, err)
		}
		e.logMirror.Put(ent.Key, ent.Value)
	}
	return nil
}

func tryOpenLogReadOnly(root string) (*kvfile.File, bool, error) {
	if _, err := os.Stat(logPath(root)); os.IsNotExist(err) {
		return nil, false, nil
	}
	f, err := kvfile.Open(logPath(root), kvfile.OpenOptions{ReadOnly: true})
	if err != nil {
		return nil, false, err
	}
	return f, true, nil
}
