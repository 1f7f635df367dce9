package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/haldi/kvindex/array"
	"github.com/haldi/kvindex/entry"
	"github.com/haldi/kvindex/fanout"
	"github.com/haldi/kvindex/kvfile"
	"github.com/haldi/kvindex/mirror"
)

// ForceMerge runs a merge even if the log is under its byte budget. It
// first looks for a witness entry (any mirror entry, else the first
// index entry); with no witness there is nothing to merge and the call
// is a no-op.
func (e *Engine[K, V]) ForceMerge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.opts.ReadOnly {
		return ErrReadOnly
	}

	hasWitness := e.logMirror.Len() > 0
	if !hasWitness && e.indexPresent && e.indexArray.Len() > 0 {
		hasWitness = true
	}
	if !hasWitness {
		return nil
	}

	return e.mergeLocked()
}

// mergeLocked folds the log mirror into a fresh sorted index and
// advances the generation counter. Caller holds mu.
func (e *Engine[K, V]) mergeLocked() error {
	newGen := e.generation + 1

	snapshot := mirror.Snapshot(e.logMirror, e.codec)
	sort.SliceStable(snapshot, func(i, j int) bool { return snapshot[i].Hash < snapshot[j].Hash })

	var existingCount int64
	if e.indexPresent {
		existingCount = e.indexArray.Len()
	}
	fanSize := int(existingCount) + len(snapshot)
	fan := fanout.Build(e.hashBits, int64(e.codec.Size()), fanSize)

	reserveLen, err := fan.ExportedSize()
	if err != nil {
		return fmt.Errorf("engine: size fanout: %w", err)
	}

	mergeFile, err := kvfile.Open(mergePath(e.root), kvfile.OpenOptions{Fresh: true, ReserveBlob: reserveLen})
	if err != nil {
		return fmt.Errorf("engine: open merge file: %w", err)
	}
	if err := mergeFile.SetGeneration(newGen); err != nil {
		_ = mergeFile.Close()
		return err
	}

	emit := func(ent entry.Entry[K, V]) error {
		offset := mergeFile.WriteOffset()
		fan.Update(ent.Hash, offset)
		_, err := mergeFile.Append(e.codec.Encode(ent.Key, ent.Value))
		return err
	}

	var i int64
	j := 0
	for i < existingCount {
		idxEnt, err := e.indexArray.Get(i)
		if err != nil {
			_ = mergeFile.Close()
			return err
		}
		hi := idxEnt.Hash

		for j < len(snapshot) && snapshot[j].Hash < hi {
			if err := emit(snapshot[j]); err != nil {
				_ = mergeFile.Close()
				return err
			}
			j++
		}

		if j < len(snapshot) && snapshot[j].Hash == hi && snapshot[j].Key == idxEnt.Key {
			if err := emit(snapshot[j]); err != nil {
				_ = mergeFile.Close()
				return err
			}
			j++
			i++
			continue
		}

		if err := emit(idxEnt); err != nil {
			_ = mergeFile.Close()
			return err
		}
		i++
	}
	for j < len(snapshot) {
		if err := emit(snapshot[j]); err != nil {
			_ = mergeFile.Close()
			return err
		}
		j++
	}

	fan.Finalize()
	blob, err := fan.Serialize()
	if err != nil {
		_ = mergeFile.Close()
		return fmt.Errorf("engine: serialize fanout: %w", err)
	}
	if err := mergeFile.SetHeader(newGen, blob); err != nil {
		_ = mergeFile.Close()
		return fmt.Errorf("engine: write fanout header: %w", err)
	}

	if err := mergeFile.RenameOver(indexPath(e.root)); err != nil {
		_ = mergeFile.Close()
		return fmt.Errorf("engine: rename merge over index: %w", err)
	}

	if e.indexFile != nil {
		_ = e.indexFile.Close()
	}
	e.indexFile = mergeFile
	e.indexPresent = true
	e.fan = fan
	e.indexArray = array.New(mergeFile, e.codec)
	if err := e.rebuildBloomLocked(); err != nil {
		return err
	}

	if err := e.logFile.Truncate(); err != nil {
		return err
	}
	if err := e.logFile.SetGeneration(newGen); err != nil {
		return err
	}
	e.logMirror.Clear()
	e.generation = newGen

	if e.metrics != nil {
		e.metrics.MergeObserved()
	}
	e.reportGauges()
	return nil
}
