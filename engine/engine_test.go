package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/haldi/kvindex/entry"
	"github.com/haldi/kvindex/fixedkey"
)

func testCodec() *entry.Codec[fixedkey.Key, fixedkey.Value] {
	return &entry.Codec[fixedkey.Key, fixedkey.Value]{
		Keys:   fixedkey.NewKeyCodec(4),
		Values: fixedkey.NewValueCodec(4),
	}
}

func mustOpen(t *testing.T, root string, opt ...Option) *Engine[fixedkey.Key, fixedkey.Value] {
	t.Helper()
	e, err := Open(root, testCodec(), 64, opt...)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return e
}

func TestEngine_ReplaceAndFindFromMirror(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	e := mustOpen(t, root, WithLogSize(1000))
	defer e.Close()

	if err := e.Replace(ctx, "aaaa", []byte("1111")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	v, err := e.Find(ctx, "aaaa")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if string(v) != "1111" {
		t.Fatalf("find = %q, want 1111", v)
	}

	if _, err := e.Find(ctx, "bbbb"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("find missing key = %v, want ErrNotFound", err)
	}
}

func TestEngine_ReplaceInvalidKeySize(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	e := mustOpen(t, root)
	defer e.Close()

	// The codec's keys are 4 bytes; a 2-byte key must be rejected before
	// it reaches the log.
	if err := e.Replace(ctx, "aa", []byte("1111")); !errors.Is(err, ErrInvalidKeySize) {
		t.Fatalf("replace with 2-byte key = %v, want ErrInvalidKeySize", err)
	}
}

func TestEngine_MergeOnOverflowMovesDataToIndex(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	// log_size is in entries; E = 8 bytes here, so 2 entries overflow it.
	e := mustOpen(t, root, WithLogSize(1))

	if err := e.Replace(ctx, "aaaa", []byte("1111")); err != nil {
		t.Fatalf("replace 1: %v", err)
	}
	if err := e.Replace(ctx, "bbbb", []byte("2222")); err != nil {
		t.Fatalf("replace 2: %v", err)
	}

	if e.Generation() == 0 {
		t.Fatalf("expected a merge to have bumped the generation")
	}

	v, err := e.Find(ctx, "aaaa")
	if err != nil || string(v) != "1111" {
		t.Fatalf("find aaaa after merge = %q,%v", v, err)
	}
	v, err = e.Find(ctx, "bbbb")
	if err != nil || string(v) != "2222" {
		t.Fatalf("find bbbb after merge = %q,%v", v, err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestEngine_ReopenAfterCloseKeepsData(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	e := mustOpen(t, root, WithLogSize(1))
	if err := e.Replace(ctx, "aaaa", []byte("1111")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	e2 := mustOpen(t, root, WithLogSize(1))
	defer e2.Close()
	v, err := e2.Find(ctx, "aaaa")
	if err != nil || string(v) != "1111" {
		t.Fatalf("find after reopen = %q,%v", v, err)
	}
}

func TestEngine_ReadOnlyObservesMergeViaSync(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writer := mustOpen(t, root, WithLogSize(1000))
	defer writer.Close()

	if err := writer.Replace(ctx, "aaaa", []byte("1111")); err != nil {
		t.Fatalf("replace: %v", err)
	}

	reader := mustOpen(t, root, WithReadOnly())
	defer reader.Close()

	v, err := reader.Find(ctx, "aaaa")
	if err != nil || string(v) != "1111" {
		t.Fatalf("reader find before merge = %q,%v", v, err)
	}

	if err := writer.ForceMerge(ctx); err != nil {
		t.Fatalf("force merge: %v", err)
	}
	if err := writer.Replace(ctx, "bbbb", []byte("2222")); err != nil {
		t.Fatalf("replace after merge: %v", err)
	}

	v, err = reader.Find(ctx, "aaaa")
	if err != nil || string(v) != "1111" {
		t.Fatalf("reader find aaaa after merge+sync = %q,%v", v, err)
	}
	v, err = reader.Find(ctx, "bbbb")
	if err != nil || string(v) != "2222" {
		t.Fatalf("reader find bbbb after merge+sync = %q,%v", v, err)
	}
}

func TestEngine_ForceMergeWithoutWitnessIsNoop(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	e := mustOpen(t, root)
	defer e.Close()

	if err := e.ForceMerge(ctx); err != nil {
		t.Fatalf("force merge on empty engine: %v", err)
	}
	if e.Generation() != 0 {
		t.Fatalf("generation = %d, want 0 for a no-op merge", e.Generation())
	}
}

func TestEngine_ClearResetsState(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	e := mustOpen(t, root, WithLogSize(1))
	if err := e.Replace(ctx, "aaaa", []byte("1111")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := e.Replace(ctx, "bbbb", []byte("2222")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if e.Generation() == 0 {
		t.Fatalf("expected merge before clear")
	}

	if err := e.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if e.Generation() != 0 {
		t.Fatalf("generation after clear = %d, want 0", e.Generation())
	}
	if _, err := e.Find(ctx, "aaaa"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("find after clear = %v, want ErrNotFound", err)
	}
	defer e.Close()
}

func TestEngine_ReadOnlyRejectsWrites(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	writer := mustOpen(t, root)
	if err := writer.Replace(ctx, "aaaa", []byte("1111")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	reader := mustOpen(t, root, WithReadOnly())
	defer reader.Close()

	if err := reader.Replace(ctx, "bbbb", []byte("2222")); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("replace on read-only = %v, want ErrReadOnly", err)
	}
	if err := reader.Clear(ctx); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("clear on read-only = %v, want ErrReadOnly", err)
	}
}

func TestEngine_SecondWriterIsLockedOut(t *testing.T) {
	root := t.TempDir()
	e1 := mustOpen(t, root)
	defer e1.Close()

	if _, err := Open(root, testCodec(), 64); !errors.Is(err, ErrLocked) {
		t.Fatalf("second writer open = %v, want ErrLocked", err)
	}
}

func TestEngine_IterVisitsMirrorThenIndexWithoutDedup(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	e := mustOpen(t, root, WithLogSize(1))
	if err := e.Replace(ctx, "aaaa", []byte("1111")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := e.Replace(ctx, "bbbb", []byte("2222")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	// Overwrite aaaa post-merge: mirror now shadows the stale index entry.
	if err := e.Replace(ctx, "aaaa", []byte("9999")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	defer e.Close()

	var seenValues []string
	if err := e.Iter(ctx, func(k fixedkey.Key, v fixedkey.Value) bool {
		seenValues = append(seenValues, string(v))
		return true
	}); err != nil {
		t.Fatalf("iter: %v", err)
	}

	if len(seenValues) != 3 {
		t.Fatalf("iter visited %d entries, want 3 (mirror's 9999 plus index's stale 1111 and 2222)", len(seenValues))
	}
}
