package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/haldi/kvindex/engine"
	"github.com/haldi/kvindex/entry"
	"github.com/haldi/kvindex/fixedkey"
)

func testCodec() *entry.Codec[fixedkey.Key, fixedkey.Value] {
	return &entry.Codec[fixedkey.Key, fixedkey.Value]{
		Keys:   fixedkey.NewKeyCodec(4),
		Values: fixedkey.NewValueCodec(4),
	}
}

func TestCache_SharesHandleForSamePathAndMode(t *testing.T) {
	root := t.TempDir()
	c := New[fixedkey.Key, fixedkey.Value]()

	e1, err := c.Open(root, testCodec(), 64)
	if err != nil {
		t.Fatalf("open 1: %v", err)
	}
	e2, err := c.Open(root, testCodec(), 64)
	if err != nil {
		t.Fatalf("open 2: %v", err)
	}
	if e1 != e2 {
		t.Fatalf("expected the same engine instance for two opens of the same (root, mode)")
	}

	if err := c.Release(root, false); err != nil {
		t.Fatalf("release 1: %v", err)
	}
	// Still referenced once; Find must keep working.
	if _, err := e1.Find(context.Background(), "aaaa"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected not-found on an empty engine")
	}

	if err := c.Release(root, false); err != nil {
		t.Fatalf("release 2: %v", err)
	}
}

func TestCache_DistinctModesGetDistinctHandles(t *testing.T) {
	root := t.TempDir()
	c := New[fixedkey.Key, fixedkey.Value]()

	writer, err := c.Open(root, testCodec(), 64)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer c.Release(root, false)

	ctx := context.Background()
	if err := writer.Replace(ctx, "aaaa", []byte("1111")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if err := writer.ForceMerge(ctx); err != nil {
		t.Fatalf("force merge: %v", err)
	}

	reader, err := c.Open(root, testCodec(), 64, engine.WithReadOnly())
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer c.Release(root, true)

	if v, err := reader.Find(ctx, "aaaa"); err != nil || string(v) != "1111" {
		t.Fatalf("reader find = %q,%v", v, err)
	}
}
