package search

import (
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/haldi/kvindex/array"
	"github.com/haldi/kvindex/entry"
	"github.com/haldi/kvindex/fanout"
	"github.com/haldi/kvindex/fixedkey"
	"github.com/haldi/kvindex/kvfile"
)

func buildIndex(t *testing.T, codec *entry.Codec[fixedkey.Key, fixedkey.Value], pairs map[string]string) (*array.Array[fixedkey.Key, fixedkey.Value], *fanout.Fan) {
	t.Helper()

	type kv struct {
		k fixedkey.Key
		v fixedkey.Value
		h uint64
	}
	entries := make([]kv, 0, len(pairs))
	for k, v := range pairs {
		entries = append(entries, kv{k: fixedkey.Key(k), v: fixedkey.Value(v), h: codec.Keys.Hash(fixedkey.Key(k))})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].h < entries[j].h })

	dir := t.TempDir()
	f, err := kvfile.Open(filepath.Join(dir, "index"), kvfile.OpenOptions{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { f.Close() })

	fan := fanout.Build(64, int64(codec.Size()), len(entries))
	for _, e := range entries {
		off, err := f.Append(codec.Encode(e.k, e.v))
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		fan.Update(e.h, off)
	}
	fan.Finalize()

	return array.New(f, codec), fan
}

func TestFind_LocatesEveryKey(t *testing.T) {
	codec := &entry.Codec[fixedkey.Key, fixedkey.Value]{
		Keys:   fixedkey.NewKeyCodec(4),
		Values: fixedkey.NewValueCodec(4),
	}
	pairs := map[string]string{
		"key0": "val0", "key1": "val1", "key2": "val2", "key3": "val3",
		"key4": "val4", "key5": "val5", "key6": "val6", "key7": "val7",
	}

	arr, fan := buildIndex(t, codec, pairs)

	for k, want := range pairs {
		got, err := Find(arr, fan, codec, fixedkey.Key(k))
		if err != nil {
			t.Fatalf("find %q: %v", k, err)
		}
		if string(got) != want {
			t.Fatalf("find %q = %q, want %q", k, got, want)
		}
	}
}

func TestFind_MissingKeyIsNotFound(t *testing.T) {
	codec := &entry.Codec[fixedkey.Key, fixedkey.Value]{
		Keys:   fixedkey.NewKeyCodec(4),
		Values: fixedkey.NewValueCodec(4),
	}
	pairs := map[string]string{"key0": "val0", "key1": "val1"}
	arr, fan := buildIndex(t, codec, pairs)

	_, err := Find(arr, fan, codec, fixedkey.Key("nope"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("find missing key = %v, want ErrNotFound", err)
	}
}

func TestFind_EmptyIndexIsNotFound(t *testing.T) {
	codec := &entry.Codec[fixedkey.Key, fixedkey.Value]{
		Keys:   fixedkey.NewKeyCodec(4),
		Values: fixedkey.NewValueCodec(4),
	}
	arr, fan := buildIndex(t, codec, map[string]string{})

	_, err := Find(arr, fan, codec, fixedkey.Key("key0"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("find in empty index = %v, want ErrNotFound", err)
	}
}
