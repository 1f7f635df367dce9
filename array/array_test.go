package array

import (
	"path/filepath"
	"testing"

	"github.com/haldi/kvindex/entry"
	"github.com/haldi/kvindex/fixedkey"
	"github.com/haldi/kvindex/kvfile"
)

func testCodec() *entry.Codec[fixedkey.Key, fixedkey.Value] {
	return &entry.Codec[fixedkey.Key, fixedkey.Value]{
		Keys:   fixedkey.NewKeyCodec(4),
		Values: fixedkey.NewValueCodec(8),
	}
}

func TestArray_GetDecodesWrittenEntries(t *testing.T) {
	codec := testCodec()
	dir := t.TempDir()
	f, err := kvfile.Open(filepath.Join(dir, "index"), kvfile.OpenOptions{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	want := []entry.Entry[fixedkey.Key, fixedkey.Value]{
		{Key: fixedkey.Key("aaaa"), Value: fixedkey.Value("11111111")},
		{Key: fixedkey.Key("bbbb"), Value: fixedkey.Value("22222222")},
		{Key: fixedkey.Key("cccc"), Value: fixedkey.Value("33333333")},
	}
	for _, e := range want {
		if _, err := f.Append(codec.Encode(e.Key, e.Value)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	arr := New(f, codec)
	if arr.Len() != int64(len(want)) {
		t.Fatalf("len = %d, want %d", arr.Len(), len(want))
	}
	for i, w := range want {
		got, err := arr.Get(int64(i))
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if got.Key != w.Key || string(got.Value) != string(w.Value) {
			t.Fatalf("get %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestArray_GetRangeHandlesInvertedRange(t *testing.T) {
	codec := testCodec()
	dir := t.TempDir()
	f, err := kvfile.Open(filepath.Join(dir, "index"), kvfile.OpenOptions{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	arr := New(f, codec)
	got, err := arr.GetRange(10, 4)
	if err != nil {
		t.Fatalf("get range: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d entries, want 0 for inverted range", len(got))
	}
}
