package fanout

import "testing"

func TestFan_SearchEnclosesUpdatedOffsets(t *testing.T) {
	const entrySize = 24
	fan := Build(64, entrySize, 100)

	// Hashes clustered at the very top of the space so they land in a
	// single bucket, keeping this assertion independent of bucket count.
	hashes := []uint64{
		0xFFFFFFFF00000000,
		0xFFFFFFFF00000010,
		0xFFFFFFFF00000020,
	}
	for i, h := range hashes {
		fan.Update(h, int64(i)*entrySize)
	}
	fan.Finalize()

	low, high := fan.Search(hashes[0])
	if low > 0 {
		t.Fatalf("low = %d, want <= 0", low)
	}
	if high < int64(len(hashes)-1)*entrySize {
		t.Fatalf("high = %d, want >= %d", high, int64(len(hashes)-1)*entrySize)
	}
}

func TestFan_EmptyBucketsGetMonotoneInterval(t *testing.T) {
	const entrySize = 16
	fan := Build(64, entrySize, 40)

	fan.Update(0x1000000000000000, 0)
	fan.Update(0x9000000000000000, entrySize)
	fan.Finalize()

	// A hash strictly between the two updated hashes lands in an empty
	// bucket; its interval must not reach past either neighbor's entry.
	low, high := fan.Search(0x5000000000000000)
	if low < 0 {
		t.Fatalf("low = %d, want >= 0", low)
	}
	if high > entrySize {
		t.Fatalf("high = %d, want <= %d", high, entrySize)
	}
}

func TestFan_EmptyFanReturnsInvertedInterval(t *testing.T) {
	fan := Build(64, 16, 10)
	fan.Finalize()

	low, high := fan.Search(0x1234)
	if high >= low {
		t.Fatalf("expected an inverted (not-found) interval, got [%d, %d]", low, high)
	}
}

func TestFan_SerializeRoundTrip(t *testing.T) {
	const entrySize = 32
	fan := Build(64, entrySize, 16)
	fan.Update(10, 0)
	fan.Update(20, entrySize)
	fan.Update(30, 2*entrySize)
	fan.Finalize()

	blob, err := fan.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	wantLen, err := fan.ExportedSize()
	if err != nil {
		t.Fatalf("exported size: %v", err)
	}
	if len(blob) != wantLen {
		t.Fatalf("len(blob) = %d, want %d", len(blob), wantLen)
	}

	got, err := Deserialize(blob)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}

	wantLow, wantHigh := fan.Search(20)
	gotLow, gotHigh := got.Search(20)
	if wantLow != gotLow || wantHigh != gotHigh {
		t.Fatalf("round trip search mismatch: want [%d,%d], got [%d,%d]", wantLow, wantHigh, gotLow, gotHigh)
	}
}

func TestFan_ExportedSizeStableAcrossContent(t *testing.T) {
	fan := Build(64, 16, 64)
	before, err := fan.ExportedSize()
	if err != nil {
		t.Fatalf("exported size before: %v", err)
	}

	for i := 0; i < 20; i++ {
		fan.Update(uint64(i)<<56, int64(i)*16)
	}
	fan.Finalize()

	after, err := fan.ExportedSize()
	if err != nil {
		t.Fatalf("exported size after: %v", err)
	}
	if before != after {
		t.Fatalf("exported size changed from %d to %d after population; header room would not have been reserved correctly", before, after)
	}
}
