package format

import "testing"

func TestEncodingRoundTrip(t *testing.T) {
	b := make([]byte, 32)
	PutU32(b, 0, 0xdeadbeef)
	PutI64(b, 4, -12345)
	PutU64(b, 12, 0xfeedfacecafebeef)

	if got := ReadU32(b, 0); got != 0xdeadbeef {
		t.Fatalf("ReadU32 = %x", got)
	}
	if got := ReadI64(b, 4); got != -12345 {
		t.Fatalf("ReadI64 = %d", got)
	}
	if got := ReadU64(b, 12); got != 0xfeedfacecafebeef {
		t.Fatalf("ReadU64 = %x", got)
	}
}

func TestAlignUp(t *testing.T) {
	cases := []struct{ n, align, want int64 }{
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{DefaultChunkSize, DefaultChunkSize, DefaultChunkSize},
		{DefaultChunkSize + 1, DefaultChunkSize, 2 * DefaultChunkSize},
	}
	for _, c := range cases {
		if got := AlignUp(c.n, c.align); got != c.want {
			t.Errorf("AlignUp(%d,%d) = %d, want %d", c.n, c.align, got, c.want)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []int64{1, 2, 4, 1024} {
		if !IsPowerOfTwo(n) {
			t.Errorf("IsPowerOfTwo(%d) = false, want true", n)
		}
	}
	for _, n := range []int64{0, 3, 5, 1023} {
		if IsPowerOfTwo(n) {
			t.Errorf("IsPowerOfTwo(%d) = true, want false", n)
		}
	}
}

func TestChecksumDetectsCorruption(t *testing.T) {
	a := []byte("allocator state payload")
	b := append([]byte{}, a...)
	b[3] ^= 0xFF
	if Checksum(a) == Checksum(b) {
		t.Fatalf("checksum did not change after corruption")
	}
}
