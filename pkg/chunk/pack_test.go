package chunk

import (
	"errors"
	"hash/adler32"
	"testing"

	"github.com/nmokit/nmokit/pkg/arena"
	"github.com/nmokit/nmokit/pkg/cherr"
)

func buildRepetitiveChunk(t *testing.T, words int) *Chunk {
	t.Helper()
	c := newTestChunk(t)
	if err := c.StartWrite(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < words; i++ {
		if err := c.WriteDword(0x12345678); err != nil {
			t.Fatal(err)
		}
	}
	c.CloseChunk()
	return c
}

func TestPackShrinksAndUnpackRestores(t *testing.T) {
	c := buildRepetitiveChunk(t, 100)
	before := c.Fingerprint()

	if err := c.Pack(); err != nil {
		t.Fatal(err)
	}
	if !c.Packed() {
		t.Fatalf("chunk not packed")
	}
	if !c.HasOption(OptionPacked) {
		t.Errorf("PACKED option not set")
	}
	if c.Size() >= 100 {
		t.Errorf("packed Size = %d, want strictly under 100", c.Size())
	}
	if c.UnpackSize() != 100 {
		t.Errorf("UnpackSize = %d, want 100", c.UnpackSize())
	}

	if err := c.Unpack(); err != nil {
		t.Fatal(err)
	}
	if c.Packed() || c.HasOption(OptionPacked) {
		t.Errorf("chunk still marked packed after Unpack")
	}
	if c.Size() != 100 {
		t.Fatalf("restored Size = %d, want 100", c.Size())
	}
	for i := 0; i < 100; i++ {
		w, err := c.Word(i)
		if err != nil {
			t.Fatal(err)
		}
		if w != 0x12345678 {
			t.Fatalf("word %d = %#x after round trip", i, w)
		}
	}
	if c.Fingerprint() != before {
		t.Errorf("payload fingerprint changed across pack/unpack")
	}
}

func TestPackIdempotent(t *testing.T) {
	c := buildRepetitiveChunk(t, 100)
	if err := c.Pack(); err != nil {
		t.Fatal(err)
	}
	sizeAfterFirst := c.Size()
	fpAfterFirst := c.Fingerprint()

	if err := c.Pack(); err != nil {
		t.Fatal(err)
	}
	if c.Size() != sizeAfterFirst || c.Fingerprint() != fpAfterFirst {
		t.Errorf("second Pack changed the payload")
	}

	if err := c.Unpack(); err != nil {
		t.Fatal(err)
	}
	sizeAfterUnpack := c.Size()
	fpAfterUnpack := c.Fingerprint()
	if err := c.Unpack(); err != nil {
		t.Fatal(err)
	}
	if c.Size() != sizeAfterUnpack || c.Fingerprint() != fpAfterUnpack {
		t.Errorf("second Unpack changed the payload")
	}
}

func TestPackEmptyChunkNoop(t *testing.T) {
	c := newTestChunk(t)
	if err := c.Pack(); err != nil {
		t.Fatal(err)
	}
	if c.Packed() || c.Size() != 0 {
		t.Errorf("empty chunk should be untouched by Pack")
	}
}

func TestPackConditionalDiscardsWeakResult(t *testing.T) {
	c := buildRepetitiveChunk(t, 100)
	// a zlib stream can never fit 1% of 400 bytes; the result is discarded
	if err := c.PackConditional(0.01); err != nil {
		t.Fatal(err)
	}
	if c.Packed() {
		t.Errorf("conditional pack kept a result above the threshold")
	}
	if c.Size() != 100 {
		t.Errorf("discarded pack left Size = %d", c.Size())
	}

	if err := c.PackConditional(0.5); err != nil {
		t.Fatal(err)
	}
	if !c.Packed() {
		t.Errorf("conditional pack rejected a strong result")
	}
}

func TestPackConditionalBadRatio(t *testing.T) {
	c := buildRepetitiveChunk(t, 10)
	if err := c.PackConditional(0); !errors.Is(err, cherr.ErrInvalidArg) {
		t.Errorf("ratio 0: got %v, want invalid-argument", err)
	}
	if err := c.PackConditional(1.5); !errors.Is(err, cherr.ErrInvalidArg) {
		t.Errorf("ratio 1.5: got %v, want invalid-argument", err)
	}
}

func TestUnpackCorruptStream(t *testing.T) {
	c := buildRepetitiveChunk(t, 100)
	if err := c.Pack(); err != nil {
		t.Fatal(err)
	}
	c.data[0] ^= 0xFFFF // clobber the zlib header
	if err := c.Unpack(); !errors.Is(err, cherr.ErrCorrupt) {
		t.Errorf("corrupted stream: got %v, want corrupt", err)
	}
}

func TestUnpackLengthMismatch(t *testing.T) {
	c := buildRepetitiveChunk(t, 100)
	if err := c.Pack(); err != nil {
		t.Fatal(err)
	}
	c.unpackSize = 99 // lie about the restore count
	if err := c.Unpack(); !errors.Is(err, cherr.ErrCorrupt) {
		t.Errorf("length mismatch: got %v, want corrupt", err)
	}
}

func TestComputeCRCMatchesAdler32(t *testing.T) {
	c := newTestChunk(t)
	if err := c.StartWrite(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 300; i++ {
		if err := c.WriteDword(uint32(i * 2654435761)); err != nil {
			t.Fatal(err)
		}
	}
	c.CloseChunk()

	want := adler32.Checksum(wordsToBytes(c.data[:c.dataSize]))
	if got := c.ComputeCRC(1); got != want {
		t.Errorf("ComputeCRC(1) = %#x, stdlib adler32 = %#x", got, want)
	}
}

func TestComputeCRCRolling(t *testing.T) {
	c := newTestChunk(t)
	if err := c.StartWrite(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 64; i++ {
		if err := c.WriteDword(uint32(i)); err != nil {
			t.Fatal(err)
		}
	}
	c.CloseChunk()

	first := c.ComputeCRC(1)
	if c.ComputeCRC(1) != first {
		t.Errorf("ComputeCRC is not deterministic")
	}
	// seeding from a prior value must change the fold
	if c.ComputeCRC(first) == first {
		t.Errorf("rolling checksum ignored the seed")
	}

	// any single-word mutation must be visible
	c.data[13] ^= 1
	if c.ComputeCRC(1) == first {
		t.Errorf("checksum blind to a single-word mutation")
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	c := buildRepetitiveChunk(t, 32)
	fp := c.Fingerprint()
	c.data[7] ^= 0x80
	if c.Fingerprint() == fp {
		t.Errorf("fingerprint blind to payload mutation")
	}
}

func TestIncompressiblePayloadLeftAlone(t *testing.T) {
	c := newTestChunk(t)
	if err := c.StartWrite(); err != nil {
		t.Fatal(err)
	}
	// xorshift noise; DEFLATE cannot beat it at 8 words
	state := uint32(0x9E3779B9)
	for i := 0; i < 8; i++ {
		state ^= state << 13
		state ^= state >> 17
		state ^= state << 5
		if err := c.WriteDword(state); err != nil {
			t.Fatal(err)
		}
	}
	c.CloseChunk()

	if err := c.Pack(); err != nil {
		t.Fatal(err)
	}
	if c.Packed() {
		t.Errorf("pack kept a result that cannot be smaller than 32 noise bytes")
	}
	if c.Size() != 8 {
		t.Errorf("failed pack mutated Size to %d", c.Size())
	}
}

func BenchmarkPackUnpack(b *testing.B) {
	c := New(arena.New())
	if err := c.StartWrite(); err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 4096; i++ {
		if err := c.WriteDword(uint32(i % 17)); err != nil {
			b.Fatal(err)
		}
	}
	c.CloseChunk()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := c.Pack(); err != nil {
			b.Fatal(err)
		}
		if err := c.Unpack(); err != nil {
			b.Fatal(err)
		}
	}
}
