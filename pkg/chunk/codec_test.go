package chunk

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nmokit/nmokit/pkg/cherr"
)

func TestScalarRoundTrip(t *testing.T) {
	c := newTestChunk(t)
	if err := c.StartWrite(); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteByte(0xAB); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteWord(0xBEEF); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteInt(-12345); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteDword(0xDEADBEEF); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteFloat(3.25); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteGUID(GUID{D1: 0x11112222, D2: 0x33334444}); err != nil {
		t.Fatal(err)
	}
	c.CloseChunk()

	// every scalar occupies whole words: 5 one-word values plus a GUID
	if c.Size() != 7 {
		t.Fatalf("Size = %d, want 7", c.Size())
	}

	c.StartRead()
	if v, err := c.ReadByte(); err != nil || v != 0xAB {
		t.Errorf("ReadByte = %#x, %v", v, err)
	}
	if v, err := c.ReadWord(); err != nil || v != 0xBEEF {
		t.Errorf("ReadWord = %#x, %v", v, err)
	}
	if v, err := c.ReadInt(); err != nil || v != -12345 {
		t.Errorf("ReadInt = %d, %v", v, err)
	}
	if v, err := c.ReadDword(); err != nil || v != 0xDEADBEEF {
		t.Errorf("ReadDword = %#x, %v", v, err)
	}
	if v, err := c.ReadFloat(); err != nil || v != 3.25 {
		t.Errorf("ReadFloat = %v, %v", v, err)
	}
	if g, err := c.ReadGUID(); err != nil || g != (GUID{D1: 0x11112222, D2: 0x33334444}) {
		t.Errorf("ReadGUID = %+v, %v", g, err)
	}
}

func TestStringRoundTrip(t *testing.T) {
	c := newTestChunk(t)
	if err := c.StartWrite(); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteString("Hello, World!"); err != nil {
		t.Fatal(err)
	}
	c.CloseChunk()

	// 13 chars + NUL = 14 bytes = 4 words, plus the length word
	if c.Size() != 5 {
		t.Fatalf("Size = %d, want 5", c.Size())
	}
	lengthWord, err := c.Word(0)
	if err != nil || lengthWord != 14 {
		t.Fatalf("length word = %d, %v, want 14", lengthWord, err)
	}

	c.StartRead()
	s, err := c.ReadString()
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 13 || s != "Hello, World!" {
		t.Errorf("ReadString = %q (len %d)", s, len(s))
	}
}

func TestEmptyStringSingleWord(t *testing.T) {
	c := newTestChunk(t)
	if err := c.StartWrite(); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteString(""); err != nil {
		t.Fatal(err)
	}
	c.CloseChunk()

	// absent and empty strings write the same single zero word
	if c.Size() != 1 {
		t.Fatalf("Size = %d, want 1", c.Size())
	}
	c.StartRead()
	s, err := c.ReadString()
	if err != nil || s != "" {
		t.Errorf("ReadString = %q, %v", s, err)
	}
}

func TestStringPaddingIsZero(t *testing.T) {
	c := newTestChunk(t)
	if err := c.StartWrite(); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteString("ab"); err != nil { // 3 bytes with NUL, 1 pad byte
		t.Fatal(err)
	}
	c.CloseChunk()

	w, err := c.Word(1)
	if err != nil {
		t.Fatal(err)
	}
	if w != uint32('a')|uint32('b')<<8 {
		t.Errorf("string word = %#x, want zero-padded %#x", w, uint32('a')|uint32('b')<<8)
	}
}

func TestBufferRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6, 7}
	c := newTestChunk(t)
	if err := c.StartWrite(); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteBuffer(payload); err != nil {
		t.Fatal(err)
	}
	c.CloseChunk()

	// length word plus ceil(7/4) data words
	if c.Size() != 3 {
		t.Fatalf("Size = %d, want 3", c.Size())
	}
	c.StartRead()
	got, err := c.ReadBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadBuffer = %v, want %v", got, payload)
	}
}

func TestNilBufferReadsBackNil(t *testing.T) {
	c := newTestChunk(t)
	if err := c.StartWrite(); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteBuffer(nil); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteBuffer([]byte{}); err != nil {
		t.Fatal(err)
	}
	c.CloseChunk()

	// nil and empty are indistinguishable on the wire: one zero word each
	if c.Size() != 2 {
		t.Fatalf("Size = %d, want 2", c.Size())
	}
	c.StartRead()
	for i := 0; i < 2; i++ {
		got, err := c.ReadBuffer()
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Errorf("buffer %d = %v, want nil", i, got)
		}
	}
}

func TestBufferNoSize(t *testing.T) {
	payload := []byte("raw bytes without prefix")
	c := newTestChunk(t)
	if err := c.StartWrite(); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteBufferNoSize(payload); err != nil {
		t.Fatal(err)
	}
	c.CloseChunk()

	c.StartRead()
	got, err := c.ReadBufferNoSize(len(payload))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadBufferNoSize = %q, want %q", got, payload)
	}
}

func TestCorruptStringTerminator(t *testing.T) {
	c := newTestChunk(t)
	if err := c.StartWrite(); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteString("abc"); err != nil {
		t.Fatal(err)
	}
	c.CloseChunk()

	c.data[1] = 0xFFFFFFFF // clobber the NUL
	c.StartRead()
	if _, err := c.ReadString(); !errors.Is(err, cherr.ErrCorrupt) {
		t.Errorf("unterminated string: got %v, want corrupt", err)
	}
}

func TestTruncatedStringRead(t *testing.T) {
	c := newTestChunk(t)
	if err := c.StartWrite(); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteDword(4000); err != nil { // length word promising 4000 bytes
		t.Fatal(err)
	}
	c.CloseChunk()

	c.StartRead()
	if _, err := c.ReadString(); !errors.Is(err, cherr.ErrEndOfData) {
		t.Errorf("truncated string: got %v, want end-of-data", err)
	}
}
