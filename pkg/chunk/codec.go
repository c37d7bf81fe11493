package chunk

import (
	"encoding/binary"
	"math"

	"github.com/nmokit/nmokit/pkg/arena"
	"github.com/nmokit/nmokit/pkg/cherr"
)

// Scalar writers reserve one word each and store the value's raw bit
// pattern verbatim. There is no endian canonicalization inside the payload;
// that is the format's documented behavior, the byte order is fixed only
// when a whole chunk is serialized.

// WriteByte writes an 8-bit value into a full word
func (c *Chunk) WriteByte(v byte) error {
	if err := c.checkSize(1); err != nil {
		return err
	}
	c.putWord(uint32(v))
	return nil
}

// WriteWord writes a 16-bit value into a full word
func (c *Chunk) WriteWord(v uint16) error {
	if err := c.checkSize(1); err != nil {
		return err
	}
	c.putWord(uint32(v))
	return nil
}

// WriteInt writes a signed 32-bit value
func (c *Chunk) WriteInt(v int32) error {
	if err := c.checkSize(1); err != nil {
		return err
	}
	c.putWord(uint32(v))
	return nil
}

// WriteDword writes an unsigned 32-bit value
func (c *Chunk) WriteDword(v uint32) error {
	if err := c.checkSize(1); err != nil {
		return err
	}
	c.putWord(v)
	return nil
}

// WriteFloat writes a 32-bit float's bit pattern
func (c *Chunk) WriteFloat(v float32) error {
	if err := c.checkSize(1); err != nil {
		return err
	}
	c.putWord(math.Float32bits(v))
	return nil
}

// WriteGUID writes a two-word GUID
func (c *Chunk) WriteGUID(g GUID) error {
	if err := c.checkSize(2); err != nil {
		return err
	}
	c.putWord(g.D1)
	c.putWord(g.D2)
	return nil
}

// ReadByte reads a word and returns its low byte
func (c *Chunk) ReadByte() (byte, error) {
	w, err := c.readWord()
	return byte(w), err
}

// ReadWord reads a word and returns its low 16 bits
func (c *Chunk) ReadWord() (uint16, error) {
	w, err := c.readWord()
	return uint16(w), err
}

// ReadInt reads a signed 32-bit value
func (c *Chunk) ReadInt() (int32, error) {
	w, err := c.readWord()
	return int32(w), err
}

// ReadDword reads an unsigned 32-bit value
func (c *Chunk) ReadDword() (uint32, error) {
	return c.readWord()
}

// ReadFloat reads a 32-bit float bit pattern
func (c *Chunk) ReadFloat() (float32, error) {
	w, err := c.readWord()
	return math.Float32frombits(w), err
}

// ReadGUID reads a two-word GUID
func (c *Chunk) ReadGUID() (GUID, error) {
	if err := c.ensureRead(2); err != nil {
		return GUID{}, err
	}
	g := GUID{D1: c.data[c.cursor], D2: c.data[c.cursor+1]}
	c.cursor += 2
	return g, nil
}

func (c *Chunk) readWord() (uint32, error) {
	if err := c.ensureRead(1); err != nil {
		return 0, err
	}
	w := c.data[c.cursor]
	c.cursor++
	return w, nil
}

// WriteString writes a length-prefixed NUL-terminated string. The first
// word is the byte length including the NUL; both the empty and the absent
// string write a single zero word, which makes them indistinguishable on
// the wire. That equivalence is part of the format.
func (c *Chunk) WriteString(s string) error {
	if len(s) == 0 {
		return c.WriteDword(0)
	}
	byteLen := len(s) + 1 // trailing NUL
	words := (byteLen + arena.WordSize - 1) / arena.WordSize
	if err := c.checkSize(1 + words); err != nil {
		return err
	}
	c.putWord(uint32(byteLen))
	c.packBytes([]byte(s), words)
	return nil
}

// ReadString reads a string written by WriteString. Absent and empty both
// come back as "".
func (c *Chunk) ReadString() (string, error) {
	byteLen, err := c.readWord()
	if err != nil {
		return "", err
	}
	if byteLen == 0 {
		return "", nil
	}
	words := (int(byteLen) + arena.WordSize - 1) / arena.WordSize
	if err := c.ensureRead(words); err != nil {
		return "", err
	}
	raw := c.unpackBytes(words)
	if raw[byteLen-1] != 0 {
		return "", cherr.Newf(cherr.KindCorrupt, "string of %d bytes lacks terminator", byteLen)
	}
	c.cursor += words
	return string(raw[:byteLen-1]), nil
}

// WriteBuffer writes a length-prefixed raw byte buffer. A nil buffer
// writes length zero.
func (c *Chunk) WriteBuffer(b []byte) error {
	if err := c.WriteDword(uint32(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return c.WriteBufferNoSize(b)
}

// WriteBufferNoSize writes raw bytes without a length prefix, zero-padded
// to a word boundary. Used when the surrounding structure already knows
// the length, such as embedded payload copies.
func (c *Chunk) WriteBufferNoSize(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	words := (len(b) + arena.WordSize - 1) / arena.WordSize
	if err := c.checkSize(words); err != nil {
		return err
	}
	c.packBytes(b, words)
	return nil
}

// ReadBuffer reads a buffer written by WriteBuffer. Length zero yields a
// nil slice.
func (c *Chunk) ReadBuffer() ([]byte, error) {
	n, err := c.readWord()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return c.ReadBufferNoSize(int(n))
}

// ReadBufferNoSize reads n raw bytes (consuming whole words).
func (c *Chunk) ReadBufferNoSize(n int) ([]byte, error) {
	if n < 0 {
		return nil, cherr.Newf(cherr.KindInvalidArg, "buffer length %d", n)
	}
	if n == 0 {
		return []byte{}, nil
	}
	words := (n + arena.WordSize - 1) / arena.WordSize
	if err := c.ensureRead(words); err != nil {
		return nil, err
	}
	raw := c.unpackBytes(words)
	c.cursor += words
	return raw[:n:n], nil
}

// packBytes stores b at the cursor as little-endian words, zero-padding
// the tail. Space for the given word count is already reserved.
func (c *Chunk) packBytes(b []byte, words int) {
	for i := 0; i < words; i++ {
		var w uint32
		for j := 0; j < arena.WordSize; j++ {
			k := i*arena.WordSize + j
			if k < len(b) {
				w |= uint32(b[k]) << (8 * j)
			}
		}
		c.data[c.cursor+i] = w
	}
	c.cursor += words
}

// unpackBytes returns the bytes of the given word count at the cursor
// without advancing it.
func (c *Chunk) unpackBytes(words int) []byte {
	out := make([]byte, words*arena.WordSize)
	for i := 0; i < words; i++ {
		binary.LittleEndian.PutUint32(out[i*arena.WordSize:], c.data[c.cursor+i])
	}
	return out
}
