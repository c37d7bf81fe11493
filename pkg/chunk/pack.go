package chunk

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zlib"

	"github.com/nmokit/nmokit/pkg/arena"
	"github.com/nmokit/nmokit/pkg/cherr"
)

// Pack compresses the payload in place with DEFLATE (zlib framing, the
// stream legacy files carry). It is a no-op on an empty or already packed
// chunk. The compressed bytes replace the payload only when strictly
// smaller than the original; otherwise the chunk is left untouched.
func (c *Chunk) Pack() error {
	return c.pack(1.0)
}

// PackConditional packs only when the compressed size beats
// ratio * original size; a result above the threshold is discarded.
func (c *Chunk) PackConditional(ratio float64) error {
	if ratio <= 0 || ratio > 1 {
		return cherr.Newf(cherr.KindInvalidArg, "pack ratio %g outside (0,1]", ratio)
	}
	return c.pack(ratio)
}

func (c *Chunk) pack(ratio float64) error {
	if c.dataSize == 0 || c.packed {
		return nil
	}
	raw := wordsToBytes(c.data[:c.dataSize])

	var buf bytes.Buffer
	buf.Grow(compressBound(len(raw)))
	zw, err := zlib.NewWriterLevel(&buf, c.cfg.CompressionLevel)
	if err != nil {
		return cherr.Wrap(cherr.KindInvalidArg, "compression level", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return cherr.Wrap(cherr.KindCorrupt, "compress payload", err)
	}
	if err := zw.Close(); err != nil {
		return cherr.Wrap(cherr.KindCorrupt, "finish compression", err)
	}
	comp := buf.Bytes()

	limit := int(ratio * float64(len(raw)))
	if len(comp) >= len(raw) || len(comp) >= limit {
		return nil // not worth keeping
	}

	words := (len(comp) + arena.WordSize - 1) / arena.WordSize
	packedBuf, err := c.arena.Words(words)
	if err != nil {
		return err
	}
	bytesToWords(packedBuf, comp)

	c.unpackSize = c.dataSize
	c.uncompressedSize = len(raw)
	c.compressedSize = len(comp)
	c.data = packedBuf
	c.dataSize = words
	c.packed = true
	c.options |= OptionPacked
	c.cursor = 0
	c.lastIdentifier = -1
	return nil
}

// Unpack restores a packed payload. A no-op when the chunk is not packed.
// Decompression must yield exactly the recorded word count; anything else
// is corruption.
func (c *Chunk) Unpack() error {
	if !c.packed {
		return nil
	}
	comp := wordsToBytes(c.data[:c.dataSize])
	if c.compressedSize < 0 || c.compressedSize > len(comp) {
		return cherr.Newf(cherr.KindCorrupt, "compressed size %d with %d payload bytes", c.compressedSize, len(comp))
	}
	comp = comp[:c.compressedSize]

	zr, err := zlib.NewReader(bytes.NewReader(comp))
	if err != nil {
		return cherr.Wrap(cherr.KindCorrupt, "compressed stream header", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return cherr.Wrap(cherr.KindCorrupt, "decompress payload", err)
	}
	if len(raw) != c.unpackSize*arena.WordSize {
		return cherr.Newf(cherr.KindCorrupt, "decompressed to %d bytes, expected %d words", len(raw), c.unpackSize)
	}

	buf, err := c.arena.Words(c.unpackSize)
	if err != nil {
		return err
	}
	bytesToWords(buf, raw)
	c.data = buf
	c.dataSize = c.unpackSize
	c.packed = false
	c.options &^= OptionPacked
	c.unpackSize = 0
	c.uncompressedSize = 0
	c.compressedSize = 0
	c.cursor = 0
	c.lastIdentifier = -1
	return nil
}

// ComputeCRC folds the committed payload bytes into a rolling Adler-32,
// seeded from the caller's running value (1 for a fresh checksum, per
// RFC 1950). Deterministic and sensitive to any single-word change.
func (c *Chunk) ComputeCRC(seed uint32) uint32 {
	return adlerUpdate(seed, wordsToBytes(c.data[:c.dataSize]))
}

// Fingerprint returns a 64-bit xxhash of the committed payload bytes,
// for cheap dedup and diagnostics. Not part of any wire format.
func (c *Chunk) Fingerprint() uint64 {
	return xxhash.Sum64(wordsToBytes(c.data[:c.dataSize]))
}

const (
	adlerModulo = 65521
	// adlerBatch is the largest run of 0xFF bytes that cannot overflow
	// the 32-bit sums before reduction (zlib's NMAX)
	adlerBatch = 5552
)

// adlerUpdate extends a rolling Adler-32 over p. Stdlib hash/adler32
// cannot resume from a caller-held value, so the fold is done here.
func adlerUpdate(adler uint32, p []byte) uint32 {
	s1 := adler & 0xFFFF
	s2 := adler >> 16
	for len(p) > 0 {
		n := len(p)
		if n > adlerBatch {
			n = adlerBatch
		}
		for _, b := range p[:n] {
			s1 += uint32(b)
			s2 += s1
		}
		s1 %= adlerModulo
		s2 %= adlerModulo
		p = p[n:]
	}
	return s2<<16 | s1
}

// compressBound is a worst-case size for a zlib stream over n input bytes
func compressBound(n int) int {
	return n + n/1000 + 64
}

func wordsToBytes(w []uint32) []byte {
	out := make([]byte, len(w)*arena.WordSize)
	for i, v := range w {
		binary.LittleEndian.PutUint32(out[i*arena.WordSize:], v)
	}
	return out
}

// bytesToWords fills dst from b little-endian, zero-padding the last word
func bytesToWords(dst []uint32, b []byte) {
	for i := range dst {
		var w uint32
		for j := 0; j < arena.WordSize; j++ {
			k := i*arena.WordSize + j
			if k < len(b) {
				w |= uint32(b[k]) << (8 * j)
			}
		}
		dst[i] = w
	}
}
