package chunk

import (
	"github.com/nmokit/nmokit/pkg/arena"
	"github.com/nmokit/nmokit/pkg/cherr"
)

// Whole-chunk serialization. Words are little-endian on disk and a stream
// is always a whole number of words. Four generations exist; the version
// discriminant is byte 2 of the first word:
//
//	0,1  VERSION1  6-word header, then data, ids, sub-chunk refs
//	2    VERSION2  as VERSION1 plus a manager count and manager words
//	3,4  compact   2-word header, then only the sections whose option
//	               bit is set
//
// Encode writes the compact layout and expands the sub-chunk tree
// recursively; EncodeLegacy writes the VERSION1/2 layout, flattening one
// level with position placeholders the way the legacy file writer did.

const (
	legacyHeaderV1 = 6
	legacyHeaderV2 = 7
)

// Encode serializes the chunk (and, recursively, its sub-chunk tree) in
// the current compact format.
func (c *Chunk) Encode() ([]byte, error) {
	words, err := c.encodeWords()
	if err != nil {
		return nil, err
	}
	return wordsToBytes(words), nil
}

func (c *Chunk) encodeWords() ([]uint32, error) {
	opts := c.effectiveOptions()
	version := c.chunkVersion
	if version < Version3 {
		// a legacy-versioned chunk still round-trips; the discriminant
		// must stay in the compact range
		version = CurrentVersion
	}
	out := make([]uint32, 0, 2+c.dataSize+len(c.ids)+len(c.managers))
	out = append(out,
		uint32(c.dataVersion&0xFF)|uint32(c.legacyID&0xFF)<<8|uint32(version&0xFF)<<16|uint32(opts)<<24,
		uint32(c.dataSize))
	if c.packed {
		out = append(out, uint32(c.unpackSize), uint32(c.compressedSize))
	}
	out = append(out, c.data[:c.dataSize]...)
	if len(c.ids) > 0 {
		out = append(out, uint32(len(c.ids)))
		for _, e := range c.ids {
			out = append(out, uint32(e))
		}
	}
	if len(c.chunks) > 0 {
		out = append(out, uint32(len(c.chunks)))
		for _, child := range c.chunks {
			cw, err := child.encodeWords()
			if err != nil {
				return nil, err
			}
			out = append(out, cw...)
		}
	}
	if len(c.managers) > 0 {
		out = append(out, uint32(len(c.managers)))
		out = append(out, c.managers...)
	}
	return out, nil
}

// EncodeLegacy serializes the chunk in the VERSION1-compatible layout (or
// VERSION2 when a manager list is present). Sub-chunks are not expanded;
// one ref word per child carries the byte-offset placeholder the legacy
// on-disk layout expects, taken from chunkRefs when a decode populated
// them and zero otherwise.
func (c *Chunk) EncodeLegacy() ([]byte, error) {
	if c.packed {
		return nil, cherr.New(cherr.KindNotSupported, "packed payloads predate the legacy layout")
	}
	version := uint32(Version1)
	header := legacyHeaderV1
	if len(c.managers) > 0 {
		version = Version2
		header = legacyHeaderV2
	}
	refCount := len(c.chunks)
	if len(c.chunkRefs) > refCount {
		refCount = len(c.chunkRefs)
	}

	out := make([]uint32, 0, header+c.dataSize+len(c.ids)+refCount+len(c.managers))
	out = append(out,
		uint32(c.dataVersion)|version<<16,
		uint32(c.classID),
		uint32(c.dataSize),
		0, // reserved file flag
		uint32(len(c.ids)),
		uint32(refCount))
	if version == Version2 {
		out = append(out, uint32(len(c.managers)))
	}
	out = append(out, c.data[:c.dataSize]...)
	for _, e := range c.ids {
		out = append(out, uint32(e))
	}
	for i := 0; i < refCount; i++ {
		if i < len(c.chunkRefs) {
			out = append(out, c.chunkRefs[i])
		} else {
			out = append(out, 0)
		}
	}
	if version == Version2 {
		out = append(out, c.managers...)
	}
	return wordsToBytes(out), nil
}

// Decode parses a serialized chunk of any supported generation into a
// fresh chunk tree owned by the given arena. Truncated input fails with a
// corruption error; an unknown discriminant with unsupported-version.
func Decode(a *arena.Arena, data []byte) (*Chunk, error) {
	if a == nil {
		return nil, cherr.New(cherr.KindInvalidArg, "nil arena")
	}
	if len(data) < 2*arena.WordSize {
		return nil, cherr.Newf(cherr.KindCorrupt, "chunk stream of %d bytes", len(data))
	}
	if len(data)%arena.WordSize != 0 {
		return nil, cherr.Newf(cherr.KindCorrupt, "chunk stream of %d bytes is not word-aligned", len(data))
	}
	words := make([]uint32, len(data)/arena.WordSize)
	bytesToWords(words, data)

	c, n, err := decodeWords(a, words)
	if err != nil {
		return nil, err
	}
	if n != len(words) {
		return nil, cherr.Newf(cherr.KindCorrupt, "%d trailing words after chunk", len(words)-n)
	}
	return c, nil
}
