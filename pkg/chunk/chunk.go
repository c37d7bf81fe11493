// Package chunk implements the self-describing binary container used by
// legacy .nmo/.cmo object-persistence files. A chunk is one contiguous
// buffer of 32-bit words plus side-lists tracking object-ID references,
// embedded sub-chunks and manager-int pairs, with a stateful read/write
// cursor on top.
//
// All sizes and offsets are counted in words, never bytes, unless a name
// says otherwise.
package chunk

import (
	"github.com/nmokit/nmokit/pkg/arena"
	"github.com/nmokit/nmokit/pkg/cherr"
)

// ID is a process- or file-local object identifier. Zero means absent:
// it is never tracked and never remapped.
type ID uint32

// ClassID identifies the object class a chunk was written for.
type ClassID uint32

// GUID is the two-word globally unique identifier used for manager
// sequences.
type GUID struct {
	D1 uint32
	D2 uint32
}

// IsZero reports whether g is the zero GUID
func (g GUID) IsZero() bool {
	return g.D1 == 0 && g.D2 == 0
}

// Chunk format generations. The version selects the wire encoding and the
// identifier convention; see Encode/Decode and WriteIdentifier.
const (
	VersionBase = 0
	Version1    = 1
	Version2    = 2
	Version3    = 3
	Version4    = 4

	// CurrentVersion is the format new chunks are created with
	CurrentVersion = Version4
)

// Options is the chunk option-flag bitset. On the compact wire formats it
// travels as the high byte of the packed version word.
type Options uint8

const (
	// OptionIDs is set when the ids side-list is non-empty
	OptionIDs Options = 1 << iota
	// OptionManagers is set when the managers side-list is non-empty
	OptionManagers
	// OptionSubChunks is set when at least one sub-chunk is embedded
	OptionSubChunks
	// OptionFile marks chunks written in a file context
	OptionFile
	// OptionAllowDynamic permits references to dynamically created objects
	OptionAllowDynamic
	// OptionBigEndianLists is a reserved legacy bit; never set
	OptionBigEndianLists
	// OptionForeignData marks payloads taken verbatim from another file
	OptionForeignData
	// OptionPacked means the payload holds compressed bytes; UnpackSize
	// gives the word count to restore
	OptionPacked
)

// idSequenceMarker in the ids side-list means the following entry is the
// offset of an inline run's count word rather than a direct reference.
const idSequenceMarker = -1

const (
	// defaultInitialWords is the lazily allocated first buffer size
	defaultInitialWords = 64

	// subChunkHeaderWords is the fixed header of an embedded sub-chunk
	// record inside a parent payload
	subChunkHeaderWords = 8
)

// Config carries the tunables a chunk is created with.
type Config struct {
	// InitialWords is the first buffer allocation on write
	InitialWords int
	// CompressionLevel is the DEFLATE level used by Pack (-2..9)
	CompressionLevel int
	// PackThreshold is the ratio PackConditional must beat (0..1]
	PackThreshold float64
}

// DefaultConfig returns the configuration new chunks use unless told
// otherwise.
func DefaultConfig() Config {
	return Config{
		InitialWords:     defaultInitialWords,
		CompressionLevel: 6, // zlib default
		PackThreshold:    0.9,
	}
}

// Validate checks that the configuration is usable
func (c Config) Validate() error {
	if c.InitialWords <= 0 {
		return cherr.Newf(cherr.KindInvalidArg, "initial buffer must be positive, got %d words", c.InitialWords)
	}
	if c.CompressionLevel < -2 || c.CompressionLevel > 9 {
		return cherr.Newf(cherr.KindInvalidArg, "compression level %d outside -2..9", c.CompressionLevel)
	}
	if c.PackThreshold <= 0 || c.PackThreshold > 1 {
		return cherr.Newf(cherr.KindInvalidArg, "pack threshold %g outside (0,1]", c.PackThreshold)
	}
	return nil
}

// Chunk is the container. It is not safe for concurrent use; callers hold
// exclusive access to a chunk tree for the duration of each operation.
type Chunk struct {
	classID      ClassID
	legacyID     uint16 // 8-bit on the compact wire, 16-bit in sub-chunk records
	dataVersion  uint16
	chunkVersion uint16
	options      Options

	arena *arena.Arena
	cfg   Config

	// payload; committed length is dataSize, capacity is len(data)
	data     []uint32
	dataSize int

	ids       []int32  // word offsets of tracked ID references
	chunks    []*Chunk // embedded children
	chunkRefs []uint32 // legacy wire only: byte offsets of flattened children
	managers  []uint32 // word offsets of manager [id,value] pairs

	packed           bool
	unpackSize       int // words to restore on unpack
	uncompressedSize int // bytes before compression
	compressedSize   int // meaningful bytes of the packed payload

	cursor         int
	lastIdentifier int // word position of the latest identifier record, -1 if none
	writing        bool
}

// New creates an empty chunk owned by the given arena, using the default
// configuration and the current format version.
func New(a *arena.Arena) *Chunk {
	c, _ := NewWithConfig(a, DefaultConfig())
	return c
}

// NewWithConfig creates an empty chunk with explicit tunables.
func NewWithConfig(a *arena.Arena, cfg Config) (*Chunk, error) {
	if a == nil {
		return nil, cherr.New(cherr.KindInvalidArg, "nil arena")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunk{
		arena:          a,
		cfg:            cfg,
		chunkVersion:   CurrentVersion,
		lastIdentifier: -1,
	}, nil
}

// ClassID returns the 32-bit class identifier
func (c *Chunk) ClassID() ClassID { return c.classID }

// SetClassID sets the 32-bit class identifier and mirrors its low byte
// into the legacy id when none is set.
func (c *Chunk) SetClassID(id ClassID) {
	c.classID = id
	if c.legacyID == 0 {
		c.legacyID = uint16(id & 0xFF)
	}
}

// LegacyClassID returns the legacy short class id
func (c *Chunk) LegacyClassID() uint16 { return c.legacyID }

// SetLegacyClassID sets the legacy short class id
func (c *Chunk) SetLegacyClassID(id uint16) { c.legacyID = id }

// DataVersion returns the per-class schema version
func (c *Chunk) DataVersion() uint16 { return c.dataVersion }

// SetDataVersion sets the per-class schema version
func (c *Chunk) SetDataVersion(v uint16) { c.dataVersion = v }

// ChunkVersion returns the wire-format generation (0..4)
func (c *Chunk) ChunkVersion() uint16 { return c.chunkVersion }

// SetChunkVersion selects the wire-format generation. Versions below
// Version2 switch identifiers to the legacy flat convention.
func (c *Chunk) SetChunkVersion(v uint16) error {
	if v > Version4 {
		return cherr.Newf(cherr.KindUnsupportedVersion, "chunk version %d", v)
	}
	c.chunkVersion = v
	return nil
}

// Options returns the current option flags
func (c *Chunk) Options() Options { return c.options }

// SetOption sets the given option bits
func (c *Chunk) SetOption(o Options) { c.options |= o }

// HasOption reports whether all given option bits are set
func (c *Chunk) HasOption(o Options) bool { return c.options&o == o }

// Size returns the committed payload length in words
func (c *Chunk) Size() int { return c.dataSize }

// ByteSize returns the committed payload length in bytes
func (c *Chunk) ByteSize() int { return c.dataSize * arena.WordSize }

// Capacity returns the allocated buffer length in words
func (c *Chunk) Capacity() int { return len(c.data) }

// Packed reports whether the payload currently holds compressed bytes
func (c *Chunk) Packed() bool { return c.packed }

// UnpackSize returns the word count a packed payload restores to
func (c *Chunk) UnpackSize() int { return c.unpackSize }

// IDCount returns the number of tracked id-list entries
func (c *Chunk) IDCount() int { return len(c.ids) }

// SubChunkCount returns the number of embedded children
func (c *Chunk) SubChunkCount() int { return len(c.chunks) }

// SubChunk returns the i-th embedded child, or nil when out of range
func (c *Chunk) SubChunk(i int) *Chunk {
	if i < 0 || i >= len(c.chunks) {
		return nil
	}
	return c.chunks[i]
}

// ManagerCount returns the number of tracked manager pairs
func (c *Chunk) ManagerCount() int { return len(c.managers) }

// Word returns the payload word at the given offset without moving the
// cursor.
func (c *Chunk) Word(pos int) (uint32, error) {
	if pos < 0 || pos >= c.dataSize {
		return 0, cherr.Newf(cherr.KindOutOfBounds, "word %d of %d", pos, c.dataSize)
	}
	return c.data[pos], nil
}

// Clear resets the chunk to empty for pooled reuse. The buffer words are
// abandoned to the arena, not reused.
func (c *Chunk) Clear() {
	c.classID = 0
	c.legacyID = 0
	c.dataVersion = 0
	c.chunkVersion = CurrentVersion
	c.options = 0
	c.data = nil
	c.dataSize = 0
	c.ids = nil
	c.chunks = nil
	c.chunkRefs = nil
	c.managers = nil
	c.packed = false
	c.unpackSize = 0
	c.uncompressedSize = 0
	c.compressedSize = 0
	c.cursor = 0
	c.lastIdentifier = -1
	c.writing = false
}

// Clone deep-copies the chunk and its sub-chunk tree into dst, producing
// value-disjoint trees. A nil dst clones into the source arena.
func (c *Chunk) Clone(dst *arena.Arena) (*Chunk, error) {
	if dst == nil {
		dst = c.arena
	}
	out := &Chunk{
		classID:          c.classID,
		legacyID:         c.legacyID,
		dataVersion:      c.dataVersion,
		chunkVersion:     c.chunkVersion,
		options:          c.options,
		arena:            dst,
		cfg:              c.cfg,
		dataSize:         c.dataSize,
		packed:           c.packed,
		unpackSize:       c.unpackSize,
		uncompressedSize: c.uncompressedSize,
		compressedSize:   c.compressedSize,
		lastIdentifier:   -1,
	}
	if c.dataSize > 0 {
		buf, err := dst.Words(c.dataSize)
		if err != nil {
			return nil, err
		}
		copy(buf, c.data[:c.dataSize])
		out.data = buf
	}
	if len(c.ids) > 0 {
		out.ids = append([]int32(nil), c.ids...)
	}
	if len(c.chunkRefs) > 0 {
		out.chunkRefs = append([]uint32(nil), c.chunkRefs...)
	}
	if len(c.managers) > 0 {
		out.managers = append([]uint32(nil), c.managers...)
	}
	for _, child := range c.chunks {
		cc, err := child.Clone(dst)
		if err != nil {
			return nil, err
		}
		out.chunks = append(out.chunks, cc)
	}
	return out, nil
}

// effectiveOptions recomputes the list-derived bits from the side-lists,
// preserving the caller-controlled flags.
func (c *Chunk) effectiveOptions() Options {
	o := c.options &^ (OptionIDs | OptionManagers | OptionSubChunks | OptionPacked)
	if len(c.ids) > 0 {
		o |= OptionIDs
	}
	if len(c.managers) > 0 {
		o |= OptionManagers
	}
	if len(c.chunks) > 0 || len(c.chunkRefs) > 0 {
		o |= OptionSubChunks
	}
	if c.packed {
		o |= OptionPacked
	}
	return o
}
