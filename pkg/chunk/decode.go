package chunk

import (
	"github.com/nmokit/nmokit/pkg/arena"
	"github.com/nmokit/nmokit/pkg/cherr"
)

// decodeWords parses one chunk starting at w[0] and returns it with the
// number of words consumed. Sub-chunks recurse through the same path.
func decodeWords(a *arena.Arena, w []uint32) (*Chunk, int, error) {
	if len(w) < 2 {
		return nil, 0, cherr.Newf(cherr.KindCorrupt, "chunk header truncated at %d words", len(w))
	}
	switch version := (w[0] >> 16) & 0xFF; version {
	case VersionBase, Version1:
		return decodeLegacy(a, w, legacyHeaderV1)
	case Version2:
		return decodeLegacy(a, w, legacyHeaderV2)
	case Version3, Version4:
		return decodeCompact(a, w)
	default:
		return nil, 0, cherr.Newf(cherr.KindUnsupportedVersion, "chunk version %d", version)
	}
}

func decodeCompact(a *arena.Arena, w []uint32) (*Chunk, int, error) {
	c := New(a)
	w0 := w[0]
	c.dataVersion = uint16(w0 & 0xFF)
	c.legacyID = uint16((w0 >> 8) & 0xFF)
	c.chunkVersion = uint16((w0 >> 16) & 0xFF)
	c.options = Options(w0 >> 24)
	// the 32-bit class id does not travel on the compact wire; the legacy
	// id stands in until the outer file table assigns the real one
	c.classID = ClassID(c.legacyID)

	size := int(w[1])
	pos := 2

	if c.options&OptionPacked != 0 {
		if pos+2 > len(w) {
			return nil, 0, cherr.New(cherr.KindCorrupt, "packed header truncated")
		}
		c.packed = true
		c.unpackSize = int(w[pos])
		c.compressedSize = int(w[pos+1])
		c.uncompressedSize = c.unpackSize * arena.WordSize
		pos += 2
		if (c.compressedSize+arena.WordSize-1)/arena.WordSize != size {
			return nil, 0, cherr.Newf(cherr.KindCorrupt,
				"compressed size %d bytes disagrees with %d payload words", c.compressedSize, size)
		}
	}

	if size < 0 || pos+size > len(w) {
		return nil, 0, cherr.Newf(cherr.KindCorrupt, "payload of %d words truncated", size)
	}
	if size > 0 {
		buf, err := a.Words(size)
		if err != nil {
			return nil, 0, err
		}
		copy(buf, w[pos:pos+size])
		c.data = buf
	}
	c.dataSize = size
	pos += size

	if c.options&OptionIDs != 0 {
		count, err := sectionCount(w, pos, "id list")
		if err != nil {
			return nil, 0, err
		}
		pos++
		c.ids = make([]int32, count)
		for i := 0; i < count; i++ {
			c.ids[i] = int32(w[pos+i])
		}
		pos += count
	}

	if c.options&OptionSubChunks != 0 {
		count, err := sectionCount(w, pos, "sub-chunk list")
		if err != nil {
			return nil, 0, err
		}
		pos++
		for i := 0; i < count; i++ {
			child, n, err := decodeWords(a, w[pos:])
			if err != nil {
				return nil, 0, err
			}
			c.chunks = append(c.chunks, child)
			pos += n
		}
	}

	if c.options&OptionManagers != 0 {
		count, err := sectionCount(w, pos, "manager list")
		if err != nil {
			return nil, 0, err
		}
		pos++
		c.managers = append(c.managers, w[pos:pos+count]...)
		pos += count
	}

	return c, pos, nil
}

func decodeLegacy(a *arena.Arena, w []uint32, header int) (*Chunk, int, error) {
	if len(w) < header {
		return nil, 0, cherr.Newf(cherr.KindCorrupt, "legacy header truncated at %d words", len(w))
	}
	c := New(a)
	c.dataVersion = uint16(w[0] & 0xFFFF)
	c.chunkVersion = uint16(w[0] >> 16)
	c.classID = ClassID(w[1])
	c.legacyID = uint16(w[1] & 0xFF)
	if w[3] != 0 {
		return nil, 0, cherr.Newf(cherr.KindCorrupt, "legacy signature word %#x", w[3])
	}
	size := int(w[2])
	idCount := int(w[4])
	refCount := int(w[5])
	managerCount := 0
	if header == legacyHeaderV2 {
		managerCount = int(w[6])
	}
	total := header + size + idCount + refCount + managerCount
	if size < 0 || idCount < 0 || refCount < 0 || managerCount < 0 || total > len(w) {
		return nil, 0, cherr.Newf(cherr.KindCorrupt,
			"legacy chunk declares %d words with %d available", total, len(w))
	}

	pos := header
	if size > 0 {
		buf, err := a.Words(size)
		if err != nil {
			return nil, 0, err
		}
		copy(buf, w[pos:pos+size])
		c.data = buf
	}
	c.dataSize = size
	pos += size

	c.ids = make([]int32, idCount)
	for i := 0; i < idCount; i++ {
		c.ids[i] = int32(w[pos+i])
	}
	pos += idCount

	// flattened layout: children live elsewhere in the file, only their
	// byte-offset refs are present here
	c.chunkRefs = append(c.chunkRefs, w[pos:pos+refCount]...)
	pos += refCount

	c.managers = append(c.managers, w[pos:pos+managerCount]...)
	pos += managerCount

	if idCount > 0 {
		c.options |= OptionIDs
	}
	if refCount > 0 {
		c.options |= OptionSubChunks
	}
	if managerCount > 0 {
		c.options |= OptionManagers
	}
	return c, pos, nil
}

// sectionCount reads a section's count word with bounds checks: the count
// itself must be present and the declared entries must fit the remaining
// input.
func sectionCount(w []uint32, pos int, what string) (int, error) {
	if pos >= len(w) {
		return 0, cherr.Newf(cherr.KindCorrupt, "%s count truncated", what)
	}
	count := int(w[pos])
	if count < 0 || pos+1+count > len(w) {
		return 0, cherr.Newf(cherr.KindCorrupt, "%s declares %d entries with %d words left", what, count, len(w)-pos-1)
	}
	return count, nil
}
