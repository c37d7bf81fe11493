package chunk

import (
	"github.com/nmokit/nmokit/pkg/cherr"
)

// An embedded sub-chunk record inside a parent payload:
//
//	w0  total size minus one (words following this one)
//	w1  legacy class id (16-bit value)
//	w2  dataVersion | chunkVersion<<16
//	w3  child data word count
//	w4  reserved file flag, 0
//	w5  child id count
//	w6  child sub-chunk count
//	w7  reserved manager count, 0
//
// followed by the child payload words, its id-list words, and one
// placeholder word per nested child. Nested manager lists are not
// representable in this record.

// WriteSubChunk embeds child into the parent payload and appends it to the
// sub-chunk list. After embedding, the child's payload view aliases the
// embedded copy inside the parent buffer: a later remap over either handle
// mutates the one logical copy. The alias holds until the parent buffer
// grows again.
func (c *Chunk) WriteSubChunk(child *Chunk) error {
	if child == nil {
		return cherr.New(cherr.KindInvalidArg, "nil sub-chunk")
	}
	if child.packed {
		return cherr.New(cherr.KindNotSupported, "embedding a packed sub-chunk")
	}
	if len(child.managers) > 0 {
		return cherr.New(cherr.KindNotSupported, "sub-chunk carries a manager list")
	}
	total := subChunkHeaderWords + child.dataSize + len(child.ids) + len(child.chunks)
	if err := c.checkSize(total); err != nil {
		return err
	}

	c.putWord(uint32(total - 1))
	c.putWord(uint32(child.legacyID))
	c.putWord(uint32(child.dataVersion) | uint32(child.chunkVersion)<<16)
	c.putWord(uint32(child.dataSize))
	c.putWord(0)
	c.putWord(uint32(len(child.ids)))
	c.putWord(uint32(len(child.chunks)))
	c.putWord(0)

	dataStart := c.cursor
	copy(c.data[c.cursor:], child.data[:child.dataSize])
	c.cursor += child.dataSize
	for _, e := range child.ids {
		c.putWord(uint32(e))
	}
	for range child.chunks {
		c.putWord(0) // ref placeholder, resolved by the legacy file writer
	}

	// Repoint the child's payload into the embedded region.
	child.data = c.data[dataStart : dataStart+child.dataSize : dataStart+child.dataSize]

	c.chunks = append(c.chunks, child)
	c.options |= OptionSubChunks
	return nil
}

// ReadSubChunk materializes a fresh child from an embedded record at the
// cursor. The child's declared payload and id-list words are copied out;
// nested placeholder words are skipped without materializing anything.
func (c *Chunk) ReadSubChunk() (*Chunk, error) {
	sizeWord, err := c.readWord()
	if err != nil {
		return nil, err
	}
	remaining := int(sizeWord)
	if remaining < subChunkHeaderWords-1 {
		return nil, cherr.Newf(cherr.KindCorrupt, "sub-chunk record of %d words", remaining+1)
	}
	if err := c.ensureRead(remaining); err != nil {
		return nil, err
	}

	legacyID := c.data[c.cursor]
	version := c.data[c.cursor+1]
	dataWords := int(c.data[c.cursor+2])
	idCount := int(c.data[c.cursor+4])
	subCount := int(c.data[c.cursor+5])
	managerCount := int(c.data[c.cursor+6])
	c.cursor += subChunkHeaderWords - 1

	if managerCount != 0 {
		return nil, cherr.New(cherr.KindNotSupported, "sub-chunk declares a nested manager list")
	}
	if subChunkHeaderWords-1+dataWords+idCount+subCount != remaining {
		return nil, cherr.Newf(cherr.KindCorrupt,
			"sub-chunk sections %d+%d+%d disagree with declared size %d", dataWords, idCount, subCount, remaining)
	}

	child, err := NewWithConfig(c.arena, c.cfg)
	if err != nil {
		return nil, err
	}
	child.legacyID = uint16(legacyID)
	child.classID = ClassID(legacyID)
	child.dataVersion = uint16(version & 0xFFFF)
	child.chunkVersion = uint16(version >> 16)
	child.dataSize = dataWords
	if dataWords > 0 {
		buf, err := c.arena.Words(dataWords)
		if err != nil {
			return nil, err
		}
		copy(buf, c.data[c.cursor:c.cursor+dataWords])
		child.data = buf
		c.cursor += dataWords
	}
	for i := 0; i < idCount; i++ {
		child.ids = append(child.ids, int32(c.data[c.cursor+i]))
	}
	c.cursor += idCount
	if idCount > 0 {
		child.options |= OptionIDs
	}
	// nested refs are placeholders only; skip without materializing
	c.cursor += subCount
	return child, nil
}
