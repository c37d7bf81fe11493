package chunk

import (
	"github.com/nmokit/nmokit/pkg/cherr"
)

// Identifier-indexed navigation exists in two wire conventions. Chunks at
// Version2 or later use the linked-list form: each identifier record is
// [id, next] and writing a new one patches the previous record's next
// slot. Chunks below Version2 use the legacy flat form: a single word per
// identifier, found by plain linear scan. Both conventions are required
// for file compatibility and are deliberately kept separate.

// linkedIdentifiers reports which convention this chunk uses
func (c *Chunk) linkedIdentifiers() bool {
	return c.chunkVersion >= Version2
}

// WriteIdentifier writes a named section marker at the cursor. Seeking the
// identifier later lands the cursor exactly past this record.
func (c *Chunk) WriteIdentifier(id uint32) error {
	if !c.linkedIdentifiers() {
		if err := c.checkSize(1); err != nil {
			return err
		}
		c.lastIdentifier = c.cursor
		c.putWord(id)
		return nil
	}
	if err := c.checkSize(2); err != nil {
		return err
	}
	if c.lastIdentifier >= 0 && c.lastIdentifier+1 < len(c.data) {
		c.data[c.lastIdentifier+1] = uint32(c.cursor)
	}
	c.lastIdentifier = c.cursor
	c.putWord(id)
	c.putWord(0) // end of chain until the next identifier patches it
	return nil
}

// SeekIdentifier positions the cursor just past the record for id. A miss
// returns an informational not-found error and leaves the cursor and the
// chain marker untouched, so a later seek for a present identifier still
// works.
func (c *Chunk) SeekIdentifier(id uint32) error {
	if c.dataSize == 0 {
		return cherr.Newf(cherr.KindNotFound, "identifier %#x in empty chunk", id)
	}
	if !c.linkedIdentifiers() {
		return c.seekFlat(id)
	}
	return c.seekLinked(id)
}

// SeekIdentifierAndReturnSize seeks like SeekIdentifier and additionally
// returns the section size in words: the distance from the cursor to the
// next identifier record, or to the end of the payload for the last one.
// Only the linked convention knows its section boundaries.
func (c *Chunk) SeekIdentifierAndReturnSize(id uint32) (int, error) {
	if !c.linkedIdentifiers() {
		return 0, cherr.New(cherr.KindNotSupported, "section sizes unavailable in flat identifier chunks")
	}
	if c.dataSize == 0 {
		return 0, cherr.Newf(cherr.KindNotFound, "identifier %#x in empty chunk", id)
	}
	if err := c.seekLinked(id); err != nil {
		return 0, err
	}
	next := int(c.data[c.lastIdentifier+1])
	if next == 0 {
		return c.dataSize - c.cursor, nil
	}
	return next - c.cursor, nil
}

func (c *Chunk) seekFlat(id uint32) error {
	for i := 0; i < c.dataSize; i++ {
		if c.data[i] == id {
			c.cursor = i + 1
			c.lastIdentifier = i
			return nil
		}
	}
	return cherr.Newf(cherr.KindNotFound, "identifier %#x", id)
}

func (c *Chunk) seekLinked(id uint32) error {
	start := 0
	if c.lastIdentifier >= 0 && c.lastIdentifier+1 < c.dataSize {
		start = int(c.data[c.lastIdentifier+1])
	}
	pos, ok := c.scanLinked(id, start)
	if !ok && start != 0 {
		// wrap to the beginning so records written earlier stay reachable
		pos, ok = c.scanLinked(id, 0)
	}
	if !ok {
		return cherr.Newf(cherr.KindNotFound, "identifier %#x", id)
	}
	c.lastIdentifier = pos
	c.cursor = pos + 2
	return nil
}

// scanLinked walks the payload from start looking for an identifier
// record. On a non-match it follows any word that looks like a valid
// forward pointer (in bounds and strictly ahead), falling back to a
// one-word step otherwise. The pointer heuristic can jump on payload
// words that merely resemble pointers; that is observable legacy format
// behavior and is kept as-is.
func (c *Chunk) scanLinked(id uint32, start int) (int, bool) {
	i := start
	for i >= 0 && i+1 < c.dataSize {
		if c.data[i] == id {
			return i, true
		}
		next := int(c.data[i+1])
		if next > i && next < c.dataSize {
			i = next
		} else {
			i++
		}
	}
	return 0, false
}
