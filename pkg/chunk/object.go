package chunk

import (
	"github.com/nmokit/nmokit/pkg/cherr"
)

// WriteObjectID writes an object reference. The raw ID is always stored;
// nonzero IDs additionally record their word offset in the ids side-list
// so the remap pass can find every reference without re-parsing the
// payload. Zero means "no object" and is never tracked.
func (c *Chunk) WriteObjectID(id ID) error {
	if err := c.checkSize(1); err != nil {
		return err
	}
	if id != 0 {
		c.ids = append(c.ids, int32(c.cursor))
		c.options |= OptionIDs
	}
	c.putWord(uint32(id))
	return nil
}

// StartObjectIDSequence opens an inline run of count object references.
// The count word is written at the cursor and the run is tracked through
// a single sequence-header pair in the ids list instead of per-item
// offsets. The items themselves follow via WriteSequenceObjectID.
func (c *Chunk) StartObjectIDSequence(count int) error {
	if count < 0 {
		return cherr.Newf(cherr.KindInvalidArg, "sequence count %d", count)
	}
	if err := c.checkSize(1); err != nil {
		return err
	}
	c.ids = append(c.ids, idSequenceMarker, int32(c.cursor))
	c.options |= OptionIDs
	c.putWord(uint32(count))
	return nil
}

// WriteSequenceObjectID writes one item of an open ID sequence. No
// per-item tracking happens; the sequence header covers the run.
func (c *Chunk) WriteSequenceObjectID(id ID) error {
	if err := c.checkSize(1); err != nil {
		return err
	}
	c.putWord(uint32(id))
	return nil
}

// ReadObjectID reads one object reference
func (c *Chunk) ReadObjectID() (ID, error) {
	w, err := c.readWord()
	return ID(w), err
}

// StartReadSequence reads an inline run's count word
func (c *Chunk) StartReadSequence() (int, error) {
	w, err := c.readWord()
	return int(w), err
}
