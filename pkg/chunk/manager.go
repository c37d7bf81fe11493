package chunk

import (
	"github.com/nmokit/nmokit/pkg/cherr"
)

// Manager-int sequences store per-manager integers: a GUID naming the
// manager, a count, then count [id, value] pairs. The managers side-list
// records the word offset of every pair; it is bookkeeping only, the wire
// data is fully self-describing.

// StartManagerSequence opens a manager sequence: two GUID words then the
// pair count.
func (c *Chunk) StartManagerSequence(g GUID, count int) error {
	if count < 0 {
		return cherr.Newf(cherr.KindInvalidArg, "manager sequence count %d", count)
	}
	if err := c.checkSize(3); err != nil {
		return err
	}
	c.options |= OptionManagers
	c.putWord(g.D1)
	c.putWord(g.D2)
	c.putWord(uint32(count))
	return nil
}

// WriteManagerInt writes one [id, value] pair and tracks its offset.
func (c *Chunk) WriteManagerInt(id, value int32) error {
	if err := c.checkSize(2); err != nil {
		return err
	}
	c.managers = append(c.managers, uint32(c.cursor))
	c.putWord(uint32(id))
	c.putWord(uint32(value))
	return nil
}

// ReadManagerSequence reads a sequence header written by
// StartManagerSequence.
func (c *Chunk) ReadManagerSequence() (GUID, int, error) {
	g, err := c.ReadGUID()
	if err != nil {
		return GUID{}, 0, err
	}
	count, err := c.readWord()
	if err != nil {
		return GUID{}, 0, err
	}
	return g, int(count), nil
}

// ReadManagerInt reads one [id, value] pair.
func (c *Chunk) ReadManagerInt() (id, value int32, err error) {
	if err := c.ensureRead(2); err != nil {
		return 0, 0, err
	}
	id = int32(c.data[c.cursor])
	value = int32(c.data[c.cursor+1])
	c.cursor += 2
	return id, value, nil
}

// RemapManagerInts rewrites the id word of every tracked manager pair
// through the given table, for sessions whose manager registration order
// differs from the file's. Misses and identity mappings are left alone;
// offsets outside the payload are skipped. Returns the number of pairs
// rewritten.
func (c *Chunk) RemapManagerInts(table map[int32]int32) int {
	if c.packed {
		return 0
	}
	n := 0
	for _, off := range c.managers {
		pos := int(off)
		if pos < 0 || pos+1 >= c.dataSize {
			continue
		}
		id := int32(c.data[pos])
		v, ok := table[id]
		if !ok || v == id {
			continue
		}
		c.data[pos] = uint32(v)
		n++
	}
	return n
}
