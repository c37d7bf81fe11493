package chunk

import (
	"github.com/nmokit/nmokit/pkg/cherr"
)

// IDMap translates file-local object IDs to process-local ones after a
// load. Entries mapping to zero are treated as misses.
type IDMap map[ID]ID

// RemapObjectIDs walks the chunk and its embedded sub-chunks depth-first,
// rewriting every tracked object reference through the table. The ids list
// uses its dual encoding: a plain entry is the offset of a single
// reference word; a sequence marker means the next entry is the offset of
// an inline run's count word, with the run in the words after it.
//
// Misses, zero results and identity mappings leave the word untouched.
// Offsets outside the current payload are skipped, not faulted; stale
// bookkeeping in legacy files is survivable, a crash is not. Returns the
// number of references rewritten.
func (c *Chunk) RemapObjectIDs(table IDMap) (int, error) {
	if c.packed {
		return 0, cherr.New(cherr.KindInvalidState, "remap over a packed payload")
	}
	n := c.remapLocal(table)
	for _, child := range c.chunks {
		m, err := child.RemapObjectIDs(table)
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (c *Chunk) remapLocal(table IDMap) int {
	n := 0
	for k := 0; k < len(c.ids); k++ {
		e := c.ids[k]
		if e != idSequenceMarker {
			off := int(e)
			if off < 0 || off >= c.dataSize {
				continue
			}
			n += remapWord(c.data, off, table)
			continue
		}
		k++
		if k >= len(c.ids) {
			break
		}
		off := int(c.ids[k])
		if off < 0 || off >= c.dataSize {
			continue
		}
		count := int(c.data[off])
		for j := 1; j <= count; j++ {
			if off+j >= c.dataSize {
				break
			}
			n += remapWord(c.data, off+j, table)
		}
	}
	return n
}

func remapWord(data []uint32, off int, table IDMap) int {
	id := ID(data[off])
	if id == 0 {
		return 0
	}
	v, ok := table[id]
	if !ok || v == 0 || v == id {
		return 0
	}
	data[off] = uint32(v)
	return 1
}
