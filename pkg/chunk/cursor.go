package chunk

import (
	"github.com/nmokit/nmokit/pkg/cherr"
)

// StartWrite puts the chunk in write mode. The cursor moves to word 0 and
// the buffer is allocated lazily on the first write. Previously committed
// words stay in place, so a writer may extend a closed chunk.
func (c *Chunk) StartWrite() error {
	if c.packed {
		return cherr.New(cherr.KindInvalidState, "cannot write into a packed chunk")
	}
	c.cursor = 0
	c.lastIdentifier = -1
	c.writing = true
	return nil
}

// StartRead puts the chunk in read mode: cursor and identifier marker are
// reset, committed size is untouched.
func (c *Chunk) StartRead() {
	c.cursor = 0
	c.lastIdentifier = -1
	c.writing = false
}

// CloseChunk commits what the cursor has covered: the payload size becomes
// the high-water mark of writes. Closing twice is harmless.
func (c *Chunk) CloseChunk() {
	if c.cursor > c.dataSize {
		c.dataSize = c.cursor
	}
	c.writing = false
}

// Position returns the cursor's word offset
func (c *Chunk) Position() int { return c.cursor }

// Goto moves the cursor to an absolute word offset within the committed
// payload.
func (c *Chunk) Goto(pos int) error {
	if pos < 0 || pos > c.dataSize {
		return cherr.Newf(cherr.KindOutOfBounds, "goto %d with %d words committed", pos, c.dataSize)
	}
	c.cursor = pos
	return nil
}

// Skip advances the cursor n words without interpreting them.
func (c *Chunk) Skip(n int) error {
	if n < 0 {
		return cherr.Newf(cherr.KindInvalidArg, "skip %d", n)
	}
	if c.cursor+n > c.dataSize {
		return cherr.Newf(cherr.KindEndOfData, "skip %d at %d with %d words committed", n, c.cursor, c.dataSize)
	}
	c.cursor += n
	return nil
}

// checkSize guarantees room for n more words at the cursor, doubling the
// buffer until they fit. Growth never shrinks and never loses words.
func (c *Chunk) checkSize(n int) error {
	if !c.writing {
		return cherr.New(cherr.KindInvalidState, "write without StartWrite")
	}
	need := c.cursor + n
	if need <= len(c.data) {
		return nil
	}
	capWords := len(c.data)
	if capWords == 0 {
		capWords = c.cfg.InitialWords
	}
	for capWords < need {
		capWords *= 2
	}
	buf, err := c.arena.Words(capWords)
	if err != nil {
		return err
	}
	copy(buf, c.data)
	c.data = buf
	return nil
}

// ensureRead checks that n words are readable at the cursor.
func (c *Chunk) ensureRead(n int) error {
	if c.cursor+n > c.dataSize {
		return cherr.Newf(cherr.KindEndOfData, "read %d words at %d with %d committed", n, c.cursor, c.dataSize)
	}
	return nil
}

// putWord appends one word; the caller has already reserved space.
func (c *Chunk) putWord(w uint32) {
	c.data[c.cursor] = w
	c.cursor++
}
