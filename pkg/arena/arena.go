// Package arena provides the bulk allocator backing chunk payload buffers.
// Allocations are bump-pointer carves out of large blocks; there is no
// per-allocation free. Releasing the arena (or letting it go out of scope)
// reclaims everything at once, which is why chunk destruction is a no-op.
package arena

import (
	"github.com/nmokit/nmokit/pkg/cherr"
)

const (
	// DefaultBlockSize is the size of each backing block in bytes
	DefaultBlockSize = 64 * 1024

	// WordSize is the payload unit; every chunk offset counts these
	WordSize = 4
)

// Arena is a bump-pointer region allocator. It is not safe for concurrent
// use; callers provide exclusion per the chunk engine's threading model.
type Arena struct {
	blocks    [][]byte
	current   []byte
	offset    int
	blockSize int
	used      int
	limit     int // 0 = unbounded
}

// Option configures an Arena
type Option func(*Arena)

// WithBlockSize sets the backing block size in bytes.
func WithBlockSize(size int) Option {
	return func(a *Arena) {
		if size > 0 {
			a.blockSize = size
		}
	}
}

// WithLimit caps total bytes the arena will hand out; further allocations
// fail with an out-of-memory error.
func WithLimit(limit int) Option {
	return func(a *Arena) {
		a.limit = limit
	}
}

// New creates an arena with the given options.
func New(options ...Option) *Arena {
	a := &Arena{blockSize: DefaultBlockSize}
	for _, option := range options {
		option(a)
	}
	a.current = make([]byte, a.blockSize)
	a.blocks = [][]byte{a.current}
	return a
}

// Alloc returns size bytes aligned to align (a power of two). The returned
// slice is zeroed and stays valid for the arena's lifetime.
func (a *Arena) Alloc(size, align int) ([]byte, error) {
	if size < 0 || align <= 0 || align&(align-1) != 0 {
		return nil, cherr.Newf(cherr.KindInvalidArg, "alloc size=%d align=%d", size, align)
	}
	if size == 0 {
		return nil, nil
	}
	if a.limit > 0 && a.used+size > a.limit {
		return nil, cherr.Newf(cherr.KindOutOfMemory, "arena limit %d exceeded by %d-byte allocation", a.limit, size)
	}

	off := (a.offset + align - 1) &^ (align - 1)
	if off+size > len(a.current) {
		blockSize := a.blockSize
		if size+align > blockSize {
			blockSize = size + align
		}
		a.current = make([]byte, blockSize)
		a.blocks = append(a.blocks, a.current)
		a.offset = 0
		off = 0
	}
	buf := a.current[off : off+size : off+size]
	a.offset = off + size
	a.used += size
	return buf, nil
}

// Words returns a zeroed slice of n 32-bit words from the arena.
func (a *Arena) Words(n int) ([]uint32, error) {
	if n < 0 {
		return nil, cherr.Newf(cherr.KindInvalidArg, "word count %d", n)
	}
	if n == 0 {
		return nil, nil
	}
	if a.limit > 0 && a.used+n*WordSize > a.limit {
		return nil, cherr.Newf(cherr.KindOutOfMemory, "arena limit %d exceeded by %d-word allocation", a.limit, n)
	}
	// Word buffers come from the Go heap rather than the byte blocks: Go
	// slices cannot retype []byte as []uint32 without unsafe, and the
	// collective-release lifetime is what matters, not the backing page.
	a.used += n * WordSize
	return make([]uint32, n), nil
}

// BytesUsed returns the total bytes handed out so far.
func (a *Arena) BytesUsed() int {
	return a.used
}

// Reset discards every allocation, keeping the first block for reuse.
// All previously returned slices become garbage; callers must not hold
// chunk handles across a reset of their owning arena.
func (a *Arena) Reset() {
	a.current = a.blocks[0]
	a.blocks = a.blocks[:1]
	for i := range a.current {
		a.current[i] = 0
	}
	a.offset = 0
	a.used = 0
}
