package memory

import (
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"fortio.org/safecast"
)

var (
	// ErrInvalidAccess is returned for accesses the region cannot serve:
	// unsupported widths, misaligned or out-of-range offsets.
	ErrInvalidAccess = errors.New("invalid memory access")
	// ErrInvalidMode is returned when a mode does not fit the operation,
	// such as a release load.
	ErrInvalidMode = errors.New("invalid access mode for operation")
)

// Memory is a byte-addressed region. Offsets are in bytes.
type Memory interface {
	Load8(off int64, mode AccessMode) (int8, error)
	Load16(off int64, mode AccessMode) (int16, error)
	Load32(off int64, mode AccessMode) (int32, error)
	Load64(off int64, mode AccessMode) (int64, error)
	Store8(off int64, v int8, mode AccessMode) error
	Store16(off int64, v int16, mode AccessMode) error
	Store32(off int64, v int32, mode AccessMode) error
	Store64(off int64, v int64, mode AccessMode) error
	// CompareAndExchange64 stores update if the current value is expect and
	// returns the value observed before the exchange.
	CompareAndExchange64(off, expect, update int64, read, write AccessMode) (int64, error)
	// Copy returns a region of newSize bytes holding a prefix of this one.
	Copy(newSize int64) (Memory, error)
	Clone() Memory
	CloneZeroed() Memory
	Size() int64
}

// Int64Memory is backed by a slice of 64-bit words and serves aligned
// 64-bit accesses only. Unordered accesses are plain; every stronger mode
// uses sync/atomic.
type Int64Memory struct {
	words []int64
}

var _ Memory = (*Int64Memory)(nil)

// NewInt64Memory allocates a zeroed region of at least size bytes.
func NewInt64Memory(size int64) (*Int64Memory, error) {
	n, err := wordCount(size)
	if err != nil {
		return nil, err
	}
	return &Int64Memory{words: make([]int64, n)}, nil
}

// WrapInt64 uses words directly as the backing store.
func WrapInt64(words []int64) *Int64Memory { return &Int64Memory{words: words} }

func wordCount(size int64) (int, error) {
	if size < 0 {
		return 0, fmt.Errorf("size %d: %w", size, ErrInvalidAccess)
	}
	return safecast.Conv[int]((size + 7) >> 3)
}

func (m *Int64Memory) word(op string, off int64) (*int64, error) {
	if off < 0 || off&7 != 0 || off>>3 >= int64(len(m.words)) {
		return nil, fmt.Errorf("%s at %d: %w", op, off, ErrInvalidAccess)
	}
	return &m.words[off>>3], nil
}

func narrow(op string, off int64) error {
	return fmt.Errorf("%s at %d: %w", op, off, ErrInvalidAccess)
}

func (m *Int64Memory) Load8(off int64, _ AccessMode) (int8, error)   { return 0, narrow("load8", off) }
func (m *Int64Memory) Load16(off int64, _ AccessMode) (int16, error) { return 0, narrow("load16", off) }
func (m *Int64Memory) Load32(off int64, _ AccessMode) (int32, error) { return 0, narrow("load32", off) }

func (m *Int64Memory) Store8(off int64, _ int8, _ AccessMode) error   { return narrow("store8", off) }
func (m *Int64Memory) Store16(off int64, _ int16, _ AccessMode) error { return narrow("store16", off) }
func (m *Int64Memory) Store32(off int64, _ int32, _ AccessMode) error { return narrow("store32", off) }

func (m *Int64Memory) Load64(off int64, mode AccessMode) (int64, error) {
	if !mode.CanRead() {
		return 0, fmt.Errorf("load64 %s: %w", mode, ErrInvalidMode)
	}
	p, err := m.word("load64", off)
	if err != nil {
		return 0, err
	}
	if mode == Unordered {
		return *p, nil
	}
	return atomic.LoadInt64(p), nil
}

func (m *Int64Memory) Store64(off int64, v int64, mode AccessMode) error {
	if !mode.CanWrite() {
		return fmt.Errorf("store64 %s: %w", mode, ErrInvalidMode)
	}
	p, err := m.word("store64", off)
	if err != nil {
		return err
	}
	if mode == Unordered {
		*p = v
		return nil
	}
	atomic.StoreInt64(p, v)
	return nil
}

func (m *Int64Memory) CompareAndExchange64(off, expect, update int64, read, write AccessMode) (int64, error) {
	if !read.CanRead() || !write.CanWrite() {
		return 0, fmt.Errorf("cmpxchg64 %s/%s: %w", read, write, ErrInvalidMode)
	}
	p, err := m.word("cmpxchg64", off)
	if err != nil {
		return 0, err
	}
	if read == Unordered && write == Unordered {
		old := *p
		if old == expect {
			*p = update
		}
		return old, nil
	}
	for {
		old := atomic.LoadInt64(p)
		if old != expect {
			return old, nil
		}
		if atomic.CompareAndSwapInt64(p, expect, update) {
			return old, nil
		}
	}
}

func (m *Int64Memory) Copy(newSize int64) (Memory, error) {
	n, err := wordCount(newSize)
	if err != nil {
		return nil, err
	}
	words := make([]int64, n)
	copy(words, m.words)
	return &Int64Memory{words: words}, nil
}

func (m *Int64Memory) Clone() Memory       { return &Int64Memory{words: slices.Clone(m.words)} }
func (m *Int64Memory) CloneZeroed() Memory { return &Int64Memory{words: make([]int64, len(m.words))} }
func (m *Int64Memory) Size() int64         { return int64(len(m.words)) << 3 }
