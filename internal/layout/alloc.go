package layout

import (
	"math/bits"

	"github.com/bits-and-blooms/bitset"
)

// nextClear returns the first clear bit at or after i. Bits beyond the
// set's length are clear.
func nextClear(b *bitset.BitSet, i uint) uint {
	if r, ok := b.NextClear(i); ok {
		return r
	}
	return max(i, b.Len())
}

// find returns the lowest offset with the given alignment at which size
// consecutive bits are clear. align must be a power of two. The scan always
// terminates: past the last set bit every aligned offset fits.
func find(b *bitset.BitSet, align, size uint) uint {
	mask := align - 1
	i := nextClear(b, 0)
	for {
		for amt := mask - ((i - 1) & mask); amt > 0; amt = mask - ((i - 1) & mask) {
			i = nextClear(b, i+amt)
		}
		n, ok := b.NextSet(i)
		if !ok || n-i >= size {
			return i
		}
		i = nextClear(b, n)
	}
}

// occupy marks [off, off+size) as allocated.
func occupy(b *bitset.BitSet, off, size uint) {
	for j := off; j < off+size; j++ {
		b.Set(j)
	}
}

func isPowerOfTwo(x uint64) bool {
	return x != 0 && bits.OnesCount64(x) == 1
}
