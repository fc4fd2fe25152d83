package billing

// mask is a packed bitset with one bit per grid interval. Charge
// applicability is computed as one mask per rule and OR-composed.
type mask []uint64

func newMask(n int) mask {
	return make(mask, (n+63)/64)
}

func (m mask) set(i int) {
	m[i>>6] |= 1 << (uint(i) & 63)
}

func (m mask) get(i int) bool {
	return m[i>>6]&(1<<(uint(i)&63)) != 0
}

// or folds other into m. Both masks must be the same length.
func (m mask) or(other mask) {
	for i := range m {
		m[i] |= other[i]
	}
}

// all returns a mask of length n with every bit set.
func allMask(n int) mask {
	m := newMask(n)
	for i := 0; i < n; i++ {
		m.set(i)
	}
	return m
}
