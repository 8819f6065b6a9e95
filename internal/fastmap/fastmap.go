// Package fastmap implements an open-addressed hash map from small
// unsigned integer keys to pointers. The kernel's hot paths hit these
// maps far more often than they mutate them — the buffer cache looks
// up a sector on every block access, the supplemental page table looks
// up a page number on every fault — so the layout favors probe
// locality: keys, values, and occupancy live in parallel slices, and
// keys are spread with Fibonacci multiplicative hashing so the dense
// sequential numbering both call sites use does not pile into one
// long probe cluster.
package fastmap

import "unsafe"

// golden is 2^32 divided by the golden ratio. Multiplying a key by it
// and keeping the product's high bits scatters consecutive keys far
// apart across the table.
const golden = 0x9E3779B9

// table size is 1 << (32 - shift); the initial shift gives 16 slots.
const initialShift = 28

// Uint32Map maps uint32 keys to pointers. The zero value is an empty
// map ready for use. Methods are not safe for concurrent use; every
// caller wraps the map in its own lock.
type Uint32Map struct {
	keys []uint32
	vals []unsafe.Pointer
	live []bool

	count int
	shift uint
}

func (m *Uint32Map) mask() uint32 { return uint32(len(m.keys) - 1) }

func (m *Uint32Map) home(key uint32) uint32 {
	return (key * golden) >> m.shift
}

// Get returns the value stored under key, or nil if key is absent.
func (m *Uint32Map) Get(key uint32) unsafe.Pointer {
	if m.count == 0 {
		return nil
	}
	for i := m.home(key); ; i = (i + 1) & m.mask() {
		if !m.live[i] {
			return nil
		}
		if m.keys[i] == key {
			return m.vals[i]
		}
	}
}

// Set stores value under key, replacing any previous value.
func (m *Uint32Map) Set(key uint32, value unsafe.Pointer) {
	if len(m.keys) == 0 {
		m.init(initialShift)
	} else if (m.count+1)*4 > len(m.keys)*3 {
		m.rehash(m.shift - 1)
	}
	for i := m.home(key); ; i = (i + 1) & m.mask() {
		if !m.live[i] {
			m.keys[i], m.vals[i], m.live[i] = key, value, true
			m.count++
			return
		}
		if m.keys[i] == key {
			m.vals[i] = value
			return
		}
	}
}

// Delete removes key, if present. The probe run following the vacated
// slot is compacted in place, so lookups never need tombstones.
func (m *Uint32Map) Delete(key uint32) {
	if m.count == 0 {
		return
	}
	i := m.home(key)
	for {
		if !m.live[i] {
			return
		}
		if m.keys[i] == key {
			break
		}
		i = (i + 1) & m.mask()
	}

	m.live[i] = false
	m.vals[i] = nil
	m.count--

	// Pull displaced entries back over the hole: an entry at j may
	// move to the hole at i only when i lies on its probe path, that
	// is, when the hole is nearer its home slot than j is.
	for j := (i + 1) & m.mask(); m.live[j]; j = (j + 1) & m.mask() {
		h := m.home(m.keys[j])
		if distance(h, i, m.mask()) < distance(h, j, m.mask()) {
			m.keys[i], m.vals[i], m.live[i] = m.keys[j], m.vals[j], true
			m.keys[j] = 0
			m.vals[j] = nil
			m.live[j] = false
			i = j
		}
	}
}

// distance is the cyclic probe distance from home to slot.
func distance(home, slot, mask uint32) uint32 {
	return (slot - home) & mask
}

// ForEach calls fn for every key/value pair, in table order.
func (m *Uint32Map) ForEach(fn func(uint32, unsafe.Pointer)) {
	for i, ok := range m.live {
		if ok {
			fn(m.keys[i], m.vals[i])
		}
	}
}

// Clear removes every entry but keeps the table's capacity.
func (m *Uint32Map) Clear() {
	clear(m.keys)
	clear(m.vals)
	clear(m.live)
	m.count = 0
}

// Len returns the number of entries.
func (m *Uint32Map) Len() int { return m.count }

func (m *Uint32Map) init(shift uint) {
	size := 1 << (32 - shift)
	m.keys = make([]uint32, size)
	m.vals = make([]unsafe.Pointer, size)
	m.live = make([]bool, size)
	m.shift = shift
}

func (m *Uint32Map) rehash(shift uint) {
	keys, vals, live := m.keys, m.vals, m.live
	m.init(shift)
	m.count = 0
	for i, ok := range live {
		if ok {
			m.Set(keys[i], vals[i])
		}
	}
}
