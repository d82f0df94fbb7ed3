// Package fdmap implements an FNV-1a keyed, chained map of file descriptor
// (int) to an opaque slot value, used only by the generic (non-epoll) poll
// backend to track a fd's index in the poll() array. It exists because that
// backend has no OS-side mechanism to hand back the original fd's
// associated state, unlike the epoll/kqueue user-data fields.
//
// Grounded on original_source/src/lib/hashmap.c: same FNV-1a constants,
// same bucket-chaining algorithm, nodes backed by a fixed-capacity pool.
package fdmap

import "github.com/kestrelhttp/reactorfs/internal/objpool"

const (
	fnvOffsetBasis32 uint32 = 0x811c9dc5
	fnvPrime32       uint32 = 0x01000193
)

func hashFD(fd int) uint32 {
	h := fnvOffsetBasis32
	// Hash the fd's raw bytes, little-endian, matching the C original's
	// byte-wise FNV-1a over an arbitrary key.
	v := uint32(fd)
	for i := 0; i < 4; i++ {
		h ^= uint32(byte(v >> (8 * i)))
		h *= fnvPrime32
	}
	return h
}

type node struct {
	fd    int
	slot  int
	inUse bool
	next  *node
}

// Map is a fixed-bucket-count chained map of fd -> poll-array slot index.
type Map struct {
	buckets []*node
	nodes   *objpool.Pool[node]
	count   int
}

// New creates a map with the given bucket count and node capacity. capacity
// bounds the number of simultaneously-registered fds.
func New(bucketCount, capacity int) *Map {
	if bucketCount <= 0 {
		bucketCount = 1
	}
	return &Map{
		buckets: make([]*node, bucketCount),
		nodes:   objpool.New[node](capacity),
	}
}

// Put associates fd with slot. Returns false if the map's node capacity is
// exhausted, or fd is already present.
func (m *Map) Put(fd, slot int) bool {
	if _, ok := m.Get(fd); ok {
		return false
	}
	n, ok := m.nodes.Acquire()
	if !ok {
		return false
	}
	b := int(hashFD(fd)) % len(m.buckets)
	if b < 0 {
		b += len(m.buckets)
	}
	*n = node{fd: fd, slot: slot, inUse: true, next: m.buckets[b]}
	m.buckets[b] = n
	m.count++
	return true
}

// Get returns the slot associated with fd.
func (m *Map) Get(fd int) (int, bool) {
	if m.count == 0 {
		return 0, false
	}
	b := int(hashFD(fd)) % len(m.buckets)
	if b < 0 {
		b += len(m.buckets)
	}
	for n := m.buckets[b]; n != nil; n = n.next {
		if n.fd == fd {
			return n.slot, true
		}
	}
	return 0, false
}

// Remove deletes fd's entry, if present.
func (m *Map) Remove(fd int) {
	if m.count == 0 {
		return
	}
	b := int(hashFD(fd)) % len(m.buckets)
	if b < 0 {
		b += len(m.buckets)
	}
	tracer := &m.buckets[b]
	for n := *tracer; n != nil; n = *tracer {
		if n.fd == fd {
			*tracer = n.next
			m.nodes.Release(n)
			m.count--
			return
		}
		tracer = &n.next
	}
}

// Len returns the number of entries currently stored.
func (m *Map) Len() int { return m.count }
