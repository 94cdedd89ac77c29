package knowledge

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Id kinds handed to an IDAllocator.
const (
	KindSymptom = "s"
	KindRule    = "r"
)

// IDAllocator proposes ids for new knowledge base entries. Proposals may
// collide with existing ids; the base keeps asking until one does not.
type IDAllocator interface {
	Next(kind string) string
}

// idObserver is implemented by allocators that want to hear about ids the
// base already holds.
type idObserver interface {
	Observe(id string)
}

// SequenceAllocator yields kind-prefixed monotonic ids: s1, s2, r1, ...
type SequenceAllocator struct {
	mu       sync.Mutex
	counters map[string]int
}

// NewSequenceAllocator returns an allocator with all counters at zero.
func NewSequenceAllocator() *SequenceAllocator {
	return &SequenceAllocator{counters: make(map[string]int)}
}

func (a *SequenceAllocator) Next(kind string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters[kind]++
	return kind + strconv.Itoa(a.counters[kind])
}

// Observe moves the counter of id's kind past id, so an existing s40 makes
// the next symptom proposal s41.
func (a *SequenceAllocator) Observe(id string) {
	for _, kind := range []string{KindSymptom, KindRule} {
		rest, ok := strings.CutPrefix(id, kind)
		if !ok || !allDigits(rest) {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		a.mu.Lock()
		if n > a.counters[kind] {
			a.counters[kind] = n
		}
		a.mu.Unlock()
	}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// UUIDAllocator yields kind-prefixed random UUIDs.
type UUIDAllocator struct{}

func (UUIDAllocator) Next(kind string) string {
	return kind + "_" + uuid.New().String()
}

// NewAllocator maps a configured scheme name to an allocator.
// Unknown schemes fall back to the sequence allocator.
func NewAllocator(scheme string) IDAllocator {
	if scheme == "uuid" {
		return UUIDAllocator{}
	}
	return NewSequenceAllocator()
}
