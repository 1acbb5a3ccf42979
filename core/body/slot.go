package body

import (
	"reflect"
	"sync"
	"unsafe"
)

// Slot holds the current body of one response and the generation of that
// assignment. Generations only grow; a session whose captured generation is
// behind the slot's is stale.
type Slot struct {
	registry *Registry

	// gate orders chunk writes against generation changes: a write that
	// passed its generation check finishes before the next assignment lands.
	gate sync.Mutex

	mu    sync.Mutex
	value any
	src   Source
	gen   uint64
}

// NewSlot creates an empty slot. A nil registry uses a default one.
func NewSlot(registry *Registry) *Slot {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Slot{registry: registry}
}

// Assign adapts v, makes it current and returns the displaced source, which
// the caller must retire. Assign(nil) clears the slot. On error the slot is
// left untouched.
//
// Assigning the value that is already current is a no-op. Sameness is
// identity for anything that can hold a resource: pointers, channels and
// the backing array of a []byte. Plain strings compare by content. Other
// values, such as struct descriptors of external objects, always replace
// the current body even when equal.
//
// Assign waits for a chunk write of the current body that is in progress.
// A sink must not assign bodies from inside Write.
func (s *Slot) Assign(v any) (Source, error) {
	s.mu.Lock()
	same := s.holds(v)
	s.mu.Unlock()
	if same {
		return nil, nil
	}

	src, err := s.registry.Adapt(v)
	if err != nil {
		return nil, err
	}

	s.gate.Lock()
	defer s.gate.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holds(v) {
		return nil, nil
	}
	prev := s.src
	s.gen++
	s.src = src
	if src != nil {
		s.value = v
	} else {
		s.value = nil
	}
	return prev, nil
}

// Current returns the active source and its generation.
func (s *Slot) Current() (Source, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src, s.gen, s.src != nil
}

// Generation returns the generation of the latest assignment.
func (s *Slot) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Kind returns the kind of the current body.
func (s *Slot) Kind() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.src == nil {
		return KindEmpty
	}
	return s.src.Kind()
}

// holds reports whether v is already the slot's content. Clearing an empty
// slot counts as holding it.
func (s *Slot) holds(v any) bool {
	if s.src == nil {
		return v == nil
	}
	return sameValue(s.value, v)
}

// writeCurrent runs write only if gen is still current, and keeps the
// generation from changing until write returns. It reports whether write ran.
func (s *Slot) writeCurrent(gen uint64, write func() error) (bool, error) {
	s.gate.Lock()
	defer s.gate.Unlock()
	if s.Generation() != gen {
		return false, nil
	}
	return true, write()
}

// finalize clears the slot if gen is still current and returns the cleared
// source. It reports false for stale generations and leaves the slot alone.
func (s *Slot) finalize(gen uint64) (Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil, false
	}
	src := s.src
	s.src = nil
	s.value = nil
	return src, true
}

// sameValue compares body values by identity.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	switch av := a.(type) {
	case []byte:
		bv, ok := b.([]byte)
		return ok && len(av) == len(bv) && cap(av) == cap(bv) &&
			unsafe.SliceData(av) == unsafe.SliceData(bv)
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	}

	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	switch ta.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return a == b
	default:
		return false
	}
}
