package sync

import "sync"

// Map is a typed map guarded by a RWMutex.
type Map[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{m: make(map[K]V)}
}

func (m *Map[K, V]) Load(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.m[key]
	return v, ok
}

func (m *Map[K, V]) Store(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.m[key] = value
}

func (m *Map[K, V]) Delete(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.m, key)
}

// LoadOrStore keeps an existing entry (loaded=true) or stores value.
func (m *Map[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.m[key]; ok {
		return cur, true
	}
	m.m[key] = value
	return value, false
}

func (m *Map[K, V]) LoadAndDelete(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.m[key]
	if ok {
		delete(m.m, key)
	}
	return v, ok
}

// CompareAndDelete removes key only while it still maps to old.
// V must be comparable at runtime.
func (m *Map[K, V]) CompareAndDelete(key K, old V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.m[key]
	if !ok || any(cur) != any(old) {
		return false
	}
	delete(m.m, key)
	return true
}

func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.m)
}

// Keys returns a snapshot of the keys in no particular order.
func (m *Map[K, V]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]K, 0, len(m.m))
	for k := range m.m {
		keys = append(keys, k)
	}
	return keys
}

// Values returns a snapshot of the values in no particular order.
func (m *Map[K, V]) Values() []V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vals := make([]V, 0, len(m.m))
	for _, v := range m.m {
		vals = append(vals, v)
	}
	return vals
}

// View reads and writes the map while WithLock holds its write lock.
// It must not escape the callback.
type View[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Delete(key K)
}

type lockedView[K comparable, V any] map[K]V

func (v lockedView[K, V]) Get(key K) (V, bool) {
	val, ok := v[key]
	return val, ok
}

func (v lockedView[K, V]) Set(key K, value V) { v[key] = value }

func (v lockedView[K, V]) Delete(key K) { delete(v, key) }

// WithLock runs f under the write lock so several reads and writes apply
// as one step. The lock is released even if f panics.
func (m *Map[K, V]) WithLock(f func(view View[K, V])) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f(lockedView[K, V](m.m))
}
