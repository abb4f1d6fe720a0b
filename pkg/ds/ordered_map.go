package ds

import (
	"encoding/json"
	"slices"
)

// OrderedMap is an immutable map that remembers insertion order.
// Every write returns a new map and leaves the receiver untouched, so a value
// can be shared between goroutines without locking.
type OrderedMap[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

func NewOrderedMap[K comparable, V any]() OrderedMap[K, V] {
	return OrderedMap[K, V]{values: make(map[K]V)}
}

// Set returns a copy with key set to value. A new key is appended at the end,
// an existing key keeps its position.
func (m OrderedMap[K, V]) Set(key K, value V) OrderedMap[K, V] {
	values := make(map[K]V, len(m.values)+1)
	for k, v := range m.values {
		values[k] = v
	}
	keys := m.keys
	if _, exists := m.values[key]; !exists {
		keys = append(slices.Clip(m.keys), key)
	}
	values[key] = value
	return OrderedMap[K, V]{keys: keys, values: values}
}

// Delete returns a copy without key. The relative order of the remaining keys is unchanged.
func (m OrderedMap[K, V]) Delete(key K) OrderedMap[K, V] {
	if _, exists := m.values[key]; !exists {
		return m
	}
	keys := make([]K, 0, len(m.keys)-1)
	values := make(map[K]V, len(m.values)-1)
	for _, k := range m.keys {
		if k == key {
			continue
		}
		keys = append(keys, k)
		values[k] = m.values[k]
	}
	return OrderedMap[K, V]{keys: keys, values: values}
}

func (m OrderedMap[K, V]) Get(key K) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m OrderedMap[K, V]) Has(key K) bool {
	_, ok := m.values[key]
	return ok
}

func (m OrderedMap[K, V]) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m OrderedMap[K, V]) Keys() []K {
	return slices.Clone(m.keys)
}

// Values returns the values in insertion order.
func (m OrderedMap[K, V]) Values() []V {
	out := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.values[k])
	}
	return out
}

// Range iterates in insertion order until fn returns false.
func (m OrderedMap[K, V]) Range(fn func(key K, value V) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// MarshalJSON encodes the map as an array of values in insertion order.
func (m OrderedMap[K, V]) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Values())
}
