package model

import "sort"

// Metadata is a read-only key/value view supplied by the caller (user id, session id, ...).
// Every mutating helper returns a new value.
type Metadata struct {
	values map[string]string
}

func NewMetadata(values map[string]string) Metadata {
	if len(values) == 0 {
		return Metadata{}
	}
	copied := make(map[string]string, len(values))
	for key, value := range values {
		copied[key] = value
	}
	return Metadata{values: copied}
}

func (m Metadata) Get(key string) (string, bool) {
	value, ok := m.values[key]
	return value, ok
}

func (m Metadata) Len() int {
	return len(m.values)
}

// Keys returns the keys in lexical order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for key := range m.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (m Metadata) With(key, value string) Metadata {
	copied := m.Map()
	copied[key] = value
	return Metadata{values: copied}
}

// Merge returns m overlaid with other. Keys in other win.
func (m Metadata) Merge(other Metadata) Metadata {
	if other.Len() == 0 {
		return m
	}
	copied := m.Map()
	for key, value := range other.values {
		copied[key] = value
	}
	return Metadata{values: copied}
}

// Map returns a copy of the underlying values.
func (m Metadata) Map() map[string]string {
	copied := make(map[string]string, len(m.values)+1)
	for key, value := range m.values {
		copied[key] = value
	}
	return copied
}
