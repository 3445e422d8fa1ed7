package service

import (
	"net/http"
	"sort"
)

// Headers is a name to ordered-values view over one header collection.
// Names are matched case-insensitively.
type Headers interface {
	// Names returns every header name, sorted.
	Names() []string
	// Get returns all values for name in order. The result may be empty.
	Get(name string) []string
	// Add appends value to the values for name.
	Add(name, value string)
	// Set replaces all values for name. An empty list removes the name.
	Set(name string, values []string)
	// Remove deletes name entirely.
	Remove(name string)
}

// HeaderMap adapts an http.Header to Headers. It holds no state of its
// own; every call reads or mutates the wrapped header.
type HeaderMap struct {
	h http.Header
}

// WrapHeader returns a Headers view over h.
func WrapHeader(h http.Header) *HeaderMap {
	if h == nil {
		h = http.Header{}
	}
	return &HeaderMap{h: h}
}

func (m *HeaderMap) Names() []string {
	names := make([]string, 0, len(m.h))
	for name := range m.h {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *HeaderMap) Get(name string) []string {
	values := m.h.Values(name)
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func (m *HeaderMap) Add(name, value string) {
	m.h.Add(name, value)
}

func (m *HeaderMap) Set(name string, values []string) {
	if len(values) == 0 {
		m.h.Del(name)
		return
	}
	m.h[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
}

func (m *HeaderMap) Remove(name string) {
	m.h.Del(name)
}

// FirstValue returns the first value of name, or "" when absent.
func FirstValue(h Headers, name string) string {
	if values := h.Get(name); len(values) > 0 {
		return values[0]
	}
	return ""
}
