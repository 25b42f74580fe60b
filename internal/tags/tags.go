package tags

import (
	"strconv"
	"unsafe"
)

// A Tag is a Key/Value label pair.
type Tag struct {
	Key   string
	Value string
}

// A TagSet is an ordered collection of Tags. Unlike a statsd tag map the
// position of each Tag is significant: two TagSets with the same pairs in a
// different order describe different label schemas.
type TagSet []Tag

// Keys returns the tag keys of t in order.
func (t TagSet) Keys() []string {
	if len(t) == 0 {
		return nil
	}
	a := make([]string, len(t))
	for i, p := range t {
		a[i] = p.Key
	}
	return a
}

// Values returns the tag values of t in order.
func (t TagSet) Values() []string {
	if len(t) == 0 {
		return nil
	}
	a := make([]string, len(t))
	for i, p := range t {
		a[i] = p.Value
	}
	return a
}

// SameKeys reports if t and keys have the same keys in the same order.
func (t TagSet) SameKeys(keys []string) bool {
	if len(t) != len(keys) {
		return false
	}
	for i, p := range t {
		if p.Key != keys[i] {
			return false
		}
	}
	return true
}

// ValuesKey returns a map key that uniquely identifies the tuple of values.
// Each value is length prefixed so values containing any byte sequence can
// not collide.
func ValuesKey(values []string) string {
	if len(values) == 0 {
		return ""
	}
	n := 0
	for _, v := range values {
		n += len(v) + 4
	}
	b := make([]byte, 0, n)
	for _, v := range values {
		b = strconv.AppendInt(b, int64(len(v)), 10)
		b = append(b, ':')
		b = append(b, v...)
	}
	return *(*string)(unsafe.Pointer(&b))
}

// Serialize serializes name and tags into a statsd stat. Keys are written in
// the order of the set and values have their invalid chars replaced.
func (t TagSet) Serialize(name string) string {
	const prefix = ".__"
	const sep = "="

	if len(t) == 0 {
		return name
	}

	n := (len(prefix)+len(sep))*len(t) + len(name)
	for _, p := range t {
		n += len(p.Key) + len(p.Value)
	}

	// CEV: this is same as strings.Builder, but is faster and simpler.
	b := make([]byte, 0, n)
	b = append(b, name...)
	for _, p := range t {
		if p.Key == "" || p.Value == "" {
			continue
		}
		b = append(b, prefix...)
		b = append(b, p.Key...)
		b = append(b, sep...)
		b = append(b, ReplaceChars(p.Value)...)
	}
	return *(*string)(unsafe.Pointer(&b))
}

// ReplaceChars replaces any invalid chars ([.:|]) in value s with '_'.
func ReplaceChars(s string) string {
	var buf []byte // lazily allocated
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', ':', '|':
			if buf == nil {
				buf = []byte(s)
			}
			buf[i] = '_'
		}
	}
	if buf == nil {
		return s
	}
	return *(*string)(unsafe.Pointer(&buf))
}

// SanitizeName replaces the chars ([.- ]) that may not appear in a metric
// name with '_'.
func SanitizeName(s string) string {
	var buf []byte // lazily allocated
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '-', ' ':
			if buf == nil {
				buf = []byte(s)
			}
			buf[i] = '_'
		}
	}
	if buf == nil {
		return s
	}
	return *(*string)(unsafe.Pointer(&buf))
}
