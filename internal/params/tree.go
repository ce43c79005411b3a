// Package params provides the hierarchical parameter tree used by every part
// of the simulation.
//
// A Tree is loaded from YAML (defaults, an optional setting, then user files),
// keeps mapping keys in declaration order, and is addressed with dotted or
// pipe-separated paths ("demographics.Black.ppl", "demographics|Black|ppl").
// Accessors follow the viper convention: a missing path yields the zero value.
// Use Lookup when presence matters.
package params

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the shape of a Tree node.
type Kind int

const (
	KindMap Kind = iota
	KindList
	KindScalar
)

func (k Kind) String() string {
	switch k {
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "scalar"
	}
}

// Tree is a node of the parameter tree.
type Tree struct {
	kind   Kind
	keys   []string
	fields map[string]*Tree
	items  []*Tree
	value  any // string, int, float64, bool or nil
}

// NewMap returns an empty map node.
func NewMap() *Tree {
	return &Tree{kind: KindMap, fields: make(map[string]*Tree)}
}

// NewList returns a list node holding items.
func NewList(items ...*Tree) *Tree {
	return &Tree{kind: KindList, items: items}
}

// NewScalar returns a scalar node.
func NewScalar(v any) *Tree {
	return &Tree{kind: KindScalar, value: normalizeScalar(v)}
}

// Kind returns the node kind.
func (t *Tree) Kind() Kind {
	if t == nil {
		return KindMap
	}
	return t.kind
}

// SplitPath splits a dotted or pipe-separated path into its segments.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.FieldsFunc(path, func(r rune) bool { return r == '.' || r == '|' })
}

// Lookup returns the node at path.
func (t *Tree) Lookup(path string) (*Tree, bool) {
	return t.lookup(SplitPath(path))
}

func (t *Tree) lookup(segments []string) (*Tree, bool) {
	cur := t
	for _, seg := range segments {
		if cur == nil {
			return nil, false
		}
		switch cur.kind {
		case KindMap:
			next, ok := cur.fields[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case KindList:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(cur.items) {
				return nil, false
			}
			cur = cur.items[idx]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// Has reports whether path exists.
func (t *Tree) Has(path string) bool {
	_, ok := t.Lookup(path)
	return ok
}

// Sub returns the subtree at path. A missing path yields an empty map so
// calls can be chained. The returned node is shared, not copied.
func (t *Tree) Sub(path string) *Tree {
	if n, ok := t.Lookup(path); ok {
		return n
	}
	return NewMap()
}

// Value returns the scalar value at path, or nil.
func (t *Tree) Value(path string) any {
	n, ok := t.Lookup(path)
	if !ok || n.kind != KindScalar {
		return nil
	}
	return n.value
}

// Float returns the number at path.
func (t *Tree) Float(path string) float64 {
	f, _ := toFloat(t.Value(path))
	return f
}

// Int returns the number at path truncated to an int.
func (t *Tree) Int(path string) int {
	switch v := t.Value(path).(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// Bool returns the boolean at path.
func (t *Tree) Bool(path string) bool {
	switch v := t.Value(path).(type) {
	case bool:
		return v
	case int:
		return v != 0
	case float64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// String returns the scalar at path formatted as a string.
func (t *Tree) String(path string) string {
	v := t.Value(path)
	if v == nil {
		return ""
	}
	return FormatScalar(v)
}

// Strings returns the list at path as strings. A scalar is returned as a
// one-element list.
func (t *Tree) Strings(path string) []string {
	n, ok := t.Lookup(path)
	if !ok {
		return nil
	}
	switch n.kind {
	case KindList:
		out := make([]string, 0, len(n.items))
		for _, item := range n.items {
			if item.kind == KindScalar && item.value != nil {
				out = append(out, FormatScalar(item.value))
			}
		}
		return out
	case KindScalar:
		if n.value == nil {
			return nil
		}
		return []string{FormatScalar(n.value)}
	}
	return nil
}

// Keys returns the keys of a map node in declaration order.
func (t *Tree) Keys() []string {
	if t == nil || t.kind != KindMap {
		return nil
	}
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// SortedKeys returns map keys ordered numerically when every key is a number,
// lexically otherwise. Used for bins and distribution vars ("1", "2", "10").
func (t *Tree) SortedKeys() []string {
	keys := t.Keys()
	numeric := true
	for _, k := range keys {
		if _, err := strconv.ParseFloat(k, 64); err != nil {
			numeric = false
			break
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if numeric {
			a, _ := strconv.ParseFloat(keys[i], 64)
			b, _ := strconv.ParseFloat(keys[j], 64)
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Field returns the direct child key of a map node.
func (t *Tree) Field(key string) (*Tree, bool) {
	if t == nil || t.kind != KindMap {
		return nil, false
	}
	n, ok := t.fields[key]
	return n, ok
}

// Child returns the direct child key of a map node without splitting key on
// path separators, so keys such as "calibration|acquisition" can be reached.
// A missing key yields an empty map.
func (t *Tree) Child(key string) *Tree {
	if n, ok := t.Field(key); ok {
		return n
	}
	return NewMap()
}

// Items returns the children of a list node.
func (t *Tree) Items() []*Tree {
	if t == nil || t.kind != KindList {
		return nil
	}
	return t.items
}

// Len returns the number of children of a map or list node.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	switch t.kind {
	case KindMap:
		return len(t.keys)
	case KindList:
		return len(t.items)
	}
	return 0
}

// Scalar returns the value of a scalar node.
func (t *Tree) Scalar() any {
	if t == nil || t.kind != KindScalar {
		return nil
	}
	return t.value
}

// Set replaces the value at an existing path. Setting a path that does not
// exist is an error wrapping ErrUnknownParam.
func (t *Tree) Set(path string, v any) error {
	n, ok := t.Lookup(path)
	if !ok {
		return &ConfigError{Path: path, Err: ErrUnknownParam}
	}
	if n.kind != KindScalar {
		return &ConfigError{Path: path, Err: ErrInvalidParam, Reason: fmt.Sprintf("cannot set %s node", n.kind)}
	}
	n.value = normalizeScalar(v)
	return nil
}

// Put sets a map child, creating it when missing.
func (t *Tree) Put(key string, child *Tree) {
	if t.kind != KindMap {
		return
	}
	if t.fields == nil {
		t.fields = make(map[string]*Tree)
	}
	if _, ok := t.fields[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.fields[key] = child
}

// Delete removes a map child.
func (t *Tree) Delete(key string) {
	if t == nil || t.kind != KindMap {
		return
	}
	if _, ok := t.fields[key]; !ok {
		return
	}
	delete(t.fields, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

// Scale multiplies the number at path by factor.
func (t *Tree) Scale(path string, factor float64) error {
	n, ok := t.Lookup(path)
	if !ok {
		return &ConfigError{Path: path, Err: ErrUnknownParam}
	}
	f, ok := toFloat(n.Scalar())
	if !ok || n.kind != KindScalar {
		return &ConfigError{Path: path, Err: ErrInvalidParam, Reason: "scaled parameter is not numeric"}
	}
	n.value = f * factor
	return nil
}

// Clone returns a deep copy.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	c := &Tree{kind: t.kind, value: t.value}
	if t.kind == KindMap {
		c.keys = make([]string, len(t.keys))
		copy(c.keys, t.keys)
		c.fields = make(map[string]*Tree, len(t.fields))
		for k, v := range t.fields {
			c.fields[k] = v.Clone()
		}
	}
	if t.kind == KindList {
		c.items = make([]*Tree, len(t.items))
		for i, item := range t.items {
			c.items[i] = item.Clone()
		}
	}
	return c
}

// Walk calls fn for every scalar leaf with its dotted path.
func (t *Tree) Walk(fn func(path string, leaf *Tree)) {
	t.walk("", fn)
}

func (t *Tree) walk(prefix string, fn func(string, *Tree)) {
	if t == nil {
		return
	}
	join := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + "." + k
	}
	switch t.kind {
	case KindMap:
		for _, k := range t.keys {
			t.fields[k].walk(join(k), fn)
		}
	case KindList:
		for i, item := range t.items {
			item.walk(join(strconv.Itoa(i)), fn)
		}
	default:
		fn(prefix, t)
	}
}

// FormatScalar renders a scalar value the way it is written in reports.
func FormatScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

func normalizeScalar(v any) any {
	switch x := v.(type) {
	case int8:
		return int(x)
	case int16:
		return int(x)
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	case float32:
		return float64(x)
	}
	return v
}
