package params

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Parse decodes a YAML document into a Tree. Mapping keys keep their
// declaration order; numeric keys become strings ("1", "2").
func Parse(data []byte) (*Tree, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if doc.Kind == 0 {
		return NewMap(), nil
	}
	return fromNode(&doc)
}

func fromNode(n *yaml.Node) (*Tree, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return NewMap(), nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.MappingNode:
		t := NewMap()
		explicit := make(map[string]bool)
		var pending [][2]*yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if key.ShortTag() != "!!merge" {
				pending = append(pending, [2]*yaml.Node{key, val})
				continue
			}
			// "<<: *anchor" merges keys that are not set explicitly.
			sources := []*yaml.Node{val}
			if val.Kind == yaml.SequenceNode {
				sources = val.Content
			}
			for _, src := range sources {
				merged, err := fromNode(src)
				if err != nil {
					return nil, err
				}
				if merged.kind != KindMap {
					return nil, fmt.Errorf("line %d: merge key needs a mapping", key.Line)
				}
				for _, k := range merged.keys {
					if _, ok := t.fields[k]; !ok {
						t.Put(k, merged.fields[k])
					}
				}
			}
		}
		for _, kv := range pending {
			key := kv[0].Value
			if explicit[key] {
				return nil, fmt.Errorf("line %d: duplicate key %q", kv[0].Line, key)
			}
			explicit[key] = true
			child, err := fromNode(kv[1])
			if err != nil {
				return nil, err
			}
			t.Put(key, child)
		}
		return t, nil
	case yaml.SequenceNode:
		items := make([]*Tree, 0, len(n.Content))
		for _, c := range n.Content {
			child, err := fromNode(c)
			if err != nil {
				return nil, err
			}
			items = append(items, child)
		}
		return NewList(items...), nil
	case yaml.ScalarNode:
		v, err := scalarValue(n)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return NewScalar(v), nil
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", n.Line, n.Kind)
}

func scalarValue(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		return strconv.ParseBool(n.Value)
	case "!!int":
		i, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, err
		}
		return int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return f, nil
	}
	return n.Value, nil
}

// Node converts the tree back into a yaml.Node.
func (t *Tree) Node() *yaml.Node {
	if t == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	switch t.kind {
	case KindMap:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range t.keys {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				t.fields[k].Node())
		}
		return n
	case KindList:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range t.items {
			n.Content = append(n.Content, item.Node())
		}
		return n
	}
	n := &yaml.Node{Kind: yaml.ScalarNode}
	switch v := t.value.(type) {
	case nil:
		n.Tag, n.Value = "!!null", "null"
	case bool:
		n.Tag, n.Value = "!!bool", strconv.FormatBool(v)
	case int:
		n.Tag, n.Value = "!!int", strconv.Itoa(v)
	case float64:
		n.Tag, n.Value = "!!float", strconv.FormatFloat(v, 'g', -1, 64)
	default:
		n.Tag, n.Value = "!!str", FormatScalar(v)
	}
	return n
}

// MarshalYAML implements yaml.Marshaler.
func (t *Tree) MarshalYAML() (any, error) {
	return t.Node(), nil
}

// Decode decodes the subtree into v using yaml struct tags.
func (t *Tree) Decode(v any) error {
	return t.Node().Decode(v)
}
