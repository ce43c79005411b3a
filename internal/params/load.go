package params

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// TemplateKey marks the template entry of a map whose keys are chosen by the
// user (races, bond types, locations, demographics, ...). Every user entry is
// merged onto a copy of the template, so unknown keys inside entries are still
// detected.
const TemplateKey = "__default__"

//go:embed defaults.yml
var defaultsYAML []byte

//go:embed settings/*.yml
var settingsFS embed.FS

// Defaults returns the parameter defaults, templates included.
func Defaults() (*Tree, error) {
	t, err := Parse(defaultsYAML)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	return t, nil
}

// Settings lists the names of the embedded settings.
func Settings() []string {
	entries, err := settingsFS.ReadDir("settings")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yml"))
	}
	sort.Strings(names)
	return names
}

// readSetting resolves a setting by embedded name or file path.
func readSetting(setting string) ([]byte, error) {
	if data, err := settingsFS.ReadFile("settings/" + setting + ".yml"); err == nil {
		return data, nil
	}
	data, err := os.ReadFile(setting)
	if err != nil {
		return nil, fmt.Errorf("setting %q is neither embedded (%s) nor a readable file: %w",
			setting, strings.Join(Settings(), ", "), err)
	}
	return data, nil
}

// Load builds the final parameter tree: defaults, then the setting (an
// embedded setting name or a path; empty for none), then each params file in
// order. The result is validated.
func Load(setting string, files ...string) (*Tree, error) {
	overlays := make([][]byte, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(filepath.Clean(f))
		if err != nil {
			return nil, fmt.Errorf("reading params file: %w", err)
		}
		overlays = append(overlays, data)
	}
	return LoadWith(setting, overlays...)
}

// LoadWith is Load with in-memory params documents in place of files.
func LoadWith(setting string, overlays ...[]byte) (*Tree, error) {
	docs := make([][]byte, 0, len(overlays)+1)
	if setting != "" {
		data, err := readSetting(setting)
		if err != nil {
			return nil, err
		}
		docs = append(docs, data)
	}
	return LoadBytes(append(docs, overlays...)...)
}

// LoadBytes is Load over in-memory YAML documents.
func LoadBytes(overlays ...[]byte) (*Tree, error) {
	base, err := Defaults()
	if err != nil {
		return nil, err
	}
	for i, data := range overlays {
		over, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("overlay %d: %w", i, err)
		}
		base, err = Merge(base, over)
		if err != nil {
			return nil, err
		}
	}
	final := Finalize(base)
	if err := Validate(final); err != nil {
		return nil, err
	}
	return final, nil
}

// Merge overlays over onto base. Keys unknown to base (or to the template of
// an open map) are rejected. Lists replace lists. Neither input is modified.
func Merge(base, over *Tree) (*Tree, error) {
	return merge(base.Clone(), over, "")
}

func merge(base, over *Tree, path string) (*Tree, error) {
	if over == nil {
		return base, nil
	}
	if base == nil {
		return over.Clone(), nil
	}
	switch base.kind {
	case KindMap:
		if over.kind == KindScalar && over.value == nil {
			return base, nil
		}
		if over.kind != KindMap {
			return nil, invalid(path, "expected a map, got a %s", over.kind)
		}
		tmpl, open := base.fields[TemplateKey]
		for _, key := range over.keys {
			child := over.fields[key]
			sub := join(path, key)
			if key == TemplateKey {
				return nil, invalid(sub, "%s is reserved", TemplateKey)
			}
			existing, ok := base.fields[key]
			switch {
			case ok:
				merged, err := merge(existing, child, sub)
				if err != nil {
					return nil, err
				}
				base.fields[key] = merged
			case open:
				merged, err := merge(tmpl.Clone(), child, sub)
				if err != nil {
					return nil, err
				}
				base.Put(key, merged)
			default:
				return nil, &ConfigError{Path: sub, Err: ErrUnknownParam}
			}
		}
		return base, nil
	case KindList:
		if over.kind == KindScalar && over.value == nil {
			return NewList(), nil
		}
		if over.kind != KindList {
			return nil, invalid(path, "expected a list, got a %s", over.kind)
		}
		return over.Clone(), nil
	}

	// Scalars: a null default accepts anything, otherwise the shape must match.
	if base.value == nil {
		return over.Clone(), nil
	}
	if over.kind != KindScalar {
		return nil, invalid(path, "expected a scalar, got a %s", over.kind)
	}
	if over.value == nil {
		return over.Clone(), nil
	}
	switch base.value.(type) {
	case bool:
		if _, ok := over.value.(bool); !ok {
			return nil, invalid(path, "expected a boolean, got %v", over.value)
		}
	case int, float64:
		if _, ok := toFloat(over.value); !ok {
			return nil, invalid(path, "expected a number, got %v", over.value)
		}
		if _, isStr := over.value.(string); isStr {
			return nil, invalid(path, "expected a number, got %q", over.value)
		}
	}
	return over.Clone(), nil
}

// Finalize removes template entries, producing the tree the simulation reads.
func Finalize(t *Tree) *Tree {
	out := t.Clone()
	stripTemplates(out)
	return out
}

func stripTemplates(t *Tree) {
	if t == nil {
		return
	}
	switch t.kind {
	case KindMap:
		t.Delete(TemplateKey)
		for _, k := range t.keys {
			stripTemplates(t.fields[k])
		}
	case KindList:
		for _, item := range t.items {
			stripTemplates(item)
		}
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
