package elements

import "github.com/mesh-intelligence/canvas/pkg/types"

// Resolve returns t's effective property record: the defaults with every
// override applied. Mergeable keys merge one level deep. Unknown keys pass
// through. A nil override keeps the default.
func (r *Registry) Resolve(t types.ElementType, overrides map[string]any) (map[string]any, error) {
	s, err := r.Lookup(t)
	if err != nil {
		return nil, err
	}
	out := cloneMap(s.Defaults)
	for key, v := range overrides {
		if v == nil {
			continue
		}
		if s.isMergeable(key) {
			if nested, ok := mergeNested(out[key], v, false); ok {
				out[key] = nested
				continue
			}
		}
		out[key] = cloneValue(v)
	}
	return out, nil
}

// Merge applies patch to an element's stored overrides and returns the new
// overrides. Top-level keys replace, mergeable keys merge one level deep,
// and a nil value removes the stored override so the key falls back to its
// default. base is not modified.
func (r *Registry) Merge(t types.ElementType, base, patch map[string]any) (map[string]any, error) {
	s, err := r.Lookup(t)
	if err != nil {
		return nil, err
	}
	out := cloneMap(base)
	for key, v := range patch {
		if v == nil {
			delete(out, key)
			continue
		}
		if s.isMergeable(key) {
			if nested, ok := mergeNested(out[key], v, true); ok {
				out[key] = nested
				continue
			}
		}
		out[key] = cloneValue(v)
	}
	return out, nil
}

// Markup returns the type's markup-bearing fields of an effective record,
// cleaned for embedding in a page. Fields that are not strings are skipped.
// The record itself is not modified.
func (r *Registry) Markup(t types.ElementType, effective map[string]any) (map[string]string, error) {
	s, err := r.Lookup(t)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(s.Sanitized))
	for _, key := range s.Sanitized {
		str, ok := effective[key].(string)
		if !ok {
			continue
		}
		out[key] = r.sanitizer.Sanitize(str)
	}
	return out, nil
}

// mergeNested merges patch into base when patch is a record. It reports
// false when patch is not a record, in which case the caller replaces.
// With dropNil, nil entries delete keys; otherwise they are skipped.
func mergeNested(base, patch any, dropNil bool) (map[string]any, bool) {
	pm, ok := patch.(map[string]any)
	if !ok {
		return nil, false
	}
	out, _ := cloneValue(base).(map[string]any)
	if out == nil {
		out = make(map[string]any, len(pm))
	}
	for k, v := range pm {
		if v == nil {
			if dropNil {
				delete(out, k)
			}
			continue
		}
		out[k] = cloneValue(v)
	}
	return out, true
}

// cloneMap deep-copies a property record. A nil map yields an empty one.
func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(x))
		copy(out, x)
		return out
	default:
		return v
	}
}

// Clone deep-copies a property record. Exported for packages that store
// records produced here.
func Clone(m map[string]any) map[string]any {
	return cloneMap(m)
}
