package elements

import (
	"errors"
	"fmt"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/mesh-intelligence/canvas/pkg/types"
)

// Spec describes one element type.
type Spec struct {
	Type types.ElementType

	// Defaults is the complete property record for the type.
	Defaults map[string]any

	// Mergeable lists top-level keys whose default is a nested record.
	// Overrides of these keys merge one level deep instead of replacing.
	Mergeable []string

	// Sanitized lists string keys that may carry markup. They are stored as
	// written and cleaned by Markup when rendered.
	Sanitized []string

	newProps func() Props
}

func (s *Spec) isMergeable(key string) bool {
	for _, k := range s.Mergeable {
		if k == key {
			return true
		}
	}
	return false
}

// Registry errors.
var (
	ErrDuplicateType      = errors.New("element type registered twice")
	ErrUndeclaredNested   = errors.New("nested default is not declared mergeable")
	ErrMergeableNotNested = errors.New("mergeable key has no nested default")
)

// Registry maps element types to their specs.
type Registry struct {
	specs     map[types.ElementType]*Spec
	order     []types.ElementType
	sanitizer *bluemonday.Policy
}

// newRegistry checks that every nested default is declared mergeable, and
// the reverse, so a type that gains a nested record cannot silently fall
// back to wholesale replacement.
func newRegistry(specs []*Spec) (*Registry, error) {
	r := &Registry{
		specs:     make(map[types.ElementType]*Spec, len(specs)),
		sanitizer: bluemonday.UGCPolicy(),
	}
	for _, s := range specs {
		if _, ok := r.specs[s.Type]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateType, s.Type)
		}
		for key, v := range s.Defaults {
			if _, nested := v.(map[string]any); nested && !s.isMergeable(key) {
				return nil, fmt.Errorf("%w: %s.%s", ErrUndeclaredNested, s.Type, key)
			}
		}
		for _, key := range s.Mergeable {
			if _, nested := s.Defaults[key].(map[string]any); !nested {
				return nil, fmt.Errorf("%w: %s.%s", ErrMergeableNotNested, s.Type, key)
			}
		}
		r.specs[s.Type] = s
		r.order = append(r.order, s.Type)
	}
	return r, nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := newRegistry(builtinSpecs())
	if err != nil {
		panic(fmt.Sprintf("elements: built-in catalog: %v", err))
	}
	return r
})

// Default returns the registry of built-in element types.
func Default() *Registry {
	return defaultRegistry()
}

// Lookup returns the spec for t, or ErrUnknownElementType.
func (r *Registry) Lookup(t types.ElementType) (*Spec, error) {
	s, ok := r.specs[t]
	if !ok {
		return nil, fmt.Errorf("%w %q", types.ErrUnknownElementType, t)
	}
	return s, nil
}

// Types returns the registered element types in catalog order.
func (r *Registry) Types() []types.ElementType {
	out := make([]types.ElementType, len(r.order))
	copy(out, r.order)
	return out
}

// Defaults returns a fresh copy of t's default property record.
func (r *Registry) Defaults(t types.ElementType) (map[string]any, error) {
	s, err := r.Lookup(t)
	if err != nil {
		return nil, err
	}
	return cloneMap(s.Defaults), nil
}
