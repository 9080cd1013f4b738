// Package fieldspec parses namespaced field identifiers and resolves
// their transform chains.
package fieldspec

import (
	"fmt"
	"strings"
)

// BaseNamespace is assumed when a field identifier carries no namespace prefix.
const BaseNamespace = "base"

// FieldSpec is a parsed field identifier of the form
// "[namespace:]field[|transform]*". Immutable once parsed.
type FieldSpec struct {
	Namespace  string
	Field      string
	Transforms []Transform

	transformNames []string
}

// FullName returns the namespace-qualified field name without transforms,
// e.g. "assoc:pvalue".
func (f FieldSpec) FullName() string {
	return f.Namespace + ":" + f.Field
}

// OutputName returns the name a parsed record stores this field under:
// the qualified name plus the original transform suffix, so that
// differently-transformed requests for the same field do not collide.
func (f FieldSpec) OutputName() string {
	if len(f.transformNames) == 0 {
		return f.FullName()
	}
	return f.FullName() + "|" + strings.Join(f.transformNames, "|")
}

// Apply runs the transform chain left to right over v. With no transforms
// the value passes through unchanged.
func (f FieldSpec) Apply(v interface{}) interface{} {
	for _, t := range f.Transforms {
		v = t.Fn(v)
	}
	return v
}

// Parse splits a raw field identifier into namespace, field and transform
// chain. The namespace before the first ':' defaults to BaseNamespace when
// absent. Transform names are resolved against reg immediately; an unknown
// name is a configuration error and fails fast.
func Parse(raw string, reg *Registry) (FieldSpec, error) {
	if raw == "" {
		return FieldSpec{}, fmt.Errorf("fieldspec: empty field identifier")
	}

	ns := BaseNamespace
	rest := raw
	if i := strings.Index(raw, ":"); i >= 0 {
		ns = raw[:i]
		rest = raw[i+1:]
		if ns == "" {
			ns = BaseNamespace
		}
	}

	parts := strings.Split(rest, "|")
	field := parts[0]
	if field == "" {
		return FieldSpec{}, fmt.Errorf("fieldspec: %q has no field name", raw)
	}

	spec := FieldSpec{Namespace: ns, Field: field}
	for _, name := range parts[1:] {
		t, err := reg.Get(name)
		if err != nil {
			return FieldSpec{}, fmt.Errorf("fieldspec: %q: %w", raw, err)
		}
		spec.Transforms = append(spec.Transforms, t)
		spec.transformNames = append(spec.transformNames, name)
	}
	return spec, nil
}

// ParseAll parses a list of raw field identifiers, failing on the first
// invalid one.
func ParseAll(raw []string, reg *Registry) ([]FieldSpec, error) {
	specs := make([]FieldSpec, 0, len(raw))
	for _, r := range raw {
		spec, err := Parse(r, reg)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
