// Package entity holds the per-entity field registry: typed accessor and mutator functions
// registered once at startup so callers can read and write fields by name without reflection.
//
// Values crossing the registry boundary use one canonical Go type per schema field type:
// string, int, int64, float64, bool, time.Time, uuid.UUID, and string names for enums.
// A nil value means SQL NULL.
package entity

import (
	"fmt"
	"sort"
	"strings"
)

type Field struct {
	Name string
	get  func(record any) any
	set  func(record any, value any) error
}

type Binding struct {
	entity     string
	newRecord  func() any
	primaryKey string
	fields     map[string]Field
	order      []string
}

// FieldBinding describes how one field of E is read and written.
type FieldBinding[E any] struct {
	name string
	get  func(*E) any
	set  func(*E, any) error
}

// Value binds a non-nullable field. Setting nil stores the zero value.
func Value[E any, V any](name string, ref func(*E) *V) FieldBinding[E] {
	return FieldBinding[E]{
		name: name,
		get:  func(e *E) any { return *ref(e) },
		set: func(e *E, value any) error {
			if value == nil {
				var zero V
				*ref(e) = zero
				return nil
			}
			typed, ok := value.(V)
			if !ok {
				var zero V
				return fmt.Errorf("field %s: expected %T, got %T", name, zero, value)
			}
			*ref(e) = typed
			return nil
		},
	}
}

// Optional binds a nullable field stored behind a pointer.
func Optional[E any, V any](name string, ref func(*E) **V) FieldBinding[E] {
	return FieldBinding[E]{
		name: name,
		get: func(e *E) any {
			current := *ref(e)
			if current == nil {
				return nil
			}
			return *current
		},
		set: func(e *E, value any) error {
			if value == nil {
				*ref(e) = nil
				return nil
			}
			typed, ok := value.(V)
			if !ok {
				var zero V
				return fmt.Errorf("field %s: expected %T, got %T", name, zero, value)
			}
			*ref(e) = &typed
			return nil
		},
	}
}

// Enum binds a string-backed enum type. The registry exposes the member name as a plain string.
func Enum[E any, V ~string](name string, ref func(*E) *V) FieldBinding[E] {
	return FieldBinding[E]{
		name: name,
		get:  func(e *E) any { return string(*ref(e)) },
		set: func(e *E, value any) error {
			text, ok := value.(string)
			if !ok {
				return fmt.Errorf("field %s: expected enum name, got %T", name, value)
			}
			*ref(e) = V(text)
			return nil
		},
	}
}

func NewBinding[E any](entity, primaryKey string, fields ...FieldBinding[E]) *Binding {
	binding := &Binding{
		entity:     entity,
		newRecord:  func() any { return new(E) },
		primaryKey: primaryKey,
		fields:     make(map[string]Field, len(fields)),
		order:      make([]string, 0, len(fields)),
	}
	for _, item := range fields {
		item := item
		binding.fields[strings.ToLower(item.name)] = Field{
			Name: item.name,
			get: func(record any) any {
				return item.get(record.(*E))
			},
			set: func(record any, value any) error {
				return item.set(record.(*E), value)
			},
		}
		binding.order = append(binding.order, item.name)
	}
	return binding
}

func (b *Binding) Entity() string {
	return b.entity
}

func (b *Binding) New() any {
	return b.newRecord()
}

func (b *Binding) FieldNames() []string {
	return append([]string(nil), b.order...)
}

func (b *Binding) Has(field string) bool {
	_, ok := b.fields[strings.ToLower(strings.TrimSpace(field))]
	return ok
}

// Get reads a field by case-insensitive name.
func (b *Binding) Get(record any, field string) (any, bool) {
	item, ok := b.fields[strings.ToLower(strings.TrimSpace(field))]
	if !ok {
		return nil, false
	}
	return item.get(record), true
}

func (b *Binding) Set(record any, field string, value any) error {
	item, ok := b.fields[strings.ToLower(strings.TrimSpace(field))]
	if !ok {
		return fmt.Errorf("entity %s has no field %q", b.entity, field)
	}
	return item.set(record, value)
}

// Clone copies every bound field into a fresh record.
func (b *Binding) Clone(record any) any {
	out := b.newRecord()
	for _, name := range b.order {
		item := b.fields[strings.ToLower(name)]
		_ = item.set(out, item.get(record))
	}
	return out
}

func (b *Binding) PrimaryKeyField() string {
	return b.primaryKey
}

func (b *Binding) PrimaryKey(record any) any {
	if b.primaryKey == "" {
		return nil
	}
	value, _ := b.Get(record, b.primaryKey)
	return value
}

// Registry maps entity names to their bindings.
type Registry struct {
	bindings map[string]*Binding
}

func NewRegistry(bindings ...*Binding) *Registry {
	registry := &Registry{bindings: make(map[string]*Binding, len(bindings))}
	for _, binding := range bindings {
		registry.bindings[strings.ToLower(binding.entity)] = binding
	}
	return registry
}

func (r *Registry) Binding(entity string) (*Binding, bool) {
	binding, ok := r.bindings[strings.ToLower(strings.TrimSpace(entity))]
	return binding, ok
}

func (r *Registry) Entities() []string {
	names := make([]string, 0, len(r.bindings))
	for _, binding := range r.bindings {
		names = append(names, binding.entity)
	}
	sort.Strings(names)
	return names
}
