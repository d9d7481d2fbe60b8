// Package schema describes the queryable entities: their fields, aliases, sensitivity and the
// few-shot examples used when prompting the translator. A Catalog is built once and shared
// read-only afterwards.
package schema

import (
	"sort"
	"strings"

	"github.com/duckmesh/askhr/internal/query"
)

type FieldType string

const (
	TypeString   FieldType = "string"
	TypeInt      FieldType = "int"
	TypeLong     FieldType = "long"
	TypeDecimal  FieldType = "decimal"
	TypeDouble   FieldType = "double"
	TypeBool     FieldType = "bool"
	TypeDate     FieldType = "date"
	TypeDateTime FieldType = "datetime"
	TypeUUID     FieldType = "uuid"
	TypeEnum     FieldType = "enum"
)

func (t FieldType) IsNumeric() bool {
	switch t {
	case TypeInt, TypeLong, TypeDecimal, TypeDouble:
		return true
	default:
		return false
	}
}

func (t FieldType) IsTemporal() bool {
	return t == TypeDate || t == TypeDateTime
}

type EnumValue struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Ordinal     int    `json:"ordinal"`
}

type FieldSchema struct {
	Name               string      `json:"name"`
	DisplayName        string      `json:"displayName"`
	Description        string      `json:"description,omitempty"`
	Type               FieldType   `json:"type"`
	Nullable           bool        `json:"nullable"`
	PrimaryKey         bool        `json:"primaryKey,omitempty"`
	ForeignKey         bool        `json:"foreignKey,omitempty"`
	References         string      `json:"references,omitempty"`
	Sensitive          bool        `json:"sensitive,omitempty"`
	RequiredPermission string      `json:"requiredPermission,omitempty"`
	Filterable         bool        `json:"filterable"`
	Sortable           bool        `json:"sortable"`
	ReadOnly           bool        `json:"readOnly,omitempty"`
	Internal           bool        `json:"-"`
	Aliases            []string    `json:"aliases,omitempty"`
	EnumValues         []EnumValue `json:"enumValues,omitempty"`
}

// Enum resolves an enum member by name, display name or ordinal text.
func (f FieldSchema) Enum(value string) (EnumValue, bool) {
	trimmed := strings.TrimSpace(value)
	for _, item := range f.EnumValues {
		if strings.EqualFold(item.Name, trimmed) || item.DisplayName == trimmed {
			return item, true
		}
	}
	return EnumValue{}, false
}

func (f FieldSchema) EnumByOrdinal(ordinal int) (EnumValue, bool) {
	for _, item := range f.EnumValues {
		if item.Ordinal == ordinal {
			return item, true
		}
	}
	return EnumValue{}, false
}

type Relation struct {
	Name          string `json:"name"`
	RelatedEntity string `json:"relatedEntity"`
	Kind          string `json:"kind"`
	ForeignKey    string `json:"foreignKey"`
}

type EntitySchema struct {
	Name         string        `json:"name"`
	DisplayName  string        `json:"displayName"`
	Description  string        `json:"description,omitempty"`
	Aliases      []string      `json:"aliases,omitempty"`
	SupportsCrud bool          `json:"supportsCrud"`
	Fields       []FieldSchema `json:"fields"`
	Relations    []Relation    `json:"relations,omitempty"`
}

// Field looks a field up by name, then alias, then display name, all case-insensitively.
func (e EntitySchema) Field(name string) (FieldSchema, bool) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return FieldSchema{}, false
	}
	for _, field := range e.Fields {
		if strings.EqualFold(field.Name, trimmed) {
			return field, true
		}
	}
	for _, field := range e.Fields {
		for _, alias := range field.Aliases {
			if strings.EqualFold(alias, trimmed) {
				return field, true
			}
		}
	}
	for _, field := range e.Fields {
		if field.DisplayName == trimmed {
			return field, true
		}
	}
	return FieldSchema{}, false
}

func (e EntitySchema) PrimaryKey() (FieldSchema, bool) {
	for _, field := range e.Fields {
		if field.PrimaryKey {
			return field, true
		}
	}
	return FieldSchema{}, false
}

// PublicFields returns every field except internal bookkeeping columns such as the tenant id.
func (e EntitySchema) PublicFields() []FieldSchema {
	out := make([]FieldSchema, 0, len(e.Fields))
	for _, field := range e.Fields {
		if field.Internal {
			continue
		}
		out = append(out, field)
	}
	return out
}

type Example struct {
	Question    string                `json:"question"`
	Query       query.StructuredQuery `json:"query"`
	Explanation string                `json:"explanation,omitempty"`
}

type Catalog struct {
	entities []EntitySchema
	byName   map[string]int
	aliases  map[string]string
	examples []Example
}

func NewCatalog(entities []EntitySchema, examples []Example) *Catalog {
	catalog := &Catalog{
		entities: append([]EntitySchema(nil), entities...),
		byName:   make(map[string]int, len(entities)),
		aliases:  map[string]string{},
		examples: append([]Example(nil), examples...),
	}
	for index, entity := range catalog.entities {
		catalog.byName[entity.Name] = index
		catalog.aliases[strings.ToLower(entity.Name)] = entity.Name
		if entity.DisplayName != "" {
			catalog.aliases[strings.ToLower(entity.DisplayName)] = entity.Name
		}
		for _, alias := range entity.Aliases {
			catalog.aliases[strings.ToLower(strings.TrimSpace(alias))] = entity.Name
		}
	}
	return catalog
}

// Entity resolves an exact name first, then the case-insensitive alias table.
func (c *Catalog) Entity(name string) (EntitySchema, bool) {
	trimmed := strings.TrimSpace(name)
	if index, ok := c.byName[trimmed]; ok {
		return c.entities[index], true
	}
	if canonical, ok := c.aliases[strings.ToLower(trimmed)]; ok {
		return c.entities[c.byName[canonical]], true
	}
	return EntitySchema{}, false
}

func (c *Catalog) ResolveEntityName(name string) (string, bool) {
	entity, ok := c.Entity(name)
	if !ok {
		return "", false
	}
	return entity.Name, true
}

func (c *Catalog) Field(entityName, fieldName string) (FieldSchema, bool) {
	entity, ok := c.Entity(entityName)
	if !ok {
		return FieldSchema{}, false
	}
	return entity.Field(fieldName)
}

func (c *Catalog) Entities() []EntitySchema {
	return append([]EntitySchema(nil), c.entities...)
}

func (c *Catalog) EntityNames() []string {
	names := make([]string, 0, len(c.entities))
	for _, entity := range c.entities {
		names = append(names, entity.Name)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) Examples() []Example {
	return append([]Example(nil), c.examples...)
}

// SplitFieldPath splits "Entity.Field" into its parts. An unqualified path returns an empty entity.
func SplitFieldPath(path string) (string, string) {
	trimmed := strings.TrimSpace(path)
	if index := strings.LastIndex(trimmed, "."); index > 0 && index < len(trimmed)-1 {
		return trimmed[:index], trimmed[index+1:]
	}
	return "", trimmed
}
