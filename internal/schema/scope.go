package schema

import (
	"strings"

	"github.com/duckmesh/askhr/internal/query"
)

// ResolvedField is a field path resolved against a query's target and joined entities.
// Qualifier is empty for the target entity and the join alias (or entity name) otherwise.
type ResolvedField struct {
	Entity    EntitySchema
	Field     FieldSchema
	Qualifier string
}

func (r ResolvedField) OnTarget() bool {
	return r.Qualifier == ""
}

// Scope is the set of entities a query may reference: its target plus every join.
type Scope struct {
	Target EntitySchema
	joins  map[string]joinedEntity
	order  []string
}

type joinedEntity struct {
	qualifier string
	entity    EntitySchema
}

// Scope resolves the target and joined entities. Unknown joins are skipped; callers that need
// to reject them check the joins themselves.
func (c *Catalog) Scope(target string, joins []query.JoinClause) (Scope, bool) {
	targetSchema, ok := c.Entity(target)
	if !ok {
		return Scope{}, false
	}
	scope := Scope{Target: targetSchema, joins: map[string]joinedEntity{}}
	for _, join := range joins {
		joined, ok := c.Entity(join.Entity)
		if !ok {
			continue
		}
		qualifier := strings.TrimSpace(join.Alias)
		if qualifier == "" {
			qualifier = joined.Name
		}
		item := joinedEntity{qualifier: qualifier, entity: joined}
		scope.joins[strings.ToLower(qualifier)] = item
		if _, exists := scope.joins[strings.ToLower(joined.Name)]; !exists {
			scope.joins[strings.ToLower(joined.Name)] = item
		}
		scope.order = append(scope.order, qualifier)
	}
	return scope, true
}

// Qualifiers lists the join qualifiers in declaration order.
func (s Scope) Qualifiers() []string {
	return append([]string(nil), s.order...)
}

func (s Scope) Joined(qualifier string) (EntitySchema, bool) {
	item, ok := s.joins[strings.ToLower(strings.TrimSpace(qualifier))]
	return item.entity, ok
}

// Resolve looks up "Field" on the target or "Entity.Field" / "Alias.Field" on the target or a
// join. The second result reports whether the qualifier itself was known.
func (s Scope) Resolve(path string) (ResolvedField, bool, bool) {
	qualifier, fieldName := SplitFieldPath(path)
	if qualifier == "" || strings.EqualFold(qualifier, s.Target.Name) {
		field, ok := s.Target.Field(fieldName)
		return ResolvedField{Entity: s.Target, Field: field}, true, ok
	}
	joined, ok := s.joins[strings.ToLower(qualifier)]
	if !ok {
		return ResolvedField{}, false, false
	}
	field, ok := joined.entity.Field(fieldName)
	return ResolvedField{Entity: joined.entity, Field: field, Qualifier: joined.qualifier}, true, ok
}

// Visible is Resolve limited to fields a query may name. Internal fields report found as false.
func (s Scope) Visible(path string) (ResolvedField, bool, bool) {
	resolved, qualifierKnown, found := s.Resolve(path)
	if found && resolved.Field.Internal {
		return resolved, qualifierKnown, false
	}
	return resolved, qualifierKnown, found
}
