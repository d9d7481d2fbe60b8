// Package store is the persistence boundary for entity collections. Records are the typed values
// produced by entity.Binding.New and are always scoped to one tenant.
package store

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/duckmesh/askhr/internal/entity"
)

var ErrUnknownEntity = errors.New("unknown entity")

// Matcher selects records for Update and Delete.
type Matcher func(record any) bool

// Mutator applies changes to one matched record in place.
type Mutator func(record any) error

// Store exposes typed collections per entity. Update and Delete read the matching records and
// apply the change as one unit of work.
type Store interface {
	Load(ctx context.Context, tenant uuid.UUID, binding *entity.Binding) ([]any, error)
	Insert(ctx context.Context, tenant uuid.UUID, binding *entity.Binding, record any) error
	Update(ctx context.Context, tenant uuid.UUID, binding *entity.Binding, match Matcher, apply Mutator) (int, error)
	Delete(ctx context.Context, tenant uuid.UUID, binding *entity.Binding, match Matcher) (int, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

const TenantField = "TenantId"

var tenantNamespace = uuid.MustParse("6f0b3c1e-5d7a-4c8e-9a0f-2b1d4e6c8a90")

// TenantKey maps a tenant identifier to the uuid stored on records. UUID identifiers are used as
// is; any other name maps to a stable name-based uuid.
func TenantKey(tenant string) uuid.UUID {
	trimmed := strings.TrimSpace(tenant)
	if parsed, err := uuid.Parse(trimmed); err == nil {
		return parsed
	}
	return uuid.NewSHA1(tenantNamespace, []byte(trimmed))
}

// TableName is the relational table of an entity: its snake_case name, pluralised.
func TableName(entityName string) string {
	return SnakeCase(entityName) + "s"
}

// SnakeCase converts a field or entity name such as "IdCardNumber" to "id_card_number".
func SnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
