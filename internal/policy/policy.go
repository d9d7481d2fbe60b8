// Package policy holds the tunable safety rules applied to structured queries: limits, the entity
// allow-list, blocked keywords, sensitive fields and the capabilities required for mutations.
package policy

import (
	"fmt"
	"strings"

	"github.com/duckmesh/askhr/internal/query"
)

// WildcardField marks every field of an entity as sensitive.
const WildcardField = "*"

type Policy struct {
	Enabled               bool                `yaml:"enabled"`
	EnableCrud            bool                `yaml:"enable_crud"`
	MaxJoinTables         int                 `yaml:"max_join_tables"`
	MaxFilters            int                 `yaml:"max_filters"`
	MaxResultRows         int                 `yaml:"max_result_rows"`
	DefaultResultRows     int                 `yaml:"default_result_rows"`
	QueryTimeoutSeconds   int                 `yaml:"query_timeout_seconds"`
	MaxComplexityScore    int                 `yaml:"max_complexity_score"`
	IncludeGeneratedQuery bool                `yaml:"include_generated_query"`
	AllowedEntities       []string            `yaml:"allowed_entities"`
	BlockedKeywords       []string            `yaml:"blocked_keywords"`
	SensitiveFields       map[string][]string `yaml:"sensitive_fields"`
	CrudPermissions       map[string]string   `yaml:"crud_permissions"`
}

func Default() Policy {
	return Policy{
		Enabled:             true,
		EnableCrud:          true,
		MaxJoinTables:       5,
		MaxFilters:          20,
		MaxResultRows:       1000,
		DefaultResultRows:   100,
		QueryTimeoutSeconds: 30,
		MaxComplexityScore:  50,
		AllowedEntities: []string{
			"Employee", "AttendanceRecord", "LeaveRequest", "LeaveBalance",
			"LeaveType", "PayrollRecord", "OrganizationUnit", "Position",
		},
		BlockedKeywords: []string{
			"exec", "execute", "xp_", "sp_", "sys.", "information_schema",
			"--", "/*", "*/", ";--", "drop", "truncate", "alter",
		},
		SensitiveFields: map[string][]string{
			"Employee":      {"IdCardNumber", "PersonalEmail"},
			"PayrollRecord": {WildcardField},
			"Position":      {"SalaryRangeMin", "SalaryRangeMax"},
		},
		CrudPermissions: map[string]string{
			string(query.OperationInsert): "hr:write",
			string(query.OperationUpdate): "hr:write",
			string(query.OperationDelete): "hr:admin",
		},
	}
}

func (p Policy) Validate() error {
	if p.MaxJoinTables < 0 {
		return fmt.Errorf("max_join_tables must be >= 0")
	}
	if p.MaxFilters <= 0 {
		return fmt.Errorf("max_filters must be > 0")
	}
	if p.MaxResultRows <= 0 {
		return fmt.Errorf("max_result_rows must be > 0")
	}
	if p.DefaultResultRows <= 0 || p.DefaultResultRows > p.MaxResultRows {
		return fmt.Errorf("default_result_rows must be between 1 and max_result_rows")
	}
	if p.MaxComplexityScore <= 0 {
		return fmt.Errorf("max_complexity_score must be > 0")
	}
	if len(p.AllowedEntities) == 0 {
		return fmt.Errorf("allowed_entities must not be empty")
	}
	return nil
}

func (p Policy) IsEntityAllowed(name string) bool {
	trimmed := strings.TrimSpace(name)
	for _, allowed := range p.AllowedEntities {
		if strings.EqualFold(allowed, trimmed) {
			return true
		}
	}
	return false
}

// SensitiveFieldsFor returns the configured sensitive field list for an entity, matched
// case-insensitively.
func (p Policy) SensitiveFieldsFor(entity string) []string {
	for name, fields := range p.SensitiveFields {
		if strings.EqualFold(name, entity) {
			return fields
		}
	}
	return nil
}

// RequiredCapability returns the capability needed for a mutating operation. Unknown operations
// fall back to hr:write.
func (p Policy) RequiredCapability(operation query.Operation) string {
	for name, capability := range p.CrudPermissions {
		if strings.EqualFold(name, string(operation)) && strings.TrimSpace(capability) != "" {
			return capability
		}
	}
	return "hr:write"
}

// ClampLimit applies the default row count to non-positive limits and caps at the maximum.
func (p Policy) ClampLimit(limit int) int {
	if limit <= 0 {
		limit = p.DefaultResultRows
	}
	if limit > p.MaxResultRows {
		limit = p.MaxResultRows
	}
	return limit
}

// Source yields the policy in force. Implementations may swap it at runtime.
type Source interface {
	Current() Policy
}

type Static Policy

func (s Static) Current() Policy {
	return Policy(s)
}
