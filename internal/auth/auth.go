package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	CapabilitySystemAdmin       = "system:admin"
	CapabilityHRAdmin           = "hr:admin"
	CapabilityHRRead            = "hr:read"
	CapabilityHRWrite           = "hr:write"
	CapabilityPayrollRead       = "payroll:read"
	CapabilityDepartmentManager = "department:manager"

	RoleAdmin       = "Admin"
	RoleSystemAdmin = "SystemAdmin"
	RoleHRAdmin     = "HrAdmin"
)

// Identity is the authenticated caller. EmployeeID and UnitID are uuid.Nil when the caller is
// not linked to an employee record or organization unit.
type Identity struct {
	Authenticated bool
	UserID        string
	TenantID      string
	EmployeeID    uuid.UUID
	UnitID        uuid.UUID
	Roles         []string
	Capabilities  []string
}

func (i Identity) HasRole(role string) bool {
	for _, candidate := range i.Roles {
		if strings.EqualFold(candidate, role) {
			return true
		}
	}
	return false
}

// HasPermission checks the capability list first, then the roles that imply capabilities:
// Admin and SystemAdmin grant everything, HrAdmin grants the hr:* capabilities.
func (i Identity) HasPermission(capability string) bool {
	for _, candidate := range i.Capabilities {
		if strings.EqualFold(candidate, capability) {
			return true
		}
	}
	if i.HasRole(RoleAdmin) || i.HasRole(RoleSystemAdmin) {
		return true
	}
	switch capability {
	case CapabilityHRAdmin, CapabilityHRRead, CapabilityHRWrite:
		return i.HasRole(RoleHRAdmin)
	}
	return false
}

// Elevated identities bypass entity, field and row-scope checks.
func (i Identity) Elevated() bool {
	return i.HasPermission(CapabilitySystemAdmin) || i.HasPermission(CapabilityHRAdmin)
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

// NewStaticAPIKeyValidator parses comma separated entries of the form
//
//	key:tenant:role|role[/capability|capability[/employee-id[/unit-id]]]
//
// Keys without an employee id get the user id "key:<tenant>:<first role>".
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(spec, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid static key entry %q: expected key:tenant:roles[/capabilities[/employee[/unit]]]", entry)
		}
		key := strings.TrimSpace(parts[0])
		tenant := strings.TrimSpace(parts[1])
		if key == "" || tenant == "" {
			return nil, fmt.Errorf("invalid static key entry %q: empty key/tenant", entry)
		}
		grants := strings.Split(parts[2], "/")
		if len(grants) > 4 {
			return nil, fmt.Errorf("invalid static key entry %q: too many segments", entry)
		}
		roles := splitList(grants[0])
		if len(roles) == 0 {
			return nil, fmt.Errorf("invalid static key entry %q: at least one role is required", entry)
		}
		identity := Identity{
			Authenticated: true,
			UserID:        "key:" + tenant + ":" + roles[0],
			TenantID:      tenant,
			Roles:         roles,
		}
		if len(grants) > 1 {
			identity.Capabilities = splitList(grants[1])
		}
		if len(grants) > 2 && strings.TrimSpace(grants[2]) != "" {
			employeeID, err := uuid.Parse(strings.TrimSpace(grants[2]))
			if err != nil {
				return nil, fmt.Errorf("invalid static key entry %q: employee id: %w", entry, err)
			}
			identity.EmployeeID = employeeID
			identity.UserID = employeeID.String()
		}
		if len(grants) > 3 && strings.TrimSpace(grants[3]) != "" {
			unitID, err := uuid.Parse(strings.TrimSpace(grants[3]))
			if err != nil {
				return nil, fmt.Errorf("invalid static key entry %q: unit id: %w", entry, err)
			}
			identity.UnitID = unitID
		}
		validator.keys[key] = identity
	}

	return validator, nil
}

func splitList(value string) []string {
	parts := strings.Split(strings.TrimSpace(value), "|")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	sort.Strings(out)
	return out
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}
