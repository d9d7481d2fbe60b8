package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const auditRoot = "audit"

// AuditRootPrefix is the key prefix shared by the audit batches of every tenant.
const AuditRootPrefix = auditRoot + "/"

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildAuditPath returns the object key of one audit batch:
// audit/tenant=<tenant>/date=<yyyy-mm-dd>/<batch>.parquet, dated in UTC.
func BuildAuditPath(tenantID string, day time.Time, batchID uuid.UUID) (string, error) {
	prefix, err := AuditPrefix(tenantID, day)
	if err != nil {
		return "", err
	}
	if batchID == uuid.Nil {
		return "", fmt.Errorf("batch id is required")
	}
	return path.Join(prefix, batchID.String()+".parquet"), nil
}

// AuditPrefix returns the key prefix holding every audit batch of tenantID for one UTC day.
func AuditPrefix(tenantID string, day time.Time) (string, error) {
	if err := validatePathComponent(tenantID, "tenant id"); err != nil {
		return "", err
	}
	ts := day.UTC()
	return path.Join(
		auditRoot,
		"tenant="+tenantID,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
	) + "/", nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}

// ParseAuditPath extracts the tenant and UTC day from a key built by BuildAuditPath.
func ParseAuditPath(key string) (string, time.Time, bool) {
	parts := strings.Split(strings.TrimPrefix(key, "/"), "/")
	if len(parts) != 4 || parts[0] != auditRoot {
		return "", time.Time{}, false
	}
	tenant, ok := strings.CutPrefix(parts[1], "tenant=")
	if !ok || validatePathComponent(tenant, "tenant id") != nil {
		return "", time.Time{}, false
	}
	rawDay, ok := strings.CutPrefix(parts[2], "date=")
	if !ok {
		return "", time.Time{}, false
	}
	day, err := time.Parse(time.DateOnly, rawDay)
	if err != nil {
		return "", time.Time{}, false
	}
	return tenant, day, true
}
