package tenant

import (
	"fmt"
	"regexp"
)

// Tables holds the Redis key prefixes for one tenant's data. Each tenant
// ("unidade") gets its own chat-history, CRM-status, pause and lead
// namespaces derived from the tenant id.
type Tables struct {
	ChatHistory string
	CRMStatus   string
	PauseList   string
	Leads       string
}

var tenantIDPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Resolve derives the physical key prefixes for a tenant. The tenant id is
// used verbatim in key names, so anything outside [a-z0-9_] is rejected.
func Resolve(tenantID string) (Tables, error) {
	if !tenantIDPattern.MatchString(tenantID) {
		return Tables{}, fmt.Errorf("invalid tenant id %q: must match [a-z0-9_]+", tenantID)
	}

	return Tables{
		ChatHistory: tenantID + ":chat_history",
		CRMStatus:   tenantID + ":crm_status",
		PauseList:   tenantID + ":pause",
		Leads:       tenantID + ":lead",
	}, nil
}

// Valid reports whether tenantID would resolve without error.
func Valid(tenantID string) bool {
	return tenantIDPattern.MatchString(tenantID)
}
