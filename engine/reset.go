package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/followup-go/tenant"
)

// HardReset deactivates every active entry for a tenant and normalizes
// CRM statuses left dangling at em_follow_up (or unset) back to the
// atendimento column. Statuses already moved elsewhere are untouched.
func (e *Engine) HardReset(ctx context.Context, tenantID string) (*ResetResult, error) {
	if _, err := tenant.Resolve(tenantID); err != nil {
		return nil, err
	}

	entries, err := e.store.ActiveEntries(ctx, tenantID, e.config.ScanBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load active entries: %w", err)
	}

	result := &ResetResult{TenantID: tenantID, Log: []string{}}

	for _, entry := range entries {
		deactivated, err := e.store.Deactivate(ctx, entry.SessionID, LeadStatusResetManual)
		if err != nil {
			result.Log = append(result.Log, fmt.Sprintf("session %s: deactivation failed: %v", entry.SessionID, err))
			continue
		}
		if deactivated {
			result.ResetCount++
		}

		status, err := e.crm.GetStatus(ctx, tenantID, entry.SessionID)
		if err != nil {
			result.Log = append(result.Log, fmt.Sprintf("session %s: status check failed: %v", entry.SessionID, err))
			continue
		}
		if status == nil || status.Status == StatusEmFollowUp {
			if err := e.crm.SetStatus(ctx, tenantID, entry.SessionID, StatusAtendimento, true); err != nil {
				result.Log = append(result.Log, fmt.Sprintf("session %s: status normalization failed: %v", entry.SessionID, err))
				continue
			}
			result.StatusFixed++
			result.Log = append(result.Log, fmt.Sprintf("session %s: reset, CRM status normalized to %s", entry.SessionID, StatusAtendimento))
		} else {
			result.Log = append(result.Log, fmt.Sprintf("session %s: reset, CRM status %s kept", entry.SessionID, status.Status))
		}
	}

	log.Info().
		Str("tenant_id", tenantID).
		Int("reset_count", result.ResetCount).
		Int("status_fixed", result.StatusFixed).
		Msg("Hard reset completed")

	e.archive(ctx, tenantID, "hard_reset", result)

	return result, nil
}
