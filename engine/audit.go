package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/followup-go/tenant"
)

// AuditStructural restores the pause/terminal-status invariant for one
// tenant: no active entry may point at a paused number or a lead whose
// CRM status is terminal. Returns an operator-facing report of every
// correction made.
func (e *Engine) AuditStructural(ctx context.Context, tenantID string) (*AuditResult, error) {
	if _, err := tenant.Resolve(tenantID); err != nil {
		return nil, err
	}

	entries, err := e.store.ActiveEntries(ctx, tenantID, e.config.ScanBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load active entries: %w", err)
	}

	result := &AuditResult{TenantID: tenantID, TotalChecked: len(entries), Log: []string{}}

	for _, entry := range entries {
		paused, err := e.crm.IsPaused(ctx, tenantID, entry.PhoneNumber)
		if err != nil {
			result.Log = append(result.Log, fmt.Sprintf("session %s: pause check failed: %v", entry.SessionID, err))
			continue
		}
		if paused {
			if _, err := e.store.Deactivate(ctx, entry.SessionID, LeadStatusPausedManual); err != nil {
				result.Log = append(result.Log, fmt.Sprintf("session %s: deactivation failed: %v", entry.SessionID, err))
				continue
			}
			result.Fixed++
			result.Log = append(result.Log, fmt.Sprintf("session %s: deactivated, number %s is on the pause list", entry.SessionID, entry.PhoneNumber))
			continue
		}

		status, err := e.crm.GetStatus(ctx, tenantID, entry.SessionID)
		if err != nil {
			result.Log = append(result.Log, fmt.Sprintf("session %s: status check failed: %v", entry.SessionID, err))
			continue
		}
		if status != nil && IsTerminalStatus(status.Status) {
			if _, err := e.store.Deactivate(ctx, entry.SessionID, "status_"+status.Status); err != nil {
				result.Log = append(result.Log, fmt.Sprintf("session %s: deactivation failed: %v", entry.SessionID, err))
				continue
			}
			result.Fixed++
			result.Log = append(result.Log, fmt.Sprintf("session %s: deactivated, CRM status is %s", entry.SessionID, status.Status))
		}
	}

	log.Info().
		Str("tenant_id", tenantID).
		Int("checked", result.TotalChecked).
		Int("fixed", result.Fixed).
		Msg("Structural audit completed")

	e.archive(ctx, tenantID, "structural", result)

	return result, nil
}

// AuditSemantic catches leads whose conversation content already
// signals an outcome the structural status hasn't caught up with. A
// match deactivates the entry and converges the CRM status in the same
// operation. Entries with no usable context are skipped, never fatal.
func (e *Engine) AuditSemantic(ctx context.Context, tenantID string) (*AuditResult, error) {
	if _, err := tenant.Resolve(tenantID); err != nil {
		return nil, err
	}

	entries, err := e.store.ActiveEntries(ctx, tenantID, e.config.ScanBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load active entries: %w", err)
	}

	result := &AuditResult{TenantID: tenantID, TotalChecked: len(entries), Log: []string{}}

	for _, entry := range entries {
		outcome, matched := e.classifier.Classify(entry.ConversationContext)
		if !matched {
			// Silence is not evidence of either outcome.
			continue
		}

		if _, err := e.store.Deactivate(ctx, entry.SessionID, "audit_"+string(outcome)); err != nil {
			result.Log = append(result.Log, fmt.Sprintf("session %s: deactivation failed: %v", entry.SessionID, err))
			continue
		}

		if err := e.convergeStatus(ctx, tenantID, entry.SessionID, outcome, result); err != nil {
			result.Log = append(result.Log, fmt.Sprintf("session %s: status update failed: %v", entry.SessionID, err))
		}

		result.Fixed++
		result.Log = append(result.Log, fmt.Sprintf("session %s: conversation indicates %s, entry deactivated", entry.SessionID, outcome))
	}

	log.Info().
		Str("tenant_id", tenantID).
		Int("checked", result.TotalChecked).
		Int("fixed", result.Fixed).
		Msg("Semantic audit completed")

	e.archive(ctx, tenantID, "semantic", result)

	return result, nil
}

// convergeStatus upserts the CRM status to the classified outcome. A
// human-set terminal status is left alone.
func (e *Engine) convergeStatus(ctx context.Context, tenantID, sessionID string, outcome Outcome, result *AuditResult) error {
	existing, err := e.crm.GetStatus(ctx, tenantID, sessionID)
	if err != nil {
		return err
	}
	if existing != nil && existing.ManualOverride && IsTerminalStatus(existing.Status) {
		result.Log = append(result.Log, fmt.Sprintf("session %s: CRM status %s was set manually, left unchanged", sessionID, existing.Status))
		return nil
	}
	return e.crm.SetStatus(ctx, tenantID, sessionID, string(outcome), false)
}

func (e *Engine) archive(ctx context.Context, tenantID, pass string, report any) {
	if e.archiver == nil {
		return
	}
	e.archiver.ArchiveReport(ctx, tenantID, pass, report)
}
