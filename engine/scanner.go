package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/followup-go/redis"
	"github.com/NextMind-AI/followup-go/tenant"
)

// Scan synchronizes the schedule store with one tenant's conversation
// activity: quiet conversations enter the schedule, conversations the
// lead replied to leave it. One bad conversation never aborts the run.
func (e *Engine) Scan(ctx context.Context, tenantID string) (*ScanResult, error) {
	if _, err := tenant.Resolve(tenantID); err != nil {
		return nil, err
	}

	sessions, err := e.chatLog.ActiveSessions(ctx, tenantID, e.config.ScanBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate sessions for tenant %s: %w", tenantID, err)
	}

	result := &ScanResult{TenantID: tenantID}
	now := e.now()

	for _, sessionID := range sessions {
		if err := e.scanSession(ctx, tenantID, sessionID, now, result); err != nil {
			log.Error().
				Err(err).
				Str("tenant_id", tenantID).
				Str("session_id", sessionID).
				Msg("Error scanning session")
			result.Log = append(result.Log, fmt.Sprintf("session %s: %v", sessionID, err))
		}
	}

	log.Info().
		Str("tenant_id", tenantID).
		Int("sessions", len(sessions)).
		Int("scheduled", result.Scheduled).
		Int("cancelled", result.Cancelled).
		Msg("Scan completed")

	return result, nil
}

func (e *Engine) scanSession(ctx context.Context, tenantID, sessionID string, now time.Time, result *ScanResult) error {
	messages, err := e.chatLog.LatestMessages(ctx, tenantID, sessionID, e.config.ContextMessageCount)
	if err != nil {
		return fmt.Errorf("failed to read messages: %w", err)
	}

	lastInbound, ok := lastInboundTime(messages)
	if !ok {
		// Never heard from the lead; nothing to follow up on.
		return nil
	}

	entry, err := e.store.GetEntry(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load entry: %w", err)
	}

	// A human reply after scheduling supersedes automation.
	if entry != nil && entry.IsActive && lastInbound.After(entry.LastInteractionAt) {
		deactivated, err := e.store.Deactivate(ctx, sessionID, LeadStatusResetReply)
		if err != nil {
			return fmt.Errorf("failed to deactivate on reply: %w", err)
		}
		if deactivated {
			result.Cancelled++
			log.Info().
				Str("tenant_id", tenantID).
				Str("session_id", sessionID).
				Msg("Follow-up cancelled, lead replied")
		}
		return nil
	}

	if now.Sub(lastInbound) < e.config.StalenessThreshold {
		return nil
	}

	status, err := e.crm.GetStatus(ctx, tenantID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to read CRM status: %w", err)
	}
	if status != nil && IsTerminalStatus(status.Status) {
		return nil
	}

	phone, err := e.sessionPhone(ctx, tenantID, sessionID)
	if err != nil {
		return err
	}

	paused, err := e.crm.IsPaused(ctx, tenantID, phone)
	if err != nil {
		return fmt.Errorf("failed to check pause list: %w", err)
	}
	if paused {
		return nil
	}

	if entry != nil && entry.IsActive {
		// Already scheduled; refresh the snapshot without touching the
		// attempt fields a concurrent Sender may be committing.
		return e.store.RefreshContext(ctx, sessionID, joinContents(messages), lastInbound)
	}

	if entry != nil && entry.LeadStatus == LeadStatusDisabledManual {
		// Manually disabled; only an explicit re-enable may revive it.
		return nil
	}

	if entry == nil {
		entry = &redis.ScheduleEntry{
			SessionID: sessionID,
			TenantID:  tenantID,
		}
	}

	entry.PhoneNumber = phone
	entry.IsActive = true
	entry.LeadStatus = LeadStatusActive
	entry.LastInteractionAt = lastInbound
	entry.ConversationContext = joinContents(messages)
	entry.NextFollowupAt = &now

	if err := e.store.UpsertEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}

	result.Scheduled++
	log.Info().
		Str("tenant_id", tenantID).
		Str("session_id", sessionID).
		Time("last_inbound", lastInbound).
		Msg("Conversation scheduled for follow-up")

	return nil
}

// sessionPhone resolves the contact number for a session, preferring
// the CRM lead record and falling back to the session id itself (chat
// sessions are keyed by WhatsApp number).
func (e *Engine) sessionPhone(ctx context.Context, tenantID, sessionID string) (string, error) {
	profile, err := e.chatLog.LeadProfile(ctx, tenantID, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to load lead profile: %w", err)
	}
	if profile != nil && profile.PhoneNumber != "" {
		if phone, err := NormalizePhone(profile.PhoneNumber); err == nil {
			return phone, nil
		}
	}

	phone, err := NormalizePhone(sessionID)
	if err != nil {
		return "", fmt.Errorf("no usable phone number for session %s: %w", sessionID, err)
	}
	return phone, nil
}

func lastInboundTime(messages []redis.ChatMessage) (time.Time, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Timestamp, true
		}
	}
	return time.Time{}, false
}

func joinContents(messages []redis.ChatMessage) string {
	var contents []string
	for _, msg := range messages {
		if msg.Content != "" {
			contents = append(contents, msg.Content)
		}
	}
	return strings.Join(contents, "\n")
}
