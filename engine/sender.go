package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/followup-go/redis"
	"github.com/NextMind-AI/followup-go/template"
	"github.com/NextMind-AI/followup-go/vonage"
)

// Send dispatches due follow-up messages, globally or scoped to one
// tenant. Each entry is claimed with a store-level compare-and-set
// before the gateway call, so overlapping invocations never double-send
// the same (session, attempt) pair.
func (e *Engine) Send(ctx context.Context, tenantID string) (*SendRunResult, error) {
	now := e.now()

	due, err := e.store.DueEntries(ctx, tenantID, now, e.config.SendBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due entries: %w", err)
	}

	result := &SendRunResult{}

	for i := range due {
		entry := due[i]

		claimed, err := e.store.ClaimDue(ctx, entry.SessionID, entry.AttemptCount, now, e.config.ClaimHold)
		if err != nil {
			result.Failed++
			result.Log = append(result.Log, fmt.Sprintf("session %s: claim failed: %v", entry.SessionID, err))
			continue
		}
		if !claimed {
			// Another invocation owns this attempt.
			continue
		}

		if err := e.dispatch(ctx, &entry); err != nil {
			result.Failed++
			result.Log = append(result.Log, fmt.Sprintf("session %s: %v", entry.SessionID, err))
			continue
		}

		result.Sent++
		result.Log = append(result.Log, fmt.Sprintf("session %s: follow-up %d sent", entry.SessionID, entry.AttemptCount+1))
	}

	log.Info().
		Str("tenant_id", tenantID).
		Int("due", len(due)).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("Send run completed")

	return result, nil
}

func (e *Engine) dispatch(ctx context.Context, entry *redis.ScheduleEntry) error {
	stage := entry.AttemptCount + 1
	tmpl := e.templates.ByStage(stage)
	text := template.Render(tmpl.Text, e.templateVars(ctx, entry))

	_, err := e.gateway.Send(ctx, entry.PhoneNumber, text)
	if err != nil {
		if vonage.IsPermanentSendError(err) {
			// The destination itself is bad; stop contacting it.
			if _, deactErr := e.store.Deactivate(ctx, entry.SessionID, LeadStatusInvalidNumber); deactErr != nil {
				log.Error().
					Err(deactErr).
					Str("session_id", entry.SessionID).
					Msg("Failed to deactivate entry after permanent rejection")
			}
			return fmt.Errorf("destination rejected permanently: %w", err)
		}

		// Transient: release the claim so the next run retries with
		// attempt state untouched.
		if relErr := e.store.ReleaseClaim(ctx, entry.SessionID); relErr != nil {
			log.Error().
				Err(relErr).
				Str("session_id", entry.SessionID).
				Msg("Failed to release claim after transient failure")
		}
		return fmt.Errorf("dispatch failed: %w", err)
	}

	next := e.now().Add(e.backoff(entry.AttemptCount + 1))
	if err := e.store.CommitAttempt(ctx, entry.SessionID, entry.AttemptCount, next); err != nil {
		return fmt.Errorf("sent but failed to record attempt: %w", err)
	}

	log.Info().
		Str("session_id", entry.SessionID).
		Str("phone_number", entry.PhoneNumber).
		Int("attempt", entry.AttemptCount+1).
		Time("next_followup_at", next).
		Msg("Follow-up message sent")

	return nil
}

// templateVars gathers the best-known lead data for substitution.
// Missing data is fine; rendering falls back to a neutral literal.
func (e *Engine) templateVars(ctx context.Context, entry *redis.ScheduleEntry) map[string]string {
	vars := map[string]string{}

	profile, err := e.chatLog.LeadProfile(ctx, entry.TenantID, entry.SessionID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("session_id", entry.SessionID).
			Msg("Could not load lead profile for template variables")
		return vars
	}
	if profile == nil {
		return vars
	}

	vars["nome"] = profile.Name
	vars["data"] = profile.PreferredDate
	vars["horario"] = profile.PreferredTime
	vars["observacoes"] = profile.Notes
	return vars
}
