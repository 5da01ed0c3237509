package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/followup-go/redis"
)

// Toggle lets an operator force the schedule state for one contact,
// taking precedence over the Scanner's heuristics until the next
// explicit change. Enabling a contact with no entry creates one;
// disabling a contact with no entry is a no-op success.
func (e *Engine) Toggle(ctx context.Context, phoneNumber string, isActive bool, sessionID string) (*ContactState, error) {
	phone, err := NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	entry, err := e.store.LatestEntryByPhone(ctx, phone, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up entry for %s: %w", phone, err)
	}

	if !isActive {
		return e.disable(ctx, phone, entry)
	}
	return e.enable(ctx, phone, sessionID, entry)
}

// ContactStatus reports the current schedule state for a contact.
// Missing entries read as inactive.
func (e *Engine) ContactStatus(ctx context.Context, phoneNumber, sessionID string) (*ContactState, error) {
	phone, err := NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	entry, err := e.store.LatestEntryByPhone(ctx, phone, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up entry for %s: %w", phone, err)
	}

	state := &ContactState{PhoneNumber: phone}
	if entry != nil {
		state.IsActive = entry.IsActive
		state.Entry = entry
	}
	return state, nil
}

func (e *Engine) disable(ctx context.Context, phone string, entry *redis.ScheduleEntry) (*ContactState, error) {
	if entry == nil {
		return &ContactState{PhoneNumber: phone, IsActive: false}, nil
	}

	if entry.IsActive {
		if _, err := e.store.Deactivate(ctx, entry.SessionID, LeadStatusDisabledManual); err != nil {
			return nil, fmt.Errorf("failed to disable entry %s: %w", entry.SessionID, err)
		}
		entry.IsActive = false
		entry.LeadStatus = LeadStatusDisabledManual
		entry.NextFollowupAt = nil

		log.Info().
			Str("phone_number", phone).
			Str("session_id", entry.SessionID).
			Msg("Contact follow-up disabled manually")
	}

	return &ContactState{PhoneNumber: phone, IsActive: false, Entry: entry}, nil
}

func (e *Engine) enable(ctx context.Context, phone, sessionID string, entry *redis.ScheduleEntry) (*ContactState, error) {
	now := e.now()

	if entry != nil {
		entry.IsActive = true
		entry.LeadStatus = LeadStatusActive
		if entry.NextFollowupAt == nil {
			entry.NextFollowupAt = &now
		}
		if err := e.store.UpsertEntry(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to enable entry %s: %w", entry.SessionID, err)
		}

		log.Info().
			Str("phone_number", phone).
			Str("session_id", entry.SessionID).
			Msg("Contact follow-up enabled manually")

		return &ContactState{PhoneNumber: phone, IsActive: true, Entry: entry}, nil
	}

	if sessionID == "" {
		sessionID = "manual-" + uuid.NewString()
	}

	entry = &redis.ScheduleEntry{
		SessionID:         sessionID,
		PhoneNumber:       phone,
		IsActive:          true,
		AttemptCount:      0,
		NextFollowupAt:    &now,
		LastInteractionAt: now,
		LeadStatus:        LeadStatusActive,
	}

	if err := e.store.CreateEntry(ctx, entry); err != nil {
		if !errors.Is(err, redis.ErrEntryExists) {
			return nil, fmt.Errorf("failed to create entry for %s: %w", phone, err)
		}
		// A concurrent enable inserted the row first; update it instead.
		existing, lookupErr := e.store.LatestEntryByPhone(ctx, phone, sessionID)
		if lookupErr != nil || existing == nil {
			return nil, fmt.Errorf("entry for %s exists but could not be loaded: %w", phone, lookupErr)
		}
		return e.enable(ctx, phone, sessionID, existing)
	}

	log.Info().
		Str("phone_number", phone).
		Str("session_id", sessionID).
		Msg("Contact follow-up entry created manually")

	return &ContactState{PhoneNumber: phone, IsActive: true, Entry: entry}, nil
}
