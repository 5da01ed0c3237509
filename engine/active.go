package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// GetActive returns active entries enriched with a last-message preview
// for UI consumption, optionally scoped to one tenant. Preview failures
// degrade to an empty preview, never an error.
func (e *Engine) GetActive(ctx context.Context, tenantID string) ([]ActiveEntryView, error) {
	entries, err := e.store.ActiveEntries(ctx, tenantID, e.config.ScanBatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load active entries: %w", err)
	}

	views := make([]ActiveEntryView, 0, len(entries))
	for _, entry := range entries {
		view := ActiveEntryView{ScheduleEntry: entry}

		if entry.TenantID != "" {
			messages, err := e.chatLog.LatestMessages(ctx, entry.TenantID, entry.SessionID, 1)
			if err != nil {
				log.Warn().
					Err(err).
					Str("session_id", entry.SessionID).
					Msg("Could not load last message preview")
			} else if len(messages) > 0 {
				view.LastMessagePreview = messages[len(messages)-1].Content
			}
		}

		views = append(views, view)
	}

	return views, nil
}
