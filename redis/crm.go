package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/NextMind-AI/followup-go/tenant"
)

// StatusRecord is one lead's position in the tenant's CRM kanban.
// ManualOverride marks the status as human-set: the engine never
// silently overwrites a manually-set terminal status.
type StatusRecord struct {
	Status         string `json:"status"`
	ManualOverride bool   `json:"manual_override"`
}

func (c *Client) GetStatus(ctx context.Context, tenantID, sessionID string) (*StatusRecord, error) {
	tables, err := tenant.Resolve(tenantID)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s:%s", tables.CRMStatus, sessionID)

	fields, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	return &StatusRecord{
		Status:         fields["status"],
		ManualOverride: fields["manual_override"] == "1",
	}, nil
}

func (c *Client) SetStatus(ctx context.Context, tenantID, sessionID, status string, manualOverride bool) error {
	tables, err := tenant.Resolve(tenantID)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s:%s", tables.CRMStatus, sessionID)

	override := "0"
	if manualOverride {
		override = "1"
	}

	return c.rdb.HSet(ctx, key, map[string]any{
		"status":          status,
		"manual_override": override,
	}).Err()
}

// IsPaused reports whether a phone number is on the tenant's pause
// list. Numbers are stored digits-only; the list may hold them with or
// without the 55 country code, so both forms are checked.
func (c *Client) IsPaused(ctx context.Context, tenantID, phone string) (bool, error) {
	tables, err := tenant.Resolve(tenantID)
	if err != nil {
		return false, err
	}

	for _, candidate := range pauseCandidates(phone) {
		paused, err := c.rdb.SIsMember(ctx, tables.PauseList, candidate).Result()
		if err != nil {
			return false, err
		}
		if paused {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) SetPaused(ctx context.Context, tenantID, phone string, paused bool) error {
	tables, err := tenant.Resolve(tenantID)
	if err != nil {
		return err
	}

	if paused {
		return c.rdb.SAdd(ctx, tables.PauseList, phone).Err()
	}
	return c.rdb.SRem(ctx, tables.PauseList, phone).Err()
}

func pauseCandidates(phone string) []string {
	candidates := []string{phone}
	if strings.HasPrefix(phone, "55") && len(phone) > 11 {
		candidates = append(candidates, phone[2:])
	} else if phone != "" {
		candidates = append(candidates, "55"+phone)
	}
	return candidates
}
