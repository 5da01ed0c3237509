package engine

import (
	"errors"
	"strings"

	"github.com/NextMind-AI/followup-go/redis"
)

// Outcome is a semantic classification of a conversation.
type Outcome string

const (
	OutcomeAgendado Outcome = "agendado"
	OutcomePerdido  Outcome = "perdido"
	OutcomeGanhos   Outcome = "ganhos"
)

// CRM pipeline columns.
const (
	StatusEntrada     = "entrada"
	StatusAtendimento = "atendimento"
	StatusEmFollowUp  = "em_follow_up"
	StatusAgendado    = "agendado"
	StatusGanhos      = "ganhos"
	StatusPerdido     = "perdido"
)

// Lead status tags recorded on schedule entries as the audit trail of
// why each entry is in its current state.
const (
	LeadStatusActive         = "active"
	LeadStatusResetReply     = "reset_reply"
	LeadStatusResetManual    = "reset_manual"
	LeadStatusPausedManual   = "paused_manual"
	LeadStatusDisabledManual = "disabled_manual"
	LeadStatusInvalidNumber  = "invalid_number"
)

// terminalStatuses are the pipeline columns after which no automated
// contact may happen.
var terminalStatuses = map[string]bool{
	StatusAgendado: true,
	StatusPerdido:  true,
	StatusGanhos:   true,
}

// IsTerminalStatus reports whether a CRM status forbids further
// automated contact.
func IsTerminalStatus(status string) bool {
	return terminalStatuses[status]
}

var ErrInvalidPhone = errors.New("phone number must have at least 10 digits")

// NormalizePhone strips everything but digits. Numbers with fewer than
// 10 digits are rejected before any store mutation.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// ScanResult reports one Scanner run.
type ScanResult struct {
	TenantID  string   `json:"tenant_id"`
	Scheduled int      `json:"scheduled"`
	Cancelled int      `json:"cancelled"`
	Log       []string `json:"log,omitempty"`
}

// SendRunResult reports one Sender run.
type SendRunResult struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Log    []string `json:"log,omitempty"`
}

// CycleResult is the combined Scanner-then-Sender outcome.
type CycleResult struct {
	Scheduled int      `json:"scheduled"`
	Cancelled int      `json:"cancelled"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Log       []string `json:"log,omitempty"`
}

// AuditResult reports one structural or semantic audit pass.
type AuditResult struct {
	TenantID     string   `json:"tenant_id"`
	Fixed        int      `json:"fixed"`
	TotalChecked int      `json:"total_checked"`
	Log          []string `json:"log"`
}

// ResetResult reports a hard reset of a tenant's schedule.
type ResetResult struct {
	TenantID    string   `json:"tenant_id"`
	ResetCount  int      `json:"reset_count"`
	StatusFixed int      `json:"status_fixed"`
	Log         []string `json:"log"`
}

// ContactState is the manual override gate's view of one contact.
type ContactState struct {
	PhoneNumber string               `json:"phone_number"`
	IsActive    bool                 `json:"is_active"`
	Entry       *redis.ScheduleEntry `json:"entry,omitempty"`
}

// ActiveEntryView is an active entry enriched for UI consumption.
type ActiveEntryView struct {
	redis.ScheduleEntry
	LastMessagePreview string `json:"last_message_preview,omitempty"`
}
