package engine

import (
	"context"
	"testing"
	"time"

	"github.com/NextMind-AI/followup-go/redis"
)

func activeEntry(sessionID, phone, context string) *redis.ScheduleEntry {
	return &redis.ScheduleEntry{
		SessionID:           sessionID,
		TenantID:            testTenant,
		PhoneNumber:         phone,
		IsActive:            true,
		LastInteractionAt:   time.Now().Add(-24 * time.Hour),
		ConversationContext: context,
		LeadStatus:          LeadStatusActive,
	}
}

func TestAuditStructural_PausedNumberDeactivated(t *testing.T) {
	e, store, _, crm, _ := newTestEngine(t, Config{})

	store.UpsertEntry(context.Background(), activeEntry("5531999999999", "5531999999999", ""))
	store.UpsertEntry(context.Background(), activeEntry("5531888888888", "5531888888888", ""))

	// Pause list holds the number without the 55 country code.
	crm.SetPaused(testTenant, "31999999999", true)

	result, err := e.AuditStructural(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("AuditStructural returned error: %v", err)
	}

	if result.TotalChecked != 2 {
		t.Errorf("Expected 2 checked, got %d", result.TotalChecked)
	}
	if result.Fixed != 1 {
		t.Fatalf("Expected 1 fixed, got %d (log: %v)", result.Fixed, result.Log)
	}

	paused, _ := store.GetEntry(context.Background(), "5531999999999")
	if paused.IsActive {
		t.Error("Expected paused entry deactivated")
	}
	if paused.LeadStatus != LeadStatusPausedManual {
		t.Errorf("Expected lead status %s, got %s", LeadStatusPausedManual, paused.LeadStatus)
	}

	untouched, _ := store.GetEntry(context.Background(), "5531888888888")
	if !untouched.IsActive {
		t.Error("Expected unpaused, non-terminal entry to stay active")
	}
}

func TestAuditStructural_TerminalStatusDeactivated(t *testing.T) {
	e, store, _, crm, _ := newTestEngine(t, Config{})

	store.UpsertEntry(context.Background(), activeEntry("5531999999999", "5531999999999", ""))
	crm.SetStatus(context.Background(), testTenant, "5531999999999", StatusAgendado, true)

	result, err := e.AuditStructural(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("AuditStructural returned error: %v", err)
	}
	if result.Fixed != 1 {
		t.Fatalf("Expected 1 fixed, got %d", result.Fixed)
	}

	entry, _ := store.GetEntry(context.Background(), "5531999999999")
	if entry.IsActive {
		t.Error("Expected entry with terminal CRM status deactivated")
	}
	if entry.LeadStatus != "status_agendado" {
		t.Errorf("Expected lead status status_agendado, got %s", entry.LeadStatus)
	}
}

func TestAuditSemantic_BookingLanguage(t *testing.T) {
	e, store, _, crm, _ := newTestEngine(t, Config{})

	store.UpsertEntry(context.Background(), activeEntry("5531999999999", "5531999999999", "agendado, te aguardo amanhã"))

	result, err := e.AuditSemantic(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("AuditSemantic returned error: %v", err)
	}
	if result.Fixed != 1 {
		t.Fatalf("Expected 1 fixed, got %d", result.Fixed)
	}

	entry, _ := store.GetEntry(context.Background(), "5531999999999")
	if entry.IsActive {
		t.Error("Expected entry deactivated")
	}
	if entry.LeadStatus != "audit_agendado" {
		t.Errorf("Expected lead status audit_agendado, got %s", entry.LeadStatus)
	}

	status, _ := crm.GetStatus(context.Background(), testTenant, "5531999999999")
	if status == nil || status.Status != StatusAgendado {
		t.Errorf("Expected CRM status converged to %s, got %+v", StatusAgendado, status)
	}
}

func TestAuditSemantic_LossLanguage(t *testing.T) {
	e, store, _, crm, _ := newTestEngine(t, Config{})

	store.UpsertEntry(context.Background(), activeEntry("5531999999999", "5531999999999",
		"não tenho mais interesse, pode parar de mandar mensagem"))

	result, err := e.AuditSemantic(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("AuditSemantic returned error: %v", err)
	}
	if result.Fixed != 1 {
		t.Fatalf("Expected 1 fixed, got %d", result.Fixed)
	}

	entry, _ := store.GetEntry(context.Background(), "5531999999999")
	if entry.LeadStatus != "audit_perdido" {
		t.Errorf("Expected lead status audit_perdido, got %s", entry.LeadStatus)
	}

	status, _ := crm.GetStatus(context.Background(), testTenant, "5531999999999")
	if status == nil || status.Status != StatusPerdido {
		t.Errorf("Expected CRM status converged to %s, got %+v", StatusPerdido, status)
	}
}

func TestAuditSemantic_NoMatchUntouched(t *testing.T) {
	e, store, _, _, _ := newTestEngine(t, Config{})

	store.UpsertEntry(context.Background(), activeEntry("5531999999999", "5531999999999",
		"bom dia, vou pensar e te falo"))

	result, err := e.AuditSemantic(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("AuditSemantic returned error: %v", err)
	}
	if result.Fixed != 0 {
		t.Errorf("Expected 0 fixed, got %d", result.Fixed)
	}

	entry, _ := store.GetEntry(context.Background(), "5531999999999")
	if !entry.IsActive {
		t.Error("Expected unmatched entry untouched")
	}
}

func TestAuditSemantic_MissingContextIsSoft(t *testing.T) {
	e, store, _, _, _ := newTestEngine(t, Config{})

	store.UpsertEntry(context.Background(), activeEntry("5531999999999", "5531999999999", ""))

	result, err := e.AuditSemantic(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("AuditSemantic must not fail on missing context: %v", err)
	}
	if result.Fixed != 0 {
		t.Errorf("Expected 0 fixed, got %d", result.Fixed)
	}
}

func TestAuditSemantic_ManualTerminalStatusKept(t *testing.T) {
	e, store, _, crm, _ := newTestEngine(t, Config{})

	store.UpsertEntry(context.Background(), activeEntry("5531999999999", "5531999999999", "agendado, te aguardo"))
	crm.SetStatus(context.Background(), testTenant, "5531999999999", StatusPerdido, true)

	if _, err := e.AuditSemantic(context.Background(), testTenant); err != nil {
		t.Fatalf("AuditSemantic returned error: %v", err)
	}

	entry, _ := store.GetEntry(context.Background(), "5531999999999")
	if entry.IsActive {
		t.Error("Expected entry deactivated even when CRM status is human-set")
	}

	status, _ := crm.GetStatus(context.Background(), testTenant, "5531999999999")
	if status.Status != StatusPerdido || !status.ManualOverride {
		t.Errorf("Expected human-set status perdido untouched, got %+v", status)
	}
}

func TestAuditSemantic_Idempotent(t *testing.T) {
	e, store, _, _, _ := newTestEngine(t, Config{})

	store.UpsertEntry(context.Background(), activeEntry("5531999999999", "5531999999999", "agendado, te aguardo"))

	first, err := e.AuditSemantic(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("First AuditSemantic returned error: %v", err)
	}
	if first.Fixed != 1 {
		t.Fatalf("Expected 1 fixed on first run, got %d", first.Fixed)
	}

	second, err := e.AuditSemantic(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("Second AuditSemantic returned error: %v", err)
	}
	if second.Fixed != 0 || second.TotalChecked != 0 {
		t.Errorf("Expected second run to be a no-op, got fixed=%d checked=%d", second.Fixed, second.TotalChecked)
	}
}

func TestAudit_ArchivesReport(t *testing.T) {
	e, store, _, _, _ := newTestEngine(t, Config{})
	archiver := NewMockArchiver()
	e.SetArchiver(archiver)

	store.UpsertEntry(context.Background(), activeEntry("5531999999999", "5531999999999", ""))

	if _, err := e.AuditStructural(context.Background(), testTenant); err != nil {
		t.Fatalf("AuditStructural returned error: %v", err)
	}

	reports := archiver.Reports()
	if len(reports) != 1 {
		t.Fatalf("Expected 1 archived report, got %d", len(reports))
	}
	if reports[0].Pass != "structural" || reports[0].TenantID != testTenant {
		t.Errorf("Unexpected archived report metadata: %+v", reports[0])
	}
}

func TestHardReset(t *testing.T) {
	e, store, _, crm, _ := newTestEngine(t, Config{})

	store.UpsertEntry(context.Background(), activeEntry("s1", "5531911111111", ""))
	store.UpsertEntry(context.Background(), activeEntry("s2", "5531922222222", ""))
	store.UpsertEntry(context.Background(), activeEntry("s3", "5531933333333", ""))

	crm.SetStatus(context.Background(), testTenant, "s1", StatusEmFollowUp, false)
	// s2 has no CRM status at all.
	crm.SetStatus(context.Background(), testTenant, "s3", StatusAgendado, false)

	result, err := e.HardReset(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("HardReset returned error: %v", err)
	}

	if result.ResetCount != 3 {
		t.Errorf("Expected reset count 3, got %d", result.ResetCount)
	}
	if result.StatusFixed != 2 {
		t.Errorf("Expected 2 statuses normalized, got %d", result.StatusFixed)
	}

	for _, sessionID := range []string{"s1", "s2", "s3"} {
		entry, _ := store.GetEntry(context.Background(), sessionID)
		if entry.IsActive {
			t.Errorf("Expected entry %s deactivated", sessionID)
		}
		if entry.LeadStatus != LeadStatusResetManual {
			t.Errorf("Expected entry %s lead status %s, got %s", sessionID, LeadStatusResetManual, entry.LeadStatus)
		}
	}

	s1, _ := crm.GetStatus(context.Background(), testTenant, "s1")
	if s1.Status != StatusAtendimento || !s1.ManualOverride {
		t.Errorf("Expected s1 normalized to atendimento with manual override, got %+v", s1)
	}
	s2, _ := crm.GetStatus(context.Background(), testTenant, "s2")
	if s2 == nil || s2.Status != StatusAtendimento {
		t.Errorf("Expected s2 normalized to atendimento, got %+v", s2)
	}
	s3, _ := crm.GetStatus(context.Background(), testTenant, "s3")
	if s3.Status != StatusAgendado {
		t.Errorf("Expected s3 status agendado untouched, got %+v", s3)
	}
}
