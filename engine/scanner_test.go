package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/NextMind-AI/followup-go/redis"
)

const testTenant = "unidade_teste"

func TestScan_SchedulesStaleConversation(t *testing.T) {
	e, store, chatLog, _, _ := newTestEngine(t, Config{StalenessThreshold: 12 * time.Hour})
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	fixClock(e, now)

	chatLog.AddMessage(testTenant, "5531988887777", "user", "quero saber os valores", now.Add(-24*time.Hour))
	chatLog.AddMessage(testTenant, "5531988887777", "assistant", "claro, segue a tabela", now.Add(-23*time.Hour))

	result, err := e.Scan(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	if result.Scheduled != 1 {
		t.Fatalf("Expected 1 scheduled, got %d", result.Scheduled)
	}

	entry, _ := store.GetEntry(context.Background(), "5531988887777")
	if entry == nil || !entry.IsActive {
		t.Fatal("Expected an active entry for the stale conversation")
	}
	if entry.PhoneNumber != "5531988887777" {
		t.Errorf("Expected phone 5531988887777, got %s", entry.PhoneNumber)
	}
	if entry.NextFollowupAt == nil || entry.NextFollowupAt.After(now) {
		t.Error("Expected entry to be due immediately after scheduling")
	}
	if entry.ConversationContext == "" {
		t.Error("Expected conversation context snapshot to be captured")
	}
}

func TestScan_FreshConversationNotScheduled(t *testing.T) {
	e, store, chatLog, _, _ := newTestEngine(t, Config{StalenessThreshold: 12 * time.Hour})
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	fixClock(e, now)

	chatLog.AddMessage(testTenant, "5531988887777", "user", "oi", now.Add(-1*time.Hour))

	result, err := e.Scan(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if result.Scheduled != 0 {
		t.Errorf("Expected 0 scheduled, got %d", result.Scheduled)
	}

	entry, _ := store.GetEntry(context.Background(), "5531988887777")
	if entry != nil {
		t.Error("Expected no entry for a fresh conversation")
	}
}

func TestScan_ReplyCancelsActiveEntry(t *testing.T) {
	e, store, chatLog, _, _ := newTestEngine(t, Config{StalenessThreshold: 12 * time.Hour})
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	fixClock(e, now)

	scheduledAt := now.Add(-48 * time.Hour)
	next := now.Add(24 * time.Hour)
	store.UpsertEntry(context.Background(), &redis.ScheduleEntry{
		SessionID:         "5531988887777",
		TenantID:          testTenant,
		PhoneNumber:       "5531988887777",
		IsActive:          true,
		AttemptCount:      1,
		NextFollowupAt:    &next,
		LastInteractionAt: scheduledAt,
		LeadStatus:        LeadStatusActive,
	})

	// The lead answered after the entry was scheduled.
	chatLog.AddMessage(testTenant, "5531988887777", "user", "oi, desculpa a demora", now.Add(-1*time.Hour))

	result, err := e.Scan(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	if result.Cancelled != 1 {
		t.Fatalf("Expected 1 cancelled, got %d", result.Cancelled)
	}

	entry, _ := store.GetEntry(context.Background(), "5531988887777")
	if entry.IsActive {
		t.Error("Expected entry to be deactivated after the lead replied")
	}
	if entry.LeadStatus != LeadStatusResetReply {
		t.Errorf("Expected lead status %s, got %s", LeadStatusResetReply, entry.LeadStatus)
	}
	if entry.NextFollowupAt != nil {
		t.Error("Expected next follow-up to be cleared")
	}
}

func TestScan_SkipsTerminalStatusAndPaused(t *testing.T) {
	e, store, chatLog, crm, _ := newTestEngine(t, Config{StalenessThreshold: 12 * time.Hour})
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	fixClock(e, now)

	chatLog.AddMessage(testTenant, "5531911112222", "user", "ok", now.Add(-24*time.Hour))
	crm.SetStatus(context.Background(), testTenant, "5531911112222", StatusAgendado, false)

	chatLog.AddMessage(testTenant, "5531933334444", "user", "ok", now.Add(-24*time.Hour))
	crm.SetPaused(testTenant, "5531933334444", true)

	result, err := e.Scan(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	if result.Scheduled != 0 {
		t.Errorf("Expected 0 scheduled, got %d", result.Scheduled)
	}
	for _, sessionID := range []string{"5531911112222", "5531933334444"} {
		if entry, _ := store.GetEntry(context.Background(), sessionID); entry != nil {
			t.Errorf("Expected no entry for %s", sessionID)
		}
	}
}

func TestScan_ManuallyDisabledContactStaysDisabled(t *testing.T) {
	e, store, chatLog, _, _ := newTestEngine(t, Config{StalenessThreshold: 12 * time.Hour})
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	fixClock(e, now)

	next := now.Add(-time.Minute)
	store.UpsertEntry(context.Background(), &redis.ScheduleEntry{
		SessionID:         "5531988887777",
		TenantID:          testTenant,
		PhoneNumber:       "5531988887777",
		IsActive:          true,
		NextFollowupAt:    &next,
		LastInteractionAt: now.Add(-48 * time.Hour),
		LeadStatus:        LeadStatusActive,
	})

	if _, err := e.Toggle(context.Background(), "5531988887777", false, ""); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}

	// The conversation still looks stale to the Scanner.
	chatLog.AddMessage(testTenant, "5531988887777", "user", "quero saber os valores", now.Add(-24*time.Hour))

	result, err := e.Scan(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	if result.Scheduled != 0 {
		t.Fatalf("Expected 0 scheduled, got %d", result.Scheduled)
	}

	entry, _ := store.GetEntry(context.Background(), "5531988887777")
	if entry.IsActive {
		t.Error("Expected manually disabled entry to stay inactive after Scan")
	}
	if entry.LeadStatus != LeadStatusDisabledManual {
		t.Errorf("Expected lead status %s, got %s", LeadStatusDisabledManual, entry.LeadStatus)
	}

	// An explicit re-enable is still honored.
	state, err := e.Toggle(context.Background(), "5531988887777", true, "")
	if err != nil {
		t.Fatalf("Re-enable returned error: %v", err)
	}
	if !state.IsActive {
		t.Error("Expected explicit re-enable to reactivate the contact")
	}
}

func TestScan_RefreshPreservesSenderCommit(t *testing.T) {
	e, store, chatLog, _, gateway := newTestEngine(t, Config{StalenessThreshold: 12 * time.Hour})
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	fixClock(e, now)

	chatLog.AddMessage(testTenant, "5531988887777", "user", "quanto custa?", now.Add(-24*time.Hour))

	if _, err := e.Scan(context.Background(), testTenant); err != nil {
		t.Fatalf("First Scan returned error: %v", err)
	}
	if _, err := e.Send(context.Background(), ""); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	committed, _ := store.GetEntry(context.Background(), "5531988887777")
	if committed.AttemptCount != 1 {
		t.Fatalf("Expected attempt count 1 after Send, got %d", committed.AttemptCount)
	}

	// A later Scan refreshes the snapshot while the attempt state from
	// the Send must survive untouched.
	chatLog.AddMessage(testTenant, "5531988887777", "assistant", "segue a tabela de valores", now.Add(-23*time.Hour))
	if _, err := e.Scan(context.Background(), testTenant); err != nil {
		t.Fatalf("Second Scan returned error: %v", err)
	}

	entry, _ := store.GetEntry(context.Background(), "5531988887777")
	if entry.AttemptCount != 1 {
		t.Errorf("Scan rolled back attempt count: expected 1, got %d", entry.AttemptCount)
	}
	if entry.NextFollowupAt == nil || !entry.NextFollowupAt.Equal(*committed.NextFollowupAt) {
		t.Errorf("Scan moved next follow-up: expected %v, got %v", committed.NextFollowupAt, entry.NextFollowupAt)
	}
	if !strings.Contains(entry.ConversationContext, "tabela de valores") {
		t.Error("Expected refreshed conversation context snapshot")
	}

	if _, err := e.Send(context.Background(), ""); err != nil {
		t.Fatalf("Second Send returned error: %v", err)
	}
	if got := len(gateway.Sent()); got != 1 {
		t.Fatalf("Expected the committed attempt to stay dispatched exactly once, got %d gateway calls", got)
	}
}

func TestScan_InvalidTenant(t *testing.T) {
	e, _, _, _, _ := newTestEngine(t, Config{})

	if _, err := e.Scan(context.Background(), "Bad Tenant!"); err == nil {
		t.Error("Expected error for invalid tenant id")
	}
}

func TestRunCycle_ScansRegisteredTenantsAndSends(t *testing.T) {
	e, store, chatLog, _, gateway := newTestEngine(t, Config{
		StalenessThreshold: 12 * time.Hour,
		Tenants:            []string{testTenant},
	})
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	fixClock(e, now)

	chatLog.AddMessage(testTenant, "5531988887777", "user", "quanto custa?", now.Add(-24*time.Hour))

	result, err := e.RunCycle(context.Background(), "")
	if err != nil {
		t.Fatalf("RunCycle returned error: %v", err)
	}

	if result.Scheduled != 1 {
		t.Errorf("Expected 1 scheduled, got %d", result.Scheduled)
	}
	if result.Sent != 1 {
		t.Errorf("Expected 1 sent, got %d", result.Sent)
	}
	if len(gateway.Sent()) != 1 {
		t.Fatalf("Expected exactly 1 gateway call, got %d", len(gateway.Sent()))
	}

	entry, _ := store.GetEntry(context.Background(), "5531988887777")
	if entry.AttemptCount != 1 {
		t.Errorf("Expected attempt count 1 after cycle, got %d", entry.AttemptCount)
	}
}
