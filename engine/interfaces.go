package engine

import (
	"context"
	"time"

	"github.com/NextMind-AI/followup-go/redis"
	"github.com/NextMind-AI/followup-go/template"
	"github.com/NextMind-AI/followup-go/vonage"
)

// ScheduleStoreInterface define os métodos necessários do schedule store
type ScheduleStoreInterface interface {
	GetEntry(ctx context.Context, sessionID string) (*redis.ScheduleEntry, error)
	CreateEntry(ctx context.Context, entry *redis.ScheduleEntry) error
	UpsertEntry(ctx context.Context, entry *redis.ScheduleEntry) error
	RefreshContext(ctx context.Context, sessionID, conversationContext string, lastInteraction time.Time) error
	ActiveEntries(ctx context.Context, tenantID string, limit int) ([]redis.ScheduleEntry, error)
	DueEntries(ctx context.Context, tenantID string, now time.Time, limit int) ([]redis.ScheduleEntry, error)
	ClaimDue(ctx context.Context, sessionID string, expectedAttempt int, now time.Time, hold time.Duration) (bool, error)
	CommitAttempt(ctx context.Context, sessionID string, expectedAttempt int, next time.Time) error
	ReleaseClaim(ctx context.Context, sessionID string) error
	Deactivate(ctx context.Context, sessionID, leadStatus string) (bool, error)
	LatestEntryByPhone(ctx context.Context, phone, sessionID string) (*redis.ScheduleEntry, error)
}

// ChatLogInterface define os métodos necessários do leitor de histórico
type ChatLogInterface interface {
	ActiveSessions(ctx context.Context, tenantID string, limit int) ([]string, error)
	LatestMessages(ctx context.Context, tenantID, sessionID string, limit int) ([]redis.ChatMessage, error)
	LeadProfile(ctx context.Context, tenantID, sessionID string) (*redis.LeadProfile, error)
}

// CRMStoreInterface define os métodos necessários do CRM e da pause list
type CRMStoreInterface interface {
	GetStatus(ctx context.Context, tenantID, sessionID string) (*redis.StatusRecord, error)
	SetStatus(ctx context.Context, tenantID, sessionID, status string, manualOverride bool) error
	IsPaused(ctx context.Context, tenantID, phone string) (bool, error)
}

// MessageGatewayInterface define os métodos necessários do canal de envio
type MessageGatewayInterface interface {
	Send(ctx context.Context, toNumber, text string) (*vonage.SendResult, error)
	CheckConnectivity(ctx context.Context) vonage.ConnectivityStatus
}

// TemplateSourceInterface define a origem dos templates de follow-up
type TemplateSourceInterface interface {
	ByStage(stage int) template.FollowUpTemplate
}

// Classifier decides what a conversation's recent content says about the
// lead's outcome. Implementations range from keyword matching to
// model-backed classification; the audit control flow doesn't care.
type Classifier interface {
	Classify(text string) (Outcome, bool)
}

// ReportArchiverInterface recebe relatórios de auditoria para arquivamento
type ReportArchiverInterface interface {
	ArchiveReport(ctx context.Context, tenantID, pass string, report any)
}
