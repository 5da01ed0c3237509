package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/followup-go/tenant"
)

// Config carries the engine's tuning knobs. Zero values fall back to
// the defaults below.
type Config struct {
	// StalenessThreshold is how long a conversation must sit without a
	// new inbound message before it qualifies for follow-up.
	StalenessThreshold time.Duration
	// ScanBatchLimit caps conversations walked per Scanner run.
	ScanBatchLimit int
	// SendBatchLimit caps due entries dispatched per Sender run.
	SendBatchLimit int
	// ContextMessageCount is how many recent messages are snapshotted
	// into an entry's conversation context.
	ContextMessageCount int
	// ClaimHold is how long a dispatch claim stays exclusive before a
	// crashed invocation's claim expires.
	ClaimHold time.Duration
	// BackoffIntervals is the wait before each successive follow-up,
	// keyed by attempt count (1-based) and floored at the last value.
	BackoffIntervals []time.Duration
	// Tenants is the registry driving all-tenant cycles.
	Tenants []string
}

func (c Config) withDefaults() Config {
	if c.StalenessThreshold == 0 {
		c.StalenessThreshold = 12 * time.Hour
	}
	if c.ScanBatchLimit == 0 {
		c.ScanBatchLimit = 200
	}
	if c.SendBatchLimit == 0 {
		c.SendBatchLimit = 100
	}
	if c.ContextMessageCount == 0 {
		c.ContextMessageCount = 10
	}
	if c.ClaimHold == 0 {
		c.ClaimHold = 2 * time.Minute
	}
	if len(c.BackoffIntervals) == 0 {
		c.BackoffIntervals = []time.Duration{
			24 * time.Hour,
			48 * time.Hour,
			96 * time.Hour,
			168 * time.Hour,
		}
	}
	return c
}

// Engine is the follow-up scheduling and reconciliation engine. It is
// built for short-lived, possibly overlapping invocations: all
// cross-invocation coordination happens at the schedule store, never in
// process memory.
type Engine struct {
	store      ScheduleStoreInterface
	chatLog    ChatLogInterface
	crm        CRMStoreInterface
	gateway    MessageGatewayInterface
	templates  TemplateSourceInterface
	classifier Classifier
	archiver   ReportArchiverInterface
	config     Config
	now        func() time.Time
}

func New(
	store ScheduleStoreInterface,
	chatLog ChatLogInterface,
	crm CRMStoreInterface,
	gateway MessageGatewayInterface,
	templates TemplateSourceInterface,
	classifier Classifier,
	config Config,
) *Engine {
	return &Engine{
		store:      store,
		chatLog:    chatLog,
		crm:        crm,
		gateway:    gateway,
		templates:  templates,
		classifier: classifier,
		config:     config.withDefaults(),
		now:        time.Now,
	}
}

// SetArchiver plugs in an optional audit-report archiver. Without one,
// reports are only returned to the caller.
func (e *Engine) SetArchiver(archiver ReportArchiverInterface) {
	e.archiver = archiver
}

// RunCycle runs Scanner then Sender. With a tenant id it is scoped to
// that tenant; without one it scans every registered tenant and then
// sends globally.
func (e *Engine) RunCycle(ctx context.Context, tenantID string) (*CycleResult, error) {
	result := &CycleResult{}

	tenants := e.config.Tenants
	if tenantID != "" {
		if !tenant.Valid(tenantID) {
			return nil, fmt.Errorf("invalid tenant id %q", tenantID)
		}
		tenants = []string{tenantID}
	}

	for _, id := range tenants {
		scan, err := e.Scan(ctx, id)
		if err != nil {
			// One tenant failing to scan must not starve the others.
			log.Error().Err(err).Str("tenant_id", id).Msg("Scan failed for tenant")
			result.Log = append(result.Log, fmt.Sprintf("tenant %s: scan failed: %v", id, err))
			continue
		}
		result.Scheduled += scan.Scheduled
		result.Cancelled += scan.Cancelled
		result.Log = append(result.Log, scan.Log...)
	}

	send, err := e.Send(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	result.Sent = send.Sent
	result.Failed = send.Failed
	result.Log = append(result.Log, send.Log...)

	log.Info().
		Str("tenant_id", tenantID).
		Int("scheduled", result.Scheduled).
		Int("cancelled", result.Cancelled).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("Cycle completed")

	return result, nil
}

// backoff returns the wait before the follow-up numbered by attempt
// (1-based). Attempts past the configured intervals floor at the last
// one, so the interval never shrinks.
func (e *Engine) backoff(attempt int) time.Duration {
	intervals := e.config.BackoffIntervals
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(intervals) {
		attempt = len(intervals)
	}
	return intervals[attempt-1]
}
