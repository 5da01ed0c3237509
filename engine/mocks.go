package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/NextMind-AI/followup-go/redis"
	"github.com/NextMind-AI/followup-go/vonage"
)

// In-memory implementations of the engine ports, used by local tests.
// MockScheduleStore reproduces the store's conditional-update semantics
// (claims, conditional deactivation) under a mutex so concurrency tests
// exercise the same guarantees the Redis scripts give.

type MockScheduleStore struct {
	mu      sync.Mutex
	entries map[string]*redis.ScheduleEntry
	claims  map[string]time.Time
}

func NewMockScheduleStore() *MockScheduleStore {
	return &MockScheduleStore{
		entries: make(map[string]*redis.ScheduleEntry),
		claims:  make(map[string]time.Time),
	}
}

func copyEntry(entry *redis.ScheduleEntry) *redis.ScheduleEntry {
	if entry == nil {
		return nil
	}
	clone := *entry
	if entry.NextFollowupAt != nil {
		at := *entry.NextFollowupAt
		clone.NextFollowupAt = &at
	}
	return &clone
}

func (m *MockScheduleStore) GetEntry(_ context.Context, sessionID string) (*redis.ScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyEntry(m.entries[sessionID]), nil
}

func (m *MockScheduleStore) CreateEntry(_ context.Context, entry *redis.ScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[entry.SessionID]; exists {
		return redis.ErrEntryExists
	}
	entry.UpdatedAt = time.Now()
	m.entries[entry.SessionID] = copyEntry(entry)
	return nil
}

func (m *MockScheduleStore) UpsertEntry(_ context.Context, entry *redis.ScheduleEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.UpdatedAt = time.Now()
	m.entries[entry.SessionID] = copyEntry(entry)
	return nil
}

func (m *MockScheduleStore) RefreshContext(_ context.Context, sessionID, conversationContext string, lastInteraction time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[sessionID]
	if !exists || !entry.IsActive {
		return nil
	}
	entry.ConversationContext = conversationContext
	entry.LastInteractionAt = lastInteraction
	entry.UpdatedAt = time.Now()
	return nil
}

func (m *MockScheduleStore) ActiveEntries(_ context.Context, tenantID string, limit int) ([]redis.ScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []redis.ScheduleEntry
	for _, entry := range m.entries {
		if !entry.IsActive {
			continue
		}
		if tenantID != "" && entry.TenantID != tenantID {
			continue
		}
		entries = append(entries, *copyEntry(entry))
		if len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

func (m *MockScheduleStore) DueEntries(_ context.Context, tenantID string, now time.Time, limit int) ([]redis.ScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []redis.ScheduleEntry
	for _, entry := range m.entries {
		if !entry.IsActive || entry.NextFollowupAt == nil || entry.NextFollowupAt.After(now) {
			continue
		}
		if tenantID != "" && entry.TenantID != tenantID {
			continue
		}
		entries = append(entries, *copyEntry(entry))
		if len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

func (m *MockScheduleStore) ClaimDue(_ context.Context, sessionID string, expectedAttempt int, now time.Time, hold time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[sessionID]
	if !exists || !entry.IsActive || entry.AttemptCount != expectedAttempt {
		return false, nil
	}
	if entry.NextFollowupAt == nil || entry.NextFollowupAt.After(now) {
		return false, nil
	}
	if claimed, ok := m.claims[sessionID]; ok && claimed.After(now) {
		return false, nil
	}
	m.claims[sessionID] = now.Add(hold)
	return true, nil
}

func (m *MockScheduleStore) CommitAttempt(_ context.Context, sessionID string, expectedAttempt int, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[sessionID]
	if !exists || entry.AttemptCount != expectedAttempt {
		return nil
	}
	entry.AttemptCount = expectedAttempt + 1
	entry.NextFollowupAt = &next
	entry.UpdatedAt = time.Now()
	delete(m.claims, sessionID)
	return nil
}

func (m *MockScheduleStore) ReleaseClaim(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, sessionID)
	return nil
}

func (m *MockScheduleStore) Deactivate(_ context.Context, sessionID, leadStatus string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[sessionID]
	if !exists || !entry.IsActive {
		return false, nil
	}
	entry.IsActive = false
	entry.LeadStatus = leadStatus
	entry.NextFollowupAt = nil
	entry.UpdatedAt = time.Now()
	delete(m.claims, sessionID)
	return true, nil
}

func (m *MockScheduleStore) LatestEntryByPhone(_ context.Context, phone, sessionID string) (*redis.ScheduleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessionID != "" {
		entry := m.entries[sessionID]
		if entry == nil || entry.PhoneNumber != phone {
			return nil, nil
		}
		return copyEntry(entry), nil
	}

	var latest *redis.ScheduleEntry
	for _, entry := range m.entries {
		if entry.PhoneNumber != phone {
			continue
		}
		if latest == nil || entry.UpdatedAt.After(latest.UpdatedAt) {
			latest = entry
		}
	}
	return copyEntry(latest), nil
}

type MockChatLog struct {
	mu       sync.Mutex
	messages map[string]map[string][]redis.ChatMessage
	profiles map[string]map[string]*redis.LeadProfile
}

func NewMockChatLog() *MockChatLog {
	return &MockChatLog{
		messages: make(map[string]map[string][]redis.ChatMessage),
		profiles: make(map[string]map[string]*redis.LeadProfile),
	}
}

func (m *MockChatLog) AddMessage(tenantID, sessionID, role, content string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.messages[tenantID] == nil {
		m.messages[tenantID] = make(map[string][]redis.ChatMessage)
	}
	m.messages[tenantID][sessionID] = append(m.messages[tenantID][sessionID], redis.ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: at,
	})
}

func (m *MockChatLog) SetProfile(tenantID, sessionID string, profile *redis.LeadProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.profiles[tenantID] == nil {
		m.profiles[tenantID] = make(map[string]*redis.LeadProfile)
	}
	m.profiles[tenantID][sessionID] = profile
}

func (m *MockChatLog) ActiveSessions(_ context.Context, tenantID string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sessions []string
	for sessionID := range m.messages[tenantID] {
		sessions = append(sessions, sessionID)
		if len(sessions) >= limit {
			break
		}
	}
	return sessions, nil
}

func (m *MockChatLog) LatestMessages(_ context.Context, tenantID, sessionID string, limit int) ([]redis.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	messages := m.messages[tenantID][sessionID]
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return append([]redis.ChatMessage(nil), messages...), nil
}

func (m *MockChatLog) LeadProfile(_ context.Context, tenantID, sessionID string) (*redis.LeadProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[tenantID][sessionID], nil
}

type MockCRMStore struct {
	mu       sync.Mutex
	statuses map[string]*redis.StatusRecord
	paused   map[string]map[string]bool
}

func NewMockCRMStore() *MockCRMStore {
	return &MockCRMStore{
		statuses: make(map[string]*redis.StatusRecord),
		paused:   make(map[string]map[string]bool),
	}
}

func (m *MockCRMStore) GetStatus(_ context.Context, tenantID, sessionID string) (*redis.StatusRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := m.statuses[tenantID+":"+sessionID]
	if record == nil {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

func (m *MockCRMStore) SetStatus(_ context.Context, tenantID, sessionID, status string, manualOverride bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statuses[tenantID+":"+sessionID] = &redis.StatusRecord{
		Status:         status,
		ManualOverride: manualOverride,
	}
	return nil
}

func (m *MockCRMStore) SetPaused(tenantID, phone string, paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused[tenantID] == nil {
		m.paused[tenantID] = make(map[string]bool)
	}
	m.paused[tenantID][phone] = paused
}

func (m *MockCRMStore) IsPaused(_ context.Context, tenantID, phone string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.paused[tenantID]
	if set == nil {
		return false, nil
	}
	if set[phone] {
		return true, nil
	}
	// The pause list may hold numbers without the 55 country code.
	if strings.HasPrefix(phone, "55") && len(phone) > 11 && set[phone[2:]] {
		return true, nil
	}
	return set["55"+phone], nil
}

type SentMessage struct {
	To   string
	Text string
}

type MockGateway struct {
	mu      sync.Mutex
	sent    []SentMessage
	sendErr error
	online  bool
}

func NewMockGateway() *MockGateway {
	return &MockGateway{online: true}
}

func (m *MockGateway) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

func (m *MockGateway) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}

func (m *MockGateway) Send(_ context.Context, toNumber, text string) (*vonage.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return &vonage.SendResult{Success: false, Error: m.sendErr.Error()}, m.sendErr
	}
	m.sent = append(m.sent, SentMessage{To: toNumber, Text: text})
	return &vonage.SendResult{Success: true, ProviderMessageID: "mock-message-uuid"}, nil
}

func (m *MockGateway) CheckConnectivity(_ context.Context) vonage.ConnectivityStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return vonage.ConnectivityStatus{Online: m.online}
}

type ArchivedReport struct {
	TenantID string
	Pass     string
	Report   any
}

type MockArchiver struct {
	mu      sync.Mutex
	reports []ArchivedReport
}

func NewMockArchiver() *MockArchiver {
	return &MockArchiver{}
}

func (m *MockArchiver) ArchiveReport(_ context.Context, tenantID, pass string, report any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, ArchivedReport{TenantID: tenantID, Pass: pass, Report: report})
}

func (m *MockArchiver) Reports() []ArchivedReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ArchivedReport(nil), m.reports...)
}
