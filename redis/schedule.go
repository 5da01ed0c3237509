package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScheduleEntry is the engine's unit of state: one per (tenant,
// conversation) pair that has ever been candidate for automated
// follow-up. Entries are deactivated, never deleted.
type ScheduleEntry struct {
	SessionID           string     `json:"session_id"`
	TenantID            string     `json:"tenant_id"`
	PhoneNumber         string     `json:"phone_number"`
	IsActive            bool       `json:"is_active"`
	AttemptCount        int        `json:"attempt_count"`
	NextFollowupAt      *time.Time `json:"next_followup_at,omitempty"`
	LastInteractionAt   time.Time  `json:"last_interaction_at"`
	ConversationContext string     `json:"conversation_context,omitempty"`
	LeadStatus          string     `json:"lead_status"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

var ErrEntryExists = errors.New("schedule entry already exists")

const (
	activeIndexKey = "followup:active"
	dueIndexKey    = "followup:due"
)

func entryKey(sessionID string) string {
	return "followup:entry:" + sessionID
}

func tenantIndexKey(tenantID string) string {
	return "followup:tenant:" + tenantID
}

func phoneIndexKey(phone string) string {
	return "followup:phone:" + phone
}

// claimScript is the serialization point for concurrent senders: it
// succeeds for exactly one caller per (session, attempt_count) value.
var claimScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "is_active") ~= "1" then return 0 end
local attempt = tonumber(redis.call("HGET", KEYS[1], "attempt_count") or "-1")
if attempt ~= tonumber(ARGV[1]) then return 0 end
local due = tonumber(redis.call("HGET", KEYS[1], "next_followup_at") or "0")
if due == 0 or due > tonumber(ARGV[2]) then return 0 end
local claimed = tonumber(redis.call("HGET", KEYS[1], "claimed_until") or "0")
if claimed > tonumber(ARGV[2]) then return 0 end
redis.call("HSET", KEYS[1], "claimed_until", ARGV[3])
return 1
`)

var commitScript = redis.NewScript(`
local attempt = tonumber(redis.call("HGET", KEYS[1], "attempt_count") or "-1")
if attempt ~= tonumber(ARGV[1]) then return 0 end
redis.call("HSET", KEYS[1],
	"attempt_count", tostring(attempt + 1),
	"next_followup_at", ARGV[2],
	"claimed_until", "0",
	"updated_at", ARGV[3])
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[4])
return 1
`)

// refreshScript updates only the fields the Scanner owns, so a refresh
// can never roll back a concurrent Sender's attempt commit.
var refreshScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "is_active") ~= "1" then return 0 end
redis.call("HSET", KEYS[1],
	"conversation_context", ARGV[1],
	"last_interaction_at", ARGV[2],
	"updated_at", ARGV[3])
return 1
`)

var deactivateScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "is_active") ~= "1" then return 0 end
redis.call("HSET", KEYS[1],
	"is_active", "0",
	"lead_status", ARGV[1],
	"next_followup_at", "0",
	"claimed_until", "0",
	"updated_at", ARGV[2])
redis.call("SREM", KEYS[2], ARGV[3])
redis.call("ZREM", KEYS[3], ARGV[3])
return 1
`)

func (c *Client) GetEntry(ctx context.Context, sessionID string) (*ScheduleEntry, error) {
	fields, err := c.rdb.HGetAll(ctx, entryKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return entryFromFields(fields), nil
}

// CreateEntry inserts a new entry. Returns ErrEntryExists when an entry
// for the same session id is already present, including when a
// concurrent caller created it between the caller's lookup and now. The
// existence check and the full write run in one watched transaction, so
// a failed create never leaves a partial row behind.
func (c *Client) CreateEntry(ctx context.Context, entry *ScheduleEntry) error {
	entry.UpdatedAt = time.Now()
	key := entryKey(entry.SessionID)

	err := c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 1 {
			return ErrEntryExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			writeEntryPipe(ctx, pipe, entry)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// The row appeared between the check and the write.
		return ErrEntryExists
	}
	return err
}

// UpsertEntry writes the full entry and repairs every index it appears
// in.
func (c *Client) UpsertEntry(ctx context.Context, entry *ScheduleEntry) error {
	entry.UpdatedAt = time.Now()
	return c.writeEntry(ctx, entry)
}

func (c *Client) writeEntry(ctx context.Context, entry *ScheduleEntry) error {
	pipe := c.rdb.TxPipeline()
	writeEntryPipe(ctx, pipe, entry)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write schedule entry %s: %w", entry.SessionID, err)
	}
	return nil
}

func writeEntryPipe(ctx context.Context, pipe redis.Pipeliner, entry *ScheduleEntry) {
	key := entryKey(entry.SessionID)

	pipe.HSet(ctx, key, entryToFields(entry))

	if entry.IsActive {
		pipe.SAdd(ctx, activeIndexKey, entry.SessionID)
	} else {
		pipe.SRem(ctx, activeIndexKey, entry.SessionID)
		pipe.ZRem(ctx, dueIndexKey, entry.SessionID)
	}

	if entry.IsActive && entry.NextFollowupAt != nil {
		pipe.ZAdd(ctx, dueIndexKey, redis.Z{
			Score:  float64(entry.NextFollowupAt.Unix()),
			Member: entry.SessionID,
		})
	} else {
		pipe.ZRem(ctx, dueIndexKey, entry.SessionID)
	}

	if entry.TenantID != "" {
		pipe.SAdd(ctx, tenantIndexKey(entry.TenantID), entry.SessionID)
	}
	if entry.PhoneNumber != "" {
		pipe.ZAdd(ctx, phoneIndexKey(entry.PhoneNumber), redis.Z{
			Score:  float64(entry.UpdatedAt.Unix()),
			Member: entry.SessionID,
		})
	}
}

// RefreshContext updates an active entry's conversation snapshot without
// touching attempt_count or next_followup_at. Inactive entries are left
// alone.
func (c *Client) RefreshContext(ctx context.Context, sessionID, conversationContext string, lastInteraction time.Time) error {
	return refreshScript.Run(ctx, c.rdb,
		[]string{entryKey(sessionID)},
		conversationContext,
		strconv.FormatInt(lastInteraction.Unix(), 10),
		strconv.FormatInt(time.Now().Unix(), 10),
	).Err()
}

// ActiveEntries returns active entries, tenant-scoped when tenantID is
// non-empty, capped at limit.
func (c *Client) ActiveEntries(ctx context.Context, tenantID string, limit int) ([]ScheduleEntry, error) {
	indexKey := activeIndexKey
	if tenantID != "" {
		indexKey = tenantIndexKey(tenantID)
	}

	sessionIDs, err := c.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}

	var entries []ScheduleEntry
	for _, sessionID := range sessionIDs {
		entry, err := c.GetEntry(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if entry == nil || !entry.IsActive {
			continue
		}
		entries = append(entries, *entry)
		if len(entries) >= limit {
			break
		}
	}

	return entries, nil
}

// DueEntries returns active entries whose next follow-up time has
// arrived, oldest first, capped at limit. tenantID scopes the result
// when non-empty.
func (c *Client) DueEntries(ctx context.Context, tenantID string, now time.Time, limit int) ([]ScheduleEntry, error) {
	rangeBy := &redis.ZRangeBy{
		Min: "1",
		Max: strconv.FormatInt(now.Unix(), 10),
	}
	// A tenant-scoped listing filters after the read, so capping the
	// index read would let other tenants' sessions crowd the batch.
	if tenantID == "" {
		rangeBy.Count = int64(limit)
	}

	sessionIDs, err := c.rdb.ZRangeByScore(ctx, dueIndexKey, rangeBy).Result()
	if err != nil {
		return nil, err
	}

	var entries []ScheduleEntry
	for _, sessionID := range sessionIDs {
		entry, err := c.GetEntry(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if entry == nil || !entry.IsActive {
			continue
		}
		if tenantID != "" && entry.TenantID != tenantID {
			continue
		}
		entries = append(entries, *entry)
		if len(entries) >= limit {
			break
		}
	}

	return entries, nil
}

// ClaimDue atomically claims an entry for dispatch. The claim only
// succeeds when the entry is active, unclaimed, due, and its attempt
// count still equals expectedAttempt — a failed claim means another
// invocation got there first.
func (c *Client) ClaimDue(ctx context.Context, sessionID string, expectedAttempt int, now time.Time, hold time.Duration) (bool, error) {
	res, err := claimScript.Run(ctx, c.rdb,
		[]string{entryKey(sessionID)},
		expectedAttempt,
		now.Unix(),
		now.Add(hold).Unix(),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// CommitAttempt records a successful dispatch: attempt count advances
// and the next follow-up time is scheduled.
func (c *Client) CommitAttempt(ctx context.Context, sessionID string, expectedAttempt int, next time.Time) error {
	res, err := commitScript.Run(ctx, c.rdb,
		[]string{entryKey(sessionID), dueIndexKey},
		expectedAttempt,
		next.Unix(),
		time.Now().Unix(),
		sessionID,
	).Int()
	if err != nil {
		return err
	}
	if res != 1 {
		return fmt.Errorf("attempt commit for %s lost race: attempt count moved past %d", sessionID, expectedAttempt)
	}
	return nil
}

// ReleaseClaim drops an in-flight claim after a transient dispatch
// failure so the next invocation retries the entry untouched.
func (c *Client) ReleaseClaim(ctx context.Context, sessionID string) error {
	return c.rdb.HSet(ctx, entryKey(sessionID), "claimed_until", "0").Err()
}

// Deactivate flips an entry from active to inactive, recording why in
// leadStatus. Returns false when the entry was already inactive or
// missing.
func (c *Client) Deactivate(ctx context.Context, sessionID, leadStatus string) (bool, error) {
	res, err := deactivateScript.Run(ctx, c.rdb,
		[]string{entryKey(sessionID), activeIndexKey, dueIndexKey},
		leadStatus,
		time.Now().Unix(),
		sessionID,
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// LatestEntryByPhone returns the most recently updated entry for a
// normalized phone number, or the specific session's entry when
// sessionID is given. Returns nil when nothing matches.
func (c *Client) LatestEntryByPhone(ctx context.Context, phone, sessionID string) (*ScheduleEntry, error) {
	if sessionID != "" {
		entry, err := c.GetEntry(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if entry == nil || entry.PhoneNumber != phone {
			return nil, nil
		}
		return entry, nil
	}

	sessionIDs, err := c.rdb.ZRevRange(ctx, phoneIndexKey(phone), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	return c.GetEntry(ctx, sessionIDs[0])
}

func entryToFields(entry *ScheduleEntry) map[string]any {
	isActive := "0"
	if entry.IsActive {
		isActive = "1"
	}
	nextFollowup := int64(0)
	if entry.NextFollowupAt != nil {
		nextFollowup = entry.NextFollowupAt.Unix()
	}

	return map[string]any{
		"session_id":           entry.SessionID,
		"tenant_id":            entry.TenantID,
		"phone_number":         entry.PhoneNumber,
		"is_active":            isActive,
		"attempt_count":        strconv.Itoa(entry.AttemptCount),
		"next_followup_at":     strconv.FormatInt(nextFollowup, 10),
		"last_interaction_at":  strconv.FormatInt(entry.LastInteractionAt.Unix(), 10),
		"conversation_context": entry.ConversationContext,
		"lead_status":          entry.LeadStatus,
		"updated_at":           strconv.FormatInt(entry.UpdatedAt.Unix(), 10),
	}
}

func entryFromFields(fields map[string]string) *ScheduleEntry {
	entry := &ScheduleEntry{
		SessionID:           fields["session_id"],
		TenantID:            fields["tenant_id"],
		PhoneNumber:         fields["phone_number"],
		IsActive:            fields["is_active"] == "1",
		ConversationContext: fields["conversation_context"],
		LeadStatus:          fields["lead_status"],
	}

	entry.AttemptCount, _ = strconv.Atoi(fields["attempt_count"])

	if unix, err := strconv.ParseInt(fields["next_followup_at"], 10, 64); err == nil && unix > 0 {
		at := time.Unix(unix, 0)
		entry.NextFollowupAt = &at
	}
	if unix, err := strconv.ParseInt(fields["last_interaction_at"], 10, 64); err == nil && unix > 0 {
		entry.LastInteractionAt = time.Unix(unix, 0)
	}
	if unix, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil && unix > 0 {
		entry.UpdatedAt = time.Unix(unix, 0)
	}

	return entry
}
