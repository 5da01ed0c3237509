package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/NextMind-AI/followup-go/tenant"
)

// Client wraps the Redis connection shared by the schedule store, the
// chat-log reader and the CRM/pause stores.
type Client struct {
	rdb *redis.Client
}

type ChatMessage struct {
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	MessageUUID string    `json:"message_uuid,omitempty"`
}

// LeadProfile is the per-session lead record maintained by the
// surrounding CRM. The engine reads it for template variables.
type LeadProfile struct {
	Name          string `json:"name"`
	PhoneNumber   string `json:"phone_number"`
	PreferredDate string `json:"preferred_date"`
	PreferredTime string `json:"preferred_time"`
	Notes         string `json:"notes"`
}

func NewClient(addr, password string, db int) Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	client := Client{rdb: rdb}

	if err := client.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).
			Str("addr", addr).
			Int("db", db).
			Msg("Redis connection failed")
	} else {
		log.Info().
			Str("addr", addr).
			Int("db", db).
			Msg("Redis connected successfully")
	}

	return client
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) AddUserMessage(ctx context.Context, tenantID, sessionID, message, messageUUID string) error {
	chatMsg := ChatMessage{
		Role:        "user",
		Content:     message,
		Timestamp:   time.Now(),
		MessageUUID: messageUUID,
	}

	return c.addMessage(ctx, tenantID, sessionID, chatMsg)
}

func (c *Client) AddBotMessage(ctx context.Context, tenantID, sessionID, message string) error {
	chatMsg := ChatMessage{
		Role:      "assistant",
		Content:   message,
		Timestamp: time.Now(),
	}

	return c.addMessage(ctx, tenantID, sessionID, chatMsg)
}

func (c *Client) addMessage(ctx context.Context, tenantID, sessionID string, message ChatMessage) error {
	tables, err := tenant.Resolve(tenantID)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s:%s", tables.ChatHistory, sessionID)

	messageJSON, err := json.Marshal(message)
	if err != nil {
		return err
	}

	if _, err = c.rdb.RPush(ctx, key, messageJSON).Result(); err != nil {
		return err
	}

	return nil
}

// LatestMessages returns up to limit messages for a session, newest
// last. Malformed stored messages are skipped.
func (c *Client) LatestMessages(ctx context.Context, tenantID, sessionID string, limit int) ([]ChatMessage, error) {
	tables, err := tenant.Resolve(tenantID)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s:%s", tables.ChatHistory, sessionID)

	messages, err := c.rdb.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, err
	}

	var latest []ChatMessage
	for _, message := range messages {
		var msg ChatMessage
		if err := json.Unmarshal([]byte(message), &msg); err != nil {
			continue
		}
		latest = append(latest, msg)
	}

	return latest, nil
}

// ActiveSessions returns up to limit session ids that have chat history
// for the tenant. The scan is bounded so one invocation never walks an
// unbounded keyspace.
func (c *Client) ActiveSessions(ctx context.Context, tenantID string, limit int) ([]string, error) {
	tables, err := tenant.Resolve(tenantID)
	if err != nil {
		return nil, err
	}
	prefix := tables.ChatHistory + ":"

	var sessions []string
	iter := c.rdb.Scan(ctx, 0, prefix+"*", int64(limit)).Iterator()
	for iter.Next(ctx) {
		sessions = append(sessions, iter.Val()[len(prefix):])
		if len(sessions) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (c *Client) LeadProfile(ctx context.Context, tenantID, sessionID string) (*LeadProfile, error) {
	tables, err := tenant.Resolve(tenantID)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("%s:%s", tables.Leads, sessionID)

	fields, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	return &LeadProfile{
		Name:          fields["name"],
		PhoneNumber:   fields["phone_number"],
		PreferredDate: fields["preferred_date"],
		PreferredTime: fields["preferred_time"],
		Notes:         fields["notes"],
	}, nil
}

func (c *Client) UpsertLeadProfile(ctx context.Context, tenantID, sessionID string, profile LeadProfile) error {
	tables, err := tenant.Resolve(tenantID)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s:%s", tables.Leads, sessionID)

	return c.rdb.HSet(ctx, key, map[string]any{
		"name":           profile.Name,
		"phone_number":   profile.PhoneNumber,
		"preferred_date": profile.PreferredDate,
		"preferred_time": profile.PreferredTime,
		"notes":          profile.Notes,
	}).Err()
}
