// Package notify 通过 Redis Pub/Sub 向前端推送访客会话事件，
// WebSocket 层订阅对应频道后转发给浏览器。
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 事件类型。
const (
	EventSessionConverted = "session_converted"
	EventSessionExpired   = "session_expired"
	EventQuotaChanged     = "quota_changed"
)

// Event 是推送给前端的会话事件。
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
	At        time.Time      `json:"at"`
}

// Publisher 负责向会话频道发布事件。
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher 构造事件发布器。
func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// SessionChannel 返回某个会话的事件频道名。
func SessionChannel(sessionID string) string {
	return "cvforge:guest:events:" + sessionID
}

// PublishSessionEvent 把事件发布到会话频道。
// 没有订阅者时发布依然成功，事件即丢（前端重连后主动拉取状态）。
func (p *Publisher) PublishSessionEvent(ctx context.Context, sessionID string, event Event) error {
	if p == nil || p.rdb == nil {
		return nil
	}

	event.SessionID = sessionID
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal session event: %w", err)
	}
	if err := p.rdb.Publish(ctx, SessionChannel(sessionID), payload).Err(); err != nil {
		return fmt.Errorf("publish session event: %w", err)
	}
	return nil
}

// Subscribe 订阅某个会话的事件频道。调用方负责关闭返回的 PubSub。
func (p *Publisher) Subscribe(ctx context.Context, sessionID string) *redis.PubSub {
	return p.rdb.Subscribe(ctx, SessionChannel(sessionID))
}
