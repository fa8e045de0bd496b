// Package tasks 定义后台任务的类型名与载荷。
package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型。
const (
	TypeSessionCleanup  = "guest:session_cleanup"
	TypeResumeRetention = "guest:resume_retention"
)

// SessionCleanupPayload 过期会话清扫任务的载荷。
type SessionCleanupPayload struct {
	// RequestedBy 记录触发方（scheduler/admin），便于排查。
	RequestedBy string `json:"requested_by"`
}

// ResumeRetentionPayload 过期访客简历回收任务的载荷。
type ResumeRetentionPayload struct {
	RequestedBy string `json:"requested_by"`
	// BatchLimit 单次回收的简历上限，0 表示不限。
	BatchLimit int `json:"batch_limit"`
}

// NewSessionCleanupTask 构造过期会话清扫任务。
func NewSessionCleanupTask(requestedBy string) (*asynq.Task, error) {
	payload, err := json.Marshal(SessionCleanupPayload{RequestedBy: requestedBy})
	if err != nil {
		return nil, fmt.Errorf("marshal session cleanup payload: %w", err)
	}
	return asynq.NewTask(TypeSessionCleanup, payload), nil
}

// NewResumeRetentionTask 构造过期访客简历回收任务。
func NewResumeRetentionTask(requestedBy string, batchLimit int) (*asynq.Task, error) {
	payload, err := json.Marshal(ResumeRetentionPayload{RequestedBy: requestedBy, BatchLimit: batchLimit})
	if err != nil {
		return nil, fmt.Errorf("marshal resume retention payload: %w", err)
	}
	return asynq.NewTask(TypeResumeRetention, payload), nil
}
