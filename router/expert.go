package router

import (
	"time"
)

// Status 专家状态
type Status string

const (
	StatusActive   Status = "active"
	StatusIdle     Status = "idle"
	StatusTraining Status = "training"
	StatusSyncing  Status = "syncing"
)

// Valid 检查状态是否已知
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusIdle, StatusTraining, StatusSyncing:
		return true
	}
	return false
}

// transitions 状态机：idle → training → active → idle | syncing，syncing → active | idle
var transitions = map[Status][]Status{
	StatusIdle:     {StatusTraining},
	StatusTraining: {StatusActive},
	StatusActive:   {StatusIdle, StatusSyncing},
	StatusSyncing:  {StatusActive, StatusIdle},
}

// CanTransition 检查 from → to 是否合法；相同状态视为合法的空操作
func CanTransition(from, to Status) bool {
	if from == to {
		return from.Valid()
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Expert 一个可路由的专家模型。路由器只读，状态与负载由遥测源更新。
type Expert struct {
	ID             string    `json:"id"`
	Domain         Domain    `json:"domain"`
	Accuracy       float64   `json:"accuracy"`
	Load           float64   `json:"load"`
	Status         Status    `json:"status"`
	Specialization string    `json:"specialization,omitempty"`
	Expertise      float64   `json:"expertise,omitempty"`
	ResponseTimeMs float64   `json:"response_time_ms"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// expertise 未设置（0）时按 1 处理
func (e Expert) expertise() float64 {
	if e.Expertise <= 0 {
		return 1
	}
	return e.Expertise
}

// statusFactor active 为 1，其余为 0.3
func (e Expert) statusFactor() float64 {
	if e.Status == StatusActive {
		return 1.0
	}
	return 0.3
}
