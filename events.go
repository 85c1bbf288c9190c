package modelmesh

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType 事件类型
type EventType string

const (
	EventRoundClosed         EventType = "round.closed"
	EventRoundSkipped        EventType = "round.skipped"
	EventGenerationCompleted EventType = "generation.completed"
	EventExpertTransitioned  EventType = "expert.transitioned"
)

// Event 推送给看板的轮次、代际与专家状态事件
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	Round        uint64    `json:"round,omitempty"`
	SnapshotID   string    `json:"snapshot_id,omitempty"`
	Participants int       `json:"participants,omitempty"`
	Generation   uint64    `json:"generation,omitempty"`
	CandidateID  string    `json:"candidate_id,omitempty"`
	Score        float64   `json:"score,omitempty"`
	ExpertID     string    `json:"expert_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func newEvent(t EventType, now time.Time) Event {
	return Event{ID: uuid.NewString(), Type: t, Timestamp: now.UTC()}
}

// =============================================================================
// 📣 进程内事件分发
// =============================================================================

// EventHub 将事件扇出给所有订阅者。订阅者缓冲区满时丢弃该事件，
// 发布方永不阻塞。
type EventHub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	buffer int
	closed bool
}

// NewEventHub 创建事件中心，buffer 为每个订阅者的缓冲区大小
func NewEventHub(buffer int) *EventHub {
	if buffer < 1 {
		buffer = 16
	}
	return &EventHub{subs: make(map[uint64]chan Event), buffer: buffer}
}

// Subscribe 注册订阅者，返回事件通道与取消函数
func (h *EventHub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Publish 广播事件，返回被丢弃的订阅者数
func (h *EventHub) Publish(e Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			dropped++
		}
	}
	return dropped
}

// Subscribers 当前订阅者数量
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close 关闭所有订阅通道
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
