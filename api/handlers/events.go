package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/modelmesh"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const (
	eventWriteTimeout = 5 * time.Second
	eventPingInterval = 30 * time.Second
)

// =============================================================================
// 📣 事件推送 Handler
// =============================================================================

// EventsHandler 通过 WebSocket 推送轮次、演化与专家事件
type EventsHandler struct {
	hub            *modelmesh.EventHub
	originPatterns []string
	logger         *zap.Logger
}

// NewEventsHandler 创建事件推送处理器；originPatterns 为空时只接受同源连接
func NewEventsHandler(hub *modelmesh.EventHub, originPatterns []string, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{
		hub:            hub,
		originPatterns: originPatterns,
		logger:         logger.With(zap.String("component", "events_handler")),
	}
}

// HandleEvents 升级为 WebSocket 并持续推送事件。
// 查询参数 types 为逗号分隔的事件类型过滤。
// @Summary 事件流
// @Tags events
// @Param types query string false "事件类型过滤，如 round.closed,generation.completed"
// @Success 101 "协议切换"
// @Router /api/v1/events [get]
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	filter := parseEventFilter(r.URL.Query().Get("types"))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	events, cancel := h.hub.Subscribe()
	defer cancel()

	// 客户端只接收；CloseRead 在对端关闭时取消 ctx
	ctx := conn.CloseRead(r.Context())
	ticker := time.NewTicker(eventPingInterval)
	defer ticker.Stop()

	h.logger.Debug("event subscriber connected", zap.String("remote", r.RemoteAddr))
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if len(filter) > 0 && !filter[ev.Type] {
				continue
			}
			if err := h.write(ctx, conn, ev); err != nil {
				h.logger.Debug("event subscriber dropped", zap.Error(err))
				return
			}
		case <-ticker.C:
			pingCtx, done := context.WithTimeout(ctx, eventWriteTimeout)
			err := conn.Ping(pingCtx)
			done()
			if err != nil {
				return
			}
		}
	}
}

func (h *EventsHandler) write(ctx context.Context, conn *websocket.Conn, ev modelmesh.Event) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}

func parseEventFilter(raw string) map[modelmesh.EventType]bool {
	if raw == "" {
		return nil
	}
	filter := make(map[modelmesh.EventType]bool)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			filter[modelmesh.EventType(part)] = true
		}
	}
	return filter
}
