package watch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/date-night/backend/internal/logger"
	"github.com/zhouzirui/date-night/backend/internal/model/session"
	"github.com/zhouzirui/date-night/backend/internal/service/pairing"
	"github.com/zhouzirui/date-night/backend/pkg/utils"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second

	// DefaultPollInterval 重新读取存储的间隔。完成事件只在本实例内广播，
	// 多实例部署时由轮询发现其他实例写入的计划。
	DefaultPollInterval = 5 * time.Second
)

// Watcher 会话状态订阅能力
type Watcher interface {
	Watch(ctx context.Context, id string) (session.View, <-chan session.View, func(), error)
	Status(ctx context.Context, id string) (session.View, error)
}

// Handler 通过 WebSocket 推送会话完成事件，首位伴侣无需轮询
type Handler struct {
	svc          Watcher
	log          *logger.Logger
	upgrader     websocket.Upgrader
	pollInterval time.Duration
}

type outgoingMessage struct {
	Type      string       `json:"type"`
	SessionID string       `json:"sessionId"`
	Data      session.View `json:"data"`
	Timestamp int64        `json:"timestamp"`
}

// New 创建会话订阅处理器
func New(svc Watcher, log *logger.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With("handler", "watch"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		pollInterval: DefaultPollInterval,
	}
}

// WithPollInterval 覆盖存储轮询间隔，非正值保持默认
func (h *Handler) WithPollInterval(interval time.Duration) *Handler {
	if interval > 0 {
		h.pollInterval = interval
	}
	return h
}

// RegisterRoutes 注册订阅路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions/{sessionID}/watch", h.handleWatch)
}

func (h *Handler) handleWatch(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	current, updates, unsubscribe, err := h.svc.Watch(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pairing.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "Session not found")
			return
		}
		utils.RespondErrorMessage(w, http.StatusInternalServerError, "Failed to load session", err)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "session_id", sessionID, "error", err.Error())
		return
	}
	defer conn.Close()

	h.log.Debug("watcher connected", "session_id", sessionID)

	if err := h.send(conn, "status", current); err != nil || current.Status == session.StatusCompleted {
		h.closeNormally(conn)
		return
	}

	// 客户端不发送业务消息，读循环只用于处理 pong 与感知断开
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Debug("watcher read error", "session_id", sessionID, "error", err.Error())
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	poll := time.NewTicker(h.pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case view := <-updates:
			if err := h.send(conn, "completed", view); err == nil {
				h.closeNormally(conn)
			}
			return
		case <-poll.C:
			view, err := h.svc.Status(ctx, sessionID)
			if err != nil {
				if errors.Is(err, pairing.ErrSessionNotFound) {
					h.log.Info("watched session disappeared", "session_id", sessionID)
					h.closeNormally(conn)
					return
				}
				h.log.Warn("watch poll failed", "session_id", sessionID, "error", err.Error())
				continue
			}
			if view.Status != session.StatusCompleted {
				continue
			}
			if err := h.send(conn, "completed", view); err == nil {
				h.closeNormally(conn)
			}
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, kind string, view session.View) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := conn.WriteJSON(outgoingMessage{
		Type:      kind,
		SessionID: view.ID,
		Data:      view,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		h.log.Warn("websocket write failed", "session_id", view.ID, "error", err.Error())
	}
	return err
}

func (h *Handler) closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
