package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/agromic/agrobot/backend/internal/model/chat"
	chatservice "github.com/agromic/agrobot/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
)

// Handler WebSocket会话处理器，双向传输用户输入和会话事件
type Handler struct {
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器。allowedOrigins 与 CORS 配置一致，"*" 放行所有来源。
func New(chatSvc *chatservice.Service, allowedOrigins []string) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(allowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// conn 串行化写操作，gorilla 连接只允许一个并发写者
type conn struct {
	ws        *websocket.Conn
	sessionID string
	mu        sync.Mutex
	closed    bool
}

// errConnClosed 连接已关闭后的写操作返回此错误
var errConnClosed = errors.New("websocket connection closed")

func (c *conn) send(msgType string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// close 关闭底层连接，之后仍在等待回复的提交不会再写入
func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.ws.Close()
}

func (c *conn) sendError(message string) {
	if err := c.send("error", map[string]string{"message": message}); err != nil {
		slog.Debug("websocket write error failed", "session_id", c.sessionID, "error", err)
	}
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	snapshot, err := h.chatSvc.Snapshot(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	c := &conn{ws: ws, sessionID: sessionID}
	defer c.close()
	logger := slog.With("component", "realtime", "session_id", sessionID)
	logger.Info("websocket connected")
	defer logger.Info("websocket disconnected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, unsubscribe, err := h.chatSvc.Subscribe(ctx, sessionID)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	defer unsubscribe()

	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	if err := c.send("connected", snapshot); err != nil {
		return
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(2)
	go func() {
		defer wg.Done()
		h.forwardEvents(ctx, c, events)
		// 会话被销毁时关闭连接，使读循环退出
		_ = ws.SetReadDeadline(time.Now())
	}()
	go func() {
		defer wg.Done()
		pingLoop(ctx, c)
	}()

	h.readLoop(ctx, c, logger)
	cancel()
}

func (h *Handler) readLoop(ctx context.Context, c *conn, logger *slog.Logger) {
	for {
		var msg inboundMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.sendError("invalid message")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read error", "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Type {
		case "input":
			if err := h.chatSvc.SetInput(ctx, c.sessionID, msg.Text); err != nil {
				c.sendError(err.Error())
			}
		case "submit":
			// 等待回复期间继续读取，忙碌时的重复提交会被拒绝。
			// 回复通过会话事件送达，连接断开不必等待该调用结束。
			go h.submit(ctx, c, msg.Text)
		default:
			c.sendError("unsupported message type: " + msg.Type)
		}
	}
}

func (h *Handler) submit(ctx context.Context, c *conn, text string) {
	result, err := h.chatSvc.Submit(ctx, c.sessionID, text)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if !result.Accepted {
		_ = c.send("rejected", map[string]string{"text": text})
	}
}

// forwardEvents 将会话事件推送给客户端，直到订阅关闭
func (h *Handler) forwardEvents(ctx context.Context, c *conn, events <-chan chat.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-events:
			if !open {
				_ = c.send("closed", nil)
				return
			}
			if err := c.send(string(evt.Type), evt); err != nil {
				return
			}
		}
	}
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, c *conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func originChecker(allowedOrigins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowedOrigins {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
