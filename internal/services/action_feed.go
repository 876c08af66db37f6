package services

import (
	"context"
	"net/http"
	"sync"
	"time"

	"adpilot/internal/metrics"
	"adpilot/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = 54 * time.Second
	feedSendBuffer = 64
)

// FeedMessage 推送给控制台的消息
type FeedMessage struct {
	Type      string            `json:"type"`
	UserID    string            `json:"-"`
	Data      *models.ActionLog `json:"data,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type feedClient struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan FeedMessage
	hub    *ActionFeedHub
}

// ActionFeedHub pushes new action logs to the owner's open dashboard connections.
type ActionFeedHub struct {
	clients    map[string]*feedClient
	broadcast  chan FeedMessage
	register   chan *feedClient
	unregister chan *feedClient
	done       chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	metrics    *metrics.Metrics
	logger     *logrus.Logger
}

// NewActionFeedHub 创建推送中心；allowedOrigins 为空或包含 "*" 时不校验来源
func NewActionFeedHub(allowedOrigins []string, m *metrics.Metrics, logger *logrus.Logger) *ActionFeedHub {
	if logger == nil {
		logger = logrus.New()
	}
	h := &ActionFeedHub{
		clients:    make(map[string]*feedClient),
		broadcast:  make(chan FeedMessage, 256),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		done:       make(chan struct{}),
		metrics:    m,
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Run dispatches registrations and messages until ctx is cancelled.
func (h *ActionFeedHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.metrics.SetFeedClients(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetFeedClients(n)
			h.logger.Debugf("feed client %s connected (user %s)", c.id, c.userID)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetFeedClients(n)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for id, c := range h.clients {
				if c.userID != msg.UserID {
					continue
				}
				select {
				case c.send <- msg:
				default:
					// 慢客户端直接断开
					close(c.send)
					delete(h.clients, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// PublishAction implements ActionPublisher. It never blocks the sweep.
func (h *ActionFeedHub) PublishAction(userID string, log *models.ActionLog) {
	msg := FeedMessage{Type: "action", UserID: userID, Data: log, Timestamp: time.Now()}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warnf("action feed full, dropping event for user %s", userID)
	}
}

// ClientCount 当前连接数
func (h *ActionFeedHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request for the authenticated user in the "user_id" context key.
func (h *ActionFeedHub) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("feed upgrade failed: %v", err)
		return
	}
	client := &feedClient{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan FeedMessage, feedSendBuffer),
		hub:    h,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only handles control frames; the feed is one-way.
func (c *feedClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debugf("feed client %s read error: %v", c.id, err)
			}
			return
		}
	}
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
