package monitor

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"portfetch/doggie"
	pflog "portfetch/log"
	"portfetch/status"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 64
	writeTimeout = 2 * time.Second
)

type client struct {
	conn *websocket.Conn
	send chan doggie.Snapshot
}

// writePump 把 hub 推来的快照写到 websocket 连接。
func (c *client) writePump() {
	defer c.conn.Close()
	for snap := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(snap); err != nil {
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Hub 向所有 websocket 客户端广播取到的快照。
type Hub struct {
	upgrader websocket.Upgrader
	started  time.Time

	mu        sync.RWMutex
	clients   map[*client]bool
	state     status.MonitorStatus
	published uint64
	last      doggie.Snapshot
	hasLast   bool
}

// NewHub 创建空的广播中心（状态 Idle）。
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 65536,
		},
		started: time.Now(),
		clients: make(map[*client]bool),
		state:   status.MonitorIdle,
	}
}

// Publish 广播一帧快照；发送队列已满的慢客户端会被断开。
func (h *Hub) Publish(s doggie.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == status.MonitorStopped {
		return
	}
	h.state = status.MonitorLive
	h.published++
	h.last = s
	h.hasLast = true
	for c := range h.clients {
		select {
		case c.send <- s:
		default:
			delete(h.clients, c)
			close(c.send)
			pflog.With(map[string]any{"remote": c.conn.RemoteAddr().String()}).Warn("监视客户端过慢，已断开")
		}
	}
}

// Clients 返回当前连接数。
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Status 返回监视器状态。
func (h *Hub) Status() status.MonitorStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// StatusReport 是 /status 的响应体。
type StatusReport struct {
	Status      status.MonitorStatus `json:"status"`
	StartedAtMs int64                `json:"started_at_ms"`
	NowMs       int64                `json:"now_ms"`
	Clients     int                  `json:"clients"`
	Published   uint64               `json:"published"`
	LastKind    string               `json:"last_kind,omitempty"`
	LastLabel   uint32               `json:"last_label,omitempty"`
	LastTick    uint32               `json:"last_tick,omitempty"`
}

// Report 生成当前状态快照。
func (h *Hub) Report() StatusReport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rep := StatusReport{
		Status:      h.state,
		StartedAtMs: h.started.UnixMilli(),
		NowMs:       time.Now().UnixMilli(),
		Clients:     len(h.clients),
		Published:   h.published,
	}
	if h.hasLast {
		rep.LastKind = h.last.Kind.String()
		rep.LastLabel = h.last.Label
		rep.LastTick = h.last.Tick
	}
	return rep
}

// Handler 返回挂载 /ws 与 /status 的 http.Handler。
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWS)
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(h.Report())
	})
	return mux
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		pflog.L().WithError(err).Warn("websocket 升级失败")
		return
	}
	c := &client{conn: conn, send: make(chan doggie.Snapshot, sendBuffer)}

	h.mu.Lock()
	if h.state == status.MonitorStopped {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = true
	h.mu.Unlock()
	pflog.With(map[string]any{"remote": conn.RemoteAddr().String()}).Info("监视客户端已连接")

	go c.writePump()
	defer h.remove(c)

	// 只读取以感知断开，客户端消息被丢弃
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close 断开所有客户端并停止广播（幂等）。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = status.MonitorStopped
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
