package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wfunc/uart-console/internal/errors"
	"go.uber.org/zap"
)

// MessageType 消息类型
const (
	// 系统消息
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"

	// 设备消息
	MessageTypeStatus            = "status"
	MessageTypeStateChangeFailed = "state_change_failed"
	MessageTypeCommand           = "command"
	MessageTypeCommandResult     = "command_result"
)

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// StatusPayload 状态消息内容
type StatusPayload struct {
	Status string `json:"status"`
}

// ErrorPayload 错误消息内容
type ErrorPayload struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

// CommandPayload 客户端发来的命令
type CommandPayload struct {
	Command string `json:"command"`
}

// CommandResultPayload 命令执行结果
type CommandResultPayload struct {
	Command string `json:"command"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Commander 执行客户端提交的单字符命令
type Commander interface {
	Submit(input string) error
}

// StatusFunc 返回当前设备状态
type StatusFunc func() string

// Hub WebSocket连接管理中心
type Hub struct {
	clients   map[string]*Client
	clientsMu sync.RWMutex

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	upgrader  websocket.Upgrader
	status    StatusFunc
	commander Commander
	logger    *zap.Logger
}

// NewHub 创建Hub；commander 为 nil 时客户端只能订阅状态
func NewHub(logger *zap.Logger, status StatusFunc, commander Commander) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		status:     status,
		commander:  commander,
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin 只接受没有 Origin 的客户端或同源页面
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}

	h.logger.Warn("拒绝跨域WebSocket连接",
		zap.String("origin", origin),
		zap.String("host", r.Host),
		zap.String("remote_addr", r.RemoteAddr))
	return false
}

// Run 运行Hub直到 ctx 被取消
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case data := <-h.broadcast:
			h.broadcastMessage(data)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// ServeWS 升级HTTP连接并注册客户端
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket升级失败", zap.Error(err))
		return errors.Wrap(err, errors.ErrWebSocketUpgrade, r.RemoteAddr)
	}

	client := NewClient(h, conn)
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return errors.New(errors.ErrWebSocketUpgrade, "hub stopped")
	}

	go client.WritePump()
	go client.ReadPump()
	return nil
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端连接", zap.String("client_id", client.ID))

	h.sendTo(client, newMessage(MessageTypeConnected, map[string]string{"client_id": client.ID}))
	if h.status != nil {
		h.sendTo(client, newMessage(MessageTypeStatus, StatusPayload{Status: h.status()}))
	}
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端断开", zap.String("client_id", client.ID))
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
}

// broadcastMessage 广播消息
func (h *Hub) broadcastMessage(data []byte) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("客户端发送缓冲区满", zap.String("client_id", client.ID))
		}
	}
}

// sendTo 发送消息给指定客户端
func (h *Hub) sendTo(client *Client, message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err))
		return
	}

	// 已注销客户端的发送通道已关闭
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	select {
	case client.Send <- data:
	default:
		h.logger.Warn("客户端发送缓冲区满", zap.String("client_id", client.ID))
	}
}

// Broadcast 广播消息，Hub繁忙时丢弃
func (h *Hub) Broadcast(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("广播队列已满，丢弃消息", zap.String("type", message.Type))
	}
}

// StatusChanged 推送设备状态
func (h *Hub) StatusChanged(status string) {
	h.Broadcast(newMessage(MessageTypeStatus, StatusPayload{Status: status}))
}

// StateChangeFailed 推送状态切换失败
func (h *Hub) StateChangeFailed(status string) {
	h.Broadcast(newMessage(MessageTypeStateChangeFailed, StatusPayload{Status: status}))
}

// GetOnlineCount 获取在线连接数
func (h *Hub) GetOnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func newMessage(msgType string, payload interface{}) *Message {
	msg := &Message{
		Type:      msgType,
		Timestamp: time.Now().Unix(),
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			msg.Data = data
		}
	}
	return msg
}
