package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/uart-console/internal/errors"
	"go.uber.org/zap"
)

// WebSocket配置
const (
	// 写超时
	writeWait = 10 * time.Second

	// 读取pong超时
	pongWait = 60 * time.Second

	// ping发送周期（必须小于pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 最大消息大小
	maxMessageSize = 4 * 1024
)

// Client WebSocket客户端
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
}

// NewClient 创建新客户端
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:   uuid.New().String(),
		Hub:  hub,
		Conn: conn,
		Send: make(chan []byte, 64),
	}
}

// ReadPump 读取消息
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("WebSocket读取错误",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump 写入消息
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// 每条消息单独一帧，客户端按帧解析JSON
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.Hub.logger.Warn("解析WebSocket消息失败",
			zap.String("client_id", c.ID),
			zap.Error(err))
		c.sendError(errors.Wrap(err, errors.ErrMessageFormat))
		return
	}

	switch msg.Type {
	case MessageTypePing:
		c.Hub.sendTo(c, newMessage(MessageTypePong, nil))

	case MessageTypePong:
		c.Hub.logger.Debug("收到pong", zap.String("client_id", c.ID))

	case MessageTypeStatus:
		if c.Hub.status != nil {
			c.Hub.sendTo(c, newMessage(MessageTypeStatus, StatusPayload{Status: c.Hub.status()}))
		}

	case MessageTypeCommand:
		c.handleCommand(msg.Data)

	default:
		c.Hub.logger.Warn("收到不支持的消息类型",
			zap.String("client_id", c.ID),
			zap.String("type", msg.Type))
		c.sendError(errors.New(errors.ErrMessageFormat, "unsupported type "+msg.Type))
	}
}

// handleCommand 执行客户端提交的命令
func (c *Client) handleCommand(data json.RawMessage) {
	var payload CommandPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError(errors.Wrap(err, errors.ErrMessageFormat, "command"))
		return
	}

	result := CommandResultPayload{Command: payload.Command, Success: true}
	if c.Hub.commander == nil {
		result.Success = false
		result.Error = "命令接口未启用"
	} else if err := c.Hub.commander.Submit(payload.Command); err != nil {
		result.Success = false
		result.Error = err.Error()
	}

	c.Hub.logger.Info("WebSocket命令",
		zap.String("client_id", c.ID),
		zap.String("command", payload.Command),
		zap.Bool("success", result.Success))
	c.Hub.sendTo(c, newMessage(MessageTypeCommandResult, result))
}

// sendError 发送错误消息
func (c *Client) sendError(err *errors.AppError) {
	c.Hub.sendTo(c, newMessage(MessageTypeError, ErrorPayload{
		Code:  int(err.Code),
		Error: err.Error(),
	}))
}
