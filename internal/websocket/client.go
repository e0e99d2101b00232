package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	apperrors "github.com/wfunc/uart-panel/internal/errors"
	"github.com/wfunc/uart-panel/internal/logger"
	"go.uber.org/zap"
)

// 错误定义
var (
	ErrClientNotFound = errors.New("客户端未找到")
	ErrSendBufferFull = errors.New("发送缓冲区已满")
	ErrHubStopped     = errors.New("Hub已停止")
)

// Options WebSocket连接参数
type Options struct {
	MaxMessageSize int64         // 最大消息大小
	PingInterval   time.Duration // ping发送周期，必须小于PongTimeout
	PongTimeout    time.Duration // 读取pong超时
	WriteTimeout   time.Duration // 写超时
}

func (o Options) withDefaults() Options {
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongTimeout {
		o.PingInterval = (o.PongTimeout * 9) / 10
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	return o
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

// ServeWS 升级HTTP连接并启动读写协程
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.String("remote", r.RemoteAddr),
			zap.Error(apperrors.Wrap(err, apperrors.ErrWebSocketConnect)))
		return
	}

	client := NewClient(h, conn)
	if err := h.Register(client); err != nil {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// ReadPump 读取消息
func (c *Client) ReadPump() {
	opts := c.Hub.options
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(opts.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(opts.PongTimeout))
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
	opts := c.Hub.options
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if !ok {
				// Hub关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
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
		c.sendError(apperrors.New(apperrors.ErrMessageFormat, err.Error()))
		return
	}
	logger.LogWebSocketMessage("receive", msg.Type, msg.Data)

	switch msg.Type {
	case MessageTypePing:
		c.Hub.SendToClient(c.ID, newMessage(MessageTypePong, nil))

	case MessageTypePong:
		c.Hub.logger.Debug("收到pong",
			zap.String("client_id", c.ID))

	case MessageTypeStatus:
		c.Hub.SendToClient(c.ID, newMessage(MessageTypeStatus, c.Hub.controller.Status()))

	case MessageTypeKey:
		var req KeyRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil || req.Key == nil {
			c.sendError(apperrors.New(apperrors.ErrInvalidParam, "data.key is required"))
			return
		}
		if err := c.Hub.controller.PressKey(*req.Key); err != nil {
			c.sendError(apperrors.Wrap(err, apperrors.ErrCommandFailed))
			return
		}
		c.Hub.SendToClient(c.ID, newMessage(MessageTypeKeyAck, map[string]int{"key": *req.Key}))

	default:
		c.Hub.logger.Warn("收到不支持的消息类型",
			zap.String("client_id", c.ID),
			zap.String("type", msg.Type))
		c.sendError(apperrors.Newf(apperrors.ErrMessageFormat, "unsupported message type: %s", msg.Type))
	}
}

// sendError 发送错误消息
func (c *Client) sendError(err *apperrors.AppError) {
	c.Hub.SendToClient(c.ID, newMessage(MessageTypeError, map[string]interface{}{
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
	}))
}
