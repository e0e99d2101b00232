package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wfunc/uart-panel/internal/runner"
	"go.uber.org/zap"
)

// Hub WebSocket连接管理中心
type Hub struct {
	// 客户端连接池
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 消息广播通道
	broadcast chan *Message

	// 注册/注销通道
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	controller runner.Controller
	options    Options
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// Client WebSocket客户端
type Client struct {
	ID   string          // 客户端ID
	Hub  *Hub            // Hub引用
	Conn *websocket.Conn // WebSocket连接
	Send chan []byte     // 发送通道
}

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"`           // 消息类型
	Data      json.RawMessage `json:"data,omitempty"` // 消息数据
	Timestamp int64           `json:"timestamp"`      // 时间戳
}

// MessageType 消息类型
const (
	// 系统消息
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"

	// 面板消息
	MessageTypeStatus = "status"  // 服务端推送状态；客户端发送时表示请求当前状态
	MessageTypeKey    = "key"     // 客户端按键
	MessageTypeKeyAck = "key_ack" // 按键已进入队列
)

// KeyRequest 按键请求
type KeyRequest struct {
	Key *int `json:"key"`
}

// NewHub 创建Hub
func NewHub(controller runner.Controller, options Options, logger *zap.Logger) *Hub {
	options = options.withDefaults()
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		controller: controller,
		options:    options,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// Run 运行Hub，直到ctx取消
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	h.controller.OnStatus(h.BroadcastStatus)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID))

	// 发送连接成功消息和当前状态
	h.SendToClient(client.ID, newMessage(MessageTypeConnected, map[string]string{"client_id": client.ID}))
	h.SendToClient(client.ID, newMessage(MessageTypeStatus, h.controller.Status()))
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID))
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
	h.clientsMu.Unlock()
}

// broadcastMessage 广播消息
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err))
		return
	}

	h.clientsMu.RLock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("客户端发送缓冲区满",
				zap.String("client_id", client.ID))
		}
	}
	h.clientsMu.RUnlock()
}

// SendToClient 发送消息给指定客户端
func (h *Hub) SendToClient(clientID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	// 持有读锁发送，避免与注销时关闭通道并发
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}

	select {
	case client.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// BroadcastStatus 广播面板状态
// 在调度goroutine中调用，缓冲区满时丢弃
func (h *Hub) BroadcastStatus(status runner.Snapshot) {
	select {
	case h.broadcast <- newMessage(MessageTypeStatus, status):
	default:
		h.logger.Warn("广播队列已满，丢弃状态更新")
	}
}

// GetOnlineCount 获取在线人数
func (h *Hub) GetOnlineCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func newMessage(msgType string, data interface{}) *Message {
	msg := &Message{
		Type:      msgType,
		Timestamp: time.Now().Unix(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err == nil {
			msg.Data = raw
		}
	}
	return msg
}

// Register 注册客户端（公开方法）
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister 注销客户端（公开方法）
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
