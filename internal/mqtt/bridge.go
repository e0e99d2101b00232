package mqtt

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/wfunc/uart-panel/internal/config"
	apperrors "github.com/wfunc/uart-panel/internal/errors"
	"github.com/wfunc/uart-panel/internal/hardware"
	"github.com/wfunc/uart-panel/internal/logger"
	"github.com/wfunc/uart-panel/internal/runner"
	"go.uber.org/zap"
)

// ClientIDPlaceholder 主题中的客户端ID占位符
const ClientIDPlaceholder = "{client_id}"

// 在线状态
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// KeyCommand 按键命令
type KeyCommand struct {
	Key *int `json:"key"`
}

// Bridge MQTT桥接
// 发布面板状态，订阅按键命令
type Bridge struct {
	cfg        config.MQTTConfig
	controller runner.Controller
	client     paho.Client
	logger     *zap.Logger

	clientID      string
	statusTopic   string
	commandTopic  string
	presenceTopic string
}

// NewBridge 创建MQTT桥接
// 未配置client_id时使用本机机器ID生成
func NewBridge(cfg config.MQTTConfig, controller runner.Controller) *Bridge {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID()
	}

	b := &Bridge{
		cfg:          cfg,
		controller:   controller,
		logger:       logger.GetModuleLogger("mqtt"),
		clientID:     clientID,
		statusTopic:  ResolveTopic(cfg.Topics.Status, clientID),
		commandTopic: ResolveTopic(cfg.Topics.Command, clientID),
	}
	b.presenceTopic = b.statusTopic + "/presence"

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetWill(b.presenceTopic, PayloadOffline, cfg.QoS, true).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(b.onConnectionLost)
	if cfg.KeepAlive > 0 {
		opts.SetKeepAlive(cfg.KeepAlive)
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	b.client = paho.NewClient(opts)

	return b
}

// DefaultClientID 根据机器ID生成客户端ID
func DefaultClientID() string {
	id, err := machineid.ProtectedID("uart-panel")
	if err == nil && len(id) >= 12 {
		return "uart-panel-" + id[:12]
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return "uart-panel-" + host
	}
	return "uart-panel"
}

// ResolveTopic 替换主题中的客户端ID占位符
func ResolveTopic(topic, clientID string) string {
	return strings.ReplaceAll(topic, ClientIDPlaceholder, clientID)
}

// Start 连接Broker并在ctx取消时断开
// Broker不可用时在后台重试，不阻塞启动
func (b *Bridge) Start(ctx context.Context) {
	b.controller.OnStatus(b.PublishStatus)
	b.client.Connect()

	b.logger.Info("MQTT桥接已启动",
		zap.String("broker", b.cfg.Broker),
		zap.String("client_id", b.clientID),
		zap.String("status_topic", b.statusTopic),
		zap.String("command_topic", b.commandTopic))

	go func() {
		<-ctx.Done()
		b.Stop()
	}()
}

// Stop 发布离线状态并断开连接
func (b *Bridge) Stop() {
	if b.client.IsConnectionOpen() {
		token := b.client.Publish(b.presenceTopic, b.cfg.QoS, true, PayloadOffline)
		if err := waitPublish(b.presenceTopic, token, time.Second); err != nil {
			b.logger.Warn("发布离线状态失败", zap.Error(err))
		}
	}
	b.client.Disconnect(250)
	b.logger.Info("MQTT桥接已停止")
}

func (b *Bridge) onConnect(c paho.Client) {
	b.logger.Info("MQTT已连接", zap.String("broker", b.cfg.Broker))

	token := c.Subscribe(b.commandTopic, b.cfg.QoS, b.onMessage)
	go func() {
		if token.WaitTimeout(10*time.Second) && token.Error() != nil {
			err := apperrors.Wrap(token.Error(), apperrors.ErrMQTTSubscribe, b.commandTopic)
			b.logger.Error("订阅按键主题失败", zap.Error(err))
		}
	}()

	c.Publish(b.presenceTopic, b.cfg.QoS, true, PayloadOnline)
	b.PublishStatus(b.controller.Status())
}

func (b *Bridge) onConnectionLost(_ paho.Client, err error) {
	b.logger.Warn("MQTT连接断开，等待自动重连",
		zap.Error(apperrors.Wrapf(err, apperrors.ErrMQTTConnect, "%s: %v", b.cfg.Broker, err)))
}

// waitPublish 等待发布完成
func waitPublish(topic string, token paho.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return apperrors.Newf(apperrors.ErrTimeout, "publish %s", topic)
	}
	if err := token.Error(); err != nil {
		return apperrors.Wrapf(err, apperrors.ErrMQTTPublish, "publish %s: %v", topic, err)
	}
	return nil
}

func (b *Bridge) onMessage(_ paho.Client, msg paho.Message) {
	logger.LogMQTTMessage(msg.Topic(), "receive", string(msg.Payload()))
	if err := b.HandleCommand(msg.Payload()); err != nil {
		b.logger.Warn("按键命令处理失败",
			zap.String("topic", msg.Topic()),
			zap.Error(err))
	}
}

// HandleCommand 处理按键命令
func (b *Bridge) HandleCommand(payload []byte) error {
	key, err := ParseKeyPayload(payload)
	if err != nil {
		return err
	}
	return b.controller.PressKey(key)
}

// PublishStatus 发布面板状态
// 在调度goroutine中调用，不等待发布结果
func (b *Bridge) PublishStatus(status runner.Snapshot) {
	if !b.client.IsConnectionOpen() {
		return
	}

	data, err := json.Marshal(status)
	if err != nil {
		b.logger.Error("序列化状态失败", zap.Error(err))
		return
	}

	b.client.Publish(b.statusTopic, b.cfg.QoS, b.cfg.Retained, data)
	logger.LogMQTTMessage(b.statusTopic, "publish", status)
}

// ParseKeyPayload 解析按键命令
// 支持纯数字 "3" 和 JSON {"key":3}
func ParseKeyPayload(payload []byte) (int, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return 0, apperrors.New(apperrors.ErrMessageFormat, "empty payload")
	}

	var key int
	if strings.HasPrefix(text, "{") {
		var cmd KeyCommand
		if err := json.Unmarshal([]byte(text), &cmd); err != nil {
			return 0, apperrors.Wrap(err, apperrors.ErrMessageFormat)
		}
		if cmd.Key == nil {
			return 0, apperrors.New(apperrors.ErrMessageFormat, "key is required")
		}
		key = *cmd.Key
	} else {
		n, err := strconv.Atoi(text)
		if err != nil {
			return 0, apperrors.Wrap(err, apperrors.ErrMessageFormat)
		}
		key = n
	}

	if !hardware.ValidKey(key) {
		return 0, apperrors.Newf(apperrors.ErrInvalidParam, "key %d out of range 0-%d", key, hardware.KeyCount-1)
	}
	return key, nil
}

// ClientID 实际使用的客户端ID
func (b *Bridge) ClientID() string {
	return b.clientID
}

// Topics 返回状态主题和按键主题
func (b *Bridge) Topics() (status, command string) {
	return b.statusTopic, b.commandTopic
}
