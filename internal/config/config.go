package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	apperrors "github.com/wfunc/uart-panel/internal/errors"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "UART_PANEL"

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Panel     PanelConfig     `mapstructure:"panel"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Path           string        `mapstructure:"path"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongTimeout    time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// SerialConfig 串口配置
// 波特率和帧格式固定为9600 8N1，不在配置范围内
type SerialConfig struct {
	Port              string        `mapstructure:"port"`      // 设备路径，"auto"表示自动探测
	MockMode          bool          `mapstructure:"mock_mode"` // 使用模拟外设
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"` // 0表示关闭时不主动重连
}

// PanelConfig 面板配置
type PanelConfig struct {
	UpdateInterval time.Duration `mapstructure:"update_interval"`
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Broker    string        `mapstructure:"broker"`
	ClientID  string        `mapstructure:"client_id"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	QoS       byte          `mapstructure:"qos"`
	Retained  bool          `mapstructure:"retained"`
	KeepAlive time.Duration `mapstructure:"keep_alive"`
	Topics    MQTTTopics    `mapstructure:"topics"`
}

// MQTTTopics MQTT主题配置
type MQTTTopics struct {
	Status  string `mapstructure:"status"`
	Command string `mapstructure:"command"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

var (
	cfg *Config
	mu  sync.RWMutex
	v   *viper.Viper
)

// Init 初始化配置
// configPath为空时依次查找 ./config/config.yaml 和 ./config.yaml，找不到则使用默认值
func Init(configPath string) error {
	nv := viper.New()

	if configPath != "" {
		nv.SetConfigFile(configPath)
	} else {
		nv.SetConfigName("config")
		nv.SetConfigType("yaml")
		nv.AddConfigPath("./config")
		nv.AddConfigPath(".")
	}

	nv.SetEnvPrefix(EnvPrefix)
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	setDefaults(nv)

	if err := nv.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return apperrors.Wrapf(err, apperrors.ErrConfigLoad, "read %s: %v", nv.ConfigFileUsed(), err)
		}
	}

	newCfg := &Config{}
	if err := nv.Unmarshal(newCfg); err != nil {
		return apperrors.Wrap(err, apperrors.ErrConfigParse)
	}
	replaceMQTTTopics(newCfg)

	if err := Validate(newCfg); err != nil {
		return err
	}

	mu.Lock()
	v = nv
	cfg = newCfg
	mu.Unlock()

	return nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", "5s")

	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_timeout", "60s")
	v.SetDefault("websocket.write_timeout", "10s")

	v.SetDefault("serial.port", "/dev/serial0")
	v.SetDefault("serial.mock_mode", false)
	v.SetDefault("serial.read_timeout", "50ms")
	v.SetDefault("serial.reconnect_interval", "0s")

	v.SetDefault("panel.update_interval", "750ms")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://127.0.0.1:1883")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retained", true)
	v.SetDefault("mqtt.keep_alive", "30s")
	v.SetDefault("mqtt.topics.status", "panel/{client_id}/status")
	v.SetDefault("mqtt.topics.command", "panel/{client_id}/key")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "uart-panel.log")
	v.SetDefault("log.file.max_size", 20)
	v.SetDefault("log.file.max_age", 14)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.compress", true)
}

// replaceMQTTTopics 替换MQTT主题中的变量
// client_id为空时保留占位符，由MQTT桥接在确定客户端ID后再替换
func replaceMQTTTopics(c *Config) {
	if c == nil || c.MQTT.ClientID == "" {
		return
	}

	clientID := c.MQTT.ClientID
	c.MQTT.Topics.Status = strings.ReplaceAll(c.MQTT.Topics.Status, "{client_id}", clientID)
	c.MQTT.Topics.Command = strings.ReplaceAll(c.MQTT.Topics.Command, "{client_id}", clientID)
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	mu.RLock()
	wv := v
	mu.RUnlock()
	if wv == nil || wv.ConfigFileUsed() == "" {
		return
	}

	wv.OnConfigChange(func(e fsnotify.Event) {
		newCfg := &Config{}
		if err := wv.Unmarshal(newCfg); err != nil {
			fmt.Printf("config reload failed: %v\n", err)
			return
		}
		replaceMQTTTopics(newCfg)
		if err := Validate(newCfg); err != nil {
			fmt.Printf("config reload rejected: %v\n", err)
			return
		}

		mu.Lock()
		cfg = newCfg
		mu.Unlock()

		if callback != nil {
			callback(newCfg)
		}
	})
	wv.WatchConfig()
}

// ConfigFileUsed 返回实际加载的配置文件路径
func ConfigFileUsed() string {
	mu.RLock()
	defer mu.RUnlock()
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}
