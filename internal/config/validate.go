package config

import (
	apperrors "github.com/wfunc/uart-panel/internal/errors"
)

// Validate 校验配置
// 只做声明式检查，不修改配置；失败返回ErrConfigValidate
func Validate(c *Config) error {
	if c == nil {
		return apperrors.New(apperrors.ErrConfigValidate, "config is nil")
	}

	if c.Panel.UpdateInterval <= 0 {
		return apperrors.Newf(apperrors.ErrConfigValidate, "panel.update_interval must be > 0, got %s", c.Panel.UpdateInterval)
	}

	if !c.Serial.MockMode && c.Serial.Port == "" {
		return apperrors.New(apperrors.ErrConfigValidate, "serial.port is required unless serial.mock_mode is set")
	}
	if c.Serial.ReadTimeout < 0 {
		return apperrors.Newf(apperrors.ErrConfigValidate, "serial.read_timeout must be >= 0, got %s", c.Serial.ReadTimeout)
	}
	if c.Serial.ReconnectInterval < 0 {
		return apperrors.Newf(apperrors.ErrConfigValidate, "serial.reconnect_interval must be >= 0, got %s", c.Serial.ReconnectInterval)
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return apperrors.Newf(apperrors.ErrConfigValidate, "server.port out of range: %d", c.Server.Port)
		}
		switch c.Server.Mode {
		case "debug", "release", "test":
		default:
			return apperrors.Newf(apperrors.ErrConfigValidate, "server.mode must be debug, release or test, got %q", c.Server.Mode)
		}
	}

	if c.WebSocket.Enabled && c.WebSocket.Path == "" {
		return apperrors.New(apperrors.ErrConfigValidate, "websocket.path is required when websocket is enabled")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return apperrors.New(apperrors.ErrConfigValidate, "mqtt.broker is required when mqtt is enabled")
		}
		if c.MQTT.QoS > 2 {
			return apperrors.Newf(apperrors.ErrConfigValidate, "mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
		if c.MQTT.Topics.Status == "" || c.MQTT.Topics.Command == "" {
			return apperrors.New(apperrors.ErrConfigValidate, "mqtt.topics.status and mqtt.topics.command are required")
		}
	}

	return nil
}
