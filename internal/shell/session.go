package shell

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/wfunc/uart-panel/internal/errors"
	"github.com/wfunc/uart-panel/internal/hardware"
	"github.com/wfunc/uart-panel/internal/logger"
	"go.uber.org/zap"
)

// Session 交互式调试会话
// 直接持有Panel，由shell的单个goroutine驱动，每条命令对应一次操作
type Session struct {
	linkConfig *hardware.LinkConfig
	opener     hardware.PortOpener
	display    *hardware.TextDisplay
	panel      *hardware.Panel
	listPorts  func() ([]string, error)
	logger     *zap.Logger
}

// NewSession 创建会话
// opener为nil时打开真实串口
func NewSession(config *hardware.LinkConfig, opener hardware.PortOpener) *Session {
	if config == nil {
		config = hardware.DefaultLinkConfig()
	}
	return &Session{
		linkConfig: config,
		opener:     opener,
		display:    hardware.NewTextDisplay(),
		listPorts:  hardware.ListPorts,
		logger:     logger.GetModuleLogger("shell"),
	}
}

// Open 打开串口，path为空时使用配置中的设备
// 已打开时先关闭
func (s *Session) Open(path string) error {
	// 关闭失败时句柄已释放，不影响打开新链路
	if s.panel != nil {
		if err := s.panel.Close(); err != nil {
			s.logger.Warn("关闭旧链路失败", zap.Error(err))
		}
	}

	cfg := *s.linkConfig
	if path != "" {
		cfg.Port = path
	}
	s.panel = hardware.NewPanel(hardware.NewLink(&cfg, s.opener), s.display)
	s.panel.Init()
	if !s.panel.LinkOpen() {
		return apperrors.New(apperrors.ErrSerialPortOpen, s.panel.State().Stats.LastError)
	}
	return nil
}

// Close 关闭串口
func (s *Session) Close() error {
	if s.panel == nil {
		return nil
	}
	return s.panel.Close()
}

// Key 发送按键
func (s *Session) Key(arg string) error {
	key, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || !hardware.ValidKey(key) {
		return apperrors.Newf(apperrors.ErrInvalidParam, "key must be 0-%d, got %q", hardware.KeyCount-1, arg)
	}
	if err := s.requireOpen(); err != nil {
		return err
	}
	s.panel.SendKey(key)
	return nil
}

// Tick 执行一次轮询
func (s *Session) Tick() error {
	if err := s.requireOpen(); err != nil {
		return err
	}
	s.panel.Tick()
	return nil
}

func (s *Session) requireOpen() error {
	if s.panel == nil || !s.panel.LinkOpen() {
		return apperrors.New(apperrors.ErrDeviceOffline, "use open first")
	}
	return nil
}

// Status 当前状态
// asJSON为true时输出JSON
func (s *Session) Status(asJSON bool) (string, error) {
	upper, lower := s.display.Lines()
	state := hardware.PanelState{}
	if s.panel != nil {
		state = s.panel.State()
	}

	if asJSON {
		data, err := json.Marshal(struct {
			Upper string `json:"upper"`
			Lower string `json:"lower"`
			hardware.PanelState
		}{upper, lower, state})
		return string(data), err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "upper:    %s\n", upper)
	fmt.Fprintf(&b, "lower:    %s\n", lower)
	fmt.Fprintf(&b, "link:     %s\n", linkText(state))
	fmt.Fprintf(&b, "failures: %d/%d\n", state.Failures, hardware.MaxErrors)
	fmt.Fprintf(&b, "slot:     %d\n", state.Slot)
	fmt.Fprintf(&b, "sent:     %d  received: %d  reopens: %d", state.Stats.CommandsSent, state.Stats.ResponsesReceived, state.Stats.Reopens)
	if state.Stats.LastError != "" {
		fmt.Fprintf(&b, "\nerror:    %s", state.Stats.LastError)
	}
	return b.String(), nil
}

func linkText(state hardware.PanelState) string {
	if !state.LinkOpen {
		return "closed"
	}
	return "open " + state.DevicePath
}

// Ports 列出系统串口
func (s *Session) Ports() ([]string, error) {
	return s.listPorts()
}
