package hardware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/wfunc/uart-panel/internal/logger"
	"go.uber.org/zap"
)

// SimulatedLineWidth 模拟外设每行显示宽度
const SimulatedLineWidth = 20

// ErrSimulatedIO 模拟外设离线时的I/O错误
var ErrSimulatedIO = errors.New("simulated input/output error")

// SimulatedPort 模拟外设
// 解析 KEY / DISP 命令，对每个 DISP 请求回复两行定宽文本
type SimulatedPort struct {
	mu      sync.Mutex
	logger  *zap.Logger
	closed  bool
	offline bool // 离线时读写都返回错误
	silent  bool // 静默时接受命令但不回复

	pending  []byte // 尚未处理完的命令
	response bytes.Buffer

	lastKey   int
	keyCount  int
	dispCount int
	opens     int
}

// NewSimulatedPort 创建模拟外设
func NewSimulatedPort() *SimulatedPort {
	return &SimulatedPort{
		logger:  logger.GetModuleLogger("simulator"),
		lastKey: -1,
	}
}

// Opener 返回打开该模拟外设的函数，每次打开复用同一个外设
func (s *SimulatedPort) Opener() PortOpener {
	return func(path string) (SerialPort, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.offline {
			return nil, ErrSimulatedIO
		}
		s.closed = false
		s.opens++
		s.logger.Info("模拟外设已打开", zap.String("device", path))
		return s, nil
	}
}

// Write 接收命令
func (s *SimulatedPort) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, io.ErrClosedPipe
	}
	if s.offline {
		return 0, ErrSimulatedIO
	}

	s.pending = append(s.pending, p...)
	for {
		i := bytes.IndexByte(s.pending, CommandTerminator)
		if i < 0 {
			break
		}
		s.handle(string(s.pending[:i]))
		s.pending = s.pending[i+1:]
	}
	return len(p), nil
}

func (s *SimulatedPort) handle(cmd string) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "KEY":
		if len(fields) < 2 {
			return
		}
		if key, err := strconv.Atoi(fields[1]); err == nil {
			s.lastKey = key
			s.keyCount++
		}
	case "DISP":
		if len(fields) < 2 {
			return
		}
		slot, err := strconv.Atoi(fields[1])
		if err != nil {
			return
		}
		s.dispCount++
		if s.silent {
			return
		}
		upper, lower := s.page(slot)
		s.response.WriteString(fitLine(upper))
		s.response.WriteByte(ResponseDelimiter)
		s.response.WriteString(fitLine(lower))
		s.response.WriteByte(ResponseDelimiter)
	default:
		s.logger.Debug("未知命令", zap.String("command", cmd))
	}
}

// page 生成指定显示页的两行文本
func (s *SimulatedPort) page(slot int) (string, string) {
	last := "-"
	if s.lastKey >= 0 {
		last = strconv.Itoa(s.lastKey)
	}
	if slot == 0 {
		return "SIM PANEL READY", "LAST KEY " + last
	}
	return fmt.Sprintf("KEYS %d", s.keyCount), fmt.Sprintf("REQUESTS %d", s.dispCount)
}

// fitLine 把40字符以内的文本截断或补齐到一行宽度
func fitLine(text string) string {
	if len(text) > SimulatedLineWidth {
		return text[:SimulatedLineWidth]
	}
	return fmt.Sprintf("%-*s", SimulatedLineWidth, text)
}

// Read 返回已生成的响应，没有数据时返回 io.EOF，与读超时行为一致
func (s *SimulatedPort) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, io.ErrClosedPipe
	}
	if s.offline {
		return 0, ErrSimulatedIO
	}
	if s.response.Len() == 0 {
		return 0, io.EOF
	}
	return s.response.Read(p)
}

// Flush 清空未读响应
func (s *SimulatedPort) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.response.Reset()
	s.pending = s.pending[:0]
	return nil
}

// Close 关闭
func (s *SimulatedPort) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// SetOffline 模拟外设断开或恢复
func (s *SimulatedPort) SetOffline(offline bool) {
	s.mu.Lock()
	s.offline = offline
	s.mu.Unlock()
}

// SetSilent 模拟外设不响应显示请求
func (s *SimulatedPort) SetSilent(silent bool) {
	s.mu.Lock()
	s.silent = silent
	s.mu.Unlock()
}

// LastKey 最后一次按下的按键，未按过为-1
func (s *SimulatedPort) LastKey() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastKey
}

// KeyCount 收到的按键命令数
func (s *SimulatedPort) KeyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyCount
}

// Opens 被打开的次数
func (s *SimulatedPort) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}
