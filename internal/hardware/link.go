package hardware

import (
	"io"
	"time"

	apperrors "github.com/wfunc/uart-panel/internal/errors"
	"github.com/wfunc/uart-panel/internal/logger"
	"go.uber.org/zap"
)

// LinkConfig 链路配置
type LinkConfig struct {
	Port        string        // 设备路径，"auto"表示自动探测
	ReadTimeout time.Duration // 单次读取超时
}

// DefaultLinkConfig 默认链路配置
func DefaultLinkConfig() *LinkConfig {
	return &LinkConfig{
		Port:        DefaultDevicePath,
		ReadTimeout: 50 * time.Millisecond,
	}
}

// Link 串口链路
// 同一时刻最多持有一个打开的串口；只应由一个goroutine使用
type Link struct {
	config *LinkConfig
	opener PortOpener
	logger *zap.Logger

	port           SerialPort
	devicePath     string    // 当前打开的设备
	lastDevicePath string    // 最后成功打开的设备
	connectedAt    time.Time // 最近一次打开时间
}

// NewLink 创建串口链路
// opener为nil时使用tarm/serial打开真实设备
func NewLink(config *LinkConfig, opener PortOpener) *Link {
	if config == nil {
		config = DefaultLinkConfig()
	}
	if config.Port == "" {
		config.Port = DefaultDevicePath
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = DefaultLinkConfig().ReadTimeout
	}
	if opener == nil {
		opener = OpenSerialPort(config.ReadTimeout)
	}
	return &Link{
		config: config,
		opener: opener,
		logger: logger.GetModuleLogger("serial"),
	}
}

// Open 打开串口
// 已打开时直接返回；失败时链路保持关闭状态
func (l *Link) Open() error {
	if l.port != nil {
		return nil
	}

	path, err := l.resolvePath()
	if err != nil {
		l.logger.Error("查找串口设备失败", zap.Error(err))
		return err
	}

	port, err := l.opener(path)
	if err != nil {
		l.logger.Error("打开串口失败",
			zap.String("device", path),
			zap.Error(err))
		return apperrors.Wrapf(err, apperrors.ErrSerialPortOpen, "open %s", path)
	}

	// 丢弃打开前残留的输入
	if err := port.Flush(); err != nil {
		l.logger.Warn("清空串口缓冲失败",
			zap.String("device", path),
			zap.Error(err))
	}

	l.port = port
	l.devicePath = path
	l.lastDevicePath = path
	l.connectedAt = time.Now()

	l.logger.Info("串口打开成功",
		zap.String("device", path),
		zap.Int("baud", BaudRate))
	return nil
}

func (l *Link) resolvePath() (string, error) {
	if l.config.Port != AutoDevicePath {
		return l.config.Port, nil
	}

	path, err := FindPort(l.lastDevicePath)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrDeviceNotFound)
	}
	if path == "" {
		return "", apperrors.New(apperrors.ErrDeviceNotFound)
	}
	return path, nil
}

// Close 关闭串口，重复调用无副作用
func (l *Link) Close() error {
	if l.port == nil {
		return nil
	}

	port := l.port
	l.port = nil
	l.devicePath = ""

	if err := port.Close(); err != nil {
		l.logger.Warn("关闭串口失败", zap.Error(err))
		return apperrors.Wrap(err, apperrors.ErrSerialPortClose)
	}

	l.logger.Info("串口已关闭")
	return nil
}

// Reopen 关闭后重新打开串口
// 关闭失败不影响重新打开
func (l *Link) Reopen() error {
	_ = l.Close()
	return l.Open()
}

// IsOpen 链路是否打开
func (l *Link) IsOpen() bool {
	return l.port != nil
}

// Write 写入数据，写入不完整也视为失败
func (l *Link) Write(p []byte) (int, error) {
	if l.port == nil {
		return 0, apperrors.New(apperrors.ErrDeviceOffline)
	}

	n, err := l.port.Write(p)
	if err != nil {
		return n, apperrors.Wrap(err, apperrors.ErrSerialPortWrite)
	}
	if n != len(p) {
		return n, apperrors.Newf(apperrors.ErrShortWrite, "wrote %d of %d bytes", n, len(p))
	}
	return n, nil
}

// Read 读取数据
// 超时未收到数据时返回 (0, nil)
func (l *Link) Read(p []byte) (int, error) {
	if l.port == nil {
		return 0, apperrors.New(apperrors.ErrDeviceOffline)
	}

	n, err := l.port.Read(p)
	if n > 0 {
		return n, nil
	}
	if err == nil || err == io.EOF {
		return 0, nil
	}
	return 0, apperrors.Wrap(err, apperrors.ErrSerialPortRead)
}

// DevicePath 当前打开的设备路径，关闭时为空
func (l *Link) DevicePath() string {
	return l.devicePath
}

// ConnectedAt 最近一次打开的时间
func (l *Link) ConnectedAt() time.Time {
	return l.connectedAt
}
