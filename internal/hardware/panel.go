package hardware

import (
	"time"

	"github.com/wfunc/uart-panel/internal/logger"
	"go.uber.org/zap"
)

// Panel 控制面板
// 持有链路、连续失败计数和当前显示页，所有方法只应在同一个goroutine中调用。
// 发送和轮询都不向调用方返回错误，失败只计入计数器。
type Panel struct {
	link    *Link
	display StatusDisplay
	logger  *zap.Logger

	failures int // 连续失败次数
	slot     int // 当前请求的显示页，0或1
	stats    Stats

	cmdBuf  [32]byte
	readBuf [ReadBufferSize]byte
}

// NewPanel 创建控制面板
func NewPanel(link *Link, display StatusDisplay) *Panel {
	if display == nil {
		display = NewTextDisplay()
	}
	return &Panel{
		link:    link,
		display: display,
		logger:  logger.GetModuleLogger("panel"),
	}
}

// Init 打开链路并请求第一页显示
// 打开失败时链路保持关闭，之后的发送和轮询都不做任何事
func (p *Panel) Init() {
	if err := p.link.Open(); err != nil {
		p.recordError(err)
		p.logger.Error("初始化串口失败", zap.Error(err))
		return
	}
	p.stats.ConnectedAt = p.link.ConnectedAt()
	// 预先请求第0页，第一次轮询即可读到响应
	p.SendDisplay(p.slot)
}

// Reconnect 链路关闭时尝试打开一次
func (p *Panel) Reconnect() bool {
	if p.link.IsOpen() {
		return true
	}
	if err := p.link.Open(); err != nil {
		p.recordError(err)
		p.logger.Debug("重连失败", zap.Error(err))
		return false
	}
	p.failures = 0
	p.stats.ConnectedAt = p.link.ConnectedAt()
	return true
}

// SendKey 发送按键命令
// 按键编号不做范围检查，原样编码
func (p *Panel) SendKey(key int) {
	p.send(AppendKeyCommand(p.cmdBuf[:0], key), true)
}

// SendDisplay 请求指定显示页
func (p *Panel) SendDisplay(slot int) {
	p.send(AppendDisplayCommand(p.cmdBuf[:0], slot), true)
}

// send 写入一条命令，最多尝试一次
// resetOnSuccess为false时写入成功不清零失败计数，用于轮询末尾的流水线请求
func (p *Panel) send(cmd []byte, resetOnSuccess bool) {
	if !p.link.IsOpen() {
		return
	}

	if _, err := p.link.Write(cmd); err != nil {
		p.stats.WriteFailures++
		p.recordError(err)
		logger.LogSerialCommand(TrimCommand(cmd), err.Error(), false)
		p.registerFailure(false)
		return
	}

	if resetOnSuccess {
		p.failures = 0
	}
	p.stats.CommandsSent++
	logger.LogSerialCommand(TrimCommand(cmd), "", true)
}

// Tick 周期轮询
// 读取上一轮显示请求的响应并更新显示，然后切换显示页并发送下一次请求
func (p *Panel) Tick() {
	if !p.link.IsOpen() {
		return
	}

	n, err := p.link.Read(p.readBuf[:ReadBufferSize-1])
	switch {
	case err == nil && n > 0:
		resp := ParseStatusResponse(p.readBuf[:n])
		if resp.HasUpper {
			p.display.SetUpper(resp.Upper)
		}
		if resp.HasLower {
			p.display.SetLower(resp.Lower)
		}
		p.failures = 0
		p.stats.ResponsesReceived++
	case err != nil:
		p.stats.ReadFailures++
		p.recordError(err)
		p.registerFailure(true)
	default:
		p.stats.EmptyReads++
		p.registerFailure(true)
	}

	p.slot ^= 1
	// 流水线请求写入成功不清零失败计数，只有读到数据才清零
	p.send(AppendDisplayCommand(p.cmdBuf[:0], p.slot), false)
}

// registerFailure 失败计数加一，达到阈值时重开链路
// 只有接收路径会在显示上给出错误提示
func (p *Panel) registerFailure(showError bool) {
	p.failures++
	p.logger.Debug("通信失败",
		zap.Int("failures", p.failures),
		zap.Int("max", MaxErrors))
	if p.failures < MaxErrors {
		return
	}

	if showError {
		p.display.SetUpper(NoResponseUpper)
		p.display.SetLower(NoResponseLower)
	}

	p.logger.Warn("连续通信失败，重新打开串口", zap.Int("failures", p.failures))
	p.stats.Reopens++
	p.failures = 0
	if err := p.link.Reopen(); err != nil {
		p.recordError(err)
		p.logger.Error("重新打开串口失败", zap.Error(err))
		return
	}
	p.stats.ConnectedAt = p.link.ConnectedAt()
}

func (p *Panel) recordError(err error) {
	p.stats.LastError = err.Error()
	p.stats.LastErrorTime = time.Now()
}

// Close 关闭链路
func (p *Panel) Close() error {
	return p.link.Close()
}

// Failures 当前连续失败次数
func (p *Panel) Failures() int {
	return p.failures
}

// Slot 当前显示页
func (p *Panel) Slot() int {
	return p.slot
}

// LinkOpen 链路是否打开
func (p *Panel) LinkOpen() bool {
	return p.link.IsOpen()
}

// State 返回面板状态快照
func (p *Panel) State() PanelState {
	return PanelState{
		LinkOpen:   p.link.IsOpen(),
		DevicePath: p.link.DevicePath(),
		Failures:   p.failures,
		Slot:       p.slot,
		Stats:      p.stats,
	}
}
