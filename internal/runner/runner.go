package runner

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/wfunc/uart-panel/internal/errors"
	"github.com/wfunc/uart-panel/internal/hardware"
	"github.com/wfunc/uart-panel/internal/logger"
	"go.uber.org/zap"
)

// DefaultQueueSize 按键队列默认长度
const DefaultQueueSize = 16

// Snapshot 面板状态快照
type Snapshot struct {
	Upper      string         `json:"upper"`
	Lower      string         `json:"lower"`
	LinkOpen   bool           `json:"link_open"`
	DevicePath string         `json:"device_path,omitempty"`
	Failures   int            `json:"failures"`
	Slot       int            `json:"slot"`
	Stats      hardware.Stats `json:"stats"`
	At         time.Time      `json:"at"`
}

// KeyPresser 按键事件入口
type KeyPresser interface {
	PressKey(key int) error
}

// StatusSource 状态来源
type StatusSource interface {
	Status() Snapshot
	OnStatus(fn func(Snapshot))
}

// Controller 外部接口（HTTP、WebSocket、MQTT、命令行）使用的面板控制能力
type Controller interface {
	KeyPresser
	StatusSource
}

// Config 运行配置
type Config struct {
	UpdateInterval    time.Duration
	ReconnectInterval time.Duration // 0表示链路关闭时不主动重连
	QueueSize         int
}

// Runner 面板调度器
// 独占Panel，在同一个goroutine中执行初始化、周期轮询和按键发送
type Runner struct {
	panel   *hardware.Panel
	display *hardware.TextDisplay
	cfg     Config
	logger  *zap.Logger

	keys    chan int
	actions chan func(*hardware.Panel)

	mu     sync.RWMutex
	status Snapshot
	subs   []func(Snapshot)
}

// New 创建调度器
// display必须是panel使用的同一个显示
func New(panel *hardware.Panel, display *hardware.TextDisplay, cfg Config) *Runner {
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = hardware.DefaultUpdateInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Runner{
		panel:   panel,
		display: display,
		cfg:     cfg,
		logger:  logger.GetModuleLogger("runner"),
		keys:    make(chan int, cfg.QueueSize),
		actions: make(chan func(*hardware.Panel)),
	}
}

// Run 运行调度循环，直到ctx取消
// 退出时关闭链路
func (r *Runner) Run(ctx context.Context) error {
	r.panel.Init()
	r.publish()

	ticker := time.NewTicker(r.cfg.UpdateInterval)
	defer ticker.Stop()

	var reconnect <-chan time.Time
	if r.cfg.ReconnectInterval > 0 {
		t := time.NewTicker(r.cfg.ReconnectInterval)
		defer t.Stop()
		reconnect = t.C
	}

	r.logger.Info("面板调度已启动",
		zap.Duration("update_interval", r.cfg.UpdateInterval),
		zap.Duration("reconnect_interval", r.cfg.ReconnectInterval))

	for {
		select {
		case <-ctx.Done():
			if err := r.panel.Close(); err != nil {
				r.logger.Warn("关闭链路失败", zap.Error(err))
			}
			r.publish()
			r.logger.Info("面板调度已停止")
			return nil

		case <-ticker.C:
			r.panel.Tick()
			r.publish()

		case key := <-r.keys:
			r.panel.SendKey(key)
			r.publish()

		case <-reconnect:
			if !r.panel.LinkOpen() && r.panel.Reconnect() {
				r.logger.Info("链路已恢复")
				r.publish()
			}

		case fn := <-r.actions:
			fn(r.panel)
			r.publish()
		}
	}
}

// PressKey 提交按键事件
// 按键编号必须在0-7之间；队列满时丢弃并返回设备忙
func (r *Runner) PressKey(key int) error {
	if !hardware.ValidKey(key) {
		return apperrors.Newf(apperrors.ErrInvalidParam, "key %d out of range 0-%d", key, hardware.KeyCount-1)
	}

	select {
	case r.keys <- key:
		return nil
	default:
		r.logger.Warn("按键队列已满，丢弃按键", zap.Int("key", key))
		return apperrors.Newf(apperrors.ErrDeviceBusy, "key queue full")
	}
}

// Do 在调度goroutine中执行fn并等待完成
func (r *Runner) Do(ctx context.Context, fn func(*hardware.Panel)) error {
	done := make(chan struct{})
	wrapped := func(p *hardware.Panel) {
		defer close(done)
		fn(p)
	}

	select {
	case r.actions <- wrapped:
	case <-ctx.Done():
		return contextError(ctx)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return contextError(ctx)
	}
}

func contextError(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return apperrors.Wrap(ctx.Err(), apperrors.ErrTimeout)
	}
	return apperrors.Wrap(ctx.Err(), apperrors.ErrCanceled)
}

// Status 返回最近一次状态快照
func (r *Runner) Status() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// OnStatus 注册状态变化回调
// 回调在调度goroutine中同步执行，不能阻塞
func (r *Runner) OnStatus(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.subs = append(r.subs, fn)
	r.mu.Unlock()
}

// publish 生成快照，显示内容或链路状态变化时通知订阅者
func (r *Runner) publish() {
	upper, lower := r.display.Lines()
	state := r.panel.State()
	next := Snapshot{
		Upper:      upper,
		Lower:      lower,
		LinkOpen:   state.LinkOpen,
		DevicePath: state.DevicePath,
		Failures:   state.Failures,
		Slot:       state.Slot,
		Stats:      state.Stats,
		At:         time.Now(),
	}

	r.mu.Lock()
	prev := r.status
	r.status = next
	subs := make([]func(Snapshot), len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	if prev.At.IsZero() || changed(prev, next) {
		for _, fn := range subs {
			fn(next)
		}
	}
}

func changed(a, b Snapshot) bool {
	return a.Upper != b.Upper ||
		a.Lower != b.Lower ||
		a.LinkOpen != b.LinkOpen ||
		a.DevicePath != b.DevicePath ||
		a.Failures != b.Failures
}
