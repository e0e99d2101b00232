package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/uart-panel/internal/api"
	"github.com/wfunc/uart-panel/internal/config"
	"github.com/wfunc/uart-panel/internal/errors"
	"github.com/wfunc/uart-panel/internal/hardware"
	"github.com/wfunc/uart-panel/internal/logger"
	"github.com/wfunc/uart-panel/internal/mqtt"
	"github.com/wfunc/uart-panel/internal/runner"
	"github.com/wfunc/uart-panel/internal/websocket"
	"go.uber.org/zap"
)

// Server 服务实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	runner     *runner.Runner
	hub        *websocket.Hub
	httpServer *http.Server
	bridge     *mqtt.Bridge

	// 关闭控制
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewServer 创建服务实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:        cfg,
		logger:     logger.GetLogger(),
		shutdownCh: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start 启动服务
func (s *Server) Start() error {
	if err := s.initComponents(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "初始化组件失败")
	}

	if err := s.startServices(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "启动服务失败")
	}

	// 监听配置变化
	config.Watch(s.reloadConfig)

	return nil
}

// initComponents 初始化各个组件
func (s *Server) initComponents() error {
	display := hardware.NewTextDisplay()
	link := hardware.NewLink(&hardware.LinkConfig{
		Port:        s.cfg.Serial.Port,
		ReadTimeout: s.cfg.Serial.ReadTimeout,
	}, s.portOpener())
	panel := hardware.NewPanel(link, display)

	s.runner = runner.New(panel, display, runner.Config{
		UpdateInterval:    s.cfg.Panel.UpdateInterval,
		ReconnectInterval: s.cfg.Serial.ReconnectInterval,
	})

	if s.cfg.WebSocket.Enabled {
		s.hub = websocket.NewHub(s.runner, websocket.Options{
			MaxMessageSize: s.cfg.WebSocket.MaxMessageSize,
			PingInterval:   s.cfg.WebSocket.PingInterval,
			PongTimeout:    s.cfg.WebSocket.PongTimeout,
			WriteTimeout:   s.cfg.WebSocket.WriteTimeout,
		}, logger.GetModuleLogger("websocket"))
	}

	if s.cfg.Server.Enabled {
		gin.SetMode(s.cfg.Server.Mode)
		wsPath := ""
		if s.hub != nil {
			wsPath = s.cfg.WebSocket.Path
		}
		router := api.NewRouter(s.runner, s.hub, wsPath, logger.GetModuleLogger("http"))
		s.httpServer = &http.Server{
			Addr:              net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port)),
			Handler:           router.GetEngine(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	if s.cfg.MQTT.Enabled {
		s.bridge = mqtt.NewBridge(s.cfg.MQTT, s.runner)
	}

	return nil
}

// portOpener 模拟模式下返回模拟外设
func (s *Server) portOpener() hardware.PortOpener {
	if s.cfg.Serial.MockMode {
		s.logger.Warn("使用模拟外设，不会访问真实串口")
		return hardware.NewSimulatedPort().Opener()
	}
	return nil
}

// startServices 启动各个服务
func (s *Server) startServices() error {
	// 面板调度必须最先启动，其余服务通过它访问串口
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.runner.Run(s.ctx); err != nil {
			s.logger.Error("面板调度异常退出", zap.Error(err))
		}
	}()

	if s.hub != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.hub.Run(s.ctx)
		}()
	}

	if s.httpServer != nil {
		ln, err := net.Listen("tcp", s.httpServer.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.logger.Info("HTTP服务已启动", zap.String("address", s.httpServer.Addr))
			if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
				s.logger.Error("HTTP服务异常退出", zap.Error(err))
			}
		}()
	}

	if s.bridge != nil {
		s.bridge.Start(s.ctx)
	}

	return nil
}

// WaitForShutdown 等待退出信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)

	signal.Notify(sigCh,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // kill命令
		syscall.SIGQUIT, // Ctrl+\
	)

	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))

	close(s.shutdownCh)
}

// Shutdown 优雅关闭服务
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP服务关闭失败", zap.Error(err))
		}
	}

	// 取消主上下文，触发所有goroutine退出
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已关闭")
	case <-shutdownCtx.Done():
		return errors.New(errors.ErrTimeout, "关闭服务超时")
	}

	logger.Sync()
	return nil
}

// reloadConfig 配置热更新
// 只有日志级别可以在运行时生效，其余配置需要重启
func (s *Server) reloadConfig(newCfg *config.Config) {
	s.logger.Info("配置文件已更新", zap.String("log_level", newCfg.Log.Level))
	logger.SetLevel(newCfg.Log.Level)
}
