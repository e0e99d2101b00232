package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/wfunc/uart-panel/internal/config"
	"github.com/wfunc/uart-panel/internal/logger"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// 命令行参数
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		port        = flag.String("port", "", "串口设备路径，覆盖配置文件")
		mock        = flag.Bool("mock", false, "使用模拟外设")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()
	if *port != "" {
		cfg.Serial.Port = *port
	}
	if *mock {
		cfg.Serial.MockMode = true
	}

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	printStartInfo(cfg)

	server := NewServer(cfg)

	if err := server.Start(); err != nil {
		logger.Fatal("服务启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("服务已安全关闭")
}

func printVersion() {
	fmt.Printf("uart-panel %s\n", Version)
	fmt.Printf("  build time: %s\n", BuildTime)
	fmt.Printf("  git commit: %s\n", GitCommit)
	fmt.Printf("  go version: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func printHelp() {
	fmt.Println("uart-panel - 串口控制面板服务")
	fmt.Println()
	fmt.Println("用法: uart-panel [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Printf("  %s_SERIAL_PORT      串口设备路径\n", config.EnvPrefix)
	fmt.Printf("  %s_SERIAL_MOCK_MODE 使用模拟外设\n", config.EnvPrefix)
	fmt.Printf("  %s_LOG_LEVEL        日志级别\n", config.EnvPrefix)
}

func printStartInfo(cfg *config.Config) {
	logger.Info("uart-panel 启动",
		zap.String("version", Version),
		zap.String("serial_port", cfg.Serial.Port),
		zap.Bool("mock_mode", cfg.Serial.MockMode),
		zap.Duration("update_interval", cfg.Panel.UpdateInterval),
		zap.Bool("http", cfg.Server.Enabled),
		zap.Bool("websocket", cfg.WebSocket.Enabled),
		zap.Bool("mqtt", cfg.MQTT.Enabled),
		zap.String("config_file", config.ConfigFileUsed()),
	)
}
