package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/wfunc/uart-panel/internal/config"
	"github.com/wfunc/uart-panel/internal/hardware"
	"github.com/wfunc/uart-panel/internal/logger"
	"github.com/wfunc/uart-panel/internal/shell"
)

const sessionKey = "$session"

var (
	port        = flag.String("port", hardware.DefaultDevicePath, "串口设备路径，auto表示自动探测")
	mock        = flag.Bool("mock", false, "使用模拟外设")
	readTimeout = flag.Duration("read-timeout", 100*time.Millisecond, "单次读取超时")
	evalOnly    = flag.Bool("e", false, "只执行命令行参数中的命令，不进入交互模式")
	outputJSON  = flag.Bool("json", false, "以JSON输出状态")
	logLevel    = flag.String("log-level", "warn", "日志级别")
)

func sessionFrom(c *ishell.Context) *shell.Session {
	return c.Get(sessionKey).(*shell.Session)
}

var commands = []*ishell.Cmd{
	{
		Name:    "ports",
		Aliases: []string{"ls"},
		Help:    "列出系统串口",
		Func: func(c *ishell.Context) {
			ports, err := sessionFrom(c).Ports()
			if err != nil {
				c.Err(err)
				return
			}
			if len(ports) == 0 {
				c.Println("No serial ports found")
				return
			}
			for _, p := range ports {
				c.Println(p)
			}
		},
	},
	{
		Name: "open",
		Help: "[PATH] 打开串口",
		Func: func(c *ishell.Context) {
			path := ""
			if len(c.Args) > 0 {
				path = c.Args[0]
			}
			if err := sessionFrom(c).Open(path); err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		},
	},
	{
		Name: "close",
		Help: "关闭串口",
		Func: func(c *ishell.Context) {
			if err := sessionFrom(c).Close(); err != nil {
				c.Err(err)
			}
		},
	},
	{
		Name:    "key",
		Aliases: []string{"k"},
		Help:    "N 发送按键 0-7",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: key N"))
				return
			}
			if err := sessionFrom(c).Key(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	},
	{
		Name:    "tick",
		Aliases: []string{"t"},
		Help:    "[COUNT] 执行轮询",
		Func: func(c *ishell.Context) {
			count := 1
			if len(c.Args) > 0 {
				if _, err := fmt.Sscanf(c.Args[0], "%d", &count); err != nil || count < 1 {
					c.Err(fmt.Errorf("invalid count %q", c.Args[0]))
					return
				}
			}
			s := sessionFrom(c)
			for i := 0; i < count; i++ {
				if i > 0 {
					time.Sleep(hardware.DefaultUpdateInterval)
				}
				if err := s.Tick(); err != nil {
					c.Err(err)
					return
				}
			}
			printStatus(c, s)
		},
	},
	{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "显示当前状态",
		Func: func(c *ishell.Context) {
			printStatus(c, sessionFrom(c))
		},
	},
}

func printStatus(c *ishell.Context, s *shell.Session) {
	out, err := s.Status(*outputJSON)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(out)
}

func main() {
	flag.Parse()

	if err := logger.Init(&config.LogConfig{Level: *logLevel, Format: "console", Output: "stdout"}); err != nil {
		log.Fatalln(err)
	}
	defer logger.Cleanup()

	linkConfig := &hardware.LinkConfig{Port: *port, ReadTimeout: *readTimeout}
	var opener hardware.PortOpener
	if *mock {
		opener = hardware.NewSimulatedPort().Opener()
	}
	session := shell.NewSession(linkConfig, opener)
	defer session.Close()

	sh := ishell.New()
	sh.Set(sessionKey, session)
	sh.SetPrompt("panel > ")
	for _, cmd := range commands {
		sh.AddCmd(cmd)
	}

	// -e 模式下参数以 ";" 分隔多条命令，如: panelsh -e open \; key 3 \; tick
	if args := flag.Args(); len(args) > 0 {
		for _, line := range splitCommands(args) {
			if err := sh.Process(line...); err != nil {
				log.Fatalln(err)
			}
		}
		return
	}
	if *evalOnly {
		fmt.Fprintln(os.Stderr, "command expected")
		os.Exit(2)
	}

	sh.Printf("uart-panel shell, device %s\n", *port)
	sh.Run()
}

func splitCommands(args []string) [][]string {
	var (
		lines [][]string
		cur   []string
	)
	for _, arg := range args {
		if arg == ";" {
			if len(cur) > 0 {
				lines = append(lines, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, strings.TrimSuffix(arg, ";"))
		if strings.HasSuffix(arg, ";") {
			lines = append(lines, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		lines = append(lines, cur)
	}
	return lines
}
