package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/wfunc/uart-console/internal/api"
	"github.com/wfunc/uart-console/internal/config"
	"github.com/wfunc/uart-console/internal/console"
	"github.com/wfunc/uart-console/internal/database"
	"github.com/wfunc/uart-console/internal/errors"
	"github.com/wfunc/uart-console/internal/hardware"
	"github.com/wfunc/uart-console/internal/logger"
	"github.com/wfunc/uart-console/internal/service"
	"github.com/wfunc/uart-console/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// submitFunc 将函数适配为命令提交接口
type submitFunc func(string) error

func (f submitFunc) Submit(input string) error { return f(input) }

func main() {
	// 命令行参数
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		portName    = flag.String("port", "", "串口设备，auto 表示自动查找")
		baudRate    = flag.Int("baud", 0, "波特率")
		mockMode    = flag.Bool("mock", false, "使用模拟LED板")
		listPorts   = flag.Bool("list-ports", false, "列出可用串口")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}
	if *showHelp {
		flag.Usage()
		return
	}
	if *listPorts {
		os.Exit(printPorts())
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()
	if *portName != "" {
		cfg.Serial.Port = *portName
	}
	if *baudRate > 0 {
		cfg.Serial.BaudRate = *baudRate
	}
	if *mockMode {
		cfg.Serial.MockMode = true
	}

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	config.Watch(func(newCfg *config.Config) {
		logger.Info("配置已更新，重新加载日志级别", zap.String("file", config.ConfigFileUsed()))
		logger.ApplyConfig(&newCfg.Log)
	})

	code := run(cfg)
	logger.Cleanup()
	os.Exit(code)
}

func run(cfg *config.Config) int {
	log := logger.GetLogger()
	log.Info("UART控制台启动",
		zap.String("version", Version),
		zap.String("port", cfg.Serial.Port),
		zap.Int("baud_rate", cfg.Serial.BaudRate),
		zap.Bool("mock", cfg.Serial.MockMode))

	transport, portLabel, err := openTransport(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.LogError(err, "打开串口失败", zap.Bool("critical", errors.IsCritical(err)))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []console.Option

	// 通信日志
	var db *gorm.DB
	var journal *service.SerialLogService
	if cfg.Database.Enabled {
		db, err = database.Open(&cfg.Database)
		switch {
		case err != nil && errors.IsCritical(err):
			// 配置错误不降级运行
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			logger.LogError(err, "数据库配置无效")
			_ = transport.Close()
			return 1
		case err != nil:
			log.Warn("数据库不可用，通信日志已禁用", zap.Error(err))
		default:
			journal = service.NewSerialLogService(db, cfg.Journal, portLabel)
			opts = append(opts, console.WithRecorder(journal))
		}
	}

	// 监控接口，命令与状态在控制台创建后才可用
	var app *console.App
	var hub *websocket.Hub
	var server *api.Server
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	if cfg.Monitor.Enabled {
		monitorLog := logger.GetModuleLogger(logger.ModuleMonitor)
		status := func() string { return app.Status().Get() }
		commander := submitFunc(func(input string) error { return app.Dispatcher().Submit(input) })

		hub = websocket.NewHub(monitorLog, status, commander)
		opts = append(opts, console.WithObserver(hub))

		router := api.NewRouter(api.Dependencies{
			Status:    status,
			Commander: commander,
			Journal:   journal,
			Hub:       hub,
			Logger:    monitorLog,
		})
		server = api.NewServer(cfg.Monitor, router.Engine(), monitorLog)
	}

	app = console.New(&cfg.Console, transport, opts...)

	if server != nil {
		go hub.Run(hubCtx)
		if err := server.Start(); err != nil {
			log.Warn("监控接口启动失败", zap.Error(err))
			server = nil
		}
	}

	runErr := app.Run(ctx)

	// 控制台已退出并关闭串口，依次关闭其余组件
	if server != nil {
		if err := server.Shutdown(context.Background()); err != nil {
			log.Warn("监控接口关闭失败", zap.Error(err))
		}
	}
	stopHub()
	if journal != nil {
		journal.Close()
	}
	if db != nil {
		if err := database.Close(db); err != nil {
			log.Warn("关闭数据库失败", zap.Error(err))
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		logger.LogError(runErr, "控制台异常退出")
		return 1
	}
	log.Info("UART控制台已退出")
	return 0
}

// openTransport 打开串口或模拟LED板
func openTransport(cfg *config.Config) (hardware.Transport, string, error) {
	if cfg.Serial.MockMode {
		board := hardware.NewLedBoard(hardware.MinState + 1)
		return hardware.NewMockTransport(cfg.Serial.ReadTimeout, board), "mock", nil
	}

	t, err := hardware.OpenSerial(&cfg.Serial)
	if err != nil {
		return nil, "", err
	}
	return t, t.Name(), nil
}

func printPorts() int {
	ports, err := hardware.ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "列出串口失败: %v\n", err)
		return 1
	}
	if len(ports) == 0 {
		fmt.Println("未找到串口设备")
		return 0
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return 0
}

func printVersion() {
	fmt.Printf("uart-console %s\n", Version)
	fmt.Printf("  构建时间: %s\n", BuildTime)
	fmt.Printf("  Git提交: %s\n", GitCommit)
	fmt.Printf("  Go版本: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
