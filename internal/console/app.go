package console

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"sync"

	"github.com/wfunc/uart-console/internal/config"
	"github.com/wfunc/uart-console/internal/hardware"
	"github.com/wfunc/uart-console/internal/logger"
	"go.uber.org/zap"
)

// App 控制台应用：启动状态请求、后台监听、前台命令循环
type App struct {
	cfg       *config.ConsoleConfig
	transport hardware.Transport
	in        io.Reader
	out       io.Writer
	recorder  Recorder
	observers multiObserver

	status     *StatusStore
	renderer   *Renderer
	listener   *Listener
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// Option App 选项
type Option func(*App)

// WithInput 设置操作员输入（默认 os.Stdin）
func WithInput(in io.Reader) Option {
	return func(a *App) { a.in = in }
}

// WithOutput 设置界面输出（默认 os.Stdout）
func WithOutput(out io.Writer) Option {
	return func(a *App) { a.out = out }
}

// WithRecorder 设置串口日志记录器
func WithRecorder(r Recorder) Option {
	return func(a *App) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithObserver 添加状态变化观察者
func WithObserver(o Observer) Option {
	return func(a *App) {
		if o != nil {
			a.observers = append(a.observers, o)
		}
	}
}

// New 创建控制台应用
func New(cfg *config.ConsoleConfig, transport hardware.Transport, opts ...Option) *App {
	a := &App{
		cfg:       cfg,
		transport: transport,
		in:        os.Stdin,
		out:       os.Stdout,
		recorder:  nopRecorder{},
		status:    NewStatusStore(),
		logger:    logger.GetModuleLogger(logger.ModuleConsole),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.renderer = NewRenderer(a.out, a.status, cfg.Title, cfg.ClearScreen)
	a.listener = NewListener(transport, a.status, a.renderer, a.recorder, a.observers)
	a.dispatcher = NewDispatcher(transport, a.renderer, a.recorder)
	return a
}

// Status 返回状态存储
func (a *App) Status() *StatusStore {
	return a.status
}

// Dispatcher 返回命令分发器
func (a *App) Dispatcher() *Dispatcher {
	return a.dispatcher
}

// Run 运行控制台直到操作员退出、输入结束或 ctx 被取消，返回前关闭串口
func (a *App) Run(ctx context.Context) error {
	status, err := RequestStatus(ctx, a.transport, a.cfg.StatusTimeout, a.recorder)
	if err != nil {
		a.logger.Warn("请求设备状态失败", zap.Error(err))
	}
	a.status.Set(status)
	a.logger.Info("初始设备状态", zap.String("status", status))
	a.renderer.Render(ErrorNone)
	a.observers.StatusChanged(status)

	listenCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.listener.Run(listenCtx)
	}()

	runErr := a.dispatcher.Run(ctx, a.in)

	// 先等待监听器退出再关闭串口
	cancel()
	wg.Wait()

	if err := a.transport.Close(); err != nil {
		a.logger.Error("关闭串口失败", zap.Error(err))
	}
	a.logger.Info("控制台已退出")

	if runErr != nil && !stderrors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
