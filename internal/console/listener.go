package console

import (
	"context"
	"time"

	"github.com/wfunc/uart-console/internal/errors"
	"github.com/wfunc/uart-console/internal/hardware"
	"github.com/wfunc/uart-console/internal/logger"
	"go.uber.org/zap"
)

const defaultReadBackoff = 100 * time.Millisecond

// Listener 后台读取设备发来的字节并更新状态
type Listener struct {
	transport hardware.Transport
	status    *StatusStore
	renderer  *Renderer
	recorder  Recorder
	observer  Observer
	backoff   time.Duration
	logger    *zap.Logger
}

// NewListener 创建监听器
func NewListener(transport hardware.Transport, status *StatusStore, renderer *Renderer, recorder Recorder, observer Observer) *Listener {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Listener{
		transport: transport,
		status:    status,
		renderer:  renderer,
		recorder:  recorder,
		observer:  observer,
		backoff:   defaultReadBackoff,
		logger:    logger.GetModuleLogger(logger.ModuleConsole),
	}
}

// Run 循环读取直到 ctx 被取消或串口被关闭
func (l *Listener) Run(ctx context.Context) {
	l.logger.Debug("监听器启动")
	defer l.logger.Debug("监听器退出")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b, ok, err := l.transport.Receive()
		if err != nil {
			if errors.Is(err, errors.ErrSerialClosed) {
				return
			}
			if errors.IsRetryable(err) {
				l.logger.Warn("读取串口失败，稍后重试", zap.Error(err))
			} else {
				l.logger.Error("读取串口失败", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.backoff):
			}
			continue
		}
		if !ok {
			continue
		}

		l.Handle(b)
	}
}

// Handle 处理一个收到的字节
func (l *Listener) Handle(b byte) {
	if hardware.IsFailure(b) {
		current := l.status.Get()
		l.logger.Info("设备报告状态切换失败",
			zap.String("status", current),
			zap.Error(errors.New(errors.ErrStateChangeFailed, "device replied F")))
		l.recorder.RecordReceived(b, current)
		l.renderer.Render(ErrorStateChangeFailed)
		l.observer.StateChangeFailed(current)
		return
	}

	value := string(rune(b))
	if l.status.Set(value) {
		l.logger.Info("设备状态更新", zap.String("status", value))
	}
	l.recorder.RecordReceived(b, value)
	l.renderer.Render(ErrorNone)
	l.observer.StatusChanged(value)
}
