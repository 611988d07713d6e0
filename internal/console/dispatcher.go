package console

import (
	"bufio"
	"context"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/wfunc/uart-console/internal/errors"
	"github.com/wfunc/uart-console/internal/hardware"
	"github.com/wfunc/uart-console/internal/logger"
	"go.uber.org/zap"
)

// Dispatcher 读取操作员输入并向设备发送单字符命令
type Dispatcher struct {
	transport hardware.Transport
	renderer  *Renderer
	recorder  Recorder
	logger    *zap.Logger
}

// NewDispatcher 创建命令分发器
func NewDispatcher(transport hardware.Transport, renderer *Renderer, recorder Recorder) *Dispatcher {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Dispatcher{
		transport: transport,
		renderer:  renderer,
		recorder:  recorder,
		logger:    logger.GetModuleLogger(logger.ModuleConsole),
	}
}

// IsExitCommand 判断输入是否为退出命令
func IsExitCommand(input string) bool {
	return input == "X" || input == "x"
}

// Run 逐行读取输入，直到退出命令、输入结束或 ctx 被取消
func (d *Dispatcher) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	var readErr error

	// 整行读取，不限制行长度，超长输入按非单字符处理
	go func() {
		defer close(lines)
		reader := bufio.NewReader(in)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				select {
				case lines <- strings.TrimSuffix(line, "\n"):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					readErr = err
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if readErr != nil {
					return errors.Wrap(readErr, errors.ErrUnknown, "read operator input")
				}
				d.logger.Info("输入结束，退出")
				return nil
			}
			if d.Handle(line) {
				return nil
			}
		}
	}
}

// Handle 处理一行输入，返回是否应退出
func (d *Dispatcher) Handle(line string) bool {
	line = strings.TrimSuffix(line, "\r")

	if IsExitCommand(line) {
		d.logger.Info("收到退出命令")
		return true
	}

	err := d.send(line, SourceConsole)
	if errors.Is(err, errors.ErrInvalidInput) {
		d.renderer.Render(ErrorSingleCharOnly)
	}
	return false
}

// Submit 提交来自监控接口的命令，校验规则与控制台相同
func (d *Dispatcher) Submit(input string) error {
	if IsExitCommand(input) {
		return errors.New(errors.ErrExitCommand, input)
	}
	return d.send(input, SourceMonitor)
}

func (d *Dispatcher) send(input, source string) error {
	if utf8.RuneCountInString(input) != 1 {
		d.logger.Debug("输入不是单个字符", zap.String("input", input), zap.String("source", source))
		d.recorder.RecordRejected(input, source)
		return errors.Newf(errors.ErrInvalidInput, "got %d characters", utf8.RuneCountInString(input))
	}

	data := []byte(input)
	err := d.transport.Send(data)
	d.recorder.RecordSent(data, source, err)
	if err != nil {
		d.logger.Error("发送命令失败",
			zap.String("command", input),
			zap.String("source", source),
			zap.Error(err))
		return err
	}

	d.logger.Debug("发送命令", zap.String("command", input), zap.String("source", source))
	return nil
}
