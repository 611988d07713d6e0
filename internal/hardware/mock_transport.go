package hardware

import (
	"sync"
	"time"

	"github.com/wfunc/uart-console/internal/errors"
	"github.com/wfunc/uart-console/internal/logger"
	"go.uber.org/zap"
)

// MockTransport 内存中的字节通道（用于测试和调试模式）
type MockTransport struct {
	mu           sync.Mutex
	inbound      chan byte
	done         chan struct{}
	pollInterval time.Duration
	device       Responder
	logger       *zap.Logger

	sent        []byte
	sendErr     error
	receiveHook func() error
	closed      bool
	closeCount  int
}

// NewMockTransport 创建模拟通道；device 为 nil 时只记录写入，应答由测试通过 Inject 注入
func NewMockTransport(pollInterval time.Duration, device Responder) *MockTransport {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Millisecond
	}
	return &MockTransport{
		inbound:      make(chan byte, 256),
		done:         make(chan struct{}),
		pollInterval: pollInterval,
		device:       device,
		logger:       logger.GetModuleLogger(logger.ModuleSerial),
	}
}

// Receive 等待一个字节，最多等待一个轮询周期
func (m *MockTransport) Receive() (byte, bool, error) {
	select {
	case <-m.done:
		return 0, false, errors.New(errors.ErrSerialClosed, "mock")
	default:
	}

	m.mu.Lock()
	hook := m.receiveHook
	m.mu.Unlock()
	if hook != nil {
		if err := hook(); err != nil {
			return 0, false, errors.Wrap(err, errors.ErrSerialPortRead, "mock")
		}
	}

	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()

	select {
	case b := <-m.inbound:
		return b, true, nil
	case <-timer.C:
		return 0, false, nil
	case <-m.done:
		return 0, false, errors.New(errors.ErrSerialClosed, "mock")
	}
}

// Send 记录写入的字节，并把模拟设备的应答放入接收队列
func (m *MockTransport) Send(data []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New(errors.ErrSerialClosed, "mock")
	}
	if m.sendErr != nil {
		err := m.sendErr
		m.mu.Unlock()
		return errors.Wrap(err, errors.ErrSerialPortWrite, "mock")
	}
	m.sent = append(m.sent, data...)
	device := m.device
	m.mu.Unlock()

	if device == nil {
		return nil
	}

	for _, b := range data {
		if reply, ok := device.Handle(b); ok {
			m.Inject(reply)
		}
	}
	return nil
}

// Inject 模拟设备主动发来的字节
func (m *MockTransport) Inject(data ...byte) {
	for _, b := range data {
		select {
		case m.inbound <- b:
		case <-m.done:
			return
		}
	}
}

// Close 关闭通道
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeCount++
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	m.logger.Info("模拟串口已断开")
	return nil
}

// SetSendError 设置后续写入返回的错误，传 nil 恢复
func (m *MockTransport) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetReceiveHook 设置每次读取前调用的函数，返回错误时本次读取失败，传 nil 恢复
func (m *MockTransport) SetReceiveHook(hook func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiveHook = hook
}

// Sent 返回已写入字节的副本
func (m *MockTransport) Sent() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

// Closed 是否已关闭
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CloseCount 返回 Close 被调用的次数
func (m *MockTransport) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCount
}
