package hardware

import (
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
	"github.com/wfunc/uart-console/internal/config"
	"github.com/wfunc/uart-console/internal/errors"
	"github.com/wfunc/uart-console/internal/logger"
	"go.uber.org/zap"
)

// SerialTransport 基于真实串口的字节通道
type SerialTransport struct {
	port    SerialPort
	name    string
	closed  atomic.Bool
	writeMu sync.Mutex
	logger  *zap.Logger
}

// OpenSerial 按配置打开串口
func OpenSerial(cfg *config.SerialConfig) (*SerialTransport, error) {
	name, err := ResolvePort(cfg.Port)
	if err != nil {
		return nil, err
	}

	port, err := serial.OpenPort(buildPortConfig(name, cfg))
	if err != nil {
		logger.GetModuleLogger(logger.ModuleSerial).Error("打开串口失败",
			zap.String("port", name),
			zap.Int("baud_rate", cfg.BaudRate),
			zap.Error(err))
		return nil, errors.Wrapf(err, errors.ErrSerialPortOpen, "%s: %v", name, err)
	}

	t := NewSerialTransport(name, port)
	// 丢弃打开前缓存的字节，避免被当作状态请求的应答
	if err := t.Flush(); err != nil {
		t.logger.Warn("清空串口缓冲区失败", zap.String("port", name), zap.Error(err))
	}
	t.logger.Info("串口连接成功",
		zap.String("port", name),
		zap.Int("baud_rate", cfg.BaudRate),
		zap.Duration("read_timeout", cfg.ReadTimeout))

	return t, nil
}

// NewSerialTransport 用已打开的串口创建字节通道
func NewSerialTransport(name string, port SerialPort) *SerialTransport {
	return &SerialTransport{
		port:   port,
		name:   name,
		logger: logger.GetModuleLogger(logger.ModuleSerial),
	}
}

// buildPortConfig 将配置转换为 tarm/serial 的端口配置
func buildPortConfig(name string, cfg *config.SerialConfig) *serial.Config {
	// 解析校验位
	parity := serial.ParityNone
	switch strings.ToUpper(cfg.Parity) {
	case "O", "ODD":
		parity = serial.ParityOdd
	case "E", "EVEN":
		parity = serial.ParityEven
	}

	stopBits := serial.Stop1
	if cfg.StopBits == 2 {
		stopBits = serial.Stop2
	}

	size := byte(cfg.DataBits)
	if size == 0 {
		size = serial.DefaultSize
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 100 * time.Millisecond
	}

	return &serial.Config{
		Name:        name,
		Baud:        cfg.BaudRate,
		Size:        size,
		Parity:      parity,
		StopBits:    stopBits,
		ReadTimeout: readTimeout,
	}
}

// Name 返回串口设备路径
func (t *SerialTransport) Name() string {
	return t.name
}

// Receive 读取一个字节，超时无数据时 ok=false
func (t *SerialTransport) Receive() (byte, bool, error) {
	if t.closed.Load() {
		return 0, false, errors.New(errors.ErrSerialClosed, t.name)
	}

	var buf [1]byte
	n, err := t.port.Read(buf[:])
	if n == 1 {
		logger.LogSerialExchange("receive", buf[:], true)
		return buf[0], true, nil
	}

	// 超时：posix 下返回 io.EOF，windows 下返回 0, nil
	if err == nil || err == io.EOF {
		return 0, false, nil
	}

	if t.closed.Load() {
		return 0, false, errors.New(errors.ErrSerialClosed, t.name)
	}
	return 0, false, errors.Wrap(err, errors.ErrSerialPortRead, t.name)
}

// Send 写入命令字节
func (t *SerialTransport) Send(data []byte) error {
	if t.closed.Load() {
		return errors.New(errors.ErrSerialClosed, t.name)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	n, err := t.port.Write(data)
	if err != nil {
		logger.LogSerialExchange("send", data, false)
		return errors.Wrap(err, errors.ErrSerialPortWrite, t.name)
	}
	if n != len(data) {
		logger.LogSerialExchange("send", data, false)
		return errors.Newf(errors.ErrSerialPortWrite, "%s: short write %d/%d", t.name, n, len(data))
	}

	logger.LogSerialExchange("send", data, true)
	return nil
}

// Flush 丢弃串口缓冲区中尚未读取的数据
func (t *SerialTransport) Flush() error {
	if t.closed.Load() {
		return errors.New(errors.ErrSerialClosed, t.name)
	}
	if err := t.port.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrSerialPortRead, "flush "+t.name)
	}
	return nil
}

// Close 关闭串口，重复调用安全
func (t *SerialTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	if err := t.port.Close(); err != nil {
		t.logger.Error("关闭串口失败", zap.String("port", t.name), zap.Error(err))
		return errors.Wrap(err, errors.ErrUnknown, "close "+t.name)
	}

	t.logger.Info("串口已断开", zap.String("port", t.name))
	return nil
}
