package hardware

import "io"

// SerialPort 串口接口（tarm/serial 的 *serial.Port 满足此接口，测试时可替换）
type SerialPort interface {
	io.ReadWriteCloser
	Flush() error
}

// Transport 与设备之间的字节通道
//
// Receive 执行一次有界读取：超时且没有数据时返回 ok=false 且 err=nil，
// 调用方据此在两次读取之间检查退出信号。
type Transport interface {
	Receive() (b byte, ok bool, err error)
	Send(data []byte) error
	Close() error
}

// Responder 模拟设备对单字节命令的应答
type Responder interface {
	Handle(cmd byte) (reply byte, ok bool)
}
