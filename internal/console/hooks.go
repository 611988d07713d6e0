package console

// 命令来源
const (
	SourceConsole = "console"
	SourceMonitor = "monitor"
	SourceStartup = "startup"
)

// Recorder 记录串口往来的字节（串口日志）
type Recorder interface {
	RecordSent(data []byte, source string, err error)
	RecordReceived(b byte, statusAfter string)
	RecordRejected(input, source string)
}

// Observer 接收状态变化通知（实时推送）
type Observer interface {
	StatusChanged(status string)
	StateChangeFailed(status string)
}

type nopRecorder struct{}

func (nopRecorder) RecordSent([]byte, string, error) {}
func (nopRecorder) RecordReceived(byte, string)      {}
func (nopRecorder) RecordRejected(string, string)    {}

type nopObserver struct{}

func (nopObserver) StatusChanged(string)     {}
func (nopObserver) StateChangeFailed(string) {}

// multiObserver 把通知分发给多个观察者
type multiObserver []Observer

func (m multiObserver) StatusChanged(status string) {
	for _, o := range m {
		o.StatusChanged(status)
	}
}

func (m multiObserver) StateChangeFailed(status string) {
	for _, o := range m {
		o.StateChangeFailed(status)
	}
}
