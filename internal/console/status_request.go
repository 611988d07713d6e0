package console

import (
	"context"
	"time"

	"github.com/wfunc/uart-console/internal/errors"
	"github.com/wfunc/uart-console/internal/hardware"
)

// RequestStatus 启动时向设备请求当前状态
//
// 发送 'S' 后等待一个字节。收到 'F' 时返回 "Unknown"；写入失败、
// 超时或 ctx 取消时同样返回 "Unknown" 并附带错误。
func RequestStatus(ctx context.Context, transport hardware.Transport, timeout time.Duration, recorder Recorder) (string, error) {
	if recorder == nil {
		recorder = nopRecorder{}
	}

	cmd := []byte{hardware.CmdStatus}
	err := transport.Send(cmd)
	recorder.RecordSent(cmd, SourceStartup, err)
	if err != nil {
		return UnknownStatus, err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return UnknownStatus, errors.Newf(errors.ErrTimeout, "no status reply within %s", timeout)
			}
			return UnknownStatus, errors.Wrap(ctx.Err(), errors.ErrCanceled, "status request")
		default:
		}

		b, ok, err := transport.Receive()
		if err != nil {
			return UnknownStatus, err
		}
		if !ok {
			continue
		}

		status := string(rune(b))
		if hardware.IsFailure(b) {
			status = UnknownStatus
		}
		recorder.RecordReceived(b, status)
		return status, nil
	}
}
