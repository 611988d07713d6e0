package hardware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/uart-console/internal/errors"
)

func TestLedBoard(t *testing.T) {
	tests := []struct {
		name      string
		initial   int
		cmd       byte
		wantReply byte
		wantState int
	}{
		{"加一", 2, CmdIncrement, '3', 3},
		{"最大状态加一失败", 4, CmdIncrement, ReplyFailure, 4},
		{"减一", 2, CmdDecrement, '1', 1},
		{"最小状态减一失败", 1, CmdDecrement, ReplyFailure, 1},
		{"查询状态", 3, CmdStatus, '3', 3},
		{"未知命令", 3, 'Q', ReplyFailure, 3},
		{"小写命令不识别", 2, 'a', ReplyFailure, 2},
		{"初始状态越界", 9, CmdStatus, '1', 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := NewLedBoard(tt.initial)
			reply, ok := board.Handle(tt.cmd)
			assert.True(t, ok)
			assert.Equal(t, tt.wantReply, reply)
			assert.Equal(t, tt.wantState, board.State())
		})
	}
}

func TestStateChar(t *testing.T) {
	assert.Equal(t, byte('1'), StateChar(1))
	assert.Equal(t, byte('4'), StateChar(4))
	assert.True(t, IsFailure('F'))
	assert.False(t, IsFailure('f'))
	assert.Len(t, StateDescriptions, MaxState-MinState+1)
}

func TestMockTransportWithDevice(t *testing.T) {
	tr := NewMockTransport(20*time.Millisecond, NewLedBoard(2))

	require.NoError(t, tr.Send([]byte{CmdIncrement}))
	b, ok, err := tr.Receive()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte('3'), b)
	assert.Equal(t, []byte("A"), tr.Sent())

	// 没有数据时超时返回空读
	_, ok, err = tr.Receive()
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestMockTransportInjectAndClose(t *testing.T) {
	tr := NewMockTransport(0, nil)

	tr.Inject('F', '2')
	b, ok, _ := tr.Receive()
	assert.True(t, ok)
	assert.Equal(t, byte('F'), b)
	b, ok, _ = tr.Receive()
	assert.True(t, ok)
	assert.Equal(t, byte('2'), b)

	tr.SetSendError(assert.AnError)
	assert.True(t, errors.Is(tr.Send([]byte("S")), errors.ErrSerialPortWrite))
	tr.SetSendError(nil)
	assert.NoError(t, tr.Send([]byte("S")))

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.True(t, tr.Closed())
	assert.Equal(t, 2, tr.CloseCount())

	_, _, err := tr.Receive()
	assert.True(t, errors.Is(err, errors.ErrSerialClosed))
	assert.True(t, errors.Is(tr.Send([]byte("A")), errors.ErrSerialClosed))
}

func TestMockTransportReceiveHook(t *testing.T) {
	tr := NewMockTransport(0, nil)
	tr.Inject('3')

	tr.SetReceiveHook(func() error { return assert.AnError })
	_, ok, err := tr.Receive()
	assert.False(t, ok)
	assert.True(t, errors.Is(err, errors.ErrSerialPortRead))
	assert.True(t, errors.IsRetryable(err))

	// 读取失败不消耗已注入的字节
	tr.SetReceiveHook(nil)
	b, ok, err := tr.Receive()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, byte('3'), b)
}
