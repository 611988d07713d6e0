package console

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/uart-console/internal/config"
	"github.com/wfunc/uart-console/internal/errors"
	"github.com/wfunc/uart-console/internal/hardware"
)

func TestRequestStatus(t *testing.T) {
	tests := []struct {
		name  string
		reply byte
		want  string
	}{
		{"设备返回状态", '2', "2"},
		{"设备返回失败", 'F', UnknownStatus},
		{"任意字符", 'q', "q"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := hardware.NewMockTransport(5*time.Millisecond, nil)
			transport.Inject(tt.reply)

			status, err := RequestStatus(context.Background(), transport, time.Second, nil)

			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, []byte("S"), transport.Sent())
		})
	}
}

func TestRequestStatusTimeout(t *testing.T) {
	transport := hardware.NewMockTransport(5*time.Millisecond, nil)

	status, err := RequestStatus(context.Background(), transport, 30*time.Millisecond, nil)

	assert.Equal(t, UnknownStatus, status)
	assert.True(t, errors.Is(err, errors.ErrTimeout))
}

func TestRequestStatusSendFailure(t *testing.T) {
	transport := hardware.NewMockTransport(5*time.Millisecond, nil)
	transport.SetSendError(assert.AnError)

	status, err := RequestStatus(context.Background(), transport, time.Second, nil)

	assert.Equal(t, UnknownStatus, status)
	assert.True(t, errors.Is(err, errors.ErrSerialPortWrite))
}

func TestRequestStatusWithSimulator(t *testing.T) {
	transport := hardware.NewMockTransport(5*time.Millisecond, hardware.NewLedBoard(3))

	status, err := RequestStatus(context.Background(), transport, time.Second, nil)

	require.NoError(t, err)
	assert.Equal(t, "3", status)
}

// AppTestSuite 控制台端到端测试
type AppTestSuite struct {
	suite.Suite
	transport *hardware.MockTransport
	out       *safeBuffer
	input     *io.PipeWriter
	app       *App
	done      chan error
}

func (s *AppTestSuite) SetupTest() {
	s.transport = hardware.NewMockTransport(5*time.Millisecond, nil)
	s.out = &safeBuffer{}

	r, w := io.Pipe()
	s.input = w
	s.app = New(&config.ConsoleConfig{StatusTimeout: time.Second}, s.transport,
		WithInput(r), WithOutput(s.out))
	s.done = make(chan error, 1)
}

func (s *AppTestSuite) TearDownTest() {
	_ = s.input.Close()
}

func (s *AppTestSuite) start(ctx context.Context) {
	go func() { s.done <- s.app.Run(ctx) }()
}

func (s *AppTestSuite) typeLine(line string) {
	_, err := io.WriteString(s.input, line+"\n")
	s.Require().NoError(err)
}

func (s *AppTestSuite) wait() error {
	select {
	case err := <-s.done:
		return err
	case <-time.After(2 * time.Second):
		s.FailNow("app did not exit")
		return nil
	}
}

func (s *AppTestSuite) TestIncrementScenario() {
	s.transport.Inject('2')
	s.start(context.Background())

	s.Eventually(func() bool { return s.app.Status().Get() == "2" }, time.Second, 5*time.Millisecond)

	s.typeLine("A")
	s.Eventually(func() bool { return string(s.transport.Sent()) == "SA" }, time.Second, 5*time.Millisecond)

	s.transport.Inject('3')
	s.Eventually(func() bool { return s.app.Status().Get() == "3" }, time.Second, 5*time.Millisecond)
	s.Eventually(func() bool {
		return strings.Contains(s.out.String(), "Current Status: 3\n")
	}, time.Second, 5*time.Millisecond)

	s.typeLine("X")
	s.NoError(s.wait())
	s.True(s.transport.Closed())
}

func (s *AppTestSuite) TestRejectedInputScenario() {
	s.transport.Inject('2')
	s.start(context.Background())
	s.Eventually(func() bool { return s.app.Status().Get() == "2" }, time.Second, 5*time.Millisecond)

	s.typeLine("AB")
	s.Eventually(func() bool {
		return strings.Contains(s.out.String(), "Please input a single character only!")
	}, time.Second, 5*time.Millisecond)

	s.Equal("S", string(s.transport.Sent()))
	s.Equal("2", s.app.Status().Get())

	s.typeLine("x")
	s.NoError(s.wait())
}

func (s *AppTestSuite) TestExitScenario() {
	s.transport.Inject('1')
	s.start(context.Background())

	s.typeLine("X")
	s.NoError(s.wait())

	s.True(s.transport.Closed())
	s.Equal(1, s.transport.CloseCount())
	s.NotContains(s.out.String(), "failed")
	s.NotContains(s.out.String(), "Please input")
}

func (s *AppTestSuite) TestUnknownStatusOnFailure() {
	s.transport.Inject('F')
	s.start(context.Background())

	s.Eventually(func() bool {
		return strings.Contains(s.out.String(), "Current Status: Unknown\n")
	}, time.Second, 5*time.Millisecond)

	s.typeLine("X")
	s.NoError(s.wait())
}

func (s *AppTestSuite) TestCancelClosesTransport() {
	s.transport.Inject('4')
	ctx, cancel := context.WithCancel(context.Background())
	s.start(ctx)
	s.Eventually(func() bool { return s.app.Status().Get() == "4" }, time.Second, 5*time.Millisecond)

	cancel()
	s.NoError(s.wait(), "取消不视为错误")
	s.True(s.transport.Closed())
}

func (s *AppTestSuite) TestObserverReceivesUpdates() {
	obs := new(mockObserver)
	obs.On("StatusChanged", "2").Once()
	obs.On("StateChangeFailed", "2").Once()

	_ = s.input.Close()
	r, w := io.Pipe()
	s.input = w
	s.app = New(&config.ConsoleConfig{StatusTimeout: time.Second}, s.transport,
		WithInput(r), WithOutput(s.out), WithObserver(obs))

	s.transport.Inject('2')
	s.start(context.Background())
	s.Eventually(func() bool { return s.app.Status().Get() == "2" }, time.Second, 5*time.Millisecond)

	s.transport.Inject('F')
	s.Eventually(func() bool {
		return strings.Contains(s.out.String(), "Change state request failed!")
	}, time.Second, 5*time.Millisecond)

	s.typeLine("X")
	s.NoError(s.wait())
	obs.AssertExpectations(s.T())
}

func TestAppTestSuite(t *testing.T) {
	suite.Run(t, new(AppTestSuite))
}
