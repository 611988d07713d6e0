package console

import (
	"bytes"
	"sync"

	"github.com/stretchr/testify/mock"
)

// safeBuffer 并发安全的输出缓冲
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *safeBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordSent(data []byte, source string, err error) {
	m.Called(data, source, err)
}

func (m *mockRecorder) RecordReceived(b byte, statusAfter string) {
	m.Called(b, statusAfter)
}

func (m *mockRecorder) RecordRejected(input, source string) {
	m.Called(input, source)
}

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) StatusChanged(status string) {
	m.Called(status)
}

func (m *mockObserver) StateChangeFailed(status string) {
	m.Called(status)
}
