package console

import "sync"

// UnknownStatus 设备未能报告状态时显示的占位值
const UnknownStatus = "Unknown"

// StatusStore 保存最近一次已知的设备状态
type StatusStore struct {
	mu    sync.RWMutex
	value string
}

// NewStatusStore 创建状态存储
func NewStatusStore() *StatusStore {
	return &StatusStore{}
}

// Get 读取当前状态
func (s *StatusStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set 更新状态，返回状态是否发生变化
func (s *StatusStore) Set(value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.value != value
	s.value = value
	return changed
}
