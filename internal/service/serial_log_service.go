package service

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/wfunc/uart-console/internal/config"
	"github.com/wfunc/uart-console/internal/console"
	"github.com/wfunc/uart-console/internal/hardware"
	"github.com/wfunc/uart-console/internal/logger"
	"github.com/wfunc/uart-console/internal/models"
	"github.com/wfunc/uart-console/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	cleanupInterval = 24 * time.Hour

	// 被拒绝输入最多保存的字节数
	maxRejectedBytes = 64
)

// SerialLogService 串口日志服务，异步批量写入数据库
type SerialLogService struct {
	repo      *repository.SerialLogRepository
	cfg       config.JournalConfig
	port      string
	sessionID string
	logger    *zap.Logger

	buffer   []*models.SerialLog
	bufferCh chan *models.SerialLog
	flushCh  chan chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// stopped 与 bufferCh 的写入由 mu 保护，Close 之后不会再有日志进入通道
	mu      sync.RWMutex
	stopped bool
	dropped atomic.Uint64
}

// NewSerialLogService 创建串口日志服务并启动后台写入协程
func NewSerialLogService(db *gorm.DB, cfg config.JournalConfig, port string) *SerialLogService {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	s := &SerialLogService{
		repo:      repository.NewSerialLogRepository(db),
		cfg:       cfg,
		port:      port,
		sessionID: uuid.New().String(),
		logger:    logger.GetModuleLogger(logger.ModuleJournal),
		buffer:    make([]*models.SerialLog, 0, cfg.BatchSize),
		bufferCh:  make(chan *models.SerialLog, cfg.BufferSize),
		flushCh:   make(chan chan struct{}),
		stopCh:    make(chan struct{}),
	}

	s.wg.Add(1)
	go s.backgroundWriter()

	s.logger.Info("串口日志服务启动",
		zap.String("session_id", s.sessionID),
		zap.String("port", port))
	return s
}

// SessionID 返回本次运行的会话ID
func (s *SerialLogService) SessionID() string {
	return s.sessionID
}

// backgroundWriter 后台写入协程
func (s *SerialLogService) backgroundWriter() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	s.cleanup()
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case log := <-s.bufferCh:
			s.buffer = append(s.buffer, log)
			// 缓冲区满了立即写入
			if len(s.buffer) >= s.cfg.BatchSize {
				s.flushBuffer()
			}

		case <-ticker.C:
			s.flushBuffer()

		case done := <-s.flushCh:
			s.drain()
			s.flushBuffer()
			close(done)

		case <-cleanupTicker.C:
			s.cleanup()

		case <-s.stopCh:
			// 退出前写入剩余的日志
			s.drain()
			s.flushBuffer()
			return
		}
	}
}

// drain 取出通道中已排队的日志
func (s *SerialLogService) drain() {
	for {
		select {
		case log := <-s.bufferCh:
			s.buffer = append(s.buffer, log)
		default:
			return
		}
	}
}

// flushBuffer 写入缓冲区的日志到数据库
func (s *SerialLogService) flushBuffer() {
	if len(s.buffer) == 0 {
		return
	}

	if err := s.repo.CreateBatch(s.buffer); err != nil {
		s.logger.Error("批量写入串口日志失败", zap.Int("count", len(s.buffer)), zap.Error(err))
	} else {
		s.logger.Debug("批量写入串口日志成功", zap.Int("count", len(s.buffer)))
	}

	s.buffer = make([]*models.SerialLog, 0, s.cfg.BatchSize)
}

func (s *SerialLogService) cleanup() {
	if s.cfg.RetentionDays <= 0 {
		return
	}
	deleted, err := s.repo.CleanupLogs(s.cfg.RetentionDays)
	if err != nil {
		s.logger.Warn("清理过期串口日志失败", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.logger.Info("清理过期串口日志", zap.Int64("deleted", deleted), zap.Int("retention_days", s.cfg.RetentionDays))
	}
}

// enqueue 异步写入，缓冲区满时丢弃
func (s *SerialLogService) enqueue(log *models.SerialLog) {
	now := time.Now()
	log.Port = s.port
	log.SessionID = s.sessionID
	log.CreatedAt = now
	log.Timestamp = now.UnixMilli()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		s.dropped.Add(1)
		s.logger.Debug("串口日志服务已关闭，丢弃日志", zap.String("kind", string(log.Kind)))
		return
	}

	select {
	case s.bufferCh <- log:
	default:
		s.dropped.Add(1)
		s.logger.Warn("串口日志缓冲区满，丢弃日志", zap.String("kind", string(log.Kind)))
	}
}

// Dropped 返回因缓冲区满或服务已关闭而丢弃的日志数
func (s *SerialLogService) Dropped() uint64 {
	return s.dropped.Load()
}

// RecordSent 记录发送给设备的命令
func (s *SerialLogService) RecordSent(data []byte, source string, err error) {
	kind := models.SerialLogKindCommand
	if source == console.SourceStartup {
		kind = models.SerialLogKindStatusRequest
	}

	log := &models.SerialLog{
		Direction:  models.DirectionSend,
		Kind:       kind,
		Source:     source,
		Payload:    string(data),
		HexData:    hex.EncodeToString(data),
		BytesCount: len(data),
	}
	if err != nil {
		log.ErrorMsg = err.Error()
	}
	s.enqueue(log)
}

// RecordReceived 记录设备发来的字节
func (s *SerialLogService) RecordReceived(b byte, statusAfter string) {
	kind := models.SerialLogKindStatus
	if hardware.IsFailure(b) {
		kind = models.SerialLogKindFailure
	}

	s.enqueue(&models.SerialLog{
		Direction:   models.DirectionReceive,
		Kind:        kind,
		Payload:     string(rune(b)),
		HexData:     hex.EncodeToString([]byte{b}),
		BytesCount:  1,
		StatusAfter: statusAfter,
	})
}

// RecordRejected 记录未通过校验的输入
func (s *SerialLogService) RecordRejected(input, source string) {
	payload := truncateUTF8(input, maxRejectedBytes)
	s.enqueue(&models.SerialLog{
		Direction:  models.DirectionRejected,
		Kind:       models.SerialLogKindInvalidInput,
		Source:     source,
		Payload:    payload,
		HexData:    hex.EncodeToString([]byte(payload)),
		BytesCount: len(input),
	})
}

// truncateUTF8 截断为合法的UTF-8且不超过 limit 字节，不拆开多字节字符
func truncateUTF8(s string, limit int) string {
	s = strings.ToValidUTF8(s, string(utf8.RuneError))
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Flush 立即写入所有已排队的日志
func (s *SerialLogService) Flush() {
	done := make(chan struct{})
	select {
	case s.flushCh <- done:
		<-done
	case <-s.stopCh:
	}
}

// Query 查询日志
func (s *SerialLogService) Query(query *models.SerialLogQuery) ([]*models.SerialLog, int64, error) {
	return s.repo.Query(query)
}

// GetStats 获取统计信息
func (s *SerialLogService) GetStats(startTime, endTime *time.Time) (*models.SerialLogStats, error) {
	return s.repo.GetStats(startTime, endTime)
}

// GetLatestLogs 获取最新的日志
func (s *SerialLogService) GetLatestLogs(limit int, kind models.SerialLogKind) ([]*models.SerialLog, error) {
	return s.repo.GetLatest(limit, kind)
}

// GetSessionLogs 获取某次运行的全部日志
func (s *SerialLogService) GetSessionLogs(sessionID string) ([]*models.SerialLog, error) {
	return s.repo.GetBySessionID(sessionID)
}

// CleanupOldLogs 清理旧日志
func (s *SerialLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	return s.repo.CleanupLogs(retentionDays)
}

// ExportLogs 导出日志为JSON格式
func (s *SerialLogService) ExportLogs(query *models.SerialLogQuery) ([]byte, error) {
	logs, _, err := s.Query(query)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(logs, "", "  ")
}

// Close 停止后台协程并写入剩余日志
func (s *SerialLogService) Close() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		close(s.stopCh)
		s.mu.Unlock()

		s.wg.Wait()
		s.logger.Info("串口日志服务已关闭",
			zap.String("session_id", s.sessionID),
			zap.Uint64("dropped", s.Dropped()))
	})
}
