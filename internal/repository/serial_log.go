package repository

import (
	"time"

	"github.com/wfunc/uart-console/internal/errors"
	"github.com/wfunc/uart-console/internal/models"
	"gorm.io/gorm"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// 允许的排序方式
var orderByWhitelist = map[string]string{
	"":                "created_at DESC, id DESC",
	"created_at DESC": "created_at DESC, id DESC",
	"created_at ASC":  "created_at ASC, id ASC",
	"created_at":      "created_at ASC, id ASC",
	"id DESC":         "id DESC",
	"id ASC":          "id ASC",
}

// SerialLogRepository 串口日志仓库
type SerialLogRepository struct {
	db *gorm.DB
}

// NewSerialLogRepository 创建串口日志仓库
func NewSerialLogRepository(db *gorm.DB) *SerialLogRepository {
	return &SerialLogRepository{
		db: db,
	}
}

// Create 创建日志记录
func (r *SerialLogRepository) Create(log *models.SerialLog) error {
	if err := r.db.Create(log).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseInsert, "serial log")
	}
	return nil
}

// CreateBatch 批量创建日志记录
func (r *SerialLogRepository) CreateBatch(logs []*models.SerialLog) error {
	if len(logs) == 0 {
		return nil
	}
	if err := r.db.CreateInBatches(logs, 100).Error; err != nil {
		return errors.Wrapf(err, errors.ErrDatabaseInsert, "%d serial logs", len(logs))
	}
	return nil
}

// GetBySessionID 根据会话ID获取日志（按时间正序）
func (r *SerialLogRepository) GetBySessionID(sessionID string) ([]*models.SerialLog, error) {
	var logs []*models.SerialLog
	err := r.db.Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "logs by session")
	}
	return logs, nil
}

// Query 查询日志，返回当前页数据和总数
func (r *SerialLogRepository) Query(query *models.SerialLogQuery) ([]*models.SerialLog, int64, error) {
	orderBy, ok := orderByWhitelist[query.OrderBy]
	if !ok {
		return nil, 0, errors.Newf(errors.ErrInvalidParam, "order_by %q", query.OrderBy)
	}

	db := r.filter(r.db.Model(&models.SerialLog{}), query)

	// 获取总数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrDatabaseQuery, "count serial logs")
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	var logs []*models.SerialLog
	err := db.Order(orderBy).Limit(limit).Offset(query.Offset).Find(&logs).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrDatabaseQuery, "query serial logs")
	}

	return logs, total, nil
}

// filter 构建查询条件
func (r *SerialLogRepository) filter(db *gorm.DB, query *models.SerialLogQuery) *gorm.DB {
	if query.Direction != "" {
		db = db.Where("direction = ?", query.Direction)
	}
	if query.Kind != "" {
		db = db.Where("kind = ?", query.Kind)
	}
	if query.Source != "" {
		db = db.Where("source = ?", query.Source)
	}
	if query.SessionID != "" {
		db = db.Where("session_id = ?", query.SessionID)
	}
	if query.HasError != nil && *query.HasError {
		db = db.Where("error_msg IS NOT NULL AND error_msg != ''")
	}
	return timeRange(db, query.StartTime, query.EndTime)
}

func timeRange(db *gorm.DB, startTime, endTime *time.Time) *gorm.DB {
	if startTime != nil {
		db = db.Where("created_at >= ?", *startTime)
	}
	if endTime != nil {
		db = db.Where("created_at <= ?", *endTime)
	}
	return db
}

// GetLatest 获取最新的日志记录
func (r *SerialLogRepository) GetLatest(limit int, kind models.SerialLogKind) ([]*models.SerialLog, error) {
	if limit <= 0 || limit > maxQueryLimit {
		limit = defaultQueryLimit
	}

	var logs []*models.SerialLog
	db := r.db.Order("created_at DESC, id DESC").Limit(limit)
	if kind != "" {
		db = db.Where("kind = ?", kind)
	}
	if err := db.Find(&logs).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "latest serial logs")
	}
	return logs, nil
}

// GetStats 获取统计信息
func (r *SerialLogRepository) GetStats(startTime, endTime *time.Time) (*models.SerialLogStats, error) {
	stats := &models.SerialLogStats{StatusCounts: make(map[string]int64)}
	scoped := func() *gorm.DB {
		return timeRange(r.db.Model(&models.SerialLog{}), startTime, endTime)
	}

	counts := []struct {
		dest  *int64
		query string
		args  []interface{}
	}{
		{&stats.TotalCount, "", nil},
		{&stats.TotalSend, "direction = ?", []interface{}{models.DirectionSend}},
		{&stats.TotalReceive, "direction = ?", []interface{}{models.DirectionReceive}},
		{&stats.TotalRejected, "direction = ?", []interface{}{models.DirectionRejected}},
		{&stats.TotalFailures, "kind = ?", []interface{}{models.SerialLogKindFailure}},
		{&stats.TotalErrors, "error_msg IS NOT NULL AND error_msg != ''", nil},
	}
	for _, c := range counts {
		db := scoped()
		if c.query != "" {
			db = db.Where(c.query, c.args...)
		}
		if err := db.Count(c.dest).Error; err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "serial log stats")
		}
	}

	if err := scoped().Distinct("session_id").Count(&stats.Sessions).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "session count")
	}

	// 各状态被报告的次数
	var rows []struct {
		Payload string
		Total   int64
	}
	err := scoped().
		Select("payload, COUNT(*) as total").
		Where("kind = ?", models.SerialLogKindStatus).
		Group("payload").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "status counts")
	}
	for _, row := range rows {
		stats.StatusCounts[row.Payload] = row.Total
	}

	return stats, nil
}

// DeleteOldLogs 删除旧日志
func (r *SerialLogRepository) DeleteOldLogs(beforeTime time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", beforeTime).Delete(&models.SerialLog{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, errors.ErrDatabaseDelete, "serial logs")
	}
	return result.RowsAffected, nil
}

// CleanupLogs 清理日志（保留最近N天的数据）
func (r *SerialLogRepository) CleanupLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, errors.New(errors.ErrInvalidParam, "retention days must be greater than 0")
	}
	beforeTime := time.Now().AddDate(0, 0, -retentionDays)
	return r.DeleteOldLogs(beforeTime)
}
