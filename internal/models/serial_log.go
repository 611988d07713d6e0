package models

import (
	"time"

	"gorm.io/gorm"
)

// 传输方向
const (
	DirectionSend     = "SEND"     // 主机 -> 设备
	DirectionReceive  = "RECEIVE"  // 设备 -> 主机
	DirectionRejected = "REJECTED" // 本地校验未通过，未发送
)

// SerialLogKind 记录类型
type SerialLogKind string

const (
	SerialLogKindCommand       SerialLogKind = "COMMAND"        // 操作员命令
	SerialLogKindStatusRequest SerialLogKind = "STATUS_REQUEST" // 启动时的状态请求
	SerialLogKindStatus        SerialLogKind = "STATUS"         // 设备报告的状态
	SerialLogKindFailure       SerialLogKind = "FAILURE"        // 设备报告的失败标记
	SerialLogKindInvalidInput  SerialLogKind = "INVALID_INPUT"  // 非单字符输入
)

// SerialLog 串口通信日志
type SerialLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"index;index:idx_serial_logs_session_created,priority:2;not null" json:"created_at"`

	Port      string        `gorm:"type:varchar(100)" json:"port,omitempty"`
	Direction string        `gorm:"type:varchar(10);index;not null" json:"direction"`
	Kind      SerialLogKind `gorm:"type:varchar(20);index;not null" json:"kind"`
	Source    string        `gorm:"type:varchar(20);index" json:"source,omitempty"` // console/monitor/startup

	// 数据内容
	Payload    string `gorm:"type:varchar(64)" json:"payload"` // 字符（被拒绝的输入保存原文）
	HexData    string `gorm:"type:varchar(128)" json:"hex_data"`
	BytesCount int    `gorm:"default:0" json:"bytes_count"`

	StatusAfter string `gorm:"type:varchar(20)" json:"status_after,omitempty"` // 处理后的设备状态
	ErrorMsg    string `gorm:"type:text" json:"error_msg,omitempty"`

	SessionID string `gorm:"type:varchar(100);index:idx_serial_logs_session_created,priority:1" json:"session_id"`
	Timestamp int64  `gorm:"index" json:"timestamp"` // Unix时间戳（毫秒）
}

// TableName 指定表名
func (SerialLog) TableName() string {
	return "serial_logs"
}

// BeforeCreate 创建前的钩子
func (s *SerialLog) BeforeCreate(_ *gorm.DB) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.Timestamp == 0 {
		s.Timestamp = s.CreatedAt.UnixMilli()
	}
	return nil
}

// SerialLogQuery 查询参数
type SerialLogQuery struct {
	Direction string        `json:"direction,omitempty" form:"direction"`
	Kind      SerialLogKind `json:"kind,omitempty" form:"kind"`
	Source    string        `json:"source,omitempty" form:"source"`
	SessionID string        `json:"session_id,omitempty" form:"session_id"`
	StartTime *time.Time    `json:"start_time,omitempty" form:"start_time" time_format:"2006-01-02T15:04:05Z07:00"`
	EndTime   *time.Time    `json:"end_time,omitempty" form:"end_time" time_format:"2006-01-02T15:04:05Z07:00"`
	HasError  *bool         `json:"has_error,omitempty" form:"has_error"`
	Limit     int           `json:"limit,omitempty" form:"limit"`
	Offset    int           `json:"offset,omitempty" form:"offset"`
	OrderBy   string        `json:"order_by,omitempty" form:"order_by"`
}

// SerialLogStats 统计信息
type SerialLogStats struct {
	TotalCount    int64            `json:"total_count"`
	TotalSend     int64            `json:"total_send"`
	TotalReceive  int64            `json:"total_receive"`
	TotalRejected int64            `json:"total_rejected"`
	TotalFailures int64            `json:"total_failures"` // 设备回复 'F' 的次数
	TotalErrors   int64            `json:"total_errors"`   // 写入失败次数
	StatusCounts  map[string]int64 `json:"status_counts"`  // 各状态被报告的次数
	Sessions      int64            `json:"sessions"`
}
