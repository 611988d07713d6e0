package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/uart-console/internal/errors"
	"github.com/wfunc/uart-console/internal/models"
	"github.com/wfunc/uart-console/internal/service"
)

const defaultExportLimit = 1000

// SerialLogAPI 串口日志API
type SerialLogAPI struct {
	service *service.SerialLogService
}

// NewSerialLogAPI 创建串口日志API；service 为 nil 时所有接口返回未启用
func NewSerialLogAPI(service *service.SerialLogService) *SerialLogAPI {
	return &SerialLogAPI{service: service}
}

// RegisterRoutes 注册路由
func (api *SerialLogAPI) RegisterRoutes(router *gin.RouterGroup) {
	logs := router.Group("/serial-logs")
	logs.Use(api.requireJournal)
	{
		logs.GET("", api.QueryLogs)
		logs.GET("/latest", api.GetLatestLogs)
		logs.GET("/stats", api.GetStats)
		logs.GET("/export", api.ExportLogs)
		logs.GET("/session/:id", api.GetSessionLogs)
		logs.POST("/cleanup", api.CleanupLogs)
	}
}

func (api *SerialLogAPI) requireJournal(c *gin.Context) {
	if api.service == nil {
		abortWithError(c, errors.New(errors.ErrNotImplemented, "serial journal disabled"))
		return
	}
	c.Next()
}

// QueryLogs 查询日志
func (api *SerialLogAPI) QueryLogs(c *gin.Context) {
	var query models.SerialLogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		abortWithError(c, errors.Wrap(err, errors.ErrInvalidParam))
		return
	}

	logs, total, err := api.service.Query(&query)
	if err != nil {
		abortWithError(c, errors.Wrap(err, errors.ErrDatabaseQuery))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   logs,
		"total":  total,
		"limit":  query.Limit,
		"offset": query.Offset,
	})
}

// GetLatestLogs 获取最新日志
func (api *SerialLogAPI) GetLatestLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		abortWithError(c, errors.Wrap(err, errors.ErrInvalidParam, "limit"))
		return
	}
	kind := models.SerialLogKind(c.Query("kind"))

	logs, err := api.service.GetLatestLogs(limit, kind)
	if err != nil {
		abortWithError(c, errors.Wrap(err, errors.ErrDatabaseQuery))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  logs,
		"count": len(logs),
	})
}

// GetSessionLogs 获取某次运行的全部日志，按时间正序
func (api *SerialLogAPI) GetSessionLogs(c *gin.Context) {
	sessionID := c.Param("id")

	logs, err := api.service.GetSessionLogs(sessionID)
	if err != nil {
		abortWithError(c, errors.Wrap(err, errors.ErrDatabaseQuery))
		return
	}
	if len(logs) == 0 {
		abortWithError(c, errors.New(errors.ErrNotFound, "session "+sessionID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"data":       logs,
		"count":      len(logs),
	})
}

// GetStats 获取统计信息
func (api *SerialLogAPI) GetStats(c *gin.Context) {
	startTime, err := parseTime(c.Query("start_time"))
	if err != nil {
		abortWithError(c, errors.Wrap(err, errors.ErrInvalidParam, "start_time"))
		return
	}
	endTime, err := parseTime(c.Query("end_time"))
	if err != nil {
		abortWithError(c, errors.Wrap(err, errors.ErrInvalidParam, "end_time"))
		return
	}

	stats, err := api.service.GetStats(startTime, endTime)
	if err != nil {
		abortWithError(c, errors.Wrap(err, errors.ErrDatabaseQuery))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       stats,
		"session_id": api.service.SessionID(),
	})
}

// CleanupLogs 清理旧日志
func (api *SerialLogAPI) CleanupLogs(c *gin.Context) {
	retentionDays, err := strconv.Atoi(c.DefaultPostForm("retention_days", "30"))
	if err != nil || retentionDays < 1 {
		abortWithError(c, errors.New(errors.ErrInvalidParam, "保留天数必须大于0"))
		return
	}

	count, err := api.service.CleanupOldLogs(retentionDays)
	if err != nil {
		abortWithError(c, errors.Wrap(err, errors.ErrDatabaseDelete))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "清理成功",
		"deleted":        count,
		"retention_days": retentionDays,
	})
}

// ExportLogs 导出日志
func (api *SerialLogAPI) ExportLogs(c *gin.Context) {
	var query models.SerialLogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		abortWithError(c, errors.Wrap(err, errors.ErrInvalidParam))
		return
	}
	if query.Limit <= 0 {
		query.Limit = defaultExportLimit
	}

	data, err := api.service.ExportLogs(&query)
	if err != nil {
		abortWithError(c, errors.Wrap(err, errors.ErrDatabaseQuery))
		return
	}

	c.Header("Content-Disposition", "attachment; filename=serial_logs_export.json")
	c.Data(http.StatusOK, "application/json", data)
}

func parseTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// abortWithError 按错误码返回统一的错误响应
func abortWithError(c *gin.Context, err *errors.AppError) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(err.HTTPStatus(), errors.NewErrorResponse(err))
}
