package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/uart-console/internal/errors"
)

// CommandSubmitter 提交单字符命令
type CommandSubmitter interface {
	Submit(input string) error
}

// CommandRequest 命令请求
type CommandRequest struct {
	Command string `json:"command"`
}

// MonitorAPI 设备状态和命令接口
type MonitorAPI struct {
	status    func() string
	online    func() int
	commander CommandSubmitter
	startedAt time.Time
}

// NewMonitorAPI 创建监控API
func NewMonitorAPI(status func() string, online func() int, commander CommandSubmitter) *MonitorAPI {
	return &MonitorAPI{
		status:    status,
		online:    online,
		commander: commander,
		startedAt: time.Now(),
	}
}

// RegisterRoutes 注册路由
func (api *MonitorAPI) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", api.GetStatus)
	router.POST("/commands", api.SubmitCommand)
}

// Health 健康检查
func (api *MonitorAPI) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": time.Since(api.startedAt).Round(time.Second).String(),
	})
}

// GetStatus 获取当前设备状态
func (api *MonitorAPI) GetStatus(c *gin.Context) {
	status := ""
	if api.status != nil {
		status = api.status()
	}
	online := 0
	if api.online != nil {
		online = api.online()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         status,
		"online_clients": online,
	})
}

// SubmitCommand 发送命令到设备，设备的回复通过 /ws 推送
func (api *MonitorAPI) SubmitCommand(c *gin.Context) {
	if api.commander == nil {
		abortWithError(c, errors.New(errors.ErrNotImplemented, "command interface disabled"))
		return
	}

	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.Wrap(err, errors.ErrInvalidParam))
		return
	}

	if err := api.commander.Submit(req.Command); err != nil {
		abortWithError(c, errors.Wrap(err, errors.ErrUnknown))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"command": req.Command,
	})
}
