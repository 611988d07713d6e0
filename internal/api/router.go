package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/uart-console/internal/middleware"
	"github.com/wfunc/uart-console/internal/service"
	"github.com/wfunc/uart-console/internal/websocket"
	"go.uber.org/zap"
)

// Dependencies 监控接口依赖的组件，Journal 和 Hub 可以为 nil
type Dependencies struct {
	Status    func() string
	Commander CommandSubmitter
	Journal   *service.SerialLogService
	Hub       *websocket.Hub
	Logger    *zap.Logger
}

// Router API路由器
type Router struct {
	engine  *gin.Engine
	monitor *MonitorAPI
	logs    *SerialLogAPI
	hub     *websocket.Hub
	log     *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(deps Dependencies) *Router {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var online func() int
	if deps.Hub != nil {
		online = deps.Hub.GetOnlineCount
	}

	engine := gin.New()
	engine.Use(middleware.RequestLogger(log))
	engine.Use(middleware.Recovery(log))

	router := &Router{
		engine:  engine,
		monitor: NewMonitorAPI(deps.Status, online, deps.Commander),
		logs:    NewSerialLogAPI(deps.Journal),
		hub:     deps.Hub,
		log:     log,
	}
	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.monitor.Health)

	if r.hub != nil {
		r.engine.GET("/ws", r.serveWS)
	}

	v1 := r.engine.Group("/api/v1")
	{
		r.monitor.RegisterRoutes(v1)
		r.logs.RegisterRoutes(v1)
	}
}

func (r *Router) serveWS(c *gin.Context) {
	if err := r.hub.ServeWS(c.Writer, c.Request); err != nil {
		// 升级失败时 upgrader 已写入响应
		_ = c.Error(err)
	}
}

// Engine 获取Gin引擎
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
