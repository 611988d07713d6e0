package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/uart-console/internal/config"
	"github.com/wfunc/uart-console/internal/errors"
	"go.uber.org/zap"
)

// Server 监控HTTP服务器
type Server struct {
	cfg    config.MonitorConfig
	http   *http.Server
	logger *zap.Logger

	mu   sync.Mutex
	addr string
	done chan struct{}
}

// NewServer 创建监控服务器
func NewServer(cfg config.MonitorConfig, handler http.Handler, logger *zap.Logger) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	return &Server{
		cfg: cfg,
		http: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start 监听端口并在后台处理请求
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return errors.Wrap(err, errors.ErrConfigValidate, "monitor listen "+s.cfg.Addr())
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.logger.Info("监控接口启动", zap.String("addr", s.addr))

	go func() {
		defer close(s.done)
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("监控接口异常退出", zap.Error(err))
		}
	}()
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Shutdown 优雅关闭，最长等待 ShutdownTimeout
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		return errors.Wrap(err, errors.ErrTimeout, "monitor shutdown")
	}
	if s.Addr() != "" {
		<-s.done
	}
	s.logger.Info("监控接口已关闭")
	return nil
}
