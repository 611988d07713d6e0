package logger

import (
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wfunc/uart-console/internal/config"
	"github.com/wfunc/uart-console/internal/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 模块名称
const (
	ModuleSerial  = "serial"
	ModuleConsole = "console"
	ModuleJournal = "journal"
	ModuleMonitor = "monitor"
)

var (
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	once   sync.Once
	mu     sync.RWMutex

	// 全局日志级别，可在运行时调整
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	// 模块日志器及其级别
	moduleLoggers map[string]*zap.Logger
	moduleLevels  map[string]zap.AtomicLevel

	fallback     *zap.Logger
	fallbackOnce sync.Once
)

// Init 初始化日志系统
func Init(cfg *config.LogConfig) error {
	var err error
	once.Do(func() {
		level.SetLevel(parseLevel(cfg.Level))

		encoderConfig := zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}

		// 根据格式选择编码器
		var encoder zapcore.Encoder
		if cfg.Format == "json" {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		} else {
			encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		}

		var sinks []zapcore.WriteSyncer

		// 控制台输出（会与控制台界面混在一起，只建议调试时使用）
		if cfg.Output == "stdout" || cfg.Output == "both" {
			sinks = append(sinks, zapcore.AddSync(os.Stdout))
		}
		if cfg.Output == "stderr" {
			sinks = append(sinks, zapcore.AddSync(os.Stderr))
		}

		var errorSink zapcore.WriteSyncer

		// 文件输出
		if cfg.Output == "file" || cfg.Output == "both" {
			logDir := cfg.File.Path
			if err = os.MkdirAll(logDir, 0755); err != nil {
				return
			}

			sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
				Filename:   filepath.Join(logDir, cfg.File.Filename),
				MaxSize:    cfg.File.MaxSize,    // MB
				MaxAge:     cfg.File.MaxAge,     // days
				MaxBackups: cfg.File.MaxBackups, // 保留文件数
				Compress:   cfg.File.Compress,
			}))

			// 错误日志单独一个文件
			errorSink = zapcore.AddSync(&lumberjack.Logger{
				Filename:   filepath.Join(logDir, "error.log"),
				MaxSize:    cfg.File.MaxSize,
				MaxAge:     cfg.File.MaxAge,
				MaxBackups: cfg.File.MaxBackups,
				Compress:   cfg.File.Compress,
			})
		}

		build := func(enabler zapcore.LevelEnabler) zapcore.Core {
			cores := make([]zapcore.Core, 0, 2)
			if len(sinks) > 0 {
				cores = append(cores, zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), enabler))
			}
			if errorSink != nil {
				cores = append(cores, zapcore.NewCore(encoder, errorSink, zapcore.ErrorLevel))
			}
			return zapcore.NewTee(cores...)
		}

		mu.Lock()
		defer mu.Unlock()

		logger = zap.New(
			build(level),
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
		)
		sugar = logger.Sugar()

		// 初始化模块日志器
		moduleLoggers = make(map[string]*zap.Logger)
		moduleLevels = make(map[string]zap.AtomicLevel)
		for module, levelStr := range cfg.Modules {
			moduleLevel := zap.NewAtomicLevelAt(parseLevel(levelStr))
			moduleLevels[module] = moduleLevel
			moduleLoggers[module] = zap.New(build(moduleLevel), zap.AddCaller()).Named(module)
		}
	})

	return err
}

// parseLevel 解析日志级别
func parseLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// GetLogger 获取日志器
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		// 未初始化时使用默认配置
		fallbackOnce.Do(func() {
			var err error
			fallback, err = zap.NewProduction()
			if err != nil {
				fallback = zap.NewNop()
			}
		})
		return fallback
	}
	return logger
}

// GetSugar 获取Sugar日志器
func GetSugar() *zap.SugaredLogger {
	mu.RLock()
	s := sugar
	mu.RUnlock()
	if s == nil {
		return GetLogger().Sugar()
	}
	return s
}

// GetModuleLogger 获取模块日志器
func GetModuleLogger(module string) *zap.Logger {
	mu.RLock()
	moduleLogger, ok := moduleLoggers[module]
	mu.RUnlock()
	if ok {
		return moduleLogger
	}

	// 如果模块日志器不存在，返回带模块名的默认日志器
	return GetLogger().Named(module)
}

// SetLevel 动态设置日志级别
func SetLevel(levelStr string) {
	level.SetLevel(parseLevel(levelStr))
}

// SetModuleLevel 动态设置模块日志级别，模块未单独配置时返回false
func SetModuleLevel(module, levelStr string) bool {
	mu.RLock()
	defer mu.RUnlock()
	moduleLevel, ok := moduleLevels[module]
	if ok {
		moduleLevel.SetLevel(parseLevel(levelStr))
	}
	return ok
}

// ApplyConfig 将重载后的日志配置应用到已初始化的日志器
func ApplyConfig(cfg *config.LogConfig) {
	SetLevel(cfg.Level)
	for module, levelStr := range cfg.Modules {
		SetModuleLevel(module, levelStr)
	}
}

// Level 返回当前全局日志级别
func Level() zapcore.Level {
	return level.Level()
}

// Sync 同步日志缓冲区
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()

	if logger != nil {
		return logger.Sync()
	}
	return nil
}

// Debug 输出调试日志
func Debug(msg string, fields ...zap.Field) {
	GetLogger().WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

// Info 输出信息日志
func Info(msg string, fields ...zap.Field) {
	GetLogger().WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

// Warn 输出警告日志
func Warn(msg string, fields ...zap.Field) {
	GetLogger().WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

// Error 输出错误日志
func Error(msg string, fields ...zap.Field) {
	GetLogger().WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

// Fatal 输出致命错误日志并退出程序
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().WithOptions(zap.AddCallerSkip(1)).Fatal(msg, fields...)
}

// Infof 格式化输出信息日志
func Infof(template string, args ...interface{}) {
	GetSugar().Infof(template, args...)
}

// Warnf 格式化输出警告日志
func Warnf(template string, args ...interface{}) {
	GetSugar().Warnf(template, args...)
}

// WithModule 创建带有模块名的日志器
func WithModule(module string) *zap.Logger {
	return GetModuleLogger(module)
}

// LogError 记录错误日志，应用错误附带错误码和调用栈
func LogError(err error, msg string, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		fields = append(fields,
			zap.Int("code", int(appErr.Code)),
			zap.String("stack", appErr.GetStack()))
	}
	GetLogger().WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

// LogSerialExchange 记录串口收发的字节
func LogSerialExchange(direction string, data []byte, success bool) {
	l := GetModuleLogger(ModuleSerial)
	fields := []zap.Field{
		zap.String("direction", direction), // "send" or "receive"
		zap.String("data", string(data)),
		zap.String("hex", hex.EncodeToString(data)),
	}
	if success {
		l.Debug("serial_exchange", fields...)
	} else {
		l.Warn("serial_exchange_failed", fields...)
	}
}

// Cleanup 清理日志资源
func Cleanup() {
	if err := Sync(); err != nil {
		// 同步stdout/stderr在部分平台上会返回EINVAL，忽略即可
		fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", err)
	}
}
