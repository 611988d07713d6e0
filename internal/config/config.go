package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/wfunc/uart-console/internal/errors"
)

// EnvPrefix 环境变量前缀，例如 UART_CONSOLE_SERIAL_PORT
const EnvPrefix = "UART_CONSOLE"

// Config 全局配置结构体
type Config struct {
	Serial   SerialConfig   `mapstructure:"serial"`
	Console  ConsoleConfig  `mapstructure:"console"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
}

// SerialConfig 串口配置
type SerialConfig struct {
	Port     string `mapstructure:"port"` // 设备路径，"auto" 表示自动查找
	BaudRate int    `mapstructure:"baud_rate"`
	DataBits int    `mapstructure:"data_bits"`
	StopBits int    `mapstructure:"stop_bits"`
	Parity   string `mapstructure:"parity"`
	// ReadTimeout 单次读取的最长等待时间，同时也是监听协程检查退出信号的周期
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	MockMode    bool          `mapstructure:"mock_mode"` // 调试模式（使用模拟LED板）
}

// ConsoleConfig 控制台配置
type ConsoleConfig struct {
	Title         string        `mapstructure:"title"`
	ClearScreen   bool          `mapstructure:"clear_screen"`
	StatusTimeout time.Duration `mapstructure:"status_timeout"` // 启动时状态请求的超时
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// JournalConfig 串口通信日志配置
type JournalConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	RetentionDays int           `mapstructure:"retention_days"`
}

// MonitorConfig 监控接口配置
type MonitorConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin运行模式 debug/release/test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr 返回监听地址
func (m MonitorConfig) Addr() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化全局配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		var loaded *Config
		v = viper.New()
		loaded, err = loadInto(v, configPath)
		if err != nil {
			return
		}

		mu.Lock()
		cfg = loaded
		mu.Unlock()
	})

	return err
}

// Load 读取配置但不修改全局实例
func Load(configPath string) (*Config, error) {
	return loadInto(viper.New(), configPath)
}

// loadInto 使用给定的viper实例读取并校验配置
func loadInto(v *viper.Viper, configPath string) (*Config, error) {
	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 设置环境变量前缀
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// 如果配置文件不存在，使用默认配置
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, v.ConfigFileUsed())
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse)
	}

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigValidate)
	}

	return c, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 串口默认配置（MSP432 LaunchPad 的 UART 桥接口）
	v.SetDefault("serial.port", "/dev/ttyACM0")
	v.SetDefault("serial.baud_rate", 1200)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.read_timeout", "100ms")
	v.SetDefault("serial.mock_mode", false)

	// 控制台默认配置
	v.SetDefault("console.title", "UART Control Console Application")
	v.SetDefault("console.clear_screen", true)
	v.SetDefault("console.status_timeout", "5s")

	// 日志默认配置，stdout 属于控制台界面，所以默认只写文件
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "file")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "uart-console.log")
	v.SetDefault("log.file.max_size", 20)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.compress", true)

	// 数据库默认配置
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/uart-console.db")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	// 通信日志默认配置
	v.SetDefault("journal.buffer_size", 1000)
	v.SetDefault("journal.batch_size", 100)
	v.SetDefault("journal.flush_interval", "5s")
	v.SetDefault("journal.retention_days", 30)

	// 监控接口默认配置
	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.host", "127.0.0.1")
	v.SetDefault("monitor.port", 8090)
	v.SetDefault("monitor.mode", "release")
	v.SetDefault("monitor.shutdown_timeout", "5s")
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("serial.port is required")
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate must be positive, got %d", c.Serial.BaudRate)
	}
	switch strings.ToUpper(c.Serial.Parity) {
	case "", "N", "NONE", "O", "ODD", "E", "EVEN":
	default:
		return fmt.Errorf("serial.parity %q not supported", c.Serial.Parity)
	}
	if c.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("serial.read_timeout must be positive")
	}
	if c.Journal.BatchSize <= 0 {
		return fmt.Errorf("journal.batch_size must be positive")
	}
	if c.Monitor.Enabled && (c.Monitor.Port <= 0 || c.Monitor.Port > 65535) {
		return fmt.Errorf("monitor.port %d out of range", c.Monitor.Port)
	}
	return nil
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	if v == nil {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Fprintf(os.Stderr, "配置重载失败: %v\n", err)
			return
		}
		if err := newCfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "配置重载校验失败: %v\n", err)
			return
		}

		mu.Lock()
		cfg = newCfg
		mu.Unlock()

		if callback != nil {
			callback(newCfg)
		}
	})
	v.WatchConfig()
}

// ConfigFileUsed 返回实际加载的配置文件路径
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}
