package api

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mautops/erp-approval/internal/config"
	"github.com/sirupsen/logrus"
)

const (
	serviceName = "erp-approval"
	logDir      = "logs"
	logFileName = "erp-approval.log"
	timeLayout  = "2006-01-02T15:04:05.000Z07:00"
)

var (
	defaultLogger     *logrus.Logger
	defaultLoggerOnce sync.Once
)

func newFormatter(format string) logrus.Formatter {
	if format == "json" {
		return &logrus.JSONFormatter{
			TimestampFormat: timeLayout,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "time",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "msg",
			},
		}
	}
	return &logrus.TextFormatter{
		TimestampFormat: timeLayout,
		FullTimestamp:   true,
	}
}

// NewLoggerFromConfig 根据配置创建日志记录器
// 每条日志附带 service 字段, 便于日志聚合
func NewLoggerFromConfig(cfg *config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(newFormatter(cfg.Format))

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	var writers []io.Writer
	switch cfg.Output {
	case "file", "both":
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log dir: %w", err)
		}
		file, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, file)
		if cfg.Output == "both" {
			writers = append(writers, os.Stdout)
		}
	default:
		writers = append(writers, os.Stdout)
	}
	logger.SetOutput(io.MultiWriter(writers...))

	logger.AddHook(serviceHook{})
	return logger, nil
}

// serviceHook 为每条日志添加 service 字段
type serviceHook struct{}

func (serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (serviceHook) Fire(entry *logrus.Entry) error {
	entry.Data["service"] = serviceName
	return nil
}

// GetLogger 未注入日志记录器时使用的 JSON 默认实例
func GetLogger() *logrus.Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = logrus.New()
		defaultLogger.SetFormatter(newFormatter("json"))
		defaultLogger.SetOutput(os.Stdout)
		defaultLogger.AddHook(serviceHook{})
	})
	return defaultLogger
}
