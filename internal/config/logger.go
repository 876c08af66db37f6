package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logTimestampFormat = "2006-01-02 15:04:05"

// InitLogger 初始化全局日志（logrus 标准 logger）
func InitLogger(cfg *Config) error {
	return ConfigureLogger(logrus.StandardLogger(), cfg.Log)
}

// ConfigureLogger 按配置设置级别、格式与输出
func ConfigureLogger(l *logrus.Logger, c LogConfig) error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		l.Warnf("Invalid log level '%s', using 'info'", c.Level)
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.ToLower(c.Format) == "text" {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: logTimestampFormat,
		})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: logTimestampFormat,
		})
	}

	out, err := logOutput(c)
	if err != nil {
		return err
	}
	l.SetOutput(out)

	// 调用者信息只在 debug 下开启
	l.SetReportCaller(level >= logrus.DebugLevel)

	l.Infof("Logger initialized - Level: %s, Format: %s, Output: %s", c.Level, c.Format, c.Output)
	return nil
}

func logOutput(c LogConfig) (io.Writer, error) {
	output := strings.ToLower(c.Output)
	if output != "file" && output != "both" {
		return os.Stdout, nil
	}

	if err := os.MkdirAll(filepath.Dir(c.FilePath), 0755); err != nil {
		return nil, err
	}
	rotate := &lumberjack.Logger{
		Filename:   c.FilePath,
		MaxSize:    c.MaxSize,    // MB
		MaxBackups: c.MaxBackups, // 保留文件数
		MaxAge:     c.MaxAge,     // 保留天数
		Compress:   c.Compress,
		LocalTime:  true,
	}
	if output == "both" {
		return io.MultiWriter(os.Stdout, rotate), nil
	}
	return rotate, nil
}
