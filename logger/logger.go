package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	File            string
	Level           string
	Formatter       string
	MaxKeepDays     int
	MaxFileNum      int
	MaxFileSizeInMB int
	IsCompress      bool
}

// DefaultLogConfig keeps two weeks of 50MB files.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		File:            "./logs/kes.log",
		Level:           "info",
		Formatter:       "text",
		MaxKeepDays:     14,
		MaxFileNum:      10,
		MaxFileSizeInMB: 50,
	}
}

// InitStandardLogger configures the logrus standard logger: level, formatter,
// and a rotating file copy of every entry when File is set.
func InitStandardLogger(logConf LogConfig) error {
	return InitLogger(log.StandardLogger(), logConf)
}

func InitLogger(logger *log.Logger, logConf LogConfig) error {
	level, err := log.ParseLevel(logConf.Level)
	if err != nil {
		return fmt.Errorf("failed to parse logger level: %w", err)
	}
	logger.SetLevel(level)
	logger.SetOutput(os.Stdout)

	if strings.EqualFold(logConf.Formatter, "json") {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if logConf.File == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(logConf.File), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	writer := &lumberjack.Logger{
		Filename:   logConf.File,
		MaxSize:    logConf.MaxFileSizeInMB,
		MaxAge:     logConf.MaxKeepDays,
		MaxBackups: logConf.MaxFileNum,
		LocalTime:  true,
		Compress:   logConf.IsCompress,
	}
	logger.AddHook(lfshook.NewHook(lfshook.WriterMap{
		log.PanicLevel: writer,
		log.FatalLevel: writer,
		log.ErrorLevel: writer,
		log.WarnLevel:  writer,
		log.InfoLevel:  writer,
		log.DebugLevel: writer,
	}, &log.JSONFormatter{}))
	return nil
}

// LoggerForRequest tags entries with the request id set by the router.
func LoggerForRequest(requestID string) *log.Entry {
	return log.WithField("requestID", requestID)
}

func LoggerForLabel(code string) *log.Entry {
	return log.WithField("label", code)
}
