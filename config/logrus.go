package config

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logLevelFromEnv())
	logg.SetOutput(logOutputFromEnv())
}

// LOG_LEVEL: panic|fatal|error|warn|info|debug|trace (default error)
func logLevelFromEnv() logrus.Level {
	v := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if v == "" {
		return logrus.ErrorLevel
	}
	lvl, err := logrus.ParseLevel(v)
	if err != nil {
		return logrus.ErrorLevel
	}
	return lvl
}

// LOG_FILE enables a rotating file next to stdout.
func logOutputFromEnv() io.Writer {
	path := strings.TrimSpace(os.Getenv("LOG_FILE"))
	if path == "" {
		return os.Stdout
	}
	fileWriter := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    intFromEnv("LOG_FILE_MAX_SIZE_MB", 100),
		MaxBackups: intFromEnv("LOG_FILE_MAX_BACKUPS", 5),
		MaxAge:     intFromEnv("LOG_FILE_MAX_AGE_DAYS", 30),
		Compress:   true,
	}
	return io.MultiWriter(os.Stdout, fileWriter)
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	if data != nil {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
			"data":     data,
		}).Error(err.Error())
	} else {
		logger.WithFields(logrus.Fields{
			"module":   moduleName,
			"funcName": funcName,
			"context":  context,
		}).Error(err.Error())
	}
}
