// Package common holds helpers shared by the commands.
package common

import (
	"os"
	"time"

	"github.com/mpapenbr/fpv-racedash/log"
	"github.com/mpapenbr/fpv-racedash/pkg/config"
	"github.com/mpapenbr/fpv-racedash/pkg/utils"
)

func ParseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLoggers creates the application and the sql logger according to
// the config values. The application logger becomes the default logger.
func SetupLoggers() (logger, sqlLogger *log.Logger, err error) {
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			ParseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
		sqlLogger = log.New(
			os.Stderr,
			ParseLogLevel(config.SQLLogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			ParseLogLevel(config.LogLevel, log.DebugLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
		sqlLogger = log.DevLogger(
			os.Stderr,
			ParseLogLevel(config.SQLLogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	if logger, err = logger.WithFilter(config.LogFilter); err != nil {
		return nil, nil, err
	}
	log.ResetDefault(logger)
	return logger, sqlLogger.Named("sql"), nil
}

// WaitForServices blocks until the given addresses accept tcp connections.
func WaitForServices(addrs ...string) error {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	for _, addr := range addrs {
		if addr == "" {
			continue
		}
		if err := utils.WaitForTCP(addr, timeout); err != nil {
			return err
		}
	}
	return nil
}
