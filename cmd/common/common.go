// Package common implements shared lens command initialization.
package common

import (
	"fmt"
	"io"
	"os"

	"github.com/manifest-network/lens/config"
	"github.com/manifest-network/lens/log"
	"github.com/manifest-network/lens/metrics"
)

var rootLogger = log.NewDefaultLogger("lens")

// Init initializes the common environment: root logger and, when
// configured, the Prometheus pull service.
func Init(cfg *config.Config) error {
	var w io.Writer = os.Stdout
	format := log.FmtJSON
	level := log.LevelInfo

	if cfg.Log != nil {
		var err error
		if w, err = getLoggingStream(cfg.Log); err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		if err := format.Set(cfg.Log.Format); err != nil {
			return err
		}
		if err := level.Set(cfg.Log.Level); err != nil {
			return err
		}
	}
	logger, err := log.NewLogger("lens", w, format, level)
	if err != nil {
		return err
	}
	rootLogger = logger

	if cfg.Metrics != nil {
		promServer, err := metrics.NewPullService(cfg.Metrics.PullEndpoint, rootLogger)
		if err != nil {
			rootLogger.Error("failed to initialize metrics", "err", err)
			return err
		}
		promServer.StartInstrumentation()
	}
	return nil
}

// RootLogger returns the logger configured by Init.
func RootLogger() *log.Logger {
	return rootLogger
}

func getLoggingStream(cfg *config.LogConfig) (io.Writer, error) {
	if cfg == nil || cfg.File == "" {
		return os.Stdout, nil
	}
	return os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
}
