// Package logger holds the process-wide structured logger. Reminder,
// strike and transfer events go to a rotating file; the serve command
// mirrors them to stderr.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/habitenforcer/internal/constants"
)

const (
	logDirName   = "logs"
	maxSizeMB    = 10
	maxBackups   = 3
	maxAgeDays   = 28
	consoleLevel = log.InfoLevel
	fileLevel    = log.WarnLevel
)

// Logger is nil until Init runs; the helpers below are no-ops then.
var Logger *log.Logger

type Config struct {
	Debug     bool
	ConfigDir string
	// Console mirrors output to stderr at info level or lower.
	Console bool
	// JSON switches both outputs to one JSON object per line.
	JSON bool
}

// FilePath is where Init writes the log for configDir.
func FilePath(configDir string) string {
	return filepath.Join(configDir, logDirName, constants.AppName+".log")
}

func (c Config) level() log.Level {
	switch {
	case c.Debug:
		return log.DebugLevel
	case c.Console:
		return consoleLevel
	default:
		return fileLevel
	}
}

func (c Config) formatter() log.Formatter {
	if c.JSON {
		return log.JSONFormatter
	}
	return log.TextFormatter
}

// Init replaces the global logger.
func Init(cfg Config) error {
	path := FilePath(cfg.ConfigDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var w io.Writer = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	// Without --debug or serve the terminal stays quiet.
	if cfg.Debug || cfg.Console {
		w = io.MultiWriter(os.Stderr, w)
	}

	Logger = log.NewWithOptions(w, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           cfg.level(),
		Prefix:          constants.AppName,
		Formatter:       cfg.formatter(),
	})
	return nil
}

func Debug(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

func Info(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

func Warn(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

func Error(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}

// Fatal logs and exits with status 1 even when no logger is set.
func Fatal(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Fatal(msg, keyvals...)
	}
	os.Exit(1)
}
