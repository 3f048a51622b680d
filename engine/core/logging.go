package core

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

func getLogger() *logger {
	once.Do(
		func() {
			l := log.NewWithOptions(os.Stderr, log.Options{
				ReportCaller:    true,
				ReportTimestamp: true,
				TimeFormat:      time.RFC3339,
				Prefix:          "Binder 🔗 ",
			})
			l.SetLevel(log.InfoLevel)
			singleton = &logger{l}
		})
	return singleton
}

// ConfigureLogging applies the [log] section of the configuration to the
// package logger. Unknown level names fall back to info.
func ConfigureLogging(cfg LogConfig) {
	l := getLogger()
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
		l.Warnf("unknown log level %q, using info", cfg.Level)
	}
	l.SetLevel(level)
	l.SetReportCaller(cfg.ReportCaller)
	if cfg.Prefix != "" {
		l.SetPrefix(cfg.Prefix)
	}
}

// SetLogOutput redirects the package logger.
func SetLogOutput(w io.Writer) {
	getLogger().SetOutput(w)
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
