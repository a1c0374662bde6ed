// Package log configures the process-wide logrus logger.
package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Logger
	once   sync.Once
)

// Fields is an alias so callers do not import logrus just to attach context.
type Fields = logrus.Fields

// Options controls logger construction.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string
	// Dir, when set, adds a rotating log file in that directory.
	Dir string
	// NoColors disables ANSI colors, used when output is not a terminal.
	NoColors bool
}

// Init builds the global logger. Only the first call has any effect.
func Init(opts Options) *logrus.Logger {
	once.Do(func() {
		logger = build(opts)
	})
	return logger
}

// L returns the global logger, initializing it with defaults if needed.
func L() *logrus.Logger {
	return Init(Options{Level: "info"})
}

// Component returns an entry tagged with the given component name.
func Component(name string) *logrus.Entry {
	return L().WithField("component", name)
}

// Discard returns an entry that drops everything. Tests use it to keep
// output quiet without touching the global logger.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func build(opts Options) *logrus.Logger {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	l.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColors,
		TimestampFormat: "02 Jan 06 - 15:04:05.000",
		HideKeys:        false,
		CallerFirst:     true,
		FieldsOrder:     []string{"component", "session"},
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	})

	writers := []io.Writer{os.Stderr}
	if opts.Dir != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, fmt.Sprintf("kundan-%s.log", time.Now().Format("2006-01-02"))),
			LocalTime:  true,
			Compress:   true,
			MaxSize:    50,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	l.SetOutput(io.MultiWriter(writers...))
	l.SetReportCaller(true)
	return l
}
