package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/railflow/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

var (
	mu     sync.RWMutex
	output io.Writer = os.Stderr
)

// Configure sets the global level and the destination of loggers created
// afterwards. Stdout is kept free for command output.
func Configure(level string, w io.Writer) error {
	lvl := zerolog.InfoLevel
	if strings.TrimSpace(level) != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return err
		}
	}
	zerolog.SetGlobalLevel(lvl)
	if w != nil {
		mu.Lock()
		output = w
		mu.Unlock()
	}
	return nil
}

func writer() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return output
}

// With returns l with an extra field when l supports fields, else l itself.
func With(l Logger, key string, value any) Logger {
	if fl, ok := l.(interface {
		With(key string, value any) Logger
	}); ok {
		return fl.With(key, value)
	}
	return l
}

// New returns a Logger for the given component. The environment is detected via
// the APP_ENV variable.
func New(component string) Logger {
	return NewZerologLogger(component)
}
