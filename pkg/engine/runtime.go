package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/iotcraft/mqttsession/pkg/logging"
)

// The paho client library keeps process-wide logger registration. Every
// session holding an engine handle reference-counts this global state:
// the first Acquire installs the slog bridge, the last Release removes
// it. The init and teardown funcs are variables so tests can observe the
// transitions.
var rt = struct {
	mu       sync.Mutex
	refs     int
	log      *slog.Logger
	init     func(log *slog.Logger) error
	teardown func()
}{
	log:      logging.Nop(),
	init:     installPahoLoggers,
	teardown: removePahoLoggers,
}

// SetRuntimeLogger sets the logger that engine-internal diagnostics are
// bridged to. It takes effect the next time the runtime is initialized.
func SetRuntimeLogger(log *slog.Logger) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if log == nil {
		log = logging.Nop()
	}
	rt.log = log
}

// Acquire increments the process-wide engine reference count, running
// one-time global initialization on the 0 to 1 transition. Every
// successful Acquire must be paired with exactly one Release. If
// initialization fails the count is left unchanged.
func Acquire() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.refs == 0 {
		if err := rt.init(rt.log); err != nil {
			return fmt.Errorf("engine runtime init: %w", err)
		}
	}
	rt.refs++
	return nil
}

// Release decrements the reference count, running global teardown when
// it reaches zero. Release without a matching Acquire panics: it is a
// programming error that would otherwise corrupt the count.
func Release() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.refs == 0 {
		panic("engine: Release without matching Acquire")
	}
	rt.refs--
	if rt.refs == 0 {
		rt.teardown()
	}
}

// Refs reports the current engine reference count.
func Refs() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.refs
}

// pahoLogAdapter bridges paho's print-style logger onto slog.
type pahoLogAdapter struct {
	log   *slog.Logger
	level slog.Level
}

func (a pahoLogAdapter) Println(v ...interface{}) {
	a.log.Log(context.Background(), a.level, strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (a pahoLogAdapter) Printf(format string, v ...interface{}) {
	a.log.Log(context.Background(), a.level, fmt.Sprintf(format, v...))
}

func installPahoLoggers(log *slog.Logger) error {
	pahomqtt.CRITICAL = pahoLogAdapter{log: log, level: slog.LevelError}
	pahomqtt.ERROR = pahoLogAdapter{log: log, level: slog.LevelError}
	pahomqtt.WARN = pahoLogAdapter{log: log, level: slog.LevelWarn}
	pahomqtt.DEBUG = pahoLogAdapter{log: log, level: slog.LevelDebug}
	return nil
}

func removePahoLoggers() {
	pahomqtt.CRITICAL = pahomqtt.NOOPLogger{}
	pahomqtt.ERROR = pahomqtt.NOOPLogger{}
	pahomqtt.WARN = pahomqtt.NOOPLogger{}
	pahomqtt.DEBUG = pahomqtt.NOOPLogger{}
}
