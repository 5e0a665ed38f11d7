package obs

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger

	debugEnabled atomic.Bool
)

// Logger returns the shared structured logger used across the service.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// Emit writes a structured JSON log line with common fields.
func Emit(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"ts":"error","level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}

// SetDebug toggles diagnostic output. The toggle affects emission only,
// never control flow.
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

// Debugf emits a diagnostic line when debug output is enabled.
func Debugf(format string, args ...any) {
	if !debugEnabled.Load() {
		return
	}
	Emit(map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "debug",
		"msg":   fmt.Sprintf(format, args...),
	})
}
