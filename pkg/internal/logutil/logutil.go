package logutil

import (
    "encoding/json"
    "fmt"
    "log"
    "maps"
    "os"
    "slices"
    "sync/atomic"
    "time"
)

var jsonMode atomic.Bool

func init() {
    if os.Getenv("REMAP_LOG_JSON") == "1" || os.Getenv("REMAP_LOG_FORMAT") == "json" {
        jsonMode.Store(true)
    }
}

// Level names accepted by Logf.
const (
    LevelDebug = "debug"
    LevelInfo  = "info"
    LevelWarn  = "warn"
    LevelError = "error"
)

func SetJSON(enabled bool) { jsonMode.Store(enabled) }

func Debugf(l *log.Logger, f string, args ...any) { Logf(l, LevelDebug, nil, f, args...) }
func Infof(l *log.Logger, f string, args ...any)  { Logf(l, LevelInfo, nil, f, args...) }
func Warnf(l *log.Logger, f string, args ...any)  { Logf(l, LevelWarn, nil, f, args...) }
func Errorf(l *log.Logger, f string, args ...any) { Logf(l, LevelError, nil, f, args...) }

// Logf writes one line at level. fields are added as top-level keys in JSON
// mode and as key=value pairs after the message otherwise.
func Logf(l *log.Logger, level string, fields map[string]any, f string, args ...any) {
    if l == nil { l = log.Default() }
    msg := fmt.Sprintf(f, args...)
    if jsonMode.Load() {
        evt := map[string]any{
            "ts":    time.Now().UTC().Format(time.RFC3339Nano),
            "level": level,
            "msg":   msg,
        }
        for k, v := range fields { evt[k] = v }
        b, _ := json.Marshal(evt)
        l.Println(string(b))
        return
    }
    for _, k := range slices.Sorted(maps.Keys(fields)) { msg += fmt.Sprintf(" %s=%v", k, fields[k]) }
    log.New(l.Writer(), prefixFor(level), l.Flags()).Print(msg)
}

func prefixFor(level string) string {
    switch level {
    case LevelDebug:
        return "DEBUG "
    case LevelInfo:
        return "INFO "
    case LevelWarn:
        return "WARN "
    default:
        return "ERROR "
    }
}
