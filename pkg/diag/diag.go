package diag

import (
    "log"
    "sync"

    "github.com/amirimatin/go-remap/pkg/filter"
    "github.com/amirimatin/go-remap/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/go-remap/pkg/observability/metrics"
)

// LogReporter writes diagnostics events to a logger and counts them by
// severity. Debug events are dropped unless Verbose is set.
type LogReporter struct {
    Logger  *log.Logger
    Verbose bool
}

func NewLogReporter(l *log.Logger) *LogReporter {
    if l == nil { l = log.Default() }
    return &LogReporter{Logger: l}
}

func (r *LogReporter) Report(id filter.EventID, sev filter.Severity, format string, args ...any) {
    obsmetrics.Events.WithLabelValues(sev.String()).Inc()
    if sev == filter.SeverityDebug && !r.Verbose { return }
    logutil.Logf(r.Logger, levelFor(sev), map[string]any{"eid": uint16(id)}, format, args...)
}

func levelFor(sev filter.Severity) string {
    switch sev {
    case filter.SeverityDebug:
        return logutil.LevelDebug
    case filter.SeverityInfo:
        return logutil.LevelInfo
    default:
        return logutil.LevelError
    }
}

// Event is one recorded report.
type Event struct {
    ID       filter.EventID
    Severity filter.Severity
    Message  string
}

// Recorder keeps reported events in memory. It is meant for tests and for
// hosts that poll diagnostics instead of streaming them.
type Recorder struct {
    mu     sync.Mutex
    events []Event
}

func (r *Recorder) Report(id filter.EventID, sev filter.Severity, format string, args ...any) {
    r.mu.Lock(); defer r.mu.Unlock()
    r.events = append(r.events, Event{ID: id, Severity: sev, Message: sprintf(format, args...)})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
    r.mu.Lock(); defer r.mu.Unlock()
    return append([]Event(nil), r.events...)
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
    r.mu.Lock(); defer r.mu.Unlock()
    r.events = nil
}

var (
    _ filter.Reporter = (*LogReporter)(nil)
    _ filter.Reporter = (*Recorder)(nil)
)
