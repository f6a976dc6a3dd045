package filter

// EventID identifies a diagnostics event. Filters receive a base id from the
// bridge at Init and add their own offsets.
type EventID uint16

const (
    // EIDTable is the offset for table provisioning events.
    EIDTable EventID = 1
    // EIDRemap is the offset for per-message remap events.
    EIDRemap EventID = 2
)

type Severity int

const (
    SeverityDebug Severity = iota
    SeverityInfo
    SeverityError
    SeverityCritical
)

func (s Severity) String() string {
    switch s {
    case SeverityDebug:
        return "debug"
    case SeverityInfo:
        return "info"
    case SeverityError:
        return "error"
    case SeverityCritical:
        return "critical"
    default:
        return "unknown"
    }
}

// Reporter is the diagnostics sink.
type Reporter interface {
    Report(id EventID, sev Severity, format string, args ...any)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(id EventID, sev Severity, format string, args ...any)

func (f ReporterFunc) Report(id EventID, sev Severity, format string, args ...any) { f(id, sev, format, args...) }
