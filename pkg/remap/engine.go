package remap

import (
    "context"
    "fmt"
    "log"
    "sync"
    "sync/atomic"
    "time"

    "go.opentelemetry.io/otel/attribute"

    "github.com/amirimatin/go-remap/pkg/filter"
    "github.com/amirimatin/go-remap/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/go-remap/pkg/observability/metrics"
    "github.com/amirimatin/go-remap/pkg/observability/tracing"
    "github.com/amirimatin/go-remap/pkg/table"
    "github.com/amirimatin/go-remap/pkg/tblsrc"
    "github.com/amirimatin/go-remap/pkg/tblsvc"
)

// ProtocolVersion is the filter interface version this engine implements.
const ProtocolVersion = 2

// Engine is the remap filter. It is created with New, activated with Init and
// then called concurrently by the bridge for every message.
//
// The published table lives in an immutable snapshot. Reload builds, validates
// and sorts a new image off to the side and swaps the snapshot pointer, so a
// lookup always sees one complete sorted table.
type Engine struct {
    opts Options
    log  *log.Logger

    // mu serializes Init, Reload and Close.
    mu     sync.Mutex
    ready  atomic.Bool
    base   filter.EventID
    guard  Guard
    handle tblsvc.Handle
    snap   atomic.Pointer[snapshot]
    loads  atomic.Uint64
}

// Status is a JSON-serializable view of the engine state.
type Status struct {
    Ready        bool      `json:"ready"`
    Table        string    `json:"table"`
    Source       string    `json:"source"`
    Default      string    `json:"default,omitempty"`
    Entries      int       `json:"entries"`
    Capacity     int       `json:"capacity"`
    Loads        uint64    `json:"loads"`
    LoadedAt     time.Time `json:"loadedAt,omitempty"`
    ReverseCache int       `json:"reverseCache,omitempty"`
}

// New validates opts and returns an uninitialized Engine.
func New(opts Options) (*Engine, error) {
    if err := opts.Validate(); err != nil {
        return nil, err
    }
    opts = opts.withDefaults()
    obsmetrics.Register()
    return &Engine{opts: opts, log: opts.Logger}, nil
}

// Init checks the interface version, creates the guard and runs the
// load/validate/sort pipeline once. Any failure leaves the engine
// uninitialized.
func (e *Engine) Init(version int, base filter.EventID) error {
    e.mu.Lock()
    defer e.mu.Unlock()
    if e.ready.Load() {
        return ErrAlreadyInitialized
    }
    e.base = base
    if version != ProtocolVersion {
        logutil.Errorf(e.log, "remap: version mismatch: expected %d, got %d", ProtocolVersion, version)
        obsmetrics.ErrorsTotal.WithLabelValues("init").Inc()
        return fmt.Errorf("%w: expected %d, got %d", ErrVersionMismatch, ProtocolVersion, version)
    }

    g, err := e.opts.NewGuard(e.opts.Name)
    if err != nil {
        e.report(filter.EIDRemap, filter.SeverityError, "unable to create guard: %v", err)
        obsmetrics.ErrorsTotal.WithLabelValues("init").Inc()
        return fmt.Errorf("%w: create: %w", ErrGuard, err)
    }

    h, err := e.opts.Tables.Register(e.opts.Name, e.opts.Capacity, e.validate)
    if err != nil {
        e.report(filter.EIDTable, filter.SeverityError, "unable to register remap tbl handle: %v", err)
        obsmetrics.TableLoads.WithLabelValues("error").Inc()
        return fmt.Errorf("%w: register: %w", ErrTable, err)
    }

    snap, err := e.load(context.Background(), h)
    if err != nil {
        _ = e.opts.Tables.Unregister(h)
        return err
    }
    e.guard = g
    e.handle = h
    e.snap.Store(snap)
    e.ready.Store(true)
    logutil.Infof(e.log, "remap: initialized table %s from %s (%d entries, default %s)",
        e.opts.Name, e.opts.Source.Name(), snap.tbl.Count, snap.tbl.Default)
    return nil
}

// Reload runs the load/validate/sort pipeline again and publishes the result.
// Lookups in flight keep using the previous table. On failure the previous
// table stays active.
func (e *Engine) Reload(ctx context.Context) error {
    e.mu.Lock()
    defer e.mu.Unlock()
    if !e.ready.Load() {
        return ErrNotReady
    }
    snap, err := e.load(ctx, e.handle)
    if err != nil {
        return err
    }
    if err := e.guard.Take(); err != nil {
        e.report(filter.EIDRemap, filter.SeverityError, "unable to take mutex: %v", err)
        return fmt.Errorf("%w: take: %w", ErrGuard, err)
    }
    e.snap.Store(snap)
    if err := e.guard.Give(); err != nil {
        e.report(filter.EIDRemap, filter.SeverityError, "unable to give mutex: %v", err)
        return fmt.Errorf("%w: give: %w", ErrGuard, err)
    }
    logutil.Infof(e.log, "remap: reloaded table %s (%d entries, default %s)", e.opts.Name, snap.tbl.Count, snap.tbl.Default)
    return nil
}

// Watch polls the source every interval and reloads when it reports a
// change. It returns when ctx is done, or immediately when the source cannot
// report changes.
func (e *Engine) Watch(ctx context.Context, interval time.Duration) {
    cn, ok := e.opts.Source.(tblsrc.ChangeNotifier)
    if !ok {
        logutil.Warnf(e.log, "remap: source %s does not support change detection; watch disabled", e.opts.Source.Name())
        return
    }
    if interval <= 0 { interval = 5 * time.Second }
    t := time.NewTicker(interval)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-t.C:
            if !e.ready.Load() || !cn.Changed() { continue }
            if err := e.Reload(ctx); err != nil {
                logutil.Warnf(e.log, "remap: reload after change failed: %v", err)
            }
        }
    }
}

// Close unregisters the table and returns the engine to the uninitialized
// state.
func (e *Engine) Close() error {
    e.mu.Lock()
    defer e.mu.Unlock()
    if !e.ready.Load() {
        return nil
    }
    e.ready.Store(false)
    e.snap.Store(nil)
    return e.opts.Tables.Unregister(e.handle)
}

// Status reports the current engine state.
func (e *Engine) Status() Status {
    st := Status{Ready: e.ready.Load(), Table: e.opts.Name, Source: e.opts.Source.Name(), Capacity: e.opts.Capacity, Loads: e.loads.Load()}
    if s := e.snap.Load(); s != nil {
        st.Default = s.tbl.Default.String()
        st.Entries = s.tbl.Count
        st.LoadedAt = s.loadedAt
        if s.rev != nil { st.ReverseCache = s.rev.Len() }
    }
    return st
}

// Entries returns a copy of the active, sorted table.
func (e *Engine) Entries() []table.Entry {
    s := e.snap.Load()
    if s == nil { return nil }
    return append([]table.Entry(nil), s.tbl.Active()...)
}

// validate is the provisioning callback: it rejects bad images and records the
// active count on accepted ones.
func (e *Engine) validate(t *table.Table) error {
    n, err := table.Validate(t)
    if err != nil {
        e.report(filter.EIDTable, filter.SeverityError, "remap tbl rejected: %v", err)
        return err
    }
    t.Count = n
    return nil
}

// load runs provisioning load, address lookup and sort, returning a snapshot
// ready to publish. It never touches the published snapshot.
func (e *Engine) load(ctx context.Context, h tblsvc.Handle) (snap *snapshot, err error) {
    ctx, end := tracing.StartSpan(ctx, "remap.load",
        attribute.String("table", e.opts.Name), attribute.String("source", e.opts.Source.Name()))
    defer func() {
        end(err)
        if err != nil {
            obsmetrics.TableLoads.WithLabelValues("error").Inc()
        } else {
            obsmetrics.TableLoads.WithLabelValues("ok").Inc()
            obsmetrics.TableEntries.Set(float64(snap.tbl.Count))
        }
    }()

    if err := e.opts.Tables.Load(ctx, h, e.opts.Source); err != nil {
        e.report(filter.EIDTable, filter.SeverityError, "unable to load remap tbl %s: %v", e.opts.Source.Name(), err)
        return nil, fmt.Errorf("%w: load: %w", ErrTable, err)
    }
    img, updated, err := e.opts.Tables.GetAddress(h)
    if err == nil && !updated {
        err = tblsvc.ErrNotUpdated
    }
    if err != nil {
        e.report(filter.EIDTable, filter.SeverityError, "unable to get remap tbl address: %v", err)
        return nil, fmt.Errorf("%w: address: %w", ErrTable, err)
    }

    table.Sort(img.Active())
    if err := e.opts.Tables.Modified(h); err != nil {
        e.report(filter.EIDTable, filter.SeverityError, "unable to mark remap tbl modified: %v", err)
        return nil, fmt.Errorf("%w: modified: %w", ErrTable, err)
    }
    e.loads.Add(1)
    e.report(filter.EIDTable, filter.SeverityDebug, "remap tbl %s loaded: %d entries", e.opts.Name, img.Count)
    return newSnapshot(img, e.opts.ReverseCacheSize), nil
}

func (e *Engine) report(off filter.EventID, sev filter.Severity, format string, args ...any) {
    e.opts.Reporter.Report(e.base+off, sev, format, args...)
}

var _ filter.Interface = (*Engine)(nil)
