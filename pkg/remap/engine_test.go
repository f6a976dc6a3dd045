package remap

import (
    "context"
    "errors"
    "io"
    "log"
    "sync"
    "testing"

    "github.com/amirimatin/go-remap/pkg/diag"
    "github.com/amirimatin/go-remap/pkg/filter"
    "github.com/amirimatin/go-remap/pkg/message"
    "github.com/amirimatin/go-remap/pkg/table"
    "github.com/amirimatin/go-remap/pkg/tblsrc/static"
    "github.com/amirimatin/go-remap/pkg/tblsvc"
)

var quiet = log.New(io.Discard, "", 0)

func scenarioTable(def table.Policy) *table.Table {
    return static.Entries(def,
        table.Entry{Peer: 2, From: 0x0888, To: 0x0888},
        table.Entry{Peer: 2, From: 0x0889, To: 0x0889},
        table.Entry{Peer: 2, From: 0x0890, To: 0x0890},
    )
}

func newEngine(t *testing.T, img *table.Table, mod func(*Options)) (*Engine, *diag.Recorder) {
    t.Helper()
    rec := &diag.Recorder{}
    opts := Options{Source: static.New("test", img), Reporter: rec, Logger: quiet}
    if mod != nil { mod(&opts) }
    e, err := New(opts)
    if err != nil { t.Fatalf("new: %v", err) }
    return e, rec
}

func mustInit(t *testing.T, e *Engine) {
    t.Helper()
    if err := e.Init(ProtocolVersion, 100); err != nil { t.Fatalf("init: %v", err) }
}

func send(t *testing.T, e *Engine, peer table.PeerID, id table.MsgID) (filter.Outcome, table.MsgID) {
    t.Helper()
    m := &message.Basic{ID: id}
    out, err := e.FilterSend(m, filter.Context{PeerID: peer})
    if err != nil { t.Fatalf("filter send: %v", err) }
    return out, m.ID
}

func TestScenario_IgnoreDefault(t *testing.T) {
    e, _ := newEngine(t, scenarioTable(table.PolicyIgnore), nil)
    mustInit(t, e)

    if out, id := send(t, e, 2, 0x0888); out != filter.Forwarded || id != 0x0888 {
        t.Fatalf("0x0888: got %v %s", out, id)
    }
    if out, id := send(t, e, 2, 0x0891); out != filter.Suppressed || id != 0x0891 {
        t.Fatalf("0x0891: got %v %s, want suppressed with id unchanged", out, id)
    }
    if out, _ := send(t, e, 3, 0x0888); out != filter.Suppressed {
        t.Fatalf("other peer should not match: %v", out)
    }
}

func TestScenario_SendDefault(t *testing.T) {
    e, _ := newEngine(t, scenarioTable(table.PolicySend), nil)
    mustInit(t, e)
    if out, id := send(t, e, 2, 0x0891); out != filter.Forwarded || id != 0x0891 {
        t.Fatalf("0x0891: got %v %s, want forwarded unchanged", out, id)
    }
}

func TestRoundTrip_ForwardThenReverse(t *testing.T) {
    img := static.Entries(table.PolicyIgnore,
        table.Entry{Peer: 7, From: 0x1801, To: 0x0801},
        table.Entry{Peer: 1, From: 0x1801, To: 0x0A01},
        table.Entry{Peer: 7, From: 0x1802, To: 0x0802},
    )
    e, _ := newEngine(t, img, nil)
    mustInit(t, e)

    out, id := send(t, e, 7, 0x1801)
    if out != filter.Forwarded || id != 0x0801 { t.Fatalf("forward: %v %s", out, id) }
    if back := e.RemapMsgID(id, filter.Context{PeerID: 7}); back != 0x1801 {
        t.Fatalf("reverse = %s, want 0x1801", back)
    }
    if back := e.RemapMsgID(0x0A01, filter.Context{PeerID: 7}); back != 0x0A01 {
        t.Fatalf("reverse without match must pass through, got %s", back)
    }
}

func TestZeroDestinationAlwaysSuppresses(t *testing.T) {
    for _, def := range []table.Policy{table.PolicyIgnore, table.PolicySend} {
        img := static.Entries(def, table.Entry{Peer: 4, From: 0x0100, To: 0})
        e, _ := newEngine(t, img, nil)
        mustInit(t, e)
        if out, id := send(t, e, 4, 0x0100); out != filter.Suppressed || id != 0x0100 {
            t.Fatalf("default %v: got %v %s", def, out, id)
        }
    }
}

func TestEntriesAfterSentinelAreIgnored(t *testing.T) {
    img := static.Entries(table.PolicyIgnore,
        table.Entry{Peer: 2, From: 0x0888, To: 0x0999},
        table.Entry{},
        table.Entry{Peer: 2, From: 0x0889, To: 0x0999},
    )
    e, _ := newEngine(t, img, nil)
    mustInit(t, e)
    if n := len(e.Entries()); n != 1 { t.Fatalf("active entries = %d, want 1", n) }
    if out, _ := send(t, e, 2, 0x0889); out != filter.Suppressed { t.Fatalf("entry after sentinel matched") }
}

func TestRecvAndSendShareAlgorithm(t *testing.T) {
    e, _ := newEngine(t, scenarioTable(table.PolicyIgnore), nil)
    mustInit(t, e)
    for _, id := range []table.MsgID{0x0888, 0x0890, 0x0891} {
        a, b := &message.Basic{ID: id}, &message.Basic{ID: id}
        oa, ea := e.FilterRecv(a, filter.Context{PeerID: 2})
        ob, eb := e.FilterSend(b, filter.Context{PeerID: 2})
        if oa != ob || a.ID != b.ID || (ea == nil) != (eb == nil) {
            t.Fatalf("id %s: recv=%v/%s send=%v/%s", id, oa, a.ID, ob, b.ID)
        }
    }
}

func TestInit_VersionMismatch(t *testing.T) {
    e, _ := newEngine(t, scenarioTable(table.PolicySend), nil)
    if err := e.Init(1, 0); !errors.Is(err, ErrVersionMismatch) { t.Fatalf("expected ErrVersionMismatch, got %v", err) }
    if st := e.Status(); st.Ready || st.Loads != 0 { t.Fatalf("table must not be loaded: %+v", st) }
    if _, err := e.FilterSend(&message.Basic{ID: 0x0888}, filter.Context{PeerID: 2}); !errors.Is(err, ErrNotReady) {
        t.Fatalf("expected ErrNotReady, got %v", err)
    }
    if id := e.RemapMsgID(0x0888, filter.Context{PeerID: 2}); id != 0x0888 { t.Fatalf("reverse before init = %s", id) }
}

func TestInit_Twice(t *testing.T) {
    e, _ := newEngine(t, scenarioTable(table.PolicySend), nil)
    mustInit(t, e)
    if err := e.Init(ProtocolVersion, 0); !errors.Is(err, ErrAlreadyInitialized) {
        t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
    }
}

func TestInit_InvalidPolicyIsFatal(t *testing.T) {
    e, rec := newEngine(t, scenarioTable(table.Policy(3)), nil)
    err := e.Init(ProtocolVersion, 100)
    if !errors.Is(err, ErrTable) || !errors.Is(err, table.ErrInvalidDefaultPolicy) {
        t.Fatalf("expected table error wrapping ErrInvalidDefaultPolicy, got %v", err)
    }
    if e.Status().Ready { t.Fatalf("engine must stay uninitialized") }
    var sawTable bool
    for _, ev := range rec.Events() {
        if ev.ID == 100+filter.EIDTable && ev.Severity == filter.SeverityError { sawTable = true }
    }
    if !sawTable { t.Fatalf("expected a table error event, got %#v", rec.Events()) }
}

func TestInit_GuardCreateFailure(t *testing.T) {
    e, _ := newEngine(t, scenarioTable(table.PolicySend), func(o *Options) {
        o.NewGuard = func(string) (Guard, error) { return nil, errors.New("no semaphores left") }
    })
    if err := e.Init(ProtocolVersion, 0); !errors.Is(err, ErrGuard) { t.Fatalf("expected ErrGuard, got %v", err) }
    if e.Status().Loads != 0 { t.Fatalf("table must not load after guard failure") }
}

func TestInit_FailureUnregistersTable(t *testing.T) {
    reg := tblsvc.NewRegistry()
    e, _ := newEngine(t, scenarioTable(table.Policy(3)), func(o *Options) { o.Tables = reg })
    if err := e.Init(ProtocolVersion, 0); err == nil { t.Fatalf("expected init failure") }
    if _, err := reg.Register(DefaultTableName, 0, nil); err != nil {
        t.Fatalf("table should have been unregistered: %v", err)
    }
}

type flakyGuard struct {
    mu       sync.Mutex
    failTake bool
    failGive bool
}

func (g *flakyGuard) Take() error {
    if g.failTake { return errors.New("take timeout") }
    g.mu.Lock()
    return nil
}

func (g *flakyGuard) Give() error {
    g.mu.Unlock()
    if g.failGive { return errors.New("give failed") }
    return nil
}

func TestGuardFailuresLeaveMessageUntouched(t *testing.T) {
    g := &flakyGuard{}
    img := static.Entries(table.PolicySend, table.Entry{Peer: 1, From: 0x0100, To: 0x0200})
    e, rec := newEngine(t, img, func(o *Options) { o.NewGuard = func(string) (Guard, error) { return g, nil } })
    mustInit(t, e)

    cases := []struct {
        name       string
        take, give bool
    }{
        {"take", true, false},
        {"give", false, true},
    }
    for _, c := range cases {
        g.failTake, g.failGive = c.take, c.give
        rec.Reset()
        m := &message.Basic{ID: 0x0100}
        if _, err := e.FilterSend(m, filter.Context{PeerID: 1}); !errors.Is(err, ErrGuard) {
            t.Fatalf("%s: expected ErrGuard, got %v", c.name, err)
        }
        if m.ID != 0x0100 { t.Fatalf("%s: message mutated to %s", c.name, m.ID) }
        if id := e.RemapMsgID(0x0200, filter.Context{PeerID: 1}); id != 0x0200 {
            t.Fatalf("%s: reverse should return input on guard failure, got %s", c.name, id)
        }
        evs := rec.Events()
        if len(evs) != 2 || evs[0].ID != 100+filter.EIDRemap { t.Fatalf("%s: unexpected events %#v", c.name, evs) }
    }
    g.failTake, g.failGive = false, false
    out, id := send(t, e, 1, 0x0100)
    if out != filter.Forwarded || id != 0x0200 { t.Fatalf("after recovery: %v %s", out, id) }
}

func TestMessageAccessErrors(t *testing.T) {
    img := static.Entries(table.PolicySend, table.Entry{Peer: 1, From: 0x0100, To: 0x1FFF + 1})
    e, _ := newEngine(t, img, nil)
    mustInit(t, e)

    if _, err := e.FilterRecv(message.Packet{0x01}, filter.Context{PeerID: 1}); !errors.Is(err, ErrMsgID) {
        t.Fatalf("expected ErrMsgID on short packet, got %v", err)
    }
    p, _ := message.NewPacket(0x0100, 2)
    if _, err := e.FilterRecv(p, filter.Context{PeerID: 1}); !errors.Is(err, ErrMsgID) || !errors.Is(err, message.ErrInvalidMsgID) {
        t.Fatalf("expected ErrMsgID wrapping ErrInvalidMsgID, got %v", err)
    }
    if id, _ := p.MsgID(); id != 0x0100 { t.Fatalf("packet id changed to %s", id) }
}

func TestReload_SwapsTable(t *testing.T) {
    src := &switchSource{img: scenarioTable(table.PolicyIgnore)}
    e, err := New(Options{Source: src, Reporter: &diag.Recorder{}, Logger: quiet})
    if err != nil { t.Fatal(err) }
    mustInit(t, e)
    if out, _ := send(t, e, 2, 0x0891); out != filter.Suppressed { t.Fatalf("before reload: %v", out) }

    src.set(static.Entries(table.PolicySend, table.Entry{Peer: 2, From: 0x0888, To: 0x0999}))
    if err := e.Reload(context.Background()); err != nil { t.Fatalf("reload: %v", err) }
    if out, id := send(t, e, 2, 0x0891); out != filter.Forwarded || id != 0x0891 { t.Fatalf("after reload: %v %s", out, id) }
    if _, id := send(t, e, 2, 0x0888); id != 0x0999 { t.Fatalf("after reload 0x0888 -> %s", id) }

    src.set(static.Entries(table.Policy(5)))
    if err := e.Reload(context.Background()); err == nil { t.Fatalf("expected reload failure") }
    if _, id := send(t, e, 2, 0x0888); id != 0x0999 { t.Fatalf("failed reload replaced table: %s", id) }
    if st := e.Status(); st.Loads != 2 || st.Default != "SEND" { t.Fatalf("unexpected status %+v", st) }
}

func TestReload_BeforeInit(t *testing.T) {
    e, _ := newEngine(t, scenarioTable(table.PolicySend), nil)
    if err := e.Reload(context.Background()); !errors.Is(err, ErrNotReady) { t.Fatalf("expected ErrNotReady, got %v", err) }
}

func TestReverseCache(t *testing.T) {
    src := &switchSource{img: static.Entries(table.PolicyIgnore, table.Entry{Peer: 1, From: 0x10, To: 0x20})}
    e, err := New(Options{Source: src, Reporter: &diag.Recorder{}, Logger: quiet, ReverseCacheSize: 64})
    if err != nil { t.Fatal(err) }
    mustInit(t, e)
    for i := 0; i < 3; i++ {
        if id := e.RemapMsgID(0x20, filter.Context{PeerID: 1}); id != 0x10 { t.Fatalf("reverse = %s", id) }
        if id := e.RemapMsgID(0x30, filter.Context{PeerID: 1}); id != 0x30 { t.Fatalf("reverse miss = %s", id) }
    }
    if n := e.Status().ReverseCache; n != 2 { t.Fatalf("cache size = %d, want 2", n) }

    src.set(static.Entries(table.PolicyIgnore, table.Entry{Peer: 1, From: 0x11, To: 0x20}))
    if err := e.Reload(context.Background()); err != nil { t.Fatalf("reload: %v", err) }
    if id := e.RemapMsgID(0x20, filter.Context{PeerID: 1}); id != 0x11 { t.Fatalf("stale cache after reload: %s", id) }
}

func TestConcurrentTraffic(t *testing.T) {
    src := &switchSource{img: scenarioTable(table.PolicyIgnore)}
    e, err := New(Options{Source: src, Reporter: &diag.Recorder{}, Logger: quiet})
    if err != nil { t.Fatal(err) }
    mustInit(t, e)

    var wg sync.WaitGroup
    errs := make(chan error, 16)
    for w := 0; w < 8; w++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for i := 0; i < 500; i++ {
                m := &message.Basic{ID: 0x0889}
                out, err := e.FilterSend(m, filter.Context{PeerID: 2})
                if err != nil || out != filter.Forwarded || m.ID != 0x0889 {
                    errs <- errors.New("unexpected forward result")
                    return
                }
                _ = e.RemapMsgID(0x0889, filter.Context{PeerID: 2})
            }
        }()
    }
    wg.Add(1)
    go func() {
        defer wg.Done()
        for i := 0; i < 20; i++ {
            if err := e.Reload(context.Background()); err != nil { errs <- err; return }
        }
    }()
    wg.Wait()
    close(errs)
    for err := range errs { t.Fatal(err) }
}

func TestClose(t *testing.T) {
    e, _ := newEngine(t, scenarioTable(table.PolicySend), nil)
    mustInit(t, e)
    if err := e.Close(); err != nil { t.Fatalf("close: %v", err) }
    if _, err := e.FilterSend(&message.Basic{ID: 1}, filter.Context{}); !errors.Is(err, ErrNotReady) {
        t.Fatalf("expected ErrNotReady after close, got %v", err)
    }
    mustInit(t, e)
}

func TestNew_RequiresSource(t *testing.T) {
    if _, err := New(Options{}); err == nil { t.Fatalf("expected error for nil source") }
}

// switchSource lets tests replace the image between loads.
type switchSource struct {
    mu  sync.Mutex
    img *table.Table
}

func (s *switchSource) Name() string { return "switch" }

func (s *switchSource) Read(ctx context.Context) (*table.Table, error) {
    s.mu.Lock(); defer s.mu.Unlock()
    return s.img.Clone(), nil
}

func (s *switchSource) set(img *table.Table) {
    s.mu.Lock(); defer s.mu.Unlock()
    s.img = img
}
