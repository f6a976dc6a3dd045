package bootstrap

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "fmt"
    "log"
    "sync"
    "time"

    "github.com/amirimatin/go-remap/pkg/diag"
    "github.com/amirimatin/go-remap/pkg/filter"
    "github.com/amirimatin/go-remap/pkg/internal/logutil"
    "github.com/amirimatin/go-remap/pkg/remap"
    tlsx "github.com/amirimatin/go-remap/pkg/security/tlsconfig"
    "github.com/amirimatin/go-remap/pkg/table"
    "github.com/amirimatin/go-remap/pkg/tblsrc"
    srcbolt "github.com/amirimatin/go-remap/pkg/tblsrc/bolt"
    srcfile "github.com/amirimatin/go-remap/pkg/tblsrc/file"
    srclua "github.com/amirimatin/go-remap/pkg/tblsrc/lua"
    "github.com/amirimatin/go-remap/pkg/transport"
    mgmtgrpc "github.com/amirimatin/go-remap/pkg/transport/grpc"
    httpjson "github.com/amirimatin/go-remap/pkg/transport/httpjson"
)

// Config defines the inputs needed to run a remap engine with its management
// API. Hosts embed the engine by filling this structure and calling
// Build/Run.
type Config struct {
    // Table identity and source
    TableName  string // registered table name (default remap.DefaultTableName)
    TablePath  string // file, lua script or bolt database
    SourceKind string // "file" (default), "lua" or "bolt"
    Format     string // file format: "", "binary" or "json"
    BoltBucket string // bucket for SourceKind=bolt
    Capacity   int    // zero → table.DefaultCapacity

    // Engine tuning
    WatchInterval    time.Duration // >0 polls the source and reloads on change
    ReverseCacheSize int
    EventBase        filter.EventID
    Verbose          bool // report debug events

    // Management API (status/lookup/reverse/reload/metrics); empty MgmtAddr disables it
    MgmtAddr  string
    MgmtProto string // "http" (default) or "grpc"

    // TLS (optional) for management API
    TLSEnable     bool
    TLSCA         string
    TLSCert       string
    TLSKey        string
    TLSServerName string
    TLSSkipVerify bool

    // Logger (optional). If nil, log.Default() is used.
    Logger *log.Logger
}

func (c Config) tlsOptions() tlsx.Options {
    return tlsx.Options{CAFile: c.TLSCA, CertFile: c.TLSCert, KeyFile: c.TLSKey, ServerName: c.TLSServerName, InsecureSkipVerify: c.TLSSkipVerify}
}

// NewSource builds the table source selected by cfg.SourceKind.
func NewSource(cfg Config) (tblsrc.Source, error) {
    if cfg.TablePath == "" { return nil, fmt.Errorf("bootstrap: table path is required") }
    switch cfg.SourceKind {
    case "", "file":
        return srcfile.New(srcfile.Options{Path: cfg.TablePath, Format: srcfile.Format(cfg.Format), Capacity: cfg.Capacity}), nil
    case "lua":
        return srclua.New(srclua.Options{Path: cfg.TablePath, Capacity: cfg.Capacity}), nil
    case "bolt":
        key := cfg.TableName
        if key == "" { key = remap.DefaultTableName }
        return srcbolt.New(srcbolt.Options{Path: cfg.TablePath, Bucket: cfg.BoltBucket, Key: key, Capacity: cfg.Capacity}), nil
    default:
        return nil, fmt.Errorf("bootstrap: unknown source kind %q", cfg.SourceKind)
    }
}

// NewClient returns a management client for proto ("http" or "grpc").
func NewClient(cfg Config, timeout time.Duration) (transport.RPCClient, error) {
    var tc *tls.Config
    if cfg.TLSEnable {
        c, err := cfg.tlsOptions().Client()
        if err != nil { return nil, err }
        tc = c
    }
    switch cfg.MgmtProto {
    case "grpc":
        c := mgmtgrpc.NewClient(timeout)
        if tc != nil { c.UseTLS(tc) }
        return c, nil
    case "", "http":
        c := httpjson.NewClient(timeout)
        if tc != nil { c.UseTLS(tc) }
        return c, nil
    default:
        return nil, fmt.Errorf("bootstrap: unknown management protocol %q", cfg.MgmtProto)
    }
}

// Node is an engine plus its optional management server.
type Node struct {
    Engine *remap.Engine
    Server transport.RPCServer

    cfg    Config
    log    *log.Logger
    mu     sync.Mutex
    cancel context.CancelFunc
    wg     sync.WaitGroup
}

// Build assembles a Node from Config without initializing the engine.
func Build(cfg Config) (*Node, error) {
    if cfg.Logger == nil { cfg.Logger = log.Default() }
    src, err := NewSource(cfg)
    if err != nil { return nil, err }
    rep := diag.NewLogReporter(cfg.Logger)
    rep.Verbose = cfg.Verbose
    eng, err := remap.New(remap.Options{
        Name:             cfg.TableName,
        Capacity:         cfg.Capacity,
        Source:           src,
        Reporter:         rep,
        ReverseCacheSize: cfg.ReverseCacheSize,
        Logger:           cfg.Logger,
    })
    if err != nil { return nil, err }

    n := &Node{Engine: eng, cfg: cfg, log: cfg.Logger}
    if cfg.MgmtAddr == "" { return n, nil }

    var srvTLS *tls.Config
    if cfg.TLSEnable {
        if srvTLS, err = cfg.tlsOptions().Server(); err != nil { return nil, err }
    }
    switch cfg.MgmtProto {
    case "grpc":
        s := mgmtgrpc.NewServer(cfg.MgmtAddr)
        if srvTLS != nil { s.UseTLS(srvTLS) }
        n.Server = s
    case "", "http":
        s := httpjson.NewServer(cfg.MgmtAddr, cfg.Logger)
        if srvTLS != nil { s.UseTLS(srvTLS) }
        n.Server = s
    default:
        return nil, fmt.Errorf("bootstrap: unknown management protocol %q", cfg.MgmtProto)
    }
    return n, nil
}

// Run builds and starts a Node. The caller must Close it when finished.
func Run(ctx context.Context, cfg Config) (*Node, error) {
    n, err := Build(cfg)
    if err != nil { return nil, err }
    if err := n.Start(ctx); err != nil { return nil, err }
    return n, nil
}

// Start initializes the engine, then starts the management server and the
// source watcher when configured.
func (n *Node) Start(ctx context.Context) error {
    if err := n.Engine.Init(remap.ProtocolVersion, n.cfg.EventBase); err != nil { return err }
    ctx, cancel := context.WithCancel(ctx)
    n.mu.Lock()
    n.cancel = cancel
    n.mu.Unlock()
    if n.Server != nil {
        if err := n.Server.Start(ctx, n.Handlers()); err != nil {
            cancel()
            _ = n.Engine.Close()
            return err
        }
        logutil.Infof(n.log, "bootstrap: management API (%s) on %s", proto(n.cfg.MgmtProto), n.Server.Addr())
    }
    if n.cfg.WatchInterval > 0 {
        n.wg.Add(1)
        go func() { defer n.wg.Done(); n.Engine.Watch(ctx, n.cfg.WatchInterval) }()
    }
    return nil
}

// Close stops the watcher and the management server and releases the table.
func (n *Node) Close() error {
    n.mu.Lock()
    cancel := n.cancel
    n.cancel = nil
    n.mu.Unlock()
    if cancel != nil { cancel() }
    n.wg.Wait()
    if n.Server != nil {
        ctx, c := context.WithTimeout(context.Background(), 2*time.Second)
        defer c()
        _ = n.Server.Stop(ctx)
    }
    return n.Engine.Close()
}

// Handlers maps management calls onto the engine.
func (n *Node) Handlers() transport.Handlers {
    e := n.Engine
    return transport.Handlers{
        Status: func(context.Context) ([]byte, error) { return json.Marshal(e.Status()) },
        Lookup: func(_ context.Context, req transport.LookupRequest) (transport.LookupResponse, error) {
            to, err := e.Resolve(table.PeerID(req.Peer), table.MsgID(req.ID))
            if err != nil { return transport.LookupResponse{Outcome: filter.Suppressed.String()}, err }
            out := filter.Forwarded
            if to == 0 { out = filter.Suppressed }
            return transport.LookupResponse{ID: uint16(to), Outcome: out.String()}, nil
        },
        Reverse: func(_ context.Context, req transport.ReverseRequest) (transport.ReverseResponse, error) {
            from := e.RemapMsgID(table.MsgID(req.ID), filter.Context{PeerID: table.PeerID(req.Peer)})
            return transport.ReverseResponse{ID: uint16(from)}, nil
        },
        Reload: func(ctx context.Context) (transport.ReloadResponse, error) {
            if err := e.Reload(ctx); err != nil { return transport.ReloadResponse{}, err }
            return transport.ReloadResponse{Entries: e.Status().Entries}, nil
        },
    }
}

func proto(p string) string {
    if p == "" { return "http" }
    return p
}
