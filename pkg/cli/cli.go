package cli

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "log"
    "os"
    "os/signal"
    "strconv"
    "syscall"
    "text/tabwriter"
    "time"

    "github.com/spf13/cobra"

    "github.com/amirimatin/go-remap/pkg/bootstrap"
    "github.com/amirimatin/go-remap/pkg/filter"
    tracing "github.com/amirimatin/go-remap/pkg/observability/tracing"
    "github.com/amirimatin/go-remap/pkg/table"
    "github.com/amirimatin/go-remap/pkg/transport"
)

// AddAll attaches the remap subcommands to the provided root command.
func AddAll(root *cobra.Command) {
    root.AddCommand(NewRunCmd())
    root.AddCommand(NewStatusCmd())
    root.AddCommand(NewLookupCmd())
    root.AddCommand(NewReverseCmd())
    root.AddCommand(NewReloadCmd())
    root.AddCommand(NewValidateCmd())
    root.AddCommand(NewShowCmd())
}

// NewRemapCommand returns a parent command "remap" containing all subcommands,
// for hosts that mount it under their own CLI.
func NewRemapCommand() *cobra.Command {
    parent := &cobra.Command{Use: "remap", Short: "message id remap commands"}
    AddAll(parent)
    return parent
}

// sourceFlags selects a local table source.
type sourceFlags struct {
    path, kind, format, bucket, name string
    capacity                         int
}

func (f *sourceFlags) register(cmd *cobra.Command) {
    cmd.Flags().StringVar(&f.path, "table", "", "table file, lua script or bolt database (required)")
    cmd.Flags().StringVar(&f.kind, "source", "file", "table source: file|lua|bolt")
    cmd.Flags().StringVar(&f.format, "format", "", "file format: binary|json (default by extension)")
    cmd.Flags().StringVar(&f.bucket, "bolt-bucket", "", "bolt bucket holding table images")
    cmd.Flags().StringVar(&f.name, "name", "", "table name (bolt key)")
    cmd.Flags().IntVar(&f.capacity, "capacity", table.DefaultCapacity, "maximum number of table entries")
}

func (f *sourceFlags) config() bootstrap.Config {
    return bootstrap.Config{TableName: f.name, TablePath: f.path, SourceKind: f.kind, Format: f.format, BoltBucket: f.bucket, Capacity: f.capacity}
}

// clientFlags selects a remote management endpoint.
type clientFlags struct {
    addr, proto                           string
    timeout                               time.Duration
    tlsEnable, tlsSkip                    bool
    tlsCA, tlsCert, tlsKey, tlsServerName string
}

func (f *clientFlags) register(cmd *cobra.Command) {
    cmd.Flags().StringVar(&f.addr, "addr", "127.0.0.1:17950", "management address of the engine (host:port)")
    cmd.Flags().StringVar(&f.proto, "mgmt-proto", "http", "management RPC protocol: http|grpc")
    cmd.Flags().DurationVar(&f.timeout, "timeout", 3*time.Second, "request timeout")
    registerTLS(cmd, &f.tlsEnable, &f.tlsSkip, &f.tlsCA, &f.tlsCert, &f.tlsKey, &f.tlsServerName, "client")
}

func registerTLS(cmd *cobra.Command, enable, skip *bool, ca, cert, key, serverName *string, role string) {
    cmd.Flags().BoolVar(enable, "tls-enable", false, "enable TLS for the management transport")
    cmd.Flags().StringVar(ca, "tls-ca", "", "path to CA cert (PEM)")
    cmd.Flags().StringVar(cert, "tls-cert", "", "path to "+role+" certificate (PEM)")
    cmd.Flags().StringVar(key, "tls-key", "", "path to "+role+" private key (PEM)")
    cmd.Flags().BoolVar(skip, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
    cmd.Flags().StringVar(serverName, "tls-server-name", "", "expected server name (for TLS validation)")
}

func (f *clientFlags) client() (transport.RPCClient, error) {
    return bootstrap.NewClient(bootstrap.Config{
        MgmtProto:     f.proto,
        TLSEnable:     f.tlsEnable,
        TLSCA:         f.tlsCA,
        TLSCert:       f.tlsCert,
        TLSKey:        f.tlsKey,
        TLSServerName: f.tlsServerName,
        TLSSkipVerify: f.tlsSkip,
    }, f.timeout)
}

// NewRunCmd returns the "run" command: load the table, serve the management
// API and optionally watch the source for changes.
func NewRunCmd() *cobra.Command {
    var (
        src                                   sourceFlags
        mgmtAddr, mgmtProto                   string
        watch                                 time.Duration
        reverseCache, eventBase               int
        verbose, traceEnable                  bool
        tlsEnable, tlsSkip                    bool
        tlsCA, tlsCert, tlsKey, tlsServerName string
    )
    cmd := &cobra.Command{
        Use:   "run",
        Short: "Run the remap engine with its management API",
        RunE: func(cmd *cobra.Command, args []string) error {
            if src.path == "" { return fmt.Errorf("missing --table") }
            if eventBase < 0 || eventBase > 0xFFFF { return fmt.Errorf("--event-base out of range: %d", eventBase) }
            ctx, cancel := signalContext(ctxOf(cmd))
            defer cancel()

            if traceEnable {
                shutdown, err := tracing.Setup(true)
                if err != nil {
                    log.Printf("tracing setup error: %v", err)
                } else {
                    defer func() { _ = shutdown(context.Background()) }()
                }
            }

            cfg := src.config()
            cfg.MgmtAddr = mgmtAddr
            cfg.MgmtProto = mgmtProto
            cfg.WatchInterval = watch
            cfg.ReverseCacheSize = reverseCache
            cfg.EventBase = filter.EventID(eventBase)
            cfg.Verbose = verbose
            cfg.TLSEnable, cfg.TLSCA, cfg.TLSCert, cfg.TLSKey = tlsEnable, tlsCA, tlsCert, tlsKey
            cfg.TLSServerName, cfg.TLSSkipVerify = tlsServerName, tlsSkip
            cfg.Logger = log.Default()

            n, err := bootstrap.Run(ctx, cfg)
            if err != nil { return err }
            defer n.Close()

            st := n.Engine.Status()
            fmt.Fprintf(cmd.OutOrStdout(), "remap running: table %s, %d entries, default %s. Press Ctrl+C to exit.\n", st.Table, st.Entries, st.Default)
            <-ctx.Done()
            return nil
        },
    }
    src.register(cmd)
    cmd.Flags().StringVar(&mgmtAddr, "mgmt-addr", ":17950", "management address (tcp); empty disables the API")
    cmd.Flags().StringVar(&mgmtProto, "mgmt-proto", "http", "management RPC protocol: http|grpc")
    cmd.Flags().DurationVar(&watch, "watch", 0, "poll the table source and reload on change (0 disables)")
    cmd.Flags().IntVar(&reverseCache, "reverse-cache", 0, "reverse lookup cache entries (0 disables)")
    cmd.Flags().IntVar(&eventBase, "event-base", 0, "base event id for diagnostics")
    cmd.Flags().BoolVar(&verbose, "verbose", false, "log debug diagnostics events")
    cmd.Flags().BoolVar(&traceEnable, "trace", false, "enable OpenTelemetry stdout tracing (dev)")
    registerTLS(cmd, &tlsEnable, &tlsSkip, &tlsCA, &tlsCert, &tlsKey, &tlsServerName, "server")
    return cmd
}

// NewStatusCmd returns the "status" command.
func NewStatusCmd() *cobra.Command {
    var cf clientFlags
    cmd := &cobra.Command{
        Use:   "status",
        Short: "Fetch engine status as JSON",
        RunE: func(cmd *cobra.Command, args []string) error {
            client, err := cf.client()
            if err != nil { return err }
            ctx, cancel := context.WithTimeout(ctxOf(cmd), cf.timeout)
            defer cancel()
            data, err := client.GetStatus(ctx, cf.addr)
            if err != nil { return fmt.Errorf("status error: %w", err) }
            out := cmd.OutOrStdout()
            _, _ = out.Write(data)
            if len(data) == 0 || data[len(data)-1] != '\n' { _, _ = out.Write([]byte("\n")) }
            return nil
        },
    }
    cf.register(cmd)
    return cmd
}

func parsePeerID(peer, id string) (table.PeerID, table.MsgID, error) {
    p, err := strconv.ParseUint(peer, 0, 32)
    if err != nil { return 0, 0, fmt.Errorf("bad peer %q", peer) }
    m, err := table.ParseMsgID(id)
    if err != nil { return 0, 0, err }
    return table.PeerID(p), m, nil
}

// NewLookupCmd returns the "lookup" command.
func NewLookupCmd() *cobra.Command {
    var cf clientFlags
    cmd := &cobra.Command{
        Use:   "lookup PEER MSGID",
        Short: "Show how a message id from a peer would be forwarded",
        Args:  cobra.ExactArgs(2),
        RunE: func(cmd *cobra.Command, args []string) error {
            peer, id, err := parsePeerID(args[0], args[1])
            if err != nil { return err }
            client, err := cf.client()
            if err != nil { return err }
            ctx, cancel := context.WithTimeout(ctxOf(cmd), cf.timeout)
            defer cancel()
            resp, err := client.PostLookup(ctx, cf.addr, transport.LookupRequest{Peer: uint32(peer), ID: uint16(id)})
            if err != nil { return fmt.Errorf("lookup error: %w", err) }
            if resp.Outcome == filter.Suppressed.String() {
                fmt.Fprintf(cmd.OutOrStdout(), "%s -> suppressed\n", id)
                return nil
            }
            fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", id, table.MsgID(resp.ID))
            return nil
        },
    }
    cf.register(cmd)
    return cmd
}

// NewReverseCmd returns the "reverse" command.
func NewReverseCmd() *cobra.Command {
    var cf clientFlags
    cmd := &cobra.Command{
        Use:   "reverse PEER MSGID",
        Short: "Map a destination message id back to its source id",
        Args:  cobra.ExactArgs(2),
        RunE: func(cmd *cobra.Command, args []string) error {
            peer, id, err := parsePeerID(args[0], args[1])
            if err != nil { return err }
            client, err := cf.client()
            if err != nil { return err }
            ctx, cancel := context.WithTimeout(ctxOf(cmd), cf.timeout)
            defer cancel()
            resp, err := client.PostReverse(ctx, cf.addr, transport.ReverseRequest{Peer: uint32(peer), ID: uint16(id)})
            if err != nil { return fmt.Errorf("reverse error: %w", err) }
            fmt.Fprintf(cmd.OutOrStdout(), "%s <- %s\n", id, table.MsgID(resp.ID))
            return nil
        },
    }
    cf.register(cmd)
    return cmd
}

// NewReloadCmd returns the "reload" command.
func NewReloadCmd() *cobra.Command {
    var cf clientFlags
    cmd := &cobra.Command{
        Use:   "reload",
        Short: "Ask the engine to reload its table",
        RunE: func(cmd *cobra.Command, args []string) error {
            client, err := cf.client()
            if err != nil { return err }
            ctx, cancel := context.WithTimeout(ctxOf(cmd), cf.timeout)
            defer cancel()
            resp, err := client.PostReload(ctx, cf.addr)
            if err != nil { return fmt.Errorf("reload error: %w", err) }
            return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
        },
    }
    cf.register(cmd)
    return cmd
}

// loadLocal reads and validates a table the way the engine would, without
// registering it anywhere.
func loadLocal(ctx context.Context, f *sourceFlags) (*table.Table, error) {
    if f.path == "" { return nil, fmt.Errorf("missing --table") }
    src, err := bootstrap.NewSource(f.config())
    if err != nil { return nil, err }
    t, err := src.Read(ctx)
    if err != nil { return nil, err }
    if t.Capacity <= 0 { t.Capacity = f.capacity }
    n, err := table.Validate(t)
    if err != nil { return nil, err }
    t.Count = n
    table.Sort(t.Active())
    return t, nil
}

// NewValidateCmd returns the "validate" command.
func NewValidateCmd() *cobra.Command {
    var src sourceFlags
    cmd := &cobra.Command{
        Use:   "validate",
        Short: "Check a table image without loading it into an engine",
        RunE: func(cmd *cobra.Command, args []string) error {
            t, err := loadLocal(ctxOf(cmd), &src)
            if err != nil { return fmt.Errorf("invalid table: %w", err) }
            fmt.Fprintf(cmd.OutOrStdout(), "ok: %d active entries, default %s\n", t.Count, t.Default)
            return nil
        },
    }
    src.register(cmd)
    return cmd
}

// NewShowCmd returns the "show" command.
func NewShowCmd() *cobra.Command {
    var (
        src    sourceFlags
        asJSON bool
    )
    cmd := &cobra.Command{
        Use:   "show",
        Short: "Print the active entries of a table in lookup order",
        RunE: func(cmd *cobra.Command, args []string) error {
            t, err := loadLocal(ctxOf(cmd), &src)
            if err != nil { return err }
            if asJSON {
                enc := json.NewEncoder(cmd.OutOrStdout())
                enc.SetIndent("", "  ")
                return enc.Encode(&table.Table{Default: t.Default, Entries: t.Active()})
            }
            return printEntries(cmd.OutOrStdout(), t)
        },
    }
    src.register(cmd)
    cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
    return cmd
}

func printEntries(w io.Writer, t *table.Table) error {
    tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
    fmt.Fprintf(tw, "default\t%s\n", t.Default)
    fmt.Fprintln(tw, "PEER\tFROM\tTO")
    for _, e := range t.Active() {
        to := e.To.String()
        if e.To == 0 { to = "drop" }
        fmt.Fprintf(tw, "%d\t%s\t%s\n", e.Peer, e.From, to)
    }
    return tw.Flush()
}

func ctxOf(cmd *cobra.Command) context.Context {
    if ctx := cmd.Context(); ctx != nil { return ctx }
    return context.Background()
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
    return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
