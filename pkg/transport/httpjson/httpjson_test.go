package httpjson

import (
    "context"
    "errors"
    "io"
    "log"
    "net/http"
    "strings"
    "sync/atomic"
    "testing"
    "time"

    "github.com/amirimatin/go-remap/pkg/transport"
)

func startServer(t *testing.T, h transport.Handlers) *Server {
    t.Helper()
    ctx, cancel := context.WithCancel(context.Background())
    t.Cleanup(cancel)
    s := NewServer("127.0.0.1:0", log.New(io.Discard, "", 0))
    if err := s.Start(ctx, h); err != nil { t.Fatalf("start: %v", err) }
    t.Cleanup(func() { _ = s.Stop(context.Background()) })
    return s
}

func TestServerClientRoundTrip(t *testing.T) {
    var reloads atomic.Int32
    s := startServer(t, transport.Handlers{
        Status: func(context.Context) ([]byte, error) { return []byte(`{"ready":true}`), nil },
        Lookup: func(_ context.Context, req transport.LookupRequest) (transport.LookupResponse, error) {
            if req.Peer != 7 { return transport.LookupResponse{Outcome: "suppressed"}, nil }
            return transport.LookupResponse{ID: req.ID + 1, Outcome: "forwarded"}, nil
        },
        Reverse: func(_ context.Context, req transport.ReverseRequest) (transport.ReverseResponse, error) {
            return transport.ReverseResponse{ID: req.ID - 1}, nil
        },
        Reload: func(context.Context) (transport.ReloadResponse, error) {
            reloads.Add(1)
            return transport.ReloadResponse{Entries: 3}, nil
        },
    })
    if strings.HasSuffix(s.Addr(), ":0") { t.Fatalf("Addr should report the bound port, got %s", s.Addr()) }

    c := NewClient(2 * time.Second)
    ctx := context.Background()
    b, err := c.GetStatus(ctx, s.Addr())
    if err != nil || string(b) != `{"ready":true}` { t.Fatalf("status: %q %v", b, err) }

    lr, err := c.PostLookup(ctx, s.Addr(), transport.LookupRequest{Peer: 7, ID: 0x0100})
    if err != nil || lr.ID != 0x0101 || lr.Outcome != "forwarded" { t.Fatalf("lookup: %+v %v", lr, err) }
    lr, err = c.PostLookup(ctx, s.Addr(), transport.LookupRequest{Peer: 1, ID: 0x0100})
    if err != nil || lr.ID != 0 || lr.Outcome != "suppressed" { t.Fatalf("lookup other peer: %+v %v", lr, err) }

    rr, err := c.PostReverse(ctx, s.Addr(), transport.ReverseRequest{Peer: 7, ID: 0x0101})
    if err != nil || rr.ID != 0x0100 { t.Fatalf("reverse: %+v %v", rr, err) }

    rl, err := c.PostReload(ctx, s.Addr())
    if err != nil || rl.Entries != 3 || reloads.Load() != 1 { t.Fatalf("reload: %+v %v (reloads=%d)", rl, err, reloads.Load()) }
}

func TestHandlerErrorIsReturned(t *testing.T) {
    s := startServer(t, transport.Handlers{
        Reload: func(context.Context) (transport.ReloadResponse, error) {
            return transport.ReloadResponse{}, errors.New("source unavailable")
        },
    })
    c := NewClient(time.Second)
    if _, err := c.PostReload(context.Background(), s.Addr()); err == nil || !strings.Contains(err.Error(), "source unavailable") {
        t.Fatalf("expected handler error, got %v", err)
    }
    if _, err := c.PostLookup(context.Background(), s.Addr(), transport.LookupRequest{}); err == nil {
        t.Fatalf("expected error for missing lookup handler")
    }
}

func TestHealthzAndMethods(t *testing.T) {
    s := startServer(t, transport.Handlers{})
    resp, err := http.Get("http://" + s.Addr() + "/healthz")
    if err != nil { t.Fatal(err) }
    resp.Body.Close()
    if resp.StatusCode != http.StatusOK { t.Fatalf("healthz = %d", resp.StatusCode) }

    resp, err = http.Get("http://" + s.Addr() + "/reload")
    if err != nil { t.Fatal(err) }
    resp.Body.Close()
    if resp.StatusCode != http.StatusMethodNotAllowed { t.Fatalf("GET /reload = %d", resp.StatusCode) }

    resp, err = http.Get("http://" + s.Addr() + "/metrics")
    if err != nil { t.Fatal(err) }
    resp.Body.Close()
    if resp.StatusCode != http.StatusOK { t.Fatalf("metrics = %d", resp.StatusCode) }
}
