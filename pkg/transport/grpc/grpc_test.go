package grpc

import (
    "context"
    "errors"
    "strings"
    "testing"
    "time"

    "github.com/amirimatin/go-remap/pkg/transport"
)

func TestManagementOverGRPC(t *testing.T) {
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    s := NewServer("127.0.0.1:0")
    err := s.Start(ctx, transport.Handlers{
        Status: func(context.Context) ([]byte, error) { return []byte(`{"ready":true}`), nil },
        Lookup: func(_ context.Context, req transport.LookupRequest) (transport.LookupResponse, error) {
            return transport.LookupResponse{ID: req.ID, Outcome: "forwarded"}, nil
        },
        Reload: func(context.Context) (transport.ReloadResponse, error) {
            return transport.ReloadResponse{}, errors.New("rejected")
        },
    })
    if err != nil { t.Fatalf("start: %v", err) }
    defer s.Stop(context.Background())

    c := NewClient(3 * time.Second)
    b, err := c.GetStatus(ctx, s.Addr())
    if err != nil || string(b) != `{"ready":true}` { t.Fatalf("status: %q %v", b, err) }

    lr, err := c.PostLookup(ctx, s.Addr(), transport.LookupRequest{Peer: 2, ID: 0x0888})
    if err != nil || lr.ID != 0x0888 || lr.Outcome != "forwarded" { t.Fatalf("lookup: %+v %v", lr, err) }

    if _, err := c.PostReverse(ctx, s.Addr(), transport.ReverseRequest{}); err == nil || !strings.Contains(err.Error(), "not supported") {
        t.Fatalf("expected not supported, got %v", err)
    }
    if _, err := c.PostReload(ctx, s.Addr()); err == nil || !strings.Contains(err.Error(), "rejected") {
        t.Fatalf("expected reload error, got %v", err)
    }
}
