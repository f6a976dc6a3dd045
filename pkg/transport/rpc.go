package transport

import "context"

// StatusFunc returns a JSON-encoded status payload for management /status.
// Using []byte keeps this package free of engine types.
type StatusFunc func(ctx context.Context) ([]byte, error)

// LookupRequest asks how a message from Peer with identifier ID would be
// forwarded. Nothing is rewritten on the server.
type LookupRequest struct {
    Peer uint32 `json:"peer"`
    ID   uint16 `json:"id"`
}

// LookupResponse carries the forwarded identifier, or zero with Outcome
// "suppressed".
type LookupResponse struct {
    ID      uint16 `json:"id"`
    Outcome string `json:"outcome"`
    Error   string `json:"error,omitempty"`
}

// LookupFunc runs the forward remap for a single identifier.
type LookupFunc func(ctx context.Context, req LookupRequest) (LookupResponse, error)

// ReverseRequest asks for the source identifier that maps to ID for Peer.
type ReverseRequest struct {
    Peer uint32 `json:"peer"`
    ID   uint16 `json:"id"`
}

type ReverseResponse struct {
    ID    uint16 `json:"id"`
    Error string `json:"error,omitempty"`
}

type ReverseFunc func(ctx context.Context, req ReverseRequest) (ReverseResponse, error)

// ReloadResponse reports the active entry count after a reload.
type ReloadResponse struct {
    Entries int    `json:"entries"`
    Error   string `json:"error,omitempty"`
}

type ReloadFunc func(ctx context.Context) (ReloadResponse, error)

// RPCServer exposes management endpoints for a running engine.
type RPCServer interface {
    Start(ctx context.Context, h Handlers) error
    Addr() string
    Stop(ctx context.Context) error
}

// RPCClient calls a remote management server using the chosen protocol
// (HTTP/JSON or gRPC JSON codec).
type RPCClient interface {
    GetStatus(ctx context.Context, addr string) ([]byte, error)
    PostLookup(ctx context.Context, addr string, req LookupRequest) (LookupResponse, error)
    PostReverse(ctx context.Context, addr string, req ReverseRequest) (ReverseResponse, error)
    PostReload(ctx context.Context, addr string) (ReloadResponse, error)
}
