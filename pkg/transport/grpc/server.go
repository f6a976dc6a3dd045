package grpc

import (
    "context"
    "crypto/tls"
    "errors"
    "net"
    "sync"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/credentials"
    "google.golang.org/grpc/health"
    healthpb "google.golang.org/grpc/health/grpc_health_v1"
    "google.golang.org/grpc/keepalive"

    "github.com/amirimatin/go-remap/pkg/observability/tracing"
    "github.com/amirimatin/go-remap/pkg/transport"
)

const serviceName = "remap.v1.Management"

// Server implements transport.RPCServer over gRPC using a JSON codec.
type Server struct {
    bind   string
    tlsCfg *tls.Config

    mu     sync.Mutex
    lis    net.Listener
    srv    *grpc.Server
    health *health.Server
}

func NewServer(bind string) *Server { return &Server{bind: bind} }

// UseTLS enables TLS for the gRPC server using the provided config.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

// internal request/response types used over gRPC JSON codec
type empty struct{}
type statusBlob struct {
    Data []byte `json:"data"`
}

// managementServer defines the methods we expose.
type managementServer interface {
    GetStatus(ctx context.Context, in *empty) (*statusBlob, error)
    Lookup(ctx context.Context, in *transport.LookupRequest) (*transport.LookupResponse, error)
    Reverse(ctx context.Context, in *transport.ReverseRequest) (*transport.ReverseResponse, error)
    Reload(ctx context.Context, in *empty) (*transport.ReloadResponse, error)
}

var errNotSupported = errors.New("not supported")

type mgmtImpl struct{ h transport.Handlers }

func (m *mgmtImpl) GetStatus(ctx context.Context, _ *empty) (*statusBlob, error) {
    if m.h.Status == nil { return nil, errNotSupported }
    ctx, end := tracing.StartSpan(ctx, "grpc.status")
    b, err := m.h.Status(ctx)
    end(err)
    if err != nil { return nil, err }
    return &statusBlob{Data: b}, nil
}

// Lookup, Reverse and Reload report handler failures in the response body so
// callers get the partial result along with the message.
func (m *mgmtImpl) Lookup(ctx context.Context, in *transport.LookupRequest) (*transport.LookupResponse, error) {
    if in == nil { in = &transport.LookupRequest{} }
    if m.h.Lookup == nil { return &transport.LookupResponse{Error: errNotSupported.Error()}, nil }
    ctx, end := tracing.StartSpan(ctx, "grpc.lookup")
    out, err := m.h.Lookup(ctx, *in)
    end(err)
    if err != nil && out.Error == "" { out.Error = err.Error() }
    return &out, nil
}

func (m *mgmtImpl) Reverse(ctx context.Context, in *transport.ReverseRequest) (*transport.ReverseResponse, error) {
    if in == nil { in = &transport.ReverseRequest{} }
    if m.h.Reverse == nil { return &transport.ReverseResponse{Error: errNotSupported.Error()}, nil }
    ctx, end := tracing.StartSpan(ctx, "grpc.reverse")
    out, err := m.h.Reverse(ctx, *in)
    end(err)
    if err != nil && out.Error == "" { out.Error = err.Error() }
    return &out, nil
}

func (m *mgmtImpl) Reload(ctx context.Context, _ *empty) (*transport.ReloadResponse, error) {
    if m.h.Reload == nil { return &transport.ReloadResponse{Error: errNotSupported.Error()}, nil }
    ctx, end := tracing.StartSpan(ctx, "grpc.reload")
    out, err := m.h.Reload(ctx)
    end(err)
    if err != nil && out.Error == "" { out.Error = err.Error() }
    return &out, nil
}

// Service descriptor and handlers (hand-written, no codegen required)
var _Management_serviceDesc = grpc.ServiceDesc{
    ServiceName: serviceName,
    HandlerType: (*managementServer)(nil),
    Methods: []grpc.MethodDesc{
        {MethodName: "GetStatus", Handler: _Management_GetStatus_Handler},
        {MethodName: "Lookup", Handler: _Management_Lookup_Handler},
        {MethodName: "Reverse", Handler: _Management_Reverse_Handler},
        {MethodName: "Reload", Handler: _Management_Reload_Handler},
    },
}

// unary adapts a typed method to a grpc.MethodDesc handler.
func unary[In any, Out any](method string, call func(managementServer, context.Context, *In) (*Out, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
    return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
        in := new(In)
        if err := dec(in); err != nil { return nil, err }
        if interceptor == nil { return call(srv.(managementServer), ctx, in) }
        info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
        handler := func(ctx context.Context, req interface{}) (interface{}, error) {
            return call(srv.(managementServer), ctx, req.(*In))
        }
        return interceptor(ctx, in, info, handler)
    }
}

var (
    _Management_GetStatus_Handler = unary("GetStatus", managementServer.GetStatus)
    _Management_Lookup_Handler    = unary("Lookup", managementServer.Lookup)
    _Management_Reverse_Handler   = unary("Reverse", managementServer.Reverse)
    _Management_Reload_Handler    = unary("Reload", managementServer.Reload)
)

func (s *Server) Start(ctx context.Context, h transport.Handlers) error {
    lis, err := net.Listen("tcp", s.bind)
    if err != nil { return err }
    // Force JSON codec to avoid requiring protobuf types
    var opts []grpc.ServerOption
    opts = append(opts, grpc.ForceServerCodec(jsonCodec{}))
    opts = append(opts, grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 5 * time.Second, PermitWithoutStream: true}))
    opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{Time: 30 * time.Second, Timeout: 10 * time.Second}))
    if s.tlsCfg != nil { opts = append(opts, grpc.Creds(credentials.NewTLS(s.tlsCfg))) }
    srv := grpc.NewServer(opts...)
    hs := health.NewServer()
    healthpb.RegisterHealthServer(srv, hs)
    hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
    srv.RegisterService(&_Management_serviceDesc, &mgmtImpl{h: h})

    s.mu.Lock()
    s.lis, s.srv, s.health = lis, srv, hs
    s.mu.Unlock()

    go func() {
        <-ctx.Done()
        c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
        defer cancel()
        _ = s.Stop(c)
    }()
    go func() { _ = srv.Serve(lis) }()
    return nil
}

// Addr returns the bound listener address once started.
func (s *Server) Addr() string {
    s.mu.Lock(); defer s.mu.Unlock()
    if s.lis != nil { return s.lis.Addr().String() }
    return s.bind
}

// Stop marks the health service as not serving and stops gracefully, forcing
// the stop when ctx ends first.
func (s *Server) Stop(ctx context.Context) error {
    s.mu.Lock()
    srv, hs := s.srv, s.health
    s.srv, s.health, s.lis = nil, nil, nil
    s.mu.Unlock()
    if srv == nil { return nil }
    hs.Shutdown()
    ch := make(chan struct{})
    go func() { srv.GracefulStop(); close(ch) }()
    select {
    case <-ch:
    case <-ctx.Done():
        srv.Stop()
    }
    return nil
}

var _ transport.RPCServer = (*Server)(nil)
