package httpjson

import (
    "bytes"
    "context"
    "crypto/tls"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "time"

    "github.com/amirimatin/go-remap/pkg/transport"
)

// Client is a thin HTTP client for the management API. It supports optional
// TLS configuration and simple retry with backoff for GetStatus.
type Client struct {
    httpc     *http.Client
    transport *http.Transport
    isTLS     bool
}

// NewClient constructs a new Client with the given timeout.
func NewClient(timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 3 * time.Second }
    tr := &http.Transport{}
    return &Client{httpc: &http.Client{Timeout: timeout, Transport: tr}, transport: tr}
}

// UseTLS sets the TLS config for the underlying HTTP client and switches the
// request scheme to https.
func (c *Client) UseTLS(cfg *tls.Config) *Client {
    if c.transport != nil { c.transport.TLSClientConfig = cfg }
    c.isTLS = cfg != nil
    return c
}

func (c *Client) url(addr, path string) string {
    scheme := "http"
    if c.isTLS { scheme = "https" }
    return fmt.Sprintf("%s://%s%s", scheme, addr, path)
}

func (c *Client) GetStatus(ctx context.Context, addr string) ([]byte, error) {
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(addr, "/status"), nil)
        if err != nil { return nil, err }
        b, err := c.do(req)
        if err == nil { return b, nil }
        lastErr = err
        // backoff unless context is done
        select {
        case <-ctx.Done():
            return nil, ctx.Err()
        case <-time.After(time.Duration(100*(1<<attempt)) * time.Millisecond):
        }
    }
    return nil, lastErr
}

func (c *Client) do(req *http.Request) ([]byte, error) {
    resp, err := c.httpc.Do(req)
    if err != nil { return nil, err }
    defer resp.Body.Close()
    b, err := io.ReadAll(resp.Body)
    if err != nil { return nil, err }
    if resp.StatusCode != http.StatusOK {
        return b, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
    }
    return b, nil
}

// post sends body as JSON and decodes the answer into out. Error bodies that
// carry an "error" field are surfaced as that message. Lookup and reload are
// not retried.
func post[T any](ctx context.Context, c *Client, url string, body any, errOf func(*T) string) (T, error) {
    var out T
    data, err := json.Marshal(body)
    if err != nil { return out, err }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
    if err != nil { return out, err }
    req.Header.Set("Content-Type", "application/json")
    b, err := c.do(req)
    if jerr := json.Unmarshal(b, &out); jerr == nil {
        if msg := errOf(&out); msg != "" { return out, errors.New(msg) }
    }
    return out, err
}

func (c *Client) PostLookup(ctx context.Context, addr string, req transport.LookupRequest) (transport.LookupResponse, error) {
    return post(ctx, c, c.url(addr, "/lookup"), req, func(r *transport.LookupResponse) string { return r.Error })
}

func (c *Client) PostReverse(ctx context.Context, addr string, req transport.ReverseRequest) (transport.ReverseResponse, error) {
    return post(ctx, c, c.url(addr, "/reverse"), req, func(r *transport.ReverseResponse) string { return r.Error })
}

func (c *Client) PostReload(ctx context.Context, addr string) (transport.ReloadResponse, error) {
    return post(ctx, c, c.url(addr, "/reload"), struct{}{}, func(r *transport.ReloadResponse) string { return r.Error })
}

var _ transport.RPCClient = (*Client)(nil)
