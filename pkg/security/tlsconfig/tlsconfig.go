package tlsconfig

import (
    "crypto/tls"
    "crypto/x509"
    "errors"
    "fmt"
    "os"
    "sync"
    "time"
)

// DefaultReload is how long a loaded key pair is reused before it is read
// from disk again.
const DefaultReload = 10 * time.Second

// Options describes the management API TLS material. Certificates are
// re-read lazily on handshake so they can be rotated in place.
type Options struct {
    CAFile             string
    CertFile           string
    KeyFile            string
    ServerName         string
    InsecureSkipVerify bool
    Reload             time.Duration
}

// Server returns a server config. A CA file turns on client certificate
// verification.
func (o Options) Server() (*tls.Config, error) {
    if o.CertFile == "" || o.KeyFile == "" {
        return nil, errors.New("tlsconfig: server cert and key are required")
    }
    cc := o.cache()
    if _, err := cc.get(); err != nil { return nil, err }
    cfg := &tls.Config{MinVersion: tls.VersionTLS12}
    cfg.GetCertificate = func(*tls.ClientHelloInfo) (*tls.Certificate, error) { return cc.get() }
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.ClientCAs = pool
        cfg.ClientAuth = tls.RequireAndVerifyClientCert
    }
    return cfg, nil
}

// Client returns a client config. The key pair is optional.
func (o Options) Client() (*tls.Config, error) {
    cfg := &tls.Config{MinVersion: tls.VersionTLS12, ServerName: o.ServerName, InsecureSkipVerify: o.InsecureSkipVerify} //nolint:gosec
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.RootCAs = pool
    }
    if o.CertFile != "" && o.KeyFile != "" {
        cc := o.cache()
        if _, err := cc.get(); err != nil { return nil, err }
        cfg.GetClientCertificate = func(*tls.CertificateRequestInfo) (*tls.Certificate, error) { return cc.get() }
    }
    return cfg, nil
}

func (o Options) cache() *certCache {
    ttl := o.Reload
    if ttl <= 0 { ttl = DefaultReload }
    return &certCache{certFile: o.CertFile, keyFile: o.KeyFile, ttl: ttl}
}

func loadPool(path string) (*x509.CertPool, error) {
    ca, err := os.ReadFile(path)
    if err != nil { return nil, fmt.Errorf("tlsconfig: %w", err) }
    pool := x509.NewCertPool()
    if !pool.AppendCertsFromPEM(ca) { return nil, fmt.Errorf("tlsconfig: no certificates in %s", path) }
    return pool, nil
}

type certCache struct {
    certFile, keyFile string
    ttl               time.Duration

    mu       sync.Mutex
    cert     *tls.Certificate
    loadedAt time.Time
}

// get returns the cached pair, re-reading it once ttl has passed. A failed
// re-read keeps serving the previous pair.
func (c *certCache) get() (*tls.Certificate, error) {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.cert != nil && time.Since(c.loadedAt) < c.ttl { return c.cert, nil }
    cert, err := tls.LoadX509KeyPair(c.certFile, c.keyFile)
    if err != nil {
        if c.cert != nil { return c.cert, nil }
        return nil, fmt.Errorf("tlsconfig: %w", err)
    }
    c.cert, c.loadedAt = &cert, time.Now()
    return c.cert, nil
}
