package bolt

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    bbolt "github.com/boltdb/bolt"

    "github.com/amirimatin/go-remap/pkg/table"
    "github.com/amirimatin/go-remap/pkg/tblsrc"
)

// DefaultBucket holds table images keyed by table name.
const DefaultBucket = "tables"

var ErrNotFound = errors.New("bolt: table not found")

// Options configures a bolt-backed table source.
type Options struct {
    // Path of the bolt database file.
    Path string
    // Bucket holding images; DefaultBucket when empty.
    Bucket string
    // Key of the image inside the bucket (the table name).
    Key string
    // Capacity of the decoded image; zero means table.DefaultCapacity.
    Capacity int
    // Timeout for acquiring the file lock; zero means one second.
    Timeout time.Duration
}

// Source reads binary table images stored in a bolt database. The database is
// opened read-only for each Read so other processes may update it between
// loads.
type Source struct {
    opts Options
    mu   sync.Mutex
    last []byte
}

func New(opts Options) *Source {
    if opts.Bucket == "" { opts.Bucket = DefaultBucket }
    if opts.Timeout <= 0 { opts.Timeout = time.Second }
    return &Source{opts: opts}
}

func (s *Source) Name() string { return s.opts.Path + "#" + s.opts.Key }

func (s *Source) Read(ctx context.Context) (*table.Table, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    data, err := s.fetch()
    if err != nil { return nil, err }
    t := table.New(s.opts.Capacity)
    if err := t.UnmarshalBinary(data); err != nil { return nil, fmt.Errorf("bolt: %s: %w", s.Name(), err) }
    s.mu.Lock()
    s.last = data
    s.mu.Unlock()
    return t, nil
}

// Changed compares the stored image with the one returned by the last Read.
func (s *Source) Changed() bool {
    data, err := s.fetch()
    if err != nil { return false }
    s.mu.Lock(); defer s.mu.Unlock()
    return string(data) != string(s.last)
}

func (s *Source) fetch() ([]byte, error) {
    db, err := bbolt.Open(s.opts.Path, 0o600, &bbolt.Options{ReadOnly: true, Timeout: s.opts.Timeout})
    if err != nil { return nil, fmt.Errorf("bolt: open %s: %w", s.opts.Path, err) }
    defer db.Close()
    var out []byte
    err = db.View(func(tx *bbolt.Tx) error {
        b := tx.Bucket([]byte(s.opts.Bucket))
        if b == nil { return fmt.Errorf("%w: no bucket %q", ErrNotFound, s.opts.Bucket) }
        v := b.Get([]byte(s.opts.Key))
        if v == nil { return fmt.Errorf("%w: %q", ErrNotFound, s.opts.Key) }
        // v is only valid inside the transaction
        out = append([]byte(nil), v...)
        return nil
    })
    return out, err
}

// Save stores t under key, creating the database and bucket as needed.
func Save(path, bucket, key string, t *table.Table) error {
    if bucket == "" { bucket = DefaultBucket }
    data, err := t.MarshalBinary()
    if err != nil { return err }
    db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
    if err != nil { return fmt.Errorf("bolt: open %s: %w", path, err) }
    defer db.Close()
    return db.Update(func(tx *bbolt.Tx) error {
        b, err := tx.CreateBucketIfNotExists([]byte(bucket))
        if err != nil { return err }
        return b.Put([]byte(key), data)
    })
}

var (
    _ tblsrc.Source         = (*Source)(nil)
    _ tblsrc.ChangeNotifier = (*Source)(nil)
)
