package tblsvc

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/amirimatin/go-remap/pkg/table"
    "github.com/amirimatin/go-remap/pkg/tblsrc"
)

var (
    ErrUnknownHandle = errors.New("tblsvc: unknown handle")
    ErrDuplicate     = errors.New("tblsvc: table already registered")
    ErrCapacity      = errors.New("tblsvc: image exceeds registered capacity")
    ErrNotLoaded     = errors.New("tblsvc: table not loaded")
    ErrRejected      = errors.New("tblsvc: image rejected by validator")
    ErrNotUpdated    = errors.New("tblsvc: table not updated")
)

// Handle refers to a registered table.
type Handle int

// ValidateFunc inspects a freshly loaded image before it is published. It may
// record derived fields (such as the active count) on the image.
type ValidateFunc func(t *table.Table) error

// Service provisions table images to their owners.
type Service interface {
    Register(name string, capacity int, validate ValidateFunc) (Handle, error)
    Load(ctx context.Context, h Handle, src tblsrc.Source) error
    // GetAddress returns the current image and whether it changed since the
    // previous GetAddress.
    GetAddress(h Handle) (img *table.Table, updated bool, err error)
    Modified(h Handle) error
    Unregister(h Handle) error
}

// Info describes a registered table.
type Info struct {
    Name       string
    Capacity   int
    Source     string
    Loads      int
    LoadedAt   time.Time
    ModifiedAt time.Time
}

type entry struct {
    info     Info
    validate ValidateFunc
    img      *table.Table
    updated  bool
}

// Registry is an in-process Service.
type Registry struct {
    mu     sync.Mutex
    next   Handle
    byID   map[Handle]*entry
    byName map[string]Handle
}

func NewRegistry() *Registry {
    return &Registry{next: 1, byID: make(map[Handle]*entry), byName: make(map[string]Handle)}
}

func (r *Registry) Register(name string, capacity int, validate ValidateFunc) (Handle, error) {
    if name == "" { return 0, errors.New("tblsvc: empty table name") }
    if capacity <= 0 { capacity = table.DefaultCapacity }
    r.mu.Lock(); defer r.mu.Unlock()
    if _, ok := r.byName[name]; ok { return 0, fmt.Errorf("%w: %s", ErrDuplicate, name) }
    h := r.next
    r.next++
    r.byID[h] = &entry{info: Info{Name: name, Capacity: capacity}, validate: validate}
    r.byName[name] = h
    return h, nil
}

// Load reads an image from src, runs the registered validator and publishes
// it. The source is read without holding the registry lock. On any failure
// the previously published image stays in place.
func (r *Registry) Load(ctx context.Context, h Handle, src tblsrc.Source) error {
    r.mu.Lock()
    e, ok := r.byID[h]
    r.mu.Unlock()
    if !ok { return ErrUnknownHandle }
    if src == nil { return errors.New("tblsvc: nil source") }

    img, err := src.Read(ctx)
    if err != nil { return fmt.Errorf("tblsvc: load %s from %s: %w", e.info.Name, src.Name(), err) }
    // zero slots past the capacity carry nothing and may be dropped
    for len(img.Entries) > e.info.Capacity && img.Entries[len(img.Entries)-1] == (table.Entry{}) {
        img.Entries = img.Entries[:len(img.Entries)-1]
    }
    if len(img.Entries) > e.info.Capacity {
        return fmt.Errorf("%w: %s has %d entries, capacity %d", ErrCapacity, e.info.Name, len(img.Entries), e.info.Capacity)
    }
    img.Capacity = e.info.Capacity
    if e.validate != nil {
        if err := e.validate(img); err != nil { return fmt.Errorf("%w: %s: %w", ErrRejected, e.info.Name, err) }
    }

    r.mu.Lock(); defer r.mu.Unlock()
    if r.byID[h] != e { return ErrUnknownHandle }
    e.img = img
    e.updated = true
    e.info.Source = src.Name()
    e.info.Loads++
    e.info.LoadedAt = time.Now()
    return nil
}

func (r *Registry) GetAddress(h Handle) (*table.Table, bool, error) {
    r.mu.Lock(); defer r.mu.Unlock()
    e, ok := r.byID[h]
    if !ok { return nil, false, ErrUnknownHandle }
    if e.img == nil { return nil, false, ErrNotLoaded }
    updated := e.updated
    e.updated = false
    return e.img, updated, nil
}

// Modified records that the owner changed the image in place (for example by
// sorting it).
func (r *Registry) Modified(h Handle) error {
    r.mu.Lock(); defer r.mu.Unlock()
    e, ok := r.byID[h]
    if !ok { return ErrUnknownHandle }
    e.info.ModifiedAt = time.Now()
    return nil
}

func (r *Registry) Unregister(h Handle) error {
    r.mu.Lock(); defer r.mu.Unlock()
    e, ok := r.byID[h]
    if !ok { return ErrUnknownHandle }
    delete(r.byID, h)
    delete(r.byName, e.info.Name)
    return nil
}

// Info returns metadata for h.
func (r *Registry) Info(h Handle) (Info, error) {
    r.mu.Lock(); defer r.mu.Unlock()
    e, ok := r.byID[h]
    if !ok { return Info{}, ErrUnknownHandle }
    return e.info, nil
}

var _ Service = (*Registry)(nil)
