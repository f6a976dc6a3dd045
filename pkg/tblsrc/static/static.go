package static

import (
    "context"
    "errors"

    "github.com/amirimatin/go-remap/pkg/table"
    "github.com/amirimatin/go-remap/pkg/tblsrc"
)

type staticSource struct {
    name string
    img  *table.Table
}

func (s *staticSource) Name() string { return s.name }

// Read returns a copy so callers may sort it in place.
func (s *staticSource) Read(ctx context.Context) (*table.Table, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    if s.img == nil { return nil, errors.New("static: no image") }
    return s.img.Clone(), nil
}

// New returns a Source that always yields a copy of img.
func New(name string, img *table.Table) tblsrc.Source {
    if name == "" { name = "static" }
    return &staticSource{name: name, img: img.Clone()}
}

// Entries builds an image from a default policy and entries, using
// table.DefaultCapacity unless more room is needed.
func Entries(def table.Policy, entries ...table.Entry) *table.Table {
    t := table.New(0)
    if len(entries) > t.Capacity { t.Capacity = len(entries) }
    t.Default = def
    t.Entries = append([]table.Entry(nil), entries...)
    return t
}
