package file

import (
    "context"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/go-remap/pkg/table"
    "github.com/amirimatin/go-remap/pkg/tblsrc"
)

// Format selects how the file is decoded.
type Format string

const (
    // FormatAuto picks JSON for *.json and the binary image otherwise.
    FormatAuto   Format = ""
    FormatBinary Format = "binary"
    FormatJSON   Format = "json"
)

// Options configures a file-backed table source.
type Options struct {
    // Path to the table image.
    Path string
    // Format of the file; FormatAuto decides by extension.
    Format Format
    // Capacity of the decoded image; zero means table.DefaultCapacity.
    Capacity int
}

// Source reads table images from a file and tracks its modification time so
// hosts can reload when it changes.
type Source struct {
    opts  Options
    mu    sync.Mutex
    mtime time.Time
    size  int64
}

func New(opts Options) *Source { return &Source{opts: opts} }

func (s *Source) Name() string { return s.opts.Path }

func (s *Source) format() Format {
    if s.opts.Format != FormatAuto { return s.opts.Format }
    if strings.EqualFold(filepath.Ext(s.opts.Path), ".json") { return FormatJSON }
    return FormatBinary
}

func (s *Source) Read(ctx context.Context) (*table.Table, error) {
    if err := ctx.Err(); err != nil { return nil, err }
    if s.opts.Path == "" { return nil, fmt.Errorf("file: empty path") }
    stat, err := os.Stat(s.opts.Path)
    if err != nil { return nil, fmt.Errorf("file: %w", err) }
    data, err := os.ReadFile(s.opts.Path)
    if err != nil { return nil, fmt.Errorf("file: %w", err) }

    var t *table.Table
    switch f := s.format(); f {
    case FormatJSON:
        t, err = table.DecodeJSON(data, s.opts.Capacity)
    case FormatBinary:
        t = table.New(s.opts.Capacity)
        err = t.UnmarshalBinary(data)
    default:
        err = fmt.Errorf("unknown format %q", f)
    }
    if err != nil { return nil, fmt.Errorf("file: %s: %w", s.opts.Path, err) }

    s.mu.Lock()
    s.mtime, s.size = stat.ModTime(), stat.Size()
    s.mu.Unlock()
    return t, nil
}

// Changed reports whether the file's modification time or size differs from
// what the last successful Read saw. A missing file is not a change.
func (s *Source) Changed() bool {
    stat, err := os.Stat(s.opts.Path)
    if err != nil { return false }
    s.mu.Lock(); defer s.mu.Unlock()
    return !stat.ModTime().Equal(s.mtime) || stat.Size() != s.size
}

// Write encodes t to path in the given format, replacing the file atomically.
func Write(path string, format Format, t *table.Table) error {
    if format == FormatAuto {
        format = FormatBinary
        if strings.EqualFold(filepath.Ext(path), ".json") { format = FormatJSON }
    }
    var (
        data []byte
        err  error
    )
    switch format {
    case FormatJSON:
        data, err = jsonImage(t)
    default:
        data, err = t.MarshalBinary()
    }
    if err != nil { return err }
    tmp := path + ".tmp"
    if err := os.WriteFile(tmp, data, 0o644); err != nil { return err }
    return os.Rename(tmp, path)
}

var (
    _ tblsrc.Source         = (*Source)(nil)
    _ tblsrc.ChangeNotifier = (*Source)(nil)
)
