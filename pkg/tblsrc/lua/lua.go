package lua

import (
    "context"
    "fmt"
    "math"
    "os"
    "sync"
    "time"

    "github.com/yuin/gluamapper"
    glua "github.com/yuin/gopher-lua"

    "github.com/amirimatin/go-remap/pkg/table"
    "github.com/amirimatin/go-remap/pkg/tblsrc"
)

// Options configures a Lua table-definition source.
type Options struct {
    // Path to a Lua script that returns the table definition.
    Path string
    // Capacity of the produced image; zero means table.DefaultCapacity.
    Capacity int
}

// Source evaluates a Lua script returning a table definition such as
//
//  return {
//      default = "IGNORE",
//      entries = {
//          {peer = 2, from = 0x0888, to = 0x0888},
//          {2, 0x0889, 0x0889},
//      },
//  }
//
// Entries may use named fields or the positional {peer, from, to} form.
type Source struct {
    opts  Options
    mu    sync.Mutex
    mtime time.Time
}

func New(opts Options) *Source { return &Source{opts: opts} }

func (s *Source) Name() string { return s.opts.Path }

type definition struct {
    Default string
    Entries []interface{}
}

func (s *Source) Read(ctx context.Context) (*table.Table, error) {
    stat, err := os.Stat(s.opts.Path)
    if err != nil { return nil, fmt.Errorf("lua: %w", err) }

    L := glua.NewState()
    defer L.Close()
    L.SetContext(ctx)
    if err := L.DoFile(s.opts.Path); err != nil { return nil, fmt.Errorf("lua: %s: %w", s.opts.Path, err) }
    tbl, ok := L.Get(-1).(*glua.LTable)
    if !ok { return nil, fmt.Errorf("lua: %s did not return a table", s.opts.Path) }

    var def definition
    if err := gluamapper.Map(tbl, &def); err != nil { return nil, fmt.Errorf("lua: %s: %w", s.opts.Path, err) }

    t := table.New(s.opts.Capacity)
    if def.Default != "" {
        if t.Default, err = table.ParsePolicy(def.Default); err != nil { return nil, fmt.Errorf("lua: %w", err) }
    }
    if len(def.Entries) > t.Capacity {
        return nil, fmt.Errorf("lua: %w: %d entries exceed capacity %d", table.ErrImageSize, len(def.Entries), t.Capacity)
    }
    t.Entries = make([]table.Entry, 0, len(def.Entries))
    for i, raw := range def.Entries {
        e, err := toEntry(raw)
        if err != nil { return nil, fmt.Errorf("lua: entry %d: %w", i+1, err) }
        t.Entries = append(t.Entries, e)
    }

    s.mu.Lock()
    s.mtime = stat.ModTime()
    s.mu.Unlock()
    return t, nil
}

// Changed reports whether the script was modified since the last Read.
func (s *Source) Changed() bool {
    stat, err := os.Stat(s.opts.Path)
    if err != nil { return false }
    s.mu.Lock(); defer s.mu.Unlock()
    return !stat.ModTime().Equal(s.mtime)
}

func toEntry(raw interface{}) (table.Entry, error) {
    var vals [3]interface{}
    switch v := raw.(type) {
    case []interface{}:
        if len(v) != 3 { return table.Entry{}, fmt.Errorf("want {peer, from, to}, got %d values", len(v)) }
        copy(vals[:], v)
    case map[interface{}]interface{}:
        // gluamapper has already camel-cased the keys.
        vals = [3]interface{}{v["Peer"], v["From"], v["To"]}
    default:
        return table.Entry{}, fmt.Errorf("unexpected %T", raw)
    }
    peer, err := number(vals[0], math.MaxUint32, "peer")
    if err != nil { return table.Entry{}, err }
    from, err := number(vals[1], math.MaxUint16, "from")
    if err != nil { return table.Entry{}, err }
    to, err := number(vals[2], math.MaxUint16, "to")
    if err != nil { return table.Entry{}, err }
    return table.Entry{Peer: table.PeerID(peer), From: table.MsgID(from), To: table.MsgID(to)}, nil
}

func number(v interface{}, max float64, field string) (uint64, error) {
    f, ok := v.(float64)
    if !ok { return 0, fmt.Errorf("%s: want number, got %T", field, v) }
    if f < 0 || f > max || f != math.Trunc(f) { return 0, fmt.Errorf("%s: %v out of range", field, f) }
    return uint64(f), nil
}

var (
    _ tblsrc.Source         = (*Source)(nil)
    _ tblsrc.ChangeNotifier = (*Source)(nil)
)
