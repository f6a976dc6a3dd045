package file

import (
    "context"
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/amirimatin/go-remap/pkg/table"
)

func image() *table.Table {
    return &table.Table{Default: table.PolicySend, Capacity: 16, Entries: []table.Entry{
        {Peer: 2, From: 0x0889, To: 0x0999},
        {Peer: 2, From: 0x0888, To: 0},
    }}
}

func TestBinaryAndJSONDecodeAlike(t *testing.T) {
    dir := t.TempDir()
    bin := filepath.Join(dir, "remap.tbl")
    js := filepath.Join(dir, "remap.json")
    if err := Write(bin, FormatAuto, image()); err != nil { t.Fatal(err) }
    if err := Write(js, FormatAuto, image()); err != nil { t.Fatal(err) }

    a, err := New(Options{Path: bin, Capacity: 16}).Read(context.Background())
    if err != nil { t.Fatalf("read binary: %v", err) }
    b, err := New(Options{Path: js, Capacity: 16}).Read(context.Background())
    if err != nil { t.Fatalf("read json: %v", err) }

    na, _ := table.Validate(a)
    nb, _ := table.Validate(b)
    if na != 2 || nb != 2 { t.Fatalf("counts = %d/%d, want 2/2", na, nb) }
    for i := 0; i < 2; i++ {
        if a.Entries[i] != b.Entries[i] { t.Fatalf("entry %d differs: %+v vs %+v", i, a.Entries[i], b.Entries[i]) }
    }
    if a.Default != table.PolicySend || b.Default != table.PolicySend { t.Fatalf("default policy lost") }
}

func TestChangedTracksModification(t *testing.T) {
    dir := t.TempDir()
    p := filepath.Join(dir, "remap.json")
    if err := Write(p, FormatJSON, image()); err != nil { t.Fatal(err) }

    src := New(Options{Path: p})
    if !src.Changed() { t.Fatalf("unread source should report a change") }
    if _, err := src.Read(context.Background()); err != nil { t.Fatalf("read: %v", err) }
    if src.Changed() { t.Fatalf("no change expected right after read") }

    img := image()
    img.Entries = append(img.Entries, table.Entry{Peer: 3, From: 1, To: 1})
    if err := Write(p, FormatJSON, img); err != nil { t.Fatal(err) }
    later := time.Now().Add(2 * time.Second)
    if err := os.Chtimes(p, later, later); err != nil { t.Fatal(err) }
    if !src.Changed() { t.Fatalf("expected change after rewrite") }
}

func TestReadErrors(t *testing.T) {
    dir := t.TempDir()
    if _, err := New(Options{Path: filepath.Join(dir, "missing.tbl")}).Read(context.Background()); err == nil {
        t.Fatalf("expected error for missing file")
    }
    bad := filepath.Join(dir, "bad.tbl")
    if err := os.WriteFile(bad, []byte{1, 2, 3}, 0o644); err != nil { t.Fatal(err) }
    if _, err := New(Options{Path: bad}).Read(context.Background()); err == nil {
        t.Fatalf("expected error for truncated header")
    }
}
