package static

import (
    "context"
    "testing"

    "github.com/amirimatin/go-remap/pkg/table"
)

func TestRead_ReturnsCopy(t *testing.T) {
    img := Entries(table.PolicySend, table.Entry{Peer: 2, From: 0x0890, To: 1}, table.Entry{Peer: 2, From: 0x0888, To: 2})
    src := New("", img)
    if src.Name() != "static" { t.Fatalf("name = %q", src.Name()) }

    got, err := src.Read(context.Background())
    if err != nil { t.Fatalf("read: %v", err) }
    table.Sort(got.Entries)
    img.Entries[0].To = 99

    again, err := src.Read(context.Background())
    if err != nil { t.Fatalf("read: %v", err) }
    if again.Entries[0].From != 0x0890 || again.Entries[0].To != 1 {
        t.Fatalf("source image was mutated: %+v", again.Entries)
    }
}

func TestRead_CanceledContext(t *testing.T) {
    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    if _, err := New("x", Entries(table.PolicyIgnore)).Read(ctx); err == nil {
        t.Fatalf("expected context error")
    }
}
