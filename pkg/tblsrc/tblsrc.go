package tblsrc

import (
    "context"

    "github.com/amirimatin/go-remap/pkg/table"
)

// Source supplies raw remap table images. Each Read returns a fresh image the
// caller owns; the image has not been validated or sorted.
type Source interface {
    Name() string
    Read(ctx context.Context) (*table.Table, error)
}

// ChangeNotifier is an optional interface for sources that can tell whether
// their backing data changed since the last successful Read.
type ChangeNotifier interface {
    Changed() bool
}
