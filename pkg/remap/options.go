package remap

import (
    "errors"
    "log"

    "github.com/amirimatin/go-remap/pkg/diag"
    "github.com/amirimatin/go-remap/pkg/filter"
    "github.com/amirimatin/go-remap/pkg/table"
    "github.com/amirimatin/go-remap/pkg/tblsrc"
    "github.com/amirimatin/go-remap/pkg/tblsvc"
)

// DefaultTableName is the name the remap table is registered under.
const DefaultTableName = "RemapTbl"

// Options configures an Engine. Only Source is required.
type Options struct {
    // Name of the table in the provisioning service.
    Name string
    // Capacity is the number of entry slots; zero means table.DefaultCapacity.
    Capacity int
    // Source supplies the raw table image.
    Source tblsrc.Source
    // Tables provisions the image; a private tblsvc.Registry when nil.
    Tables tblsvc.Service
    // Reporter receives diagnostics events; logs to Logger when nil.
    Reporter filter.Reporter
    // NewGuard creates the lookup guard at Init; NewMutexGuard when nil.
    NewGuard GuardFactory
    // ReverseCacheSize enables an LRU cache of reverse lookups per loaded
    // table when positive.
    ReverseCacheSize int
    // Logger for lifecycle messages; log.Default() when nil.
    Logger *log.Logger
}

// Validate performs a minimal validation of Options.
func (o Options) Validate() error {
    if o.Source == nil {
        return errors.New("remap: nil Source")
    }
    if o.Capacity < 0 {
        return errors.New("remap: negative Capacity")
    }
    if o.ReverseCacheSize < 0 {
        return errors.New("remap: negative ReverseCacheSize")
    }
    return nil
}

func (o Options) withDefaults() Options {
    if o.Name == "" { o.Name = DefaultTableName }
    if o.Capacity == 0 { o.Capacity = table.DefaultCapacity }
    if o.Logger == nil { o.Logger = log.Default() }
    if o.Tables == nil { o.Tables = tblsvc.NewRegistry() }
    if o.Reporter == nil { o.Reporter = diag.NewLogReporter(o.Logger) }
    if o.NewGuard == nil { o.NewGuard = NewMutexGuard }
    return o
}
