package table

import (
    "errors"
    "fmt"
)

var ErrInvalidDefaultPolicy = errors.New("table: invalid default policy")

// Validate checks the default policy and returns the active entry count: the
// index of the first entry whose From is zero, or the scan limit when no such
// entry exists. The scan limit is the table capacity, or the backing length
// when that is shorter (missing slots are implicitly zero).
//
// Validate does not modify t; callers store the count themselves.
func Validate(t *Table) (int, error) {
    if t == nil { return 0, errors.New("table: nil table") }
    if !t.Default.Valid() {
        return 0, fmt.Errorf("%w: %d", ErrInvalidDefaultPolicy, uint32(t.Default))
    }
    limit := t.Capacity
    if limit <= 0 { limit = DefaultCapacity }
    if len(t.Entries) < limit { limit = len(t.Entries) }
    i := 0
    for ; i < limit; i++ {
        if t.Entries[i].From == 0 { break }
    }
    return i, nil
}
