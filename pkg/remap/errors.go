package remap

import "errors"

var (
    // ErrVersionMismatch is returned by Init when the bridge speaks a
    // different filter interface version.
    ErrVersionMismatch    = errors.New("remap: version mismatch")
    ErrAlreadyInitialized = errors.New("remap: already initialized")
    // ErrNotReady is returned by traffic calls before a successful Init.
    ErrNotReady = errors.New("remap: not initialized")
    // ErrGuard wraps failures to create, take or give the lookup guard.
    ErrGuard = errors.New("remap: guard failure")
    // ErrTable wraps table provisioning failures (register, load, address).
    ErrTable = errors.New("remap: table provisioning failure")
    // ErrMsgID wraps failures to read or write a message identifier.
    ErrMsgID = errors.New("remap: message id access failure")
)
