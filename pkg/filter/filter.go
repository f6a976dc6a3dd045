package filter

import "github.com/amirimatin/go-remap/pkg/table"

// Outcome is the result of a successful filter call.
type Outcome int

const (
    // Forwarded means the message should continue, possibly with a new id.
    Forwarded Outcome = iota
    // Suppressed means the filter recommends not forwarding the message. It is
    // a normal result, not an error.
    Suppressed
)

func (o Outcome) String() string {
    switch o {
    case Forwarded:
        return "forwarded"
    case Suppressed:
        return "suppressed"
    default:
        return "unknown"
    }
}

// Context carries per-call information from the bridge.
type Context struct {
    // PeerID is the processor the message is exchanged with.
    PeerID table.PeerID
}

// Message is the minimal view of a bus message a filter needs.
type Message interface {
    MsgID() (table.MsgID, error)
    SetMsgID(id table.MsgID) error
}

// Interface is what the bridge calls. Init must succeed before any other call.
// FilterRecv runs on messages arriving from a peer, FilterSend on messages
// about to be sent to it; RemapMsgID maps a single identifier back toward its
// original namespace (subscription and acknowledgement paths).
type Interface interface {
    Init(version int, base EventID) error
    FilterRecv(msg Message, ctx Context) (Outcome, error)
    FilterSend(msg Message, ctx Context) (Outcome, error)
    RemapMsgID(id table.MsgID, ctx Context) table.MsgID
}
