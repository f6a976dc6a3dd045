package table

import (
    "cmp"
    "fmt"
    "strconv"
    "strings"
)

// DefaultCapacity is the number of entry slots in a table image when the
// caller does not specify one.
const DefaultCapacity = 1024

// PeerID identifies the remote processor a message is exchanged with.
type PeerID uint32

// MsgID is a message identifier before or after remapping. Zero is reserved:
// as a source it terminates the table, as a destination it means "drop".
type MsgID uint16

func (id MsgID) String() string { return fmt.Sprintf("0x%04X", uint16(id)) }

// ParseMsgID accepts decimal or 0x-prefixed hexadecimal identifiers.
func ParseMsgID(s string) (MsgID, error) {
    v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
    if err != nil { return 0, fmt.Errorf("table: bad message id %q: %w", s, err) }
    return MsgID(v), nil
}

// Policy decides what happens to messages no entry matches.
type Policy uint32

const (
    // PolicyIgnore drops unmapped messages.
    PolicyIgnore Policy = 0
    // PolicySend forwards unmapped messages unchanged.
    PolicySend Policy = 1
)

// Valid reports whether p is one of the recognized policies.
func (p Policy) Valid() bool { return p == PolicyIgnore || p == PolicySend }

func (p Policy) String() string {
    switch p {
    case PolicyIgnore:
        return "IGNORE"
    case PolicySend:
        return "SEND"
    default:
        return fmt.Sprintf("Policy(%d)", uint32(p))
    }
}

// ParsePolicy accepts IGNORE/SEND in any case or a raw numeric value. Numeric
// values are not range checked here; Validate rejects unknown ones.
func ParsePolicy(s string) (Policy, error) {
    s = strings.TrimSpace(s)
    switch strings.ToUpper(s) {
    case "IGNORE":
        return PolicyIgnore, nil
    case "SEND":
        return PolicySend, nil
    }
    v, err := strconv.ParseUint(s, 0, 32)
    if err != nil { return 0, fmt.Errorf("table: bad default policy %q", s) }
    return Policy(v), nil
}

// Entry maps From to To for messages exchanged with Peer.
type Entry struct {
    Peer PeerID `json:"peer"`
    From MsgID  `json:"from"`
    To   MsgID  `json:"to"`
}

// Compare orders entries by (Peer, From). To is payload and never compared.
func Compare(a, b Entry) int {
    if c := cmp.Compare(a.Peer, b.Peer); c != 0 { return c }
    return cmp.Compare(a.From, b.From)
}

// Table is a remap table image. Entries is the backing storage, bounded by
// Capacity; Count is the active prefix length and is only meaningful after
// Validate has run and the caller stored its result.
type Table struct {
    Default  Policy  `json:"default"`
    Capacity int     `json:"-"`
    Entries  []Entry `json:"entries"`
    Count    int     `json:"-"`
}

// New returns an empty image with the given capacity (DefaultCapacity when
// capacity <= 0).
func New(capacity int) *Table {
    if capacity <= 0 { capacity = DefaultCapacity }
    return &Table{Capacity: capacity}
}

// Active returns the validated active region.
func (t *Table) Active() []Entry {
    n := t.Count
    if n > len(t.Entries) { n = len(t.Entries) }
    if n < 0 { n = 0 }
    return t.Entries[:n]
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
    if t == nil { return nil }
    c := *t
    c.Entries = append([]Entry(nil), t.Entries...)
    return &c
}
