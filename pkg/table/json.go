package table

import (
    "bytes"
    "encoding/json"
    "fmt"
    "strconv"
    "strings"
)

// MarshalText renders ids as 0x-prefixed hex so JSON images stay readable.
func (id MsgID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalJSON accepts a JSON number or a decimal/hex string.
func (id *MsgID) UnmarshalJSON(b []byte) error {
    v, err := numberOrString(b, 16)
    if err != nil { return fmt.Errorf("table: message id: %w", err) }
    *id = MsgID(v)
    return nil
}

func (p Policy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalJSON accepts "IGNORE", "SEND" or a number.
func (p *Policy) UnmarshalJSON(b []byte) error {
    b = bytes.TrimSpace(b)
    if len(b) > 0 && b[0] == '"' {
        var s string
        if err := json.Unmarshal(b, &s); err != nil { return err }
        v, err := ParsePolicy(s)
        if err != nil { return err }
        *p = v
        return nil
    }
    v, err := numberOrString(b, 32)
    if err != nil { return fmt.Errorf("table: default policy: %w", err) }
    *p = Policy(v)
    return nil
}

// DecodeJSON parses a JSON image into a table with the given capacity.
func DecodeJSON(data []byte, capacity int) (*Table, error) {
    t := New(capacity)
    if err := json.Unmarshal(data, t); err != nil { return nil, fmt.Errorf("table: decode json: %w", err) }
    if len(t.Entries) > t.Capacity {
        return nil, fmt.Errorf("%w: %d entries exceed capacity %d", ErrImageSize, len(t.Entries), t.Capacity)
    }
    return t, nil
}

func numberOrString(b []byte, bits int) (uint64, error) {
    b = bytes.TrimSpace(b)
    if len(b) > 0 && b[0] == '"' {
        var s string
        if err := json.Unmarshal(b, &s); err != nil { return 0, err }
        return parseUint(s, bits)
    }
    return parseUint(string(b), bits)
}

func parseUint(s string, bits int) (uint64, error) { return strconv.ParseUint(strings.TrimSpace(s), 0, bits) }
