package table

import (
    "encoding/binary"
    "errors"
    "fmt"
)

const (
    headerSize = 8
    entrySize  = 8
)

var ErrImageSize = errors.New("table: bad image size")

// ImageSize returns the encoded size of a full image with the given capacity.
func ImageSize(capacity int) int {
    if capacity <= 0 { capacity = DefaultCapacity }
    return headerSize + capacity*entrySize
}

// MarshalBinary encodes t in the persisted fixed layout, big-endian:
//
//  uint32 default policy
//  uint32 active count
//  capacity x { uint32 peer, uint16 from, uint16 to }
//
// Unused slots are zero, so the first of them acts as the sentinel.
func (t *Table) MarshalBinary() ([]byte, error) {
    capacity := t.Capacity
    if capacity <= 0 { capacity = DefaultCapacity }
    if len(t.Entries) > capacity {
        return nil, fmt.Errorf("%w: %d entries exceed capacity %d", ErrImageSize, len(t.Entries), capacity)
    }
    buf := make([]byte, ImageSize(capacity))
    binary.BigEndian.PutUint32(buf[0:], uint32(t.Default))
    binary.BigEndian.PutUint32(buf[4:], uint32(t.Count))
    off := headerSize
    for _, e := range t.Entries {
        binary.BigEndian.PutUint32(buf[off:], uint32(e.Peer))
        binary.BigEndian.PutUint16(buf[off+4:], uint16(e.From))
        binary.BigEndian.PutUint16(buf[off+6:], uint16(e.To))
        off += entrySize
    }
    return buf, nil
}

// UnmarshalBinary decodes a persisted image. The image may be truncated after
// any whole entry; missing slots read as zero. The stored count is ignored,
// the Validator recomputes it. A zero Capacity on t means DefaultCapacity.
func (t *Table) UnmarshalBinary(data []byte) error {
    if t.Capacity <= 0 { t.Capacity = DefaultCapacity }
    if len(data) < headerSize || (len(data)-headerSize)%entrySize != 0 {
        return fmt.Errorf("%w: %d bytes", ErrImageSize, len(data))
    }
    n := (len(data) - headerSize) / entrySize
    if n > t.Capacity {
        return fmt.Errorf("%w: %d entries exceed capacity %d", ErrImageSize, n, t.Capacity)
    }
    t.Default = Policy(binary.BigEndian.Uint32(data[0:]))
    t.Count = 0
    t.Entries = make([]Entry, n)
    off := headerSize
    for i := range t.Entries {
        t.Entries[i] = Entry{
            Peer: PeerID(binary.BigEndian.Uint32(data[off:])),
            From: MsgID(binary.BigEndian.Uint16(data[off+4:])),
            To:   MsgID(binary.BigEndian.Uint16(data[off+6:])),
        }
        off += entrySize
    }
    return nil
}
