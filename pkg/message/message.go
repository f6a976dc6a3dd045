package message

import (
    "encoding/binary"
    "errors"
    "fmt"

    "github.com/amirimatin/go-remap/pkg/filter"
    "github.com/amirimatin/go-remap/pkg/table"
)

var (
    ErrShortHeader  = errors.New("message: header too short")
    ErrInvalidMsgID = errors.New("message: invalid message id")
)

// Basic is a message that is nothing but an identifier.
type Basic struct {
    ID table.MsgID
}

func (b *Basic) MsgID() (table.MsgID, error)   { return b.ID, nil }
func (b *Basic) SetMsgID(id table.MsgID) error { b.ID = id; return nil }

const (
    // PrimaryHeaderSize is the CCSDS space packet primary header length.
    PrimaryHeaderSize = 6
    // MaxMsgID is the largest identifier a primary header can carry: packet
    // type, secondary header flag and APID.
    MaxMsgID table.MsgID = 0x1FFF

    versionMask = 0xE000
)

// Packet is a CCSDS space packet. Its identifier is the low 13 bits of the
// first header word; the version bits are preserved on write.
type Packet []byte

func (p Packet) MsgID() (table.MsgID, error) {
    if len(p) < PrimaryHeaderSize { return 0, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(p)) }
    return table.MsgID(binary.BigEndian.Uint16(p) &^ versionMask), nil
}

func (p Packet) SetMsgID(id table.MsgID) error {
    if len(p) < PrimaryHeaderSize { return fmt.Errorf("%w: %d bytes", ErrShortHeader, len(p)) }
    if id > MaxMsgID { return fmt.Errorf("%w: %s", ErrInvalidMsgID, id) }
    w := binary.BigEndian.Uint16(p)
    binary.BigEndian.PutUint16(p, w&versionMask|uint16(id))
    return nil
}

// NewPacket returns a packet with a primary header carrying id and room for
// payloadLen bytes of data. The length field follows the CCSDS convention of
// data length minus one.
func NewPacket(id table.MsgID, payloadLen int) (Packet, error) {
    if payloadLen < 1 || payloadLen > 0x10000 { return nil, fmt.Errorf("message: bad payload length %d", payloadLen) }
    p := make(Packet, PrimaryHeaderSize+payloadLen)
    if err := p.SetMsgID(id); err != nil { return nil, err }
    binary.BigEndian.PutUint16(p[4:], uint16(payloadLen-1))
    return p, nil
}

var (
    _ filter.Message = (*Basic)(nil)
    _ filter.Message = Packet(nil)
)
