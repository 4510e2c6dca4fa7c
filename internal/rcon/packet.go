package rcon

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Source RCON packet types. EXECCOMMAND and AUTH_RESPONSE share a value.
const (
	TypeResponseValue int32 = 0
	TypeExecCommand   int32 = 2
	TypeAuthResponse  int32 = 2
	TypeAuth          int32 = 3
)

const (
	// headerSize is id + type + two terminating NULs.
	headerSize = 10

	// maxPacketSize bounds the declared size of incoming packets.
	maxPacketSize = 1 << 16
)

// ErrPacketSize is returned for packets with an impossible size field.
var ErrPacketSize = errors.New("rcon: invalid packet size")

// Packet is one Source RCON packet.
type Packet struct {
	Body string
	ID   int32
	Type int32
}

// MarshalBinary encodes the packet as size, id, type, body, NUL, NUL
// (little-endian).
func (p Packet) MarshalBinary() ([]byte, error) {
	size := int32(len(p.Body) + headerSize)

	buf := bytes.NewBuffer(make([]byte, 0, size+4))
	_ = binary.Write(buf, binary.LittleEndian, size)
	_ = binary.Write(buf, binary.LittleEndian, p.ID)
	_ = binary.Write(buf, binary.LittleEndian, p.Type)
	buf.WriteString(p.Body)
	buf.Write([]byte{0, 0})

	return buf.Bytes(), nil
}

// WritePacket writes p to w in one call.
func WritePacket(w io.Writer, p Packet) error {
	data, err := p.MarshalBinary()
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

// ReadPacket reads one packet from r. A clean close before the size field
// yields io.EOF.
func ReadPacket(r io.Reader) (Packet, error) {
	var size int32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return Packet{}, err
	}
	if size < headerSize || size > maxPacketSize {
		return Packet{}, fmt.Errorf("%w: %d", ErrPacketSize, size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Packet{}, err
	}

	body := data[8 : size-2]
	// some servers pad the body with extra NULs
	body = bytes.TrimRight(body, "\x00")

	return Packet{
		ID:   int32(binary.LittleEndian.Uint32(data[0:4])),
		Type: int32(binary.LittleEndian.Uint32(data[4:8])),
		Body: string(body),
	}, nil
}
