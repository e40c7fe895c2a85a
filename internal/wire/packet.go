// Package wire implements the byte-level formats spoken by the biometric
// terminals: the 8-byte-header TCP packet with its word-sum checksum, the
// marker-delimited stream framing around it, the fixed 40-byte attendance
// log record, and the CR-terminated serial frame. Everything here is pure;
// transports live in the terminal package.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Command codes understood by the terminals.
const (
	CmdConnect       uint16 = 1000
	CmdExit          uint16 = 1001
	CmdEnableDevice  uint16 = 1002
	CmdDisableDevice uint16 = 1003
	CmdAckOK         uint16 = 2000
	CmdAckError      uint16 = 2001
	CmdAckData       uint16 = 2002
	CmdPrepareData   uint16 = 1500
	CmdData          uint16 = 1501
	CmdFreeData      uint16 = 1502
	CmdAttLogRead    uint16 = 13
	CmdClearAttLog   uint16 = 15
	CmdUserRead      uint16 = 9
	CmdGetTime       uint16 = 201
	CmdSetTime       uint16 = 202
)

const headerSize = 8

var (
	// ErrIncomplete signals a partial frame; keep the buffered bytes and
	// retry once more input arrives.
	ErrIncomplete = errors.New("incomplete frame")
	// ErrChecksum signals a frame whose checksum does not verify.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrFrameTooShort signals a frame smaller than its fixed header.
	ErrFrameTooShort = errors.New("frame too short")
)

// Packet is one decoded protocol unit: the 8-byte header fields plus the
// optional payload that follows them.
type Packet struct {
	Command   uint16
	SessionID uint16
	ReplyID   uint16
	Payload   []byte
}

// Checksum computes the 16-bit word-sum checksum over a packet image whose
// checksum slot holds zero: sum little-endian 16-bit words (an odd trailing
// byte is summed alone), fold carries into the low 16 bits, then negate.
func Checksum(data []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(binary.LittleEndian.Uint16(data[i:]))
	}
	if len(data)%2 == 1 {
		sum += uint32(data[len(data)-1])
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return uint16((^sum + 1) & 0xFFFF)
}

// EncodePacket serializes the header and payload with a freshly computed
// checksum. The result is the bare packet, without stream framing.
func EncodePacket(p Packet) []byte {
	buf := make([]byte, headerSize+len(p.Payload))
	binary.LittleEndian.PutUint16(buf[0:2], p.Command)
	binary.LittleEndian.PutUint16(buf[4:6], p.SessionID)
	binary.LittleEndian.PutUint16(buf[6:8], p.ReplyID)
	copy(buf[headerSize:], p.Payload)
	binary.LittleEndian.PutUint16(buf[2:4], Checksum(buf))
	return buf
}

// DecodePacket parses a bare packet and verifies its checksum.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < headerSize {
		return Packet{}, fmt.Errorf("packet of %d bytes: %w", len(data), ErrFrameTooShort)
	}
	scratch := make([]byte, len(data))
	copy(scratch, data)
	scratch[2], scratch[3] = 0, 0
	want := binary.LittleEndian.Uint16(data[2:4])
	if got := Checksum(scratch); got != want {
		return Packet{}, fmt.Errorf("computed %#04x, header carries %#04x: %w", got, want, ErrChecksum)
	}
	p := Packet{
		Command:   binary.LittleEndian.Uint16(data[0:2]),
		SessionID: binary.LittleEndian.Uint16(data[4:6]),
		ReplyID:   binary.LittleEndian.Uint16(data[6:8]),
	}
	if len(data) > headerSize {
		p.Payload = make([]byte, len(data)-headerSize)
		copy(p.Payload, data[headerSize:])
	}
	return p, nil
}
