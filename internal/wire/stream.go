package wire

import (
	"encoding/binary"
	"fmt"
)

// Stream framing: each packet on a TCP connection is preceded by a 4-byte
// marker and a 32-bit little-endian length of the packet that follows.
var streamMarker = []byte{0x50, 0x50, 0x82, 0x7D}

const (
	frameEnvelope = 8 // marker + length word
	// maxPacketLen bounds a declared packet length; larger values are
	// treated as stream noise rather than trusted.
	maxPacketLen = 1 << 16
)

// EncodeFrame wraps a packet in the stream envelope.
func EncodeFrame(p Packet) []byte {
	pkt := EncodePacket(p)
	buf := make([]byte, frameEnvelope+len(pkt))
	copy(buf, streamMarker)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(pkt)))
	copy(buf[frameEnvelope:], pkt)
	return buf
}

// ExtractPacket scans buf for the next complete framed packet. It returns
// the decoded packet and the number of leading bytes consumed, including
// any noise skipped before the marker. ErrIncomplete means buf ends inside
// a frame (or a possible marker prefix); the caller keeps the unconsumed
// tail and retries with more input. A checksum failure consumes the whole
// bad frame so the scan can continue past it.
func ExtractPacket(buf []byte) (Packet, int, error) {
	start := indexMarker(buf)
	if start < 0 {
		// Keep up to three trailing bytes in case they begin a marker.
		keep := len(streamMarker) - 1
		if len(buf) < keep {
			keep = len(buf)
		}
		return Packet{}, len(buf) - keep, ErrIncomplete
	}
	if len(buf)-start < frameEnvelope {
		return Packet{}, start, ErrIncomplete
	}
	length := binary.LittleEndian.Uint32(buf[start+4 : start+8])
	if length < headerSize || length > maxPacketLen {
		// Not a real frame; step past the marker and rescan.
		return Packet{}, start + len(streamMarker), fmt.Errorf("declared length %d: %w", length, ErrFrameTooShort)
	}
	total := frameEnvelope + int(length)
	if len(buf)-start < total {
		return Packet{}, start, ErrIncomplete
	}
	p, err := DecodePacket(buf[start+frameEnvelope : start+total])
	if err != nil {
		return Packet{}, start + total, err
	}
	return p, start + total, nil
}

func indexMarker(buf []byte) int {
	for i := 0; i+len(streamMarker) <= len(buf); i++ {
		if buf[i] == streamMarker[0] &&
			buf[i+1] == streamMarker[1] &&
			buf[i+2] == streamMarker[2] &&
			buf[i+3] == streamMarker[3] {
			return i
		}
	}
	return -1
}
