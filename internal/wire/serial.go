package wire

import "fmt"

// SerialTerminator ends every serial frame.
const SerialTerminator = 0x0D

// serial frame: [address][command bytes][checksum][CR]; the checksum is
// the 8-bit truncated sum of the command bytes only.
const serialOverhead = 3

// SerialFrame is one decoded serial exchange unit. Address is the RS485
// station the frame targets or originates from.
type SerialFrame struct {
	Address byte
	Command []byte
}

// SerialChecksum sums the command bytes, truncated to eight bits.
func SerialChecksum(command []byte) byte {
	var sum byte
	for _, b := range command {
		sum += b
	}
	return sum
}

// EncodeSerialFrame frames command bytes for the addressed station.
func EncodeSerialFrame(address byte, command []byte) []byte {
	buf := make([]byte, 0, len(command)+serialOverhead)
	buf = append(buf, address)
	buf = append(buf, command...)
	buf = append(buf, SerialChecksum(command), SerialTerminator)
	return buf
}

// ExtractSerialFrame scans buf for the next CR-terminated frame. It
// returns the decoded frame and the bytes consumed. ErrIncomplete means no
// terminator has arrived yet and the whole buffer should be kept. A frame
// that is too short or fails its checksum is consumed and reported so the
// caller can continue past it.
func ExtractSerialFrame(buf []byte) (SerialFrame, int, error) {
	term := -1
	for i, b := range buf {
		if b == SerialTerminator {
			term = i
			break
		}
	}
	if term < 0 {
		return SerialFrame{}, 0, ErrIncomplete
	}
	consumed := term + 1
	if consumed < serialOverhead {
		return SerialFrame{}, consumed, fmt.Errorf("serial frame of %d bytes: %w", consumed, ErrFrameTooShort)
	}
	command := make([]byte, term-2)
	copy(command, buf[1:term-1])
	if got := SerialChecksum(command); got != buf[term-1] {
		return SerialFrame{}, consumed, fmt.Errorf("computed %#02x, frame carries %#02x: %w", got, buf[term-1], ErrChecksum)
	}
	return SerialFrame{Address: buf[0], Command: command}, consumed, nil
}
