package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yousiff139-lang/LAS/internal/wire"
)

func TestExtractPacketWholeFrame(t *testing.T) {
	frame := wire.EncodeFrame(wire.Packet{Command: wire.CmdAckOK, SessionID: 9, ReplyID: 3, Payload: []byte("ok")})

	p, consumed, err := wire.ExtractPacket(frame)
	require.NoError(t, err)
	require.Equal(t, len(frame), consumed)
	require.Equal(t, wire.CmdAckOK, p.Command)
	require.Equal(t, uint16(9), p.SessionID)
	require.Equal(t, []byte("ok"), p.Payload)
}

func TestExtractPacketAtEverySplitPoint(t *testing.T) {
	frame := wire.EncodeFrame(wire.Packet{Command: wire.CmdData, SessionID: 1, ReplyID: 7, Payload: []byte("chunked payload")})

	for split := 1; split < len(frame); split++ {
		buf := append([]byte{}, frame[:split]...)

		_, consumed, err := wire.ExtractPacket(buf)
		require.ErrorIs(t, err, wire.ErrIncomplete, "split at %d", split)
		buf = append(buf[consumed:], frame[split:]...)

		p, consumed, err := wire.ExtractPacket(buf)
		require.NoError(t, err, "split at %d", split)
		require.Equal(t, len(buf), consumed)
		require.Equal(t, []byte("chunked payload"), p.Payload)
	}
}

func TestExtractPacketSkipsLeadingNoise(t *testing.T) {
	noise := []byte{0x00, 0x11, 0x50, 0x50, 0x99}
	frame := wire.EncodeFrame(wire.Packet{Command: wire.CmdAckOK})
	buf := append(noise, frame...)

	p, consumed, err := wire.ExtractPacket(buf)
	require.NoError(t, err)
	require.Equal(t, len(buf), consumed)
	require.Equal(t, wire.CmdAckOK, p.Command)
}

func TestExtractPacketKeepsPossibleMarkerPrefix(t *testing.T) {
	buf := []byte{0xAA, 0xBB, 0x50, 0x50}

	_, consumed, err := wire.ExtractPacket(buf)
	require.ErrorIs(t, err, wire.ErrIncomplete)
	require.Equal(t, 1, consumed)
}

func TestExtractPacketBackToBackFrames(t *testing.T) {
	first := wire.EncodeFrame(wire.Packet{Command: wire.CmdPrepareData, ReplyID: 1})
	second := wire.EncodeFrame(wire.Packet{Command: wire.CmdData, ReplyID: 2, Payload: []byte("x")})
	buf := append(append([]byte{}, first...), second...)

	p1, consumed, err := wire.ExtractPacket(buf)
	require.NoError(t, err)
	require.Equal(t, wire.CmdPrepareData, p1.Command)

	p2, consumed2, err := wire.ExtractPacket(buf[consumed:])
	require.NoError(t, err)
	require.Equal(t, wire.CmdData, p2.Command)
	require.Equal(t, len(buf), consumed+consumed2)
}

func TestExtractPacketConsumesCorruptFrame(t *testing.T) {
	bad := wire.EncodeFrame(wire.Packet{Command: wire.CmdAckOK, ReplyID: 1})
	bad[len(bad)-1] ^= 0xFF
	good := wire.EncodeFrame(wire.Packet{Command: wire.CmdAckOK, ReplyID: 2})
	buf := append(bad, good...)

	_, consumed, err := wire.ExtractPacket(buf)
	require.ErrorIs(t, err, wire.ErrChecksum)
	require.Equal(t, len(bad), consumed)

	p, _, err := wire.ExtractPacket(buf[consumed:])
	require.NoError(t, err)
	require.Equal(t, uint16(2), p.ReplyID)
}
