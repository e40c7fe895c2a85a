package terminal

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/yousiff139-lang/LAS/internal/wire"
)

// TCPClient holds one session to one terminal. Instances are not shared
// across devices; a mutex serializes exchanges so a single request is in
// flight at a time and responses correlate by the next expected reply id.
type TCPClient struct {
	addr   string
	loc    *time.Location
	logger zerolog.Logger

	state atomic.Uint32

	mu        sync.Mutex
	conn      net.Conn
	sessionID uint16
	replyID   uint16
	rbuf      []byte
}

// NewTCPClient builds a client for one terminal address. The location
// interprets timestamps in fetched records.
func NewTCPClient(host string, port int, loc *time.Location, logger zerolog.Logger) *TCPClient {
	if loc == nil {
		loc = time.Local
	}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	return &TCPClient{
		addr:   addr,
		loc:    loc,
		logger: logger.With().Str("component", "tcp_terminal").Str("addr", addr).Logger(),
	}
}

// Connected reports whether a session is established.
func (c *TCPClient) Connected() bool {
	return c.state.Load() == stateConnected
}

// Connect dials the terminal and performs the session handshake: a CONNECT
// with session id zero, answered by an ACK_OK carrying the session id the
// terminal assigned. ErrConnectionTimeout when the device is unreachable
// or silent, ErrProtocol when it answers with an error acknowledgement.
func (c *TCPClient) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(stateDisconnected, stateConnecting) {
		return fmt.Errorf("connect attempted in state %d: %w", c.state.Load(), ErrProtocol)
	}

	dialer := net.Dialer{Timeout: ControlTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		c.state.Store(stateDisconnected)
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return fmt.Errorf("dial %s: %w", c.addr, ErrConnectionTimeout)
		}
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.sessionID = 0
	c.replyID = 0
	c.rbuf = nil
	c.mu.Unlock()

	resp, err := c.roundTrip(ctx, wire.CmdConnect, nil, ControlTimeout)
	if err != nil {
		c.teardown()
		return fmt.Errorf("handshake: %w", err)
	}
	if resp.Command != wire.CmdAckOK {
		c.teardown()
		return fmt.Errorf("handshake answered with command %d: %w", resp.Command, ErrProtocol)
	}

	c.mu.Lock()
	c.sessionID = resp.SessionID
	c.mu.Unlock()
	c.state.Store(stateConnected)
	c.logger.Debug().Uint16("session_id", resp.SessionID).Msg("session established")
	return nil
}

// Disconnect sends a best-effort EXIT and tears the transport down
// unconditionally. Safe to call in any state, including mid-failure.
func (c *TCPClient) Disconnect() {
	c.mu.Lock()
	if c.conn != nil && c.state.Load() == stateConnected {
		c.replyID++
		pkt := wire.Packet{Command: wire.CmdExit, SessionID: c.sessionID, ReplyID: c.replyID}
		_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		_, _ = c.conn.Write(wire.EncodeFrame(pkt))
	}
	c.mu.Unlock()
	c.teardown()
}

// FetchLogs retrieves the terminal's attendance log. Small logs arrive
// inline in the acknowledgement; larger ones are announced by PREPARE_DATA
// and streamed in DATA packets. On a mid-stream timeout the records parsed
// so far are returned together with the error.
func (c *TCPClient) FetchLogs(ctx context.Context) ([]wire.LogRecord, error) {
	if !c.Connected() {
		return nil, ErrNotConnected
	}
	resp, err := c.roundTrip(ctx, wire.CmdAttLogRead, nil, BulkTimeout)
	if err != nil {
		return nil, fmt.Errorf("attendance read: %w", err)
	}

	var raw []byte
	switch resp.Command {
	case wire.CmdAckOK, wire.CmdAckData:
		raw = resp.Payload
	case wire.CmdPrepareData:
		if len(resp.Payload) < 4 {
			return nil, fmt.Errorf("prepare announce of %d bytes: %w", len(resp.Payload), ErrProtocol)
		}
		total := binary.LittleEndian.Uint32(resp.Payload[:4])
		raw, err = c.readBulk(ctx, int(total))
		if err != nil {
			records, skipped := wire.ParseLogRecords(raw, c.loc)
			c.logger.Warn().Err(err).Int("records", len(records)).Int("skipped", skipped).Msg("bulk read truncated")
			return records, err
		}
	case wire.CmdAckError:
		return nil, fmt.Errorf("attendance read rejected: %w", ErrProtocol)
	default:
		return nil, fmt.Errorf("attendance read answered with command %d: %w", resp.Command, ErrProtocol)
	}

	records, skipped := wire.ParseLogRecords(raw, c.loc)
	if skipped > 0 {
		c.logger.Warn().Int("skipped", skipped).Msg("undecodable records in device log")
	}
	return records, nil
}

// FetchUsers retrieves the ids enrolled on the terminal. The reply payload
// is a sequence of 16-byte entries holding a NUL-padded id each.
func (c *TCPClient) FetchUsers(ctx context.Context) ([]string, error) {
	if !c.Connected() {
		return nil, ErrNotConnected
	}
	resp, err := c.roundTrip(ctx, wire.CmdUserRead, nil, BulkTimeout)
	if err != nil {
		return nil, fmt.Errorf("user read: %w", err)
	}
	if resp.Command != wire.CmdAckOK && resp.Command != wire.CmdAckData {
		return nil, fmt.Errorf("user read answered with command %d: %w", resp.Command, ErrProtocol)
	}

	const entrySize = 16
	var ids []string
	for off := 0; off+entrySize <= len(resp.Payload); off += entrySize {
		entry := resp.Payload[off : off+9]
		end := len(entry)
		for i, b := range entry {
			if b == 0 {
				end = i
				break
			}
		}
		if id := string(entry[:end]); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// DeviceTime asks the terminal for its clock, reported as a seconds offset
// from the record epoch.
func (c *TCPClient) DeviceTime(ctx context.Context) (time.Time, error) {
	if !c.Connected() {
		return time.Time{}, ErrNotConnected
	}
	resp, err := c.roundTrip(ctx, wire.CmdGetTime, nil, ControlTimeout)
	if err != nil {
		return time.Time{}, fmt.Errorf("time read: %w", err)
	}
	if resp.Command != wire.CmdAckOK || len(resp.Payload) < 4 {
		return time.Time{}, fmt.Errorf("time read answered with command %d: %w", resp.Command, ErrProtocol)
	}
	offset := binary.LittleEndian.Uint32(resp.Payload[:4])
	return wire.RecordEpoch(c.loc).Add(time.Duration(offset) * time.Second), nil
}

// ClearLogs erases the attendance log on the terminal.
func (c *TCPClient) ClearLogs(ctx context.Context) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	resp, err := c.roundTrip(ctx, wire.CmdClearAttLog, nil, ControlTimeout)
	if err != nil {
		return fmt.Errorf("clear log: %w", err)
	}
	if resp.Command != wire.CmdAckOK {
		return fmt.Errorf("clear log answered with command %d: %w", resp.Command, ErrProtocol)
	}
	return nil
}

// roundTrip sends one request and waits for the response bearing its reply
// id. Responses are assumed to arrive in request order; frames with an
// older reply id are stale and discarded.
func (c *TCPClient) roundTrip(ctx context.Context, cmd uint16, payload []byte, timeout time.Duration) (wire.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return wire.Packet{}, ErrNotConnected
	}

	if cmd != wire.CmdConnect {
		c.replyID++
	}
	expect := c.replyID

	pkt := wire.Packet{Command: cmd, SessionID: c.sessionID, ReplyID: expect, Payload: payload}
	deadline := exchangeDeadline(ctx, timeout)
	_ = c.conn.SetWriteDeadline(deadline)
	if _, err := c.conn.Write(wire.EncodeFrame(pkt)); err != nil {
		if isTimeout(err) {
			return wire.Packet{}, fmt.Errorf("write %d: %w", cmd, ErrConnectionTimeout)
		}
		return wire.Packet{}, fmt.Errorf("write %d: %w", cmd, err)
	}

	for {
		resp, err := c.nextPacket(ctx, deadline)
		if err != nil {
			return wire.Packet{}, err
		}
		if resp.ReplyID != expect {
			c.logger.Debug().Uint16("reply_id", resp.ReplyID).Uint16("expected", expect).Msg("discarding stale frame")
			continue
		}
		return resp, nil
	}
}

// readBulk assembles a PREPARE_DATA stream: DATA packets are concatenated
// until the announced total is reached, then the transfer is released with
// a FREE_DATA acknowledgement.
func (c *TCPClient) readBulk(ctx context.Context, total int) ([]byte, error) {
	deadline := exchangeDeadline(ctx, BulkTimeout)
	var data []byte
	for len(data) < total {
		pkt, err := c.nextPacket(ctx, deadline)
		if err != nil {
			return data, err
		}
		if pkt.Command != wire.CmdData {
			c.logger.Debug().Uint16("command", pkt.Command).Msg("discarding non-data frame mid-stream")
			continue
		}
		data = append(data, pkt.Payload...)
	}

	c.replyID++
	free := wire.Packet{Command: wire.CmdFreeData, SessionID: c.sessionID, ReplyID: c.replyID}
	_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, _ = c.conn.Write(wire.EncodeFrame(free))

	if len(data) > total {
		data = data[:total]
	}
	return data, nil
}

// nextPacket reads from the transport into the reassembly buffer until one
// whole frame can be extracted. Corrupt frames are logged and skipped.
func (c *TCPClient) nextPacket(ctx context.Context, deadline time.Time) (wire.Packet, error) {
	chunk := make([]byte, 4096)
	for {
		for {
			pkt, consumed, err := wire.ExtractPacket(c.rbuf)
			c.rbuf = c.rbuf[consumed:]
			if err == nil {
				return pkt, nil
			}
			if errors.Is(err, wire.ErrIncomplete) {
				break
			}
			c.logger.Warn().Err(err).Msg("dropping undecodable frame")
		}

		if err := ctx.Err(); err != nil {
			return wire.Packet{}, fmt.Errorf("exchange cancelled: %w", ErrConnectionTimeout)
		}
		_ = c.conn.SetReadDeadline(deadline)
		n, err := c.conn.Read(chunk)
		if n > 0 {
			c.rbuf = append(c.rbuf, chunk[:n]...)
			continue
		}
		if err != nil {
			if isTimeout(err) {
				return wire.Packet{}, ErrConnectionTimeout
			}
			return wire.Packet{}, fmt.Errorf("read: %w", err)
		}
	}
}

func (c *TCPClient) teardown() {
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.sessionID = 0
	c.rbuf = nil
	c.mu.Unlock()
	c.state.Store(stateDisconnected)
}

func exchangeDeadline(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
