package terminal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"github.com/yousiff139-lang/LAS/internal/wire"
)

// Serial command mnemonics. The legacy bus devices speak short ASCII
// commands; log records come back as `uid,offset,status` triplets joined
// by semicolons, with the same epoch offset and status values as the
// binary record format.
const (
	serialCmdAttLog = "ATTLOG"
	serialCmdTime   = "TIME"
	serialCmdClear  = "CLEAR"

	serialReadSlice = 200 * time.Millisecond
)

// SerialClient exchanges framed requests with one station on a shared
// RS485 bus. There is no session; the address in every frame targets the
// device. Instances are not shared across devices.
type SerialClient struct {
	portName string
	address  byte
	mode     *serial.Mode
	loc      *time.Location
	logger   zerolog.Logger

	open func() (serial.Port, error)

	mu   sync.Mutex
	port serial.Port
	rbuf []byte
}

// NewSerialClient builds a client for one station. Baud rate zero falls
// back to 9600 8N1, the factory configuration of the terminals.
func NewSerialClient(portName string, address int, baudRate int, loc *time.Location, logger zerolog.Logger) *SerialClient {
	if baudRate == 0 {
		baudRate = 9600
	}
	if loc == nil {
		loc = time.Local
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	c := &SerialClient{
		portName: portName,
		address:  byte(address),
		mode:     mode,
		loc:      loc,
		logger:   logger.With().Str("component", "serial_terminal").Str("port", portName).Int("address", address).Logger(),
	}
	c.open = func() (serial.Port, error) { return serial.Open(portName, mode) }
	return c
}

// Open claims the serial port. The short read timeout keeps the receive
// loop responsive to the per-exchange deadline.
func (c *SerialClient) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port != nil {
		return nil
	}
	port, err := c.open()
	if err != nil {
		return fmt.Errorf("open %s: %w", c.portName, err)
	}
	if err := port.SetReadTimeout(serialReadSlice); err != nil {
		_ = port.Close()
		return fmt.Errorf("configure %s: %w", c.portName, err)
	}
	c.port = port
	c.rbuf = nil
	return nil
}

// Close releases the port; safe to call repeatedly.
func (c *SerialClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port != nil {
		_ = c.port.Close()
		c.port = nil
	}
	c.rbuf = nil
}

// FetchLogs asks the station for its attendance log.
func (c *SerialClient) FetchLogs(ctx context.Context) ([]wire.LogRecord, error) {
	payload, err := c.sendCommand(ctx, []byte(serialCmdAttLog))
	if err != nil {
		return nil, fmt.Errorf("attendance read: %w", err)
	}
	return c.parseLogPayload(string(payload)), nil
}

// DeviceTime asks the station for its clock.
func (c *SerialClient) DeviceTime(ctx context.Context) (time.Time, error) {
	payload, err := c.sendCommand(ctx, []byte(serialCmdTime))
	if err != nil {
		return time.Time{}, fmt.Errorf("time read: %w", err)
	}
	offset, err := strconv.ParseUint(strings.TrimSpace(string(payload)), 10, 32)
	if err != nil {
		return time.Time{}, fmt.Errorf("time payload %q: %w", payload, ErrProtocol)
	}
	return wire.RecordEpoch(c.loc).Add(time.Duration(offset) * time.Second), nil
}

// ClearLogs erases the station's attendance log.
func (c *SerialClient) ClearLogs(ctx context.Context) error {
	payload, err := c.sendCommand(ctx, []byte(serialCmdClear))
	if err != nil {
		return fmt.Errorf("clear log: %w", err)
	}
	if strings.TrimSpace(string(payload)) != "OK" {
		return fmt.Errorf("clear answered %q: %w", payload, ErrProtocol)
	}
	return nil
}

// sendCommand writes one framed request and waits for the next
// CR-terminated frame echoing this client's address. Frames addressed to
// other stations are ignored; the whole exchange is bounded by the serial
// timeout.
func (c *SerialClient) sendCommand(ctx context.Context, command []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.port == nil {
		return nil, ErrNotConnected
	}

	if _, err := c.port.Write(wire.EncodeSerialFrame(c.address, command)); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	deadline := exchangeDeadline(ctx, SerialTimeout)
	chunk := make([]byte, 256)
	for {
		for {
			frame, consumed, err := wire.ExtractSerialFrame(c.rbuf)
			c.rbuf = c.rbuf[consumed:]
			if errors.Is(err, wire.ErrIncomplete) {
				break
			}
			if err != nil {
				c.logger.Warn().Err(err).Msg("dropping undecodable serial frame")
				continue
			}
			if frame.Address != c.address {
				c.logger.Debug().Uint8("address", frame.Address).Msg("ignoring frame for another station")
				continue
			}
			return frame.Command, nil
		}

		if ctx.Err() != nil || time.Now().After(deadline) {
			return nil, ErrConnectionTimeout
		}
		n, err := c.port.Read(chunk)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		if n > 0 {
			c.rbuf = append(c.rbuf, chunk[:n]...)
		}
	}
}

func (c *SerialClient) parseLogPayload(payload string) []wire.LogRecord {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}
	var records []wire.LogRecord
	for _, entry := range strings.Split(payload, ";") {
		parts := strings.Split(strings.TrimSpace(entry), ",")
		if len(parts) != 3 {
			c.logger.Warn().Str("entry", entry).Msg("skipping malformed log entry")
			continue
		}
		offset, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil || offset == 0 || parts[0] == "" {
			c.logger.Warn().Str("entry", entry).Msg("skipping malformed log entry")
			continue
		}
		status, err := strconv.ParseUint(parts[2], 10, 8)
		if err != nil {
			status = 0
		}
		records = append(records, wire.LogRecord{
			UserID:    parts[0],
			Timestamp: wire.RecordEpoch(c.loc).Add(time.Duration(offset) * time.Second),
			Status:    byte(status),
		})
	}
	return records
}

// ListSerialPorts enumerates the serial transports available on the host.
// A capability query only; nothing is opened.
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}
