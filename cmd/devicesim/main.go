// Command devicesim runs a fake biometric terminal: a TCP listener that
// speaks the device protocol from the terminal's side. It seeds a
// configurable attendance log and answers the session, log retrieval and
// clear commands, so the sync pipeline can be exercised end to end without
// hardware.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/yousiff139-lang/LAS/internal/wire"
)

const (
	idleTimeout  = 2 * time.Minute
	writeTimeout = 5 * time.Second
)

func main() {
	var (
		addr      = flag.String("addr", ":4370", "listen address")
		users     = flag.String("users", "1042,1043,2001", "comma separated biometric user ids enrolled on the terminal")
		records   = flag.Int("records", 48, "number of log records to seed at startup")
		span      = flag.Duration("span", 4*time.Hour, "period the seeded records spread over, ending now")
		inlineMax = flag.Int("inline-max", 1024, "largest log payload answered inline instead of streamed")
		chunkSize = flag.Int("chunk", 960, "payload bytes per DATA packet when streaming")
		churn     = flag.Duration("churn", 0, "interval between freshly generated records; 0 disables")
		tz        = flag.String("tz", "Local", "IANA timezone the terminal clock runs in")
		verbose   = flag.Bool("verbose", false, "enable debug logging")
	)
	flag.Parse()

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		log.Fatalf("failed to load timezone: %v", err)
	}

	ids := splitUsers(*users)
	if len(ids) == 0 {
		log.Fatalf("at least one user id is required")
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Str("component", "devicesim").Logger()

	sim := &simulator{
		loc:       loc,
		inlineMax: *inlineMax,
		chunkSize: *chunkSize,
		logger:    logger,
	}
	sim.seed(ids, *records, *span)

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", *addr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *churn > 0 {
		go sim.generate(ctx, *churn)
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	logger.Info().
		Str("addr", ln.Addr().String()).
		Int("records", *records).
		Str("timezone", loc.String()).
		Msg("terminal simulator listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Warn().Err(err).Msg("accept failed")
			continue
		}
		go sim.handleConn(conn)
	}

	logger.Info().Msg("terminal simulator stopped")
}

func splitUsers(list string) []string {
	var ids []string
	for _, part := range strings.Split(list, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// simulator holds the terminal's fake state: the enrolled users and the
// attendance log served to clients. One instance backs every connection,
// so a clear issued by one client empties the log for all of them.
type simulator struct {
	loc       *time.Location
	inlineMax int
	chunkSize int
	logger    zerolog.Logger

	sessions atomic.Uint32

	mu      sync.Mutex
	users   []string
	records []wire.LogRecord
}

// seed fills the log with records spread evenly over the span, ending now.
// Most entries are fingerprint scans with the occasional card and face
// event mixed in.
func (s *simulator) seed(users []string, n int, span time.Duration) {
	recs := make([]wire.LogRecord, 0, n)
	if n > 0 {
		step := span / time.Duration(n)
		start := time.Now().In(s.loc).Add(-span)
		for i := 0; i < n; i++ {
			modality := "fingerprint"
			switch {
			case i%8 == 5:
				modality = "face"
			case i%5 == 2:
				modality = "card"
			}
			recs = append(recs, wire.LogRecord{
				UserID:    users[i%len(users)],
				Timestamp: start.Add(time.Duration(i) * step),
				Status:    wire.StatusFromModality(modality),
			})
		}
	}
	s.mu.Lock()
	s.users = users
	s.records = recs
	s.mu.Unlock()
}

// generate appends one fresh fingerprint record per tick, cycling through
// the enrolled users, so repeated syncs keep finding new scans.
func (s *simulator) generate(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	i := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			user := s.users[i%len(s.users)]
			s.records = append(s.records, wire.LogRecord{
				UserID:    user,
				Timestamp: time.Now().In(s.loc),
				Status:    wire.StatusFromModality("fingerprint"),
			})
			pending := len(s.records)
			s.mu.Unlock()
			i++
			s.logger.Debug().Str("user_id", user).Int("pending", pending).Msg("generated scan")
		}
	}
}

func (s *simulator) snapshotLog() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, 0, len(s.records)*wire.RecordSize)
	for _, rec := range s.records {
		buf = append(buf, wire.EncodeLogRecord(rec, s.loc)...)
	}
	return buf
}

func (s *simulator) clearLog() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	s.records = nil
	return n
}

// userPayload builds the USER_READ reply: one 16-byte entry per enrolled
// id, the id NUL-padded in the first nine bytes.
func (s *simulator) userPayload() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, 0, len(s.users)*16)
	for _, id := range s.users {
		entry := make([]byte, 16)
		if len(id) > 9 {
			id = id[:9]
		}
		copy(entry, id)
		buf = append(buf, entry...)
	}
	return buf
}

// session is the per-connection protocol state.
type session struct {
	conn net.Conn
	id   uint16
}

// handleConn reads framed packets off one connection and answers them
// until the client exits, the connection drops, or it idles out.
func (s *simulator) handleConn(conn net.Conn) {
	defer conn.Close()
	logger := s.logger.With().Str("remote", conn.RemoteAddr().String()).Logger()

	sess := &session{conn: conn}
	var rbuf []byte
	chunk := make([]byte, 4096)
	for {
		pkt, consumed, err := wire.ExtractPacket(rbuf)
		rbuf = rbuf[consumed:]
		if err == nil {
			if done := s.dispatch(sess, pkt, logger); done {
				return
			}
			continue
		}
		if !errors.Is(err, wire.ErrIncomplete) {
			logger.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		n, rerr := conn.Read(chunk)
		if n > 0 {
			rbuf = append(rbuf, chunk[:n]...)
			continue
		}
		if rerr != nil {
			if !errors.Is(rerr, io.EOF) {
				logger.Debug().Err(rerr).Msg("connection closed")
			}
			return
		}
	}
}

// dispatch answers one request. The returned flag is true when the client
// asked to close the session.
func (s *simulator) dispatch(sess *session, req wire.Packet, logger zerolog.Logger) bool {
	switch req.Command {
	case wire.CmdConnect:
		sess.id = uint16(s.sessions.Add(1))
		s.send(sess, reply(wire.CmdAckOK, req, nil))
		logger.Info().Uint16("session_id", sess.id).Msg("session opened")
	case wire.CmdExit:
		s.send(sess, reply(wire.CmdAckOK, req, nil))
		logger.Info().Msg("session closed")
		return true
	case wire.CmdEnableDevice, wire.CmdDisableDevice, wire.CmdSetTime:
		s.send(sess, reply(wire.CmdAckOK, req, nil))
	case wire.CmdGetTime:
		offset := make([]byte, 4)
		binary.LittleEndian.PutUint32(offset, uint32(time.Since(wire.RecordEpoch(s.loc))/time.Second))
		s.send(sess, reply(wire.CmdAckOK, req, offset))
	case wire.CmdUserRead:
		s.send(sess, reply(wire.CmdAckOK, req, s.userPayload()))
	case wire.CmdAttLogRead:
		s.sendLog(sess, req, logger)
	case wire.CmdFreeData:
		s.send(sess, reply(wire.CmdAckOK, req, nil))
	case wire.CmdClearAttLog:
		cleared := s.clearLog()
		s.send(sess, reply(wire.CmdAckOK, req, nil))
		logger.Info().Int("cleared", cleared).Msg("attendance log cleared")
	default:
		logger.Warn().Uint16("command", req.Command).Msg("unsupported command")
		s.send(sess, reply(wire.CmdAckError, req, nil))
	}
	return false
}

// sendLog serves the attendance log the way terminals do: small payloads
// ride inline in the acknowledgement, larger ones are announced with
// PREPARE_DATA and streamed in fixed-size DATA packets.
func (s *simulator) sendLog(sess *session, req wire.Packet, logger zerolog.Logger) {
	payload := s.snapshotLog()
	if len(payload) <= s.inlineMax {
		s.send(sess, reply(wire.CmdAckOK, req, payload))
		logger.Debug().Int("bytes", len(payload)).Msg("log served inline")
		return
	}

	announce := make([]byte, 4)
	binary.LittleEndian.PutUint32(announce, uint32(len(payload)))
	s.send(sess, reply(wire.CmdPrepareData, req, announce))
	for off := 0; off < len(payload); off += s.chunkSize {
		end := off + s.chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		s.send(sess, reply(wire.CmdData, req, payload[off:end]))
	}
	logger.Debug().Int("bytes", len(payload)).Msg("log streamed")
}

func reply(cmd uint16, req wire.Packet, payload []byte) wire.Packet {
	return wire.Packet{Command: cmd, ReplyID: req.ReplyID, Payload: payload}
}

func (s *simulator) send(sess *session, pkt wire.Packet) {
	pkt.SessionID = sess.id
	_ = sess.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := sess.conn.Write(wire.EncodeFrame(pkt)); err != nil {
		s.logger.Debug().Err(err).Msg("write failed")
	}
}
