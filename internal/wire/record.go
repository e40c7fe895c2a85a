package wire

import (
	"bytes"
	"encoding/binary"
	"time"
)

// RecordSize is the fixed length of one attendance log record, as stored
// on the terminals and in their .dat dumps.
const RecordSize = 40

// Record layout: [0:9) user id (ASCII, NUL-padded), [9] status byte,
// [10:14) u32 little-endian seconds offset from the record epoch, the rest
// reserved.
const (
	recordUserIDLen     = 9
	recordStatusOffset  = 9
	recordSecondsOffset = 10
)

// Status byte values reported by the terminals.
const (
	statusFingerprint  byte = 0
	statusFingerprint2 byte = 1
	statusFace         byte = 2
	statusCard         byte = 3
	statusCard2        byte = 4
	statusFace2        byte = 15
)

// LogRecord is one decoded attendance log entry.
type LogRecord struct {
	UserID    string
	Timestamp time.Time
	Status    byte
}

// RecordEpoch returns the instant offsets count from: 2000-01-01 00:00:00
// in the interpreting location.
func RecordEpoch(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(2000, time.January, 1, 0, 0, 0, 0, loc)
}

// ModalityFromStatus maps a terminal status byte to a scan modality name.
// Unknown values fall back to fingerprint, matching terminal behaviour.
func ModalityFromStatus(status byte) string {
	switch status {
	case statusFace, statusFace2:
		return "face"
	case statusCard, statusCard2:
		return "card"
	default:
		return "fingerprint"
	}
}

// StatusFromModality is the reverse mapping, used when re-encoding records.
func StatusFromModality(modality string) byte {
	switch modality {
	case "face":
		return statusFace
	case "card":
		return statusCard
	default:
		return statusFingerprint2
	}
}

// DecodeLogRecord decodes one fixed-size record. ok is false for records
// that should be skipped: short slices, an empty user id, or a zero
// timestamp offset.
func DecodeLogRecord(rec []byte, loc *time.Location) (LogRecord, bool) {
	if len(rec) < RecordSize {
		return LogRecord{}, false
	}
	uid := rec[:recordUserIDLen]
	if i := bytes.IndexByte(uid, 0); i >= 0 {
		uid = uid[:i]
	}
	userID := string(bytes.TrimSpace(uid))
	if userID == "" {
		return LogRecord{}, false
	}
	offset := binary.LittleEndian.Uint32(rec[recordSecondsOffset : recordSecondsOffset+4])
	if offset == 0 {
		return LogRecord{}, false
	}
	return LogRecord{
		UserID:    userID,
		Timestamp: RecordEpoch(loc).Add(time.Duration(offset) * time.Second),
		Status:    rec[recordStatusOffset],
	}, true
}

// ParseLogRecords walks a buffer of fixed-size records, returning the
// decoded entries and the number of records skipped. A trailing partial
// record counts as skipped; one bad record never aborts the buffer.
func ParseLogRecords(data []byte, loc *time.Location) ([]LogRecord, int) {
	var (
		records []LogRecord
		skipped int
	)
	for off := 0; off < len(data); off += RecordSize {
		end := off + RecordSize
		if end > len(data) {
			skipped++
			break
		}
		rec, ok := DecodeLogRecord(data[off:end], loc)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}

// EncodeLogRecord builds the fixed-size image of one record. User ids
// longer than the field are truncated.
func EncodeLogRecord(r LogRecord, loc *time.Location) []byte {
	buf := make([]byte, RecordSize)
	uid := []byte(r.UserID)
	if len(uid) > recordUserIDLen {
		uid = uid[:recordUserIDLen]
	}
	copy(buf, uid)
	buf[recordStatusOffset] = r.Status
	offset := r.Timestamp.Sub(RecordEpoch(loc)) / time.Second
	if offset > 0 {
		binary.LittleEndian.PutUint32(buf[recordSecondsOffset:], uint32(offset))
	}
	return buf
}
