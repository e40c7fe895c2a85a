// Package importer parses offline attendance log dumps into normalized
// scan events. Three encodings are supported: the terminals' fixed-size
// binary records, delimited text, and CSV with header-driven column
// discovery. Parsing is lenient per record and strict per file only where
// no sane default layout exists.
package importer

import (
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/wire"
)

// Format identifies a supported file encoding.
type Format string

const (
	FormatBinary Format = "binary"
	FormatText   Format = "text"
	FormatCSV    Format = "csv"
)

// ErrFormat signals a file whose structure cannot be interpreted at all,
// as opposed to individually skippable records.
var ErrFormat = errors.New("unrecognized or structurally invalid file")

// Result carries the normalized events recovered from one file together
// with the per-record skip count for the operator-facing summary.
type Result struct {
	Format  Format
	Events  []models.ScanEvent
	Skipped int
}

// Importer converts log dumps into scan events. The location interprets
// naive timestamps and the binary record epoch.
type Importer struct {
	loc *time.Location
}

// New creates an importer anchored to the given location. A nil location
// falls back to the process-local one.
func New(loc *time.Location) *Importer {
	if loc == nil {
		loc = time.Local
	}
	return &Importer{loc: loc}
}

// DetectFormat picks the encoding from the filename extension, falling
// back to content sniffing when the extension is missing or unknown.
func DetectFormat(filename string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".dat":
		return FormatBinary
	case ".txt", ".log":
		return FormatText
	case ".csv":
		return FormatCSV
	}
	mtype := mimetype.Detect(data)
	switch {
	case mtype.Is("text/csv"):
		return FormatCSV
	case strings.HasPrefix(mtype.String(), "text/"):
		return FormatText
	default:
		return FormatBinary
	}
}

// Parse decodes one file into scan events. Individual bad records are
// skipped and counted; only structural failures abort the file.
func (im *Importer) Parse(data []byte, filename string) (Result, error) {
	format := DetectFormat(filename, data)
	switch format {
	case FormatBinary:
		return im.parseBinary(data)
	case FormatCSV:
		return im.parseCSV(data)
	default:
		return im.parseText(data)
	}
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	time.RFC3339,
}

var dateLayouts = []string{"2006-01-02", "2006/01/02"}

var clockLayouts = []string{"15:04:05", "15:04"}

func (im *Importer) parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, im.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (im *Importer) parseDateAndClock(date, clock string) (time.Time, bool) {
	var day time.Time
	ok := false
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, date, im.loc); err == nil {
			day, ok = t, true
			break
		}
	}
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, clock); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(),
				t.Hour(), t.Minute(), t.Second(), 0, im.loc), true
		}
	}
	return time.Time{}, false
}

// parseModality accepts either a terminal status byte in decimal or a
// modality word; anything unrecognized falls back to fingerprint.
func parseModality(field string) string {
	field = strings.ToLower(strings.TrimSpace(field))
	if field == "" {
		return models.ModalityFingerprint
	}
	if n, err := strconv.Atoi(field); err == nil && n >= 0 && n <= 255 {
		return wire.ModalityFromStatus(byte(n))
	}
	switch {
	case strings.HasPrefix(field, "finger"):
		return models.ModalityFingerprint
	case field == "face":
		return models.ModalityFace
	case field == "card":
		return models.ModalityCard
	default:
		return models.ModalityFingerprint
	}
}
