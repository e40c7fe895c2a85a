package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/yousiff139-lang/LAS/internal/models"
)

func (im *Importer) parseCSV(data []byte) (Result, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return Result{}, fmt.Errorf("csv header: %w", ErrFormat)
	}

	cols, err := discoverColumns(header)
	if err != nil {
		return Result{}, err
	}

	result := Result{Format: FormatCSV}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped++
			continue
		}
		event, ok := im.parseCSVRow(row, cols)
		if !ok {
			result.Skipped++
			continue
		}
		result.Events = append(result.Events, event)
	}
	return result, nil
}

type csvColumns struct {
	user     int
	time     int
	modality int
}

// discoverColumns finds the layout by fuzzy header match: the user column
// is the first containing "user" (else "id"), the time column the first
// containing "time" (else "date"), the optional modality column the first
// containing "event" or "type". No user or time column fails the file.
func discoverColumns(header []string) (csvColumns, error) {
	cols := csvColumns{user: -1, time: -1, modality: -1}
	lowered := make([]string, len(header))
	for i, h := range header {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}

	find := func(taken []int, terms ...string) int {
		for _, term := range terms {
			for i, h := range lowered {
				if claimed(taken, i) || !strings.Contains(h, term) {
					continue
				}
				return i
			}
		}
		return -1
	}

	cols.user = find(nil, "user", "id")
	cols.time = find([]int{cols.user}, "time", "date")
	cols.modality = find([]int{cols.user, cols.time}, "event", "type")

	if cols.user < 0 || cols.time < 0 {
		return cols, fmt.Errorf("csv needs a user and a time column: %w", ErrFormat)
	}
	return cols, nil
}

func claimed(taken []int, i int) bool {
	for _, t := range taken {
		if t == i {
			return true
		}
	}
	return false
}

func (im *Importer) parseCSVRow(row []string, cols csvColumns) (models.ScanEvent, bool) {
	if cols.user >= len(row) || cols.time >= len(row) {
		return models.ScanEvent{}, false
	}
	userID := strings.TrimSpace(row[cols.user])
	if userID == "" {
		return models.ScanEvent{}, false
	}
	ts, ok := im.parseTimestamp(strings.TrimSpace(row[cols.time]))
	if !ok {
		return models.ScanEvent{}, false
	}
	event := models.ScanEvent{
		BiometricUserID: userID,
		Timestamp:       ts,
		Modality:        models.ModalityFingerprint,
		Origin:          models.OriginImport,
	}
	if cols.modality >= 0 && cols.modality < len(row) {
		event.Modality = parseModality(row[cols.modality])
	}
	return event, true
}
