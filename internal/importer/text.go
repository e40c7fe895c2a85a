package importer

import (
	"strings"

	"github.com/yousiff139-lang/LAS/internal/models"
)

func (im *Importer) parseText(data []byte) (Result, error) {
	result := Result{Format: FormatText}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		event, ok := im.parseTextLine(line)
		if !ok {
			result.Skipped++
			continue
		}
		result.Events = append(result.Events, event)
	}
	return result, nil
}

// parseTextLine splits on tabs first and falls back to whitespace. Rows
// carry 2 to 4 columns: user id, a timestamp (possibly split into date and
// clock columns), and an optional modality.
func (im *Importer) parseTextLine(line string) (models.ScanEvent, bool) {
	fields := strings.Split(line, "\t")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) < 2 {
		fields = strings.Fields(line)
	}

	if len(fields) < 2 || len(fields) > 4 || fields[0] == "" {
		return models.ScanEvent{}, false
	}

	event := models.ScanEvent{
		BiometricUserID: fields[0],
		Modality:        models.ModalityFingerprint,
		Origin:          models.OriginImport,
	}

	switch len(fields) {
	case 2:
		ts, ok := im.parseTimestamp(fields[1])
		if !ok {
			return models.ScanEvent{}, false
		}
		event.Timestamp = ts
	case 3:
		if ts, ok := im.parseTimestamp(fields[1]); ok {
			event.Timestamp = ts
			event.Modality = parseModality(fields[2])
			break
		}
		ts, ok := im.parseDateAndClock(fields[1], fields[2])
		if !ok {
			return models.ScanEvent{}, false
		}
		event.Timestamp = ts
	case 4:
		ts, ok := im.parseDateAndClock(fields[1], fields[2])
		if !ok {
			return models.ScanEvent{}, false
		}
		event.Timestamp = ts
		event.Modality = parseModality(fields[3])
	}
	return event, true
}
