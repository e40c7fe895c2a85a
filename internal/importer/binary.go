package importer

import (
	"github.com/yousiff139-lang/LAS/internal/models"
	"github.com/yousiff139-lang/LAS/internal/wire"
)

func (im *Importer) parseBinary(data []byte) (Result, error) {
	records, skipped := wire.ParseLogRecords(data, im.loc)
	result := Result{Format: FormatBinary, Skipped: skipped}
	for _, rec := range records {
		result.Events = append(result.Events, models.ScanEvent{
			BiometricUserID: rec.UserID,
			Timestamp:       rec.Timestamp,
			Modality:        wire.ModalityFromStatus(rec.Status),
			Origin:          models.OriginImport,
		})
	}
	return result, nil
}
