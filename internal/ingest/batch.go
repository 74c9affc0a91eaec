package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/civicworks/ada-audit/internal/model"
)

// ReadBatch loads a detection batch from path, picking the parser by
// file extension. JSON batches carry their own label; the label argument
// only applies to XLSX workbooks, which have nowhere to store one.
func ReadBatch(path, label string) (model.Batch, error) {
	var (
		batch model.Batch
		err   error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		batch, err = BatchFromXLSX(path, label)
	case ".json":
		batch, err = BatchFromJSON(path)
	default:
		return model.Batch{}, eris.Errorf("ingest: unsupported batch format %q", ext)
	}
	if err != nil {
		return model.Batch{}, err
	}

	if len(batch.Detections) == 0 {
		return model.Batch{}, eris.New("ingest: detection batch is empty")
	}
	return batch, nil
}

// BatchFromJSON reads a detection batch from a JSON export.
func BatchFromJSON(path string) (model.Batch, error) {
	var batch model.Batch

	data, err := os.ReadFile(path)
	if err != nil {
		return batch, eris.Wrap(err, "ingest: read batch")
	}
	if err := json.Unmarshal(data, &batch); err != nil {
		return batch, eris.Wrap(err, "ingest: parse batch")
	}
	return batch, nil
}
