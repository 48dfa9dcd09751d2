package cases

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ogulcanaydogan/llm-audit-gate/internal/auditerr"
	"github.com/ogulcanaydogan/llm-audit-gate/internal/detector"
)

var errNoHeader = errors.New("csv has no header row")

// CSVColumn reads one named column of a CSV file into a Single source whose
// input is the column encoded with detector.EncodeLabels.
func CSVColumn(path, column string) (Single, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Single{}, auditerr.Load(path, err)
	}
	defer fh.Close()

	values, err := readColumn(fh, column)
	if err != nil {
		return Single{}, auditerr.Load(path, err)
	}
	input, err := detector.EncodeLabels(values)
	if err != nil {
		return Single{}, auditerr.Load(path, err)
	}
	return Single{
		Input:    input,
		Metadata: map[string]any{"path": path, "column": column, "rows": len(values)},
	}, nil
}

func readColumn(r io.Reader, column string) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := -1
	for i, h := range header {
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found", column)
	}

	values := []string{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if idx >= len(rec) {
			continue
		}
		values = append(values, rec[idx])
	}
	return values, nil
}
