// Package source reads record batches from files. The engine only sees the
// resulting field maps; the original encoding is this package's concern.
package source

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/damian-dev1/freight-matrix-hn/errors"
	"github.com/damian-dev1/freight-matrix-hn/ingest"
)

// Batch is one finite, ordered batch of raw records plus the opaque source
// descriptor recorded on the run ledger.
type Batch struct {
	Name    string
	Records []ingest.RawRecord
}

// ReadFile loads a batch from path, dispatching on the file extension.
// Supported: .csv, .json (array of objects), .ndjson / .jsonl.
func ReadFile(path string) (*Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open source file %s", path)
	}
	defer f.Close()

	name := filepath.Base(path)
	var records []ingest.RawRecord

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		records, err = readCSV(f)
	case ".json":
		records, err = readJSON(f)
	case ".ndjson", ".jsonl":
		records, err = readNDJSON(f)
	default:
		return nil, errors.NewInvalidRequestError("unsupported source format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}

	return &Batch{Name: name, Records: records}, nil
}

func readCSV(r io.Reader) ([]ingest.RawRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header row")
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var records []ingest.RawRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read row")
		}
		rec := make(ingest.RawRecord, len(header))
		for i, value := range row {
			if i < len(header) {
				rec[header[i]] = value
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func readJSON(r io.Reader) ([]ingest.RawRecord, error) {
	var rows []map[string]any
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, errors.Wrap(err, "decode json array")
	}

	records := make([]ingest.RawRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, toRecord(row))
	}
	return records, nil
}

func readNDJSON(r io.Reader) ([]ingest.RawRecord, error) {
	var records []ingest.RawRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			return nil, errors.Wrapf(err, "decode line %d", line)
		}
		records = append(records, toRecord(row))
	}
	return records, scanner.Err()
}

// toRecord flattens a decoded JSON object into string fields. Keys are
// lowercased to line up with the alias tables in the ingest package.
func toRecord(row map[string]any) ingest.RawRecord {
	rec := make(ingest.RawRecord, len(row))
	for key, value := range row {
		key = strings.ToLower(strings.TrimSpace(key))
		switch v := value.(type) {
		case string:
			rec[key] = v
		case nil:
			rec[key] = ""
		case float64:
			rec[key] = trimFloat(v)
		case bool:
			rec[key] = fmt.Sprintf("%t", v)
		default:
			b, _ := json.Marshal(v)
			rec[key] = string(b)
		}
	}
	return rec
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
