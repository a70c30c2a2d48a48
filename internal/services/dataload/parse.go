package dataload

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"StockPredictor/internal/domain/models"
	"StockPredictor/pkg/util"
)

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// column aliases, matched case-insensitively
var (
	dateKeys   = []string{"date"}
	priceKeys  = []string{"price", "close"}
	volumeKeys = []string{"volume"}
	openKeys   = []string{"open"}
	highKeys   = []string{"high"}
	lowKeys    = []string{"low"}
	closeKeys  = []string{"close"}
)

// FormatOf maps a file name to its format by extension.
func FormatOf(name string) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", ErrParse, filepath.Ext(name))
	}
}

// Parse decodes a payload in the given format.
func Parse(format string, data []byte) ([]models.HistoricalPoint, error) {
	switch format {
	case FormatCSV:
		return ParseCSV(bytes.NewReader(data))
	case FormatJSON:
		return ParseJSON(data)
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrParse, format)
	}
}

// ParseCSV reads a header line then one point per non-blank line.
func ParseCSV(r io.Reader) ([]models.HistoricalPoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrParse)
		}
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var out []models.HistoricalPoint
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrParse, line, err)
		}
		if blank(rec) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			}
		}
		p, err := pointFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrParse, line, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ParseJSON reads an array of objects; numeric fields may be numbers or numeric strings.
func ParseJSON(data []byte) ([]models.HistoricalPoint, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	out := make([]models.HistoricalPoint, 0, len(items))
	for i, item := range items {
		row := make(map[string]string, len(item))
		for k, raw := range item {
			row[strings.ToLower(k)] = rawText(raw)
		}
		p, err := pointFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %w", ErrParse, i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func pointFromRow(row map[string]string) (models.HistoricalPoint, error) {
	ds := lookup(row, dateKeys)
	date, ok := util.ParseDate(ds)
	if !ok {
		return models.HistoricalPoint{}, fmt.Errorf("invalid date %q", ds)
	}
	return models.HistoricalPoint{
		Date:   date,
		Price:  util.ParseFloatNaN(lookup(row, priceKeys)),
		Volume: util.ParseVolume(lookup(row, volumeKeys)),
		Open:   optional(lookup(row, openKeys)),
		High:   optional(lookup(row, highKeys)),
		Low:    optional(lookup(row, lowKeys)),
		Close:  optional(lookup(row, closeKeys)),
	}, nil
}

// lookup returns the first non-empty value among keys.
func lookup(row map[string]string, keys []string) string {
	for _, k := range keys {
		if v := row[k]; v != "" {
			return v
		}
	}
	return ""
}

func optional(s string) *float64 {
	if s == "" {
		return nil
	}
	v := util.ParseFloatNaN(s)
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
