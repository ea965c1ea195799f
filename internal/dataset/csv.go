package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// LoadCSV reads a full snapshot from a CSV export. Encoding fallback chain:
// UTF-8, then Latin-1, then CP1252.
func LoadCSV(path string, logger *slog.Logger) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return ParseCSV(raw, logger)
}

// ParseCSV decodes and parses raw CSV bytes into a snapshot.
func ParseCSV(raw []byte, logger *slog.Logger) (*Snapshot, error) {
	decoded, enc, err := decodeBytes(raw)
	if err != nil {
		return nil, err
	}
	if enc != "utf-8" {
		logger.Warn("csv is not utf-8, decoded with fallback", "encoding", enc)
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	schema := ResolveSchema(header)
	snap := &Snapshot{
		Fields:   schema.Fields(),
		LoadedAt: time.Now(),
	}

	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			logger.Warn("skipping malformed csv row", "line", line, "error", err)
			continue
		}
		snap.Records = append(snap.Records, parseRow(schema, row))
	}

	logger.Info("loaded dataset", "records", len(snap.Records), "agencies", len(snap.Agencies()))
	return snap, nil
}

func parseRow(schema Schema, row []string) Record {
	r := Record{}

	if v, ok := schema.value(FieldAgency, row); ok {
		r.Agency = v
	}
	if v, ok := schema.value(FieldCluster, row); ok {
		r.Cluster = v
	}
	if v, ok := schema.value(FieldSite, row); ok {
		r.Site = v
	}
	if v, ok := schema.value(FieldMachine, row); ok {
		r.Machine = v
	}
	if v, ok := schema.value(FieldActiveSite, row); ok {
		r.ActiveSite = v
	}

	if v, ok := schema.value(FieldQuantityTotal, row); ok {
		r.QuantityTotal = floatOrZero(v)
	}
	if v, ok := schema.value(FieldQuantityDone, row); ok {
		r.QuantityDone = floatOrZero(v)
	}
	if v, ok := schema.value(FieldQuantityToday, row); ok {
		r.QuantityToday = floatOrNil(v)
	}
	if v, ok := schema.value(FieldDailyCapacity, row); ok {
		r.DailyCapacity = floatOrNil(v)
	}
	if v, ok := schema.value(FieldDaysRequired, row); ok {
		r.DaysRequired = floatOrNil(v)
	}
	if v, ok := schema.value(FieldDaysToDeadline, row); ok {
		r.DaysToDeadline = floatOrNil(v)
	}

	if v, ok := schema.value(FieldStartDate, row); ok {
		r.StartDate = ParseDate(v)
	}
	if v, ok := schema.value(FieldPlannedEnd, row); ok {
		r.PlannedEnd = ParseDate(v)
	}
	if v, ok := schema.value(FieldExpectedEnd, row); ok {
		r.ExpectedEnd = ParseDate(v)
	}

	return r
}

func floatOrZero(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// floatOrNil keeps the blank/non-numeric distinction: nil means "unknown,
// exclude from schedule calculations", not zero.
func floatOrNil(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func decodeBytes(raw []byte) ([]byte, string, error) {
	if utf8.Valid(raw) {
		return raw, "utf-8", nil
	}
	fallbacks := []struct {
		name string
		dec  *encoding.Decoder
	}{
		{"latin-1", charmap.ISO8859_1.NewDecoder()},
		{"cp1252", charmap.Windows1252.NewDecoder()},
	}
	for _, fb := range fallbacks {
		decoded, _, err := transform.Bytes(fb.dec, raw)
		if err == nil {
			return decoded, fb.name, nil
		}
	}
	return nil, "", fmt.Errorf("csv bytes are not valid utf-8, latin-1, or cp1252")
}
