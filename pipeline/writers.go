package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-listings/models"
)

// OutputWriter defines the interface for exporting batch entries.
type OutputWriter interface {
	Write(entries []models.BatchEntry) error
	Close() error
	Validate() error
}

var csvHeader = []string{
	"target_id", "region", "is_owned", "identifier", "name", "size", "ok", "error",
	"sale_count", "sale_min", "sale_max", "sale_avg",
	"jeonse_count", "jeonse_min", "jeonse_max", "jeonse_avg",
	"monthly_count", "monthly_min", "monthly_max", "monthly_avg",
	"timestamp",
}

// CSVWriter writes one row per batch entry with flattened stats.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends entries to the CSV output.
func (cw *CSVWriter) Write(entries []models.BatchEntry) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for i := range entries {
		if err := cw.writer.Write(csvRecord(&entries[i])); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

func csvRecord(e *models.BatchEntry) []string {
	record := []string{
		e.TargetID,
		e.Region,
		strconv.FormatBool(e.IsOwned),
		e.Identifier,
		e.DisplayName,
		strconv.Itoa(e.SizeBracket),
		strconv.FormatBool(e.OK),
		e.Error,
	}
	for _, stats := range []models.ListingStats{e.Sale, e.Jeonse, e.Monthly} {
		record = append(record,
			strconv.Itoa(stats.Count),
			strconv.FormatInt(stats.MinPrice, 10),
			strconv.FormatInt(stats.MaxPrice, 10),
			strconv.FormatInt(stats.AvgPrice, 10),
		)
	}
	return append(record, e.Timestamp.Format(time.RFC3339))
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter writes newline-delimited JSON entries, samples included.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: encoder,
	}, nil
}

// Write appends entries in JSONL format.
func (jw *JSONWriter) Write(entries []models.BatchEntry) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for i := range entries {
		if err := jw.encoder.Encode(&entries[i]); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
