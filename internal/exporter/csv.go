package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"barrace/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides long-format frame export
type CSVWriter struct {
	baseDir string
	logger  *slog.Logger
}

// NewCSVWriter creates a writer resolving relative paths under baseDir
func NewCSVWriter(baseDir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{
		baseDir: baseDir,
		logger:  logger.With(slog.String("component", "csv_exporter")),
	}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
	// Precision is the number of decimals for values. Negative keeps the
	// shortest exact representation.
	Precision int
}

// DefaultWriteOptions keeps full value precision without a BOM.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{Precision: -1}
}

// WriteFrames writes every frame of series to filePath
func (w *CSVWriter) WriteFrames(filePath string, series *domain.ProcessedSeries, options WriteOptions) error {
	stream, err := w.CreateStreamWriter(filePath, options)
	if err != nil {
		return err
	}
	if err := stream.WriteBatch(series.Frames); err != nil {
		stream.Close()
		return err
	}
	return stream.Close()
}

// EncodeFrames writes the long format of series to out
func EncodeFrames(out io.Writer, series *domain.ProcessedSeries, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := out.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}
	writer := csv.NewWriter(out)
	if err := writer.Write(FrameHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	if err := writeFrames(writer, series.Frames, options.Precision); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// StreamWriter appends frame batches to an open CSV file
type StreamWriter struct {
	file      *os.File
	writer    *csv.Writer
	precision int
	rows      int
}

// CreateStreamWriter creates the file and writes the header row
func (w *CSVWriter) CreateStreamWriter(filePath string, options WriteOptions) (*StreamWriter, error) {
	fullPath := w.resolvePath(filePath)

	w.logger.Info("Creating CSV stream writer",
		slog.String("file_path", filePath),
		slog.String("full_path", fullPath))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if options.BOMPrefix {
		if _, err := file.Write(utf8BOM); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(FrameHeaders); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	return &StreamWriter{
		file:      file,
		writer:    writer,
		precision: options.Precision,
	}, nil
}

// WriteBatch writes one row per ranked item of every frame in batch.
// Its signature matches frames.BatchFunc.
func (s *StreamWriter) WriteBatch(batch []domain.FrameSnapshot) error {
	if err := writeFrames(s.writer, batch, s.precision); err != nil {
		return err
	}
	for _, f := range batch {
		s.rows += len(f.Items)
	}
	s.writer.Flush()
	return s.writer.Error()
}

// Rows returns the number of data rows written so far
func (s *StreamWriter) Rows() int {
	return s.rows
}

// Close flushes and closes the stream writer
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func writeFrames(writer *csv.Writer, batch []domain.FrameSnapshot, precision int) error {
	for _, f := range batch {
		ts := formatTimestamp(f.Timestamp)
		for _, item := range f.Items {
			record := []string{
				formatInt(f.FrameIndex),
				ts,
				formatInt(item.Rank),
				item.Category,
				formatFloat(item.Value, precision),
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write frame %d: %w", f.FrameIndex, err)
			}
		}
	}
	return nil
}

// resolvePath places relative paths under the base directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.baseDir == "" {
		return filePath
	}
	return filepath.Join(w.baseDir, filePath)
}
