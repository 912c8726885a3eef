package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"barrace/pkg/contracts/domain"
)

// WriteJSON encodes series as one JSON document
func WriteJSON(out io.Writer, series *domain.ProcessedSeries, indent bool) error {
	enc := json.NewEncoder(out)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(series); err != nil {
		return fmt.Errorf("failed to encode frames: %w", err)
	}
	return nil
}

// Export writes series to path in the format named by its extension
func Export(path string, series *domain.ProcessedSeries) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	if format == FormatCSV {
		return NewCSVWriter("", nil).WriteFrames(path, series, DefaultWriteOptions())
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := WriteJSON(file, series, true); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
