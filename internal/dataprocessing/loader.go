package dataprocessing

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Dataset is input text ready for the analyzer and parser.
type Dataset struct {
	Path    string
	Content string
	// Source is "csv" or "xlsx".
	Source string
}

type loaderEntry struct {
	modTime time.Time
	size    int64
	dataset *Dataset
}

// Loader reads CSV and XLSX files from disk. Results are cached per path
// until the file's size or modification time changes. Safe for concurrent use.
type Loader struct {
	logger *slog.Logger
	sheet  string

	mu    sync.Mutex
	cache map[string]loaderEntry
}

// NewLoader creates a loader. sheet selects the workbook sheet for XLSX
// input; empty means the first non-empty sheet.
func NewLoader(sheet string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		logger: logger.With(slog.String("component", "loader")),
		sheet:  sheet,
		cache:  make(map[string]loaderEntry),
	}
}

// Load returns the dataset stored at path.
func (l *Loader) Load(path string) (*Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.cache[path]; ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
		return e.dataset, nil
	}

	ds := &Dataset{Path: path}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		ds.Source = "xlsx"
		ds.Content, err = WorkbookToCSV(path, l.sheet)
	default:
		ds.Source = "csv"
		var raw []byte
		raw, err = os.ReadFile(path)
		ds.Content = string(raw)
	}
	if err != nil {
		return nil, err
	}

	l.cache[path] = loaderEntry{modTime: info.ModTime(), size: info.Size(), dataset: ds}
	l.logger.Info("dataset loaded",
		slog.String("path", path),
		slog.String("source", ds.Source),
		slog.Int("bytes", len(ds.Content)))
	return ds, nil
}
