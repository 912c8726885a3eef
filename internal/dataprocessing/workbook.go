package dataprocessing

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WorkbookToCSV converts one sheet of an XLSX workbook into CSV text. An
// empty sheet name selects the first sheet that has any rows.
func WorkbookToCSV(path, sheet string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return sheetToCSV(f, sheet)
}

// WorkbookReaderToCSV is WorkbookToCSV for an uploaded workbook.
func WorkbookReaderToCSV(r io.Reader, sheet string) (string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return sheetToCSV(f, sheet)
}

func sheetToCSV(f *excelize.File, sheet string) (string, error) {
	var rows [][]string
	if sheet != "" {
		r, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		rows = r
	} else {
		for _, name := range f.GetSheetList() {
			if r, err := f.GetRows(name); err == nil && len(r) > 0 {
				rows = r
				break
			}
		}
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("workbook has no rows")
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}

	var b strings.Builder
	for _, r := range rows {
		for i := 0; i < width; i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			if i < len(r) {
				b.WriteString(quoteField(r[i]))
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// quoteField quotes a cell when SplitLine would otherwise misread it.
func quoteField(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if !strings.ContainsAny(s, ",\"") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
