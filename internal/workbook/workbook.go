// Package workbook reads uploaded result files into plain string grids.
//
// Spreadsheets (.xlsx, .xlsm) yield one Sheet per worksheet with raw cell
// values: dates stay day serials and times stay day fractions, so callers
// normalize them the same way regardless of the cell's display format.
// CSV files yield a single sheet named after the file.
package workbook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileSize is the largest accepted upload (100MB).
var MaxFileSize int64 = 100 * 1024 * 1024

var (
	// ErrUnsupportedFormat is returned for extensions other than xlsx, xlsm and csv.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptyFile is returned when a file has no bytes.
	ErrEmptyFile = errors.New("empty file")
	// ErrFileTooLarge is returned when a file exceeds MaxFileSize.
	ErrFileTooLarge = errors.New("file too large")
)

// Sheet is one worksheet's cells, row-major. Rows may be ragged.
type Sheet struct {
	Name string
	Rows [][]string
}

// Read decodes data according to the extension of fileName.
func Read(fileName string, data []byte) ([]Sheet, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(data)) > MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(data))
	}

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return readSpreadsheet(data)
	case ".csv":
		return readCSV(fileName, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(fileName))
	}
}

// ReadFile reads and decodes the file at path.
func ReadFile(path string) ([]Sheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Read(filepath.Base(path), data)
}

// CleanCell trims whitespace, spreadsheet formula wrappers (="...") and
// surrounding quotes from a cell.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// IsEmptyRow reports whether every cell in row is blank.
func IsEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
