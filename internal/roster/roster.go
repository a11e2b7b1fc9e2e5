// Package roster turns an uploaded spreadsheet into raffle participants.
//
// Only the first column of the first sheet is read. Every non-blank cell
// becomes one participant whose id is "<file name>-<row index>", where the
// row index counts blank rows too, so ids stay stable for a given file.
package roster

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/DoyleJ11/raffle-backend/internal/engine"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrInvalidRoster   = engine.ErrInvalidRoster
	ErrUnsupportedFile = fmt.Errorf("%w: unsupported file type, upload a CSV or Excel (.xlsx) file", ErrInvalidRoster)
	ErrEmptyFile       = fmt.Errorf("%w: the file is empty", ErrInvalidRoster)
	ErrNoNames         = fmt.Errorf("%w: no participant names found in the first column", ErrInvalidRoster)
	ErrTooManyRows     = fmt.Errorf("%w: too many rows", ErrInvalidRoster)
)

const DefaultMaxRows = 100_000

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FileInfo describes an upload as the browser reported it.
type FileInfo struct {
	Name        string
	ContentType string
}

type Loader struct {
	MaxRows int
}

func NewLoader(maxRows int) *Loader {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Loader{MaxRows: maxRows}
}

// DetectFormat picks the parser from the extension first, then the content type.
func DetectFormat(file FileInfo) (Format, error) {
	switch strings.ToLower(filepath.Ext(file.Name)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}

	ct := strings.ToLower(file.ContentType)
	switch {
	case strings.Contains(ct, "csv"):
		return FormatCSV, nil
	case strings.Contains(ct, "spreadsheetml"):
		return FormatXLSX, nil
	}
	return "", ErrUnsupportedFile
}

// Load parses r and returns the participants in row order.
func (l *Loader) Load(file FileInfo, r io.Reader) ([]engine.Participant, error) {
	format, err := DetectFormat(file)
	if err != nil {
		return nil, err
	}

	var rows []row
	switch format {
	case FormatCSV:
		rows, err = readCSV(r, l.MaxRows)
	case FormatXLSX:
		rows, err = readXLSX(r, l.MaxRows)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	source := filepath.Base(file.Name)
	if file.Name == "" {
		source = "upload"
	}
	participants := make([]engine.Participant, 0, len(rows))
	for _, rw := range rows {
		name := CleanName(rw.first)
		if name == "" {
			continue
		}
		participants = append(participants, engine.Participant{
			ID:   fmt.Sprintf("%s-%d", source, rw.index),
			Name: name,
		})
	}

	if len(participants) == 0 {
		return nil, ErrNoNames
	}
	return participants, nil
}

// CleanName trims whitespace and normalizes to NFC so visually equal names
// compare equal.
func CleanName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// row is the first cell of a source row and its zero-based position.
type row struct {
	index int
	first string
}
