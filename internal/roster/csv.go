package roster

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readCSV(r io.Reader, maxRows int) ([]row, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var rows []row
	index, end := -1, 0 // previous record's row index and last line
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRoster, err)
		}

		// csv.Reader skips empty lines but they still count as rows. A quoted
		// field spanning lines is one row.
		start, _ := cr.FieldPos(0)
		index += start - end
		end = start
		for _, field := range record {
			end += strings.Count(field, "\n")
		}
		if index >= maxRows {
			return nil, ErrTooManyRows
		}
		rows = append(rows, row{index: index, first: record[0]})
	}
	return rows, nil
}
