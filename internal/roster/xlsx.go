package roster

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

func readXLSX(r io.Reader, maxRows int) ([]row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable workbook: %v", ErrInvalidRoster, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	it, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoster, err)
	}
	defer it.Close()

	var rows []row
	for index := 0; it.Next(); index++ {
		if index >= maxRows {
			return nil, ErrTooManyRows
		}
		cols, err := it.Columns()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRoster, err)
		}
		first := ""
		if len(cols) > 0 {
			first = cols[0]
		}
		rows = append(rows, row{index: index, first: first})
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoster, err)
	}
	return rows, nil
}
