package export

import (
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "answers"

// WriteXLSX writes the same table as WriteCSV into a single worksheet.
func WriteXLSX(w io.Writer, records []Record, withUser bool) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	cols := Columns(withUser, records)
	put := func(row int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		line := make([]interface{}, len(values))
		for i, v := range values {
			line[i] = v
		}
		return f.SetSheetRow(sheetName, cell, &line)
	}
	if err := put(1, cols); err != nil {
		return err
	}
	for i, r := range records {
		if err := put(i+2, r.fields(cols)); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// ReadXLSX reads the first worksheet of a file written by WriteXLSX.
func ReadXLSX(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	idx := map[string]int{}
	for i, h := range rows[0] {
		idx[h] = i
	}
	out := make([]Record, 0, len(rows)-1)
	for _, fields := range rows[1:] {
		rec, err := parseRecord(fields, idx)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
