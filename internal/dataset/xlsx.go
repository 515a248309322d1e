package dataset

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// AllSheets as LoadOptions.Sheet reads every worksheet of a workbook.
const AllSheets = "*"

func readXLSX(path, sheet string) ([]table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	switch sheet {
	case "":
		sheets = sheets[:1]
	case AllSheets:
	default:
		if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
			return nil, fmt.Errorf("sheet %q not found", sheet)
		}
		sheets = []string{sheet}
	}

	var tables []table
	for _, name := range sheets {
		t, err := readSheet(f, name)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func readSheet(f *excelize.File, name string) (table, error) {
	t := table{name: name}

	rows, err := f.Rows(name)
	if err != nil {
		return t, err
	}
	defer rows.Close()

	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return t, err
		}
		if t.header == nil {
			t.header = cols
			continue
		}
		t.records = append(t.records, cols)
	}
	if err := rows.Error(); err != nil {
		return t, err
	}

	if t.header == nil {
		return t, ErrEmptyFile
	}
	return t, nil
}
