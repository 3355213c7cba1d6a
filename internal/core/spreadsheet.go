package core

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Header cell patterns, matched case-insensitively.
var (
	firstNameHeader = regexp.MustCompile(`(?i)first|given|fname`)
	lastNameHeader  = regexp.MustCompile(`(?i)last|surname|lname|family`)
	anyNameHeader   = regexp.MustCompile(`(?i)first|given|fname|last|surname|lname|family|name`)
	emailHeader     = regexp.MustCompile(`(?i)e-?mail`)
	categoryHeader  = regexp.MustCompile(`(?i)category|ticket`)
)

// columnMap holds the column index of each attendee field.
type columnMap struct {
	first, last, email, category int
}

// covers reports whether row reaches the first name, last name and email
// columns. Trailing empty cells are not stored, so a shorter row is
// treated like a delimited line with fewer than three fields.
func (c columnMap) covers(row []string) bool {
	n := len(row)
	return c.first < n && c.last < n && c.email < n
}

// defaultColumns is A=first name, B=last name, C=email, D=category.
var defaultColumns = columnMap{first: 0, last: 1, email: 2, category: 3}

// ParseSpreadsheet reads attendee rows from the first sheet of an .xlsx or
// .xls workbook. Row 1 is treated as a header when it names both a name
// column and an email column; otherwise columns A to D are assumed. Blank
// rows are skipped and rows that stop short of a name or email column are
// counted in Discarded. Other rows with missing fields are kept and marked
// invalid.
func ParseSpreadsheet(data []byte, format FileFormat, defaultCategory string) (result ImportResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = ImportResult{}
			err = fmt.Errorf("%w: %v", ErrParseFailed, r)
		}
	}()

	var rows [][]string
	switch format {
	case FormatXLSX:
		rows, err = readXLSX(data)
	case FormatXLS:
		rows, err = readXLS(data)
	default:
		return ImportResult{}, fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	return rowsToRecords(rows, format, defaultCategory), nil
}

func rowsToRecords(rows [][]string, format FileFormat, defaultCategory string) ImportResult {
	result := ImportResult{Format: format}
	if len(rows) == 0 {
		return result
	}

	cols, hasHeader := detectColumns(rows[0])
	start := 0
	if hasHeader {
		start = 1
	}

	for _, row := range rows[start:] {
		if isBlankRow(row) {
			continue
		}
		if !cols.covers(row) {
			result.Discarded++
			continue
		}

		cell := func(i int) string {
			if i >= 0 && i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}

		category := cell(cols.category)
		if category == "" {
			category = defaultCategory
		}

		rec := NewRecord(cell(cols.first), cell(cols.last), cell(cols.email), category)
		if !rec.Valid {
			result.Invalid++
		}
		result.Records = append(result.Records, rec)
	}

	return result
}

// detectColumns inspects a candidate header row. A row counts as a header
// when one cell looks like a name column and another like an email column.
// Fields whose header is not found fall back to the default position.
func detectColumns(header []string) (columnMap, bool) {
	hasName, hasEmail := false, false
	for _, h := range header {
		if anyNameHeader.MatchString(h) {
			hasName = true
		}
		if emailHeader.MatchString(h) {
			hasEmail = true
		}
	}
	if !hasName || !hasEmail {
		return defaultColumns, false
	}

	find := func(re *regexp.Regexp, fallback int) int {
		for i, h := range header {
			if re.MatchString(h) {
				return i
			}
		}
		return fallback
	}

	return columnMap{
		first:    find(firstNameHeader, defaultColumns.first),
		last:     find(lastNameHeader, defaultColumns.last),
		email:    find(emailHeader, defaultColumns.email),
		category: find(categoryHeader, defaultColumns.category),
	}, true
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0])
}

func readXLS(data []byte) ([][]string, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := range cells {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
