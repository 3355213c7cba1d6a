package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExportHeader is the header row written to exported and template files.
var ExportHeader = []string{"firstname", "lastname", "email", "category"}

var sampleRow = []string{"Ada", "Lovelace", "ada@example.com", "General Admission"}

// cellReplacer flattens characters that would break a delimited row.
var cellReplacer = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ", "\t", " ")

// ExportDelimited writes records as delimited text that ParseDelimited reads
// back into the same records. Output is comma-separated unless a value
// contains a comma, in which case every row is tab-separated.
func ExportDelimited(records []AttendeeRecord) []byte {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, ExportHeader)
	for _, r := range records {
		rows = append(rows, []string{
			cellReplacer.Replace(r.FirstName),
			cellReplacer.Replace(r.LastName),
			cellReplacer.Replace(r.Email),
			cellReplacer.Replace(r.CategoryName),
		})
	}

	sep := ","
	for _, row := range rows {
		if strings.Contains(strings.Join(row, ""), ",") {
			sep = "\t"
			break
		}
	}

	var buf bytes.Buffer
	for _, row := range rows {
		buf.WriteString(strings.Join(row, sep))
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// ExportSpreadsheet writes records to the first sheet of a new .xlsx workbook.
func ExportSpreadsheet(records []AttendeeRecord) ([]byte, error) {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.FirstName, r.LastName, r.Email, r.CategoryName})
	}
	return writeWorkbook(rows)
}

func writeWorkbook(rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	write := func(rowNum int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
		}
		return f.SetSheetRow(sheet, cell, &row)
	}

	if err := write(1, ExportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		if err := write(i+2, r); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Template returns an example import file with the header and one sample row.
func Template(format FileFormat) ([]byte, error) {
	switch format {
	case FormatCSV, FormatText:
		r := NewRecord(sampleRow[0], sampleRow[1], sampleRow[2], sampleRow[3])
		return ExportDelimited([]AttendeeRecord{r}), nil
	case FormatXLSX:
		return writeWorkbook([][]string{sampleRow})
	default:
		return nil, fmt.Errorf("%w %q (templates are .csv, .txt or .xlsx)", ErrUnsupportedFormat, format)
	}
}
