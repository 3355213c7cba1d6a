package core

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// minFields is the number of columns a row needs to become a record:
// first name, last name and email. Category is optional.
const minFields = 3

// headerTokens mark the first line of delimited text as a header row.
var headerTokens = []string{"firstname", "first name", "lastname", "last name", "email"}

var lineBreak = regexp.MustCompile(`\r\n|\n|\r`)

// ParseFile parses an uploaded attendee file, choosing the reader by the
// file's extension. A file that yields no rows is an *ImportError wrapping
// ErrNoValidRows. Reader failures and panics are wrapped ErrParseFailed.
func ParseFile(fileName string, data []byte, defaultCategory string) (ImportResult, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	if format.IsSpreadsheet() {
		result, err = ParseSpreadsheet(data, format, defaultCategory)
		if err != nil {
			return ImportResult{}, &ImportError{Format: format, Err: err}
		}
	} else {
		text, err := io.ReadAll(wrapTextInput(bytes.NewReader(data)))
		if err != nil {
			return ImportResult{}, &ImportError{Format: format, Err: fmt.Errorf("%w: %v", ErrParseFailed, err)}
		}
		result = ParseDelimited(text, defaultCategory)
		result.Format = format
	}

	if len(result.Records) == 0 {
		return result, &ImportError{Format: format, Err: ErrNoValidRows}
	}
	return result, nil
}

// ParseDelimited parses comma- or tab-separated attendee rows. Each line is
// split on tab when it contains one, otherwise on comma. The first line is
// skipped when it looks like a header. Lines with fewer than three fields
// are counted in Discarded; the rest become records whose validity is
// computed, not enforced.
func ParseDelimited(data []byte, defaultCategory string) ImportResult {
	text := string(bytes.TrimPrefix(data, utf8BOM))
	text = strings.TrimSpace(text)

	result := ImportResult{Format: FormatCSV}
	if text == "" {
		return result
	}

	lines := lineBreak.Split(text, -1)
	start := 0
	if isHeaderLine(lines[0]) {
		start = 1
	}

	for _, line := range lines[start:] {
		if strings.TrimSpace(line) == "" {
			continue
		}

		// Only spaces are trimmed here so leading empty tab fields keep
		// their column.
		line = strings.Trim(line, " ")
		sep := ","
		if strings.Contains(line, "\t") {
			sep = "\t"
		}

		parts := strings.Split(line, sep)
		if len(parts) < minFields {
			result.Discarded++
			continue
		}

		rec := recordFromFields(parts, defaultCategory)
		if !rec.Valid {
			result.Invalid++
		}
		result.Records = append(result.Records, rec)
	}

	return result
}

func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	for _, tok := range headerTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// recordFromFields builds a record from columns in the order first name,
// last name, email, category.
func recordFromFields(fields []string, defaultCategory string) AttendeeRecord {
	field := func(i int) string {
		if i < len(fields) {
			return strings.TrimSpace(fields[i])
		}
		return ""
	}

	category := field(3)
	if category == "" {
		category = defaultCategory
	}
	return NewRecord(field(0), field(1), field(2), category)
}
