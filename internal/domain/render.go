package domain

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Format selects the output representation of a result.
type Format string

const (
	FormatArray Format = "array"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// CSVDelimiter separates fields in FormatCSV rows.
const CSVDelimiter = ","

// ParseFormat maps a user-supplied name to a Format. Unknown names fall back
// to FormatArray.
func ParseFormat(name string) Format {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatCSV, FormatJSON:
		return f
	default:
		return FormatArray
	}
}

// Rendered holds the result of Render. Records always carries the truncated
// records; Lines is set for FormatCSV and JSON for FormatJSON.
type Rendered struct {
	Format  Format
	Records []Observation
	Lines   []string
	JSON    []byte
}

// Len returns the number of records that were rendered.
func (r Rendered) Len() int { return len(r.Records) }

// WriteTo writes the rendered output. Array records are written as raw
// space-separated rows.
func (r Rendered) WriteTo(w io.Writer) (int64, error) {
	var total int64
	write := func(s string) error {
		n, err := io.WriteString(w, s)
		total += int64(n)
		return err
	}

	switch r.Format {
	case FormatJSON:
		if err := write(string(r.JSON) + "\n"); err != nil {
			return total, err
		}
	case FormatCSV:
		for _, line := range r.Lines {
			if err := write(line + "\n"); err != nil {
				return total, err
			}
		}
	default:
		for _, rec := range r.Records {
			if err := write(rec.Line() + "\n"); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// Render truncates records to limit (limit <= 0 keeps everything) and
// renders them in the requested format. Record order is preserved.
func Render(records []Observation, format Format, limit int) Rendered {
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	switch format {
	case FormatCSV:
		lines := make([]string, 0, len(records))
		for _, rec := range records {
			lines = append(lines, strings.Join(strings.Fields(rec.Line()), CSVDelimiter))
		}
		return Rendered{Format: FormatCSV, Lines: lines, Records: records}
	case FormatJSON:
		if records == nil {
			records = []Observation{}
		}
		// Observation holds only strings, so Marshal cannot fail.
		data, err := json.Marshal(records)
		if err != nil {
			panic(fmt.Sprintf("marshal observations: %v", err))
		}
		return Rendered{Format: FormatJSON, JSON: data, Records: records}
	default:
		return Rendered{Format: FormatArray, Records: records}
	}
}
