// Package frame implements the in-memory tabular dataset value used across
// the catalog pipeline: decoding remote CSV payloads served in the portal's
// legacy encoding, separator detection, coarse per-column type inference,
// text previews for the matching backend, and the left join that produces
// the enriched output table.
//
// Design constraints:
//   - Decoding is best-effort: misaligned records are skipped, never fatal.
//   - Type inference is coarse on purpose; it feeds a schema signature used
//     for filtering and a single branch decision in the ingestion pipeline,
//     not a storage contract.
package frame

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// Frame is a rectangular string table with a header and per-column inferred
// type labels. All cell values are kept as strings; the empty string stands
// for a missing value.
type Frame struct {
	Columns []string
	Rows    [][]string

	// Types holds one inferred label per column, aligned with Columns.
	// Labels: "integer", "float", "boolean", "date", "timestamp", "text".
	Types []string

	// Sep is the separator the frame was parsed with.
	Sep rune
}

// Separator candidates considered by DetectSep.
const (
	Comma     = ','
	Semicolon = ';'
)

// DetectSep inspects the first 5 non-empty lines of text and returns the
// more frequent of comma vs semicolon. Ties resolve to semicolon.
//
// This is deliberately a counting heuristic, not a quoting-aware parser:
// upstream files are irregular enough that a strict parser would reject
// many of them outright.
func DetectSep(text string) rune {
	const sampleLines = 5

	var seen int
	var commas, semis int
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		commas += strings.Count(line, ",")
		semis += strings.Count(line, ";")
		seen++
		if seen >= sampleLines {
			break
		}
	}

	if commas > semis {
		return Comma
	}
	return Semicolon
}

// DecodeCSV decodes raw CSV bytes fetched from the portal into a Frame.
//
// The portal serves ISO-8859-1 regardless of any declared charset, so the
// bytes are always decoded with that charmap before parsing. The separator
// is detected from the decoded text via DetectSep.
//
// Parsing is best-effort in the same way the sampling probe reads CSV:
// LazyQuotes is enabled and records whose field count does not match the
// header are skipped rather than failing the whole decode.
func DecodeCSV(raw []byte) (*Frame, error) {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, err
	}
	return ParseCSV(string(decoded), DetectSep(string(decoded)))
}

// ParseCSV parses already-decoded CSV text with an explicit separator.
func ParseCSV(text string, sep rune) (*Frame, error) {
	text = strings.TrimLeft(text, "\uFEFF")

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sep
	r.FieldsPerRecord = -1 // field counts validated manually below
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := make([][]string, 0, 256)
	for {
		rec, err := r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			// Keep what parsed so far; a broken tail record must not void
			// an otherwise readable file.
			break
		}
		if len(rec) != len(header) {
			continue
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, rec)
	}

	f := &Frame{Columns: header, Rows: rows, Sep: sep}
	f.Types = inferTypes(header, rows)
	return f, nil
}

// NumColumns returns the column count.
func (f *Frame) NumColumns() int { return len(f.Columns) }

// NumRows returns the data row count.
func (f *Frame) NumRows() int { return len(f.Rows) }

// Signature returns the column-name → type-label mapping. Duplicate column
// names collapse (the later column wins), mirroring how a keyed schema map
// behaves.
func (f *Frame) Signature() map[string]string {
	sig := make(map[string]string, len(f.Columns))
	for i, c := range f.Columns {
		if i < len(f.Types) {
			sig[c] = f.Types[i]
		} else {
			sig[c] = "text"
		}
	}
	return sig
}

// HasUnnamedLeadingPair reports whether the header carries two unnamed
// leading columns (cells 1 and 2 empty). Source files with this shape are
// malformed exports and are discarded outright by the ingestion pipeline.
func (f *Frame) HasUnnamedLeadingPair() bool {
	if len(f.Columns) < 3 {
		return false
	}
	return strings.TrimSpace(f.Columns[1]) == "" && strings.TrimSpace(f.Columns[2]) == ""
}

// ColumnIndex returns the position of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Head returns a shallow copy limited to the first n data rows. A
// negative n counts as zero.
func (f *Frame) Head(n int) *Frame {
	if n < 0 {
		n = 0
	}
	if n > len(f.Rows) {
		n = len(f.Rows)
	}
	return &Frame{Columns: f.Columns, Rows: f.Rows[:n], Types: f.Types}
}

// EncodeCSV renders the frame as UTF-8 CSV bytes with a semicolon separator,
// the shape the download endpoint serves back to the user.
func (f *Frame) EncodeCSV() []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = Semicolon
	_ = w.Write(f.Columns)
	for _, row := range f.Rows {
		_ = w.Write(row)
	}
	w.Flush()
	return buf.Bytes()
}

// inferTypes infers a coarse type label per column. The label set is the
// same one the sampling probe uses; "text" is the fallback for empty or
// mixed columns.
func inferTypes(header []string, rows [][]string) []string {
	if len(header) == 0 {
		return nil
	}

	out := make([]string, len(header))
	for i := range out {
		out[i] = "text"
	}

	for col := range header {
		var seen bool
		allInt := true
		allFloat := true
		allBool := true
		allDate := true
		allTS := true

		for _, r := range rows {
			if col >= len(r) {
				continue
			}
			v := strings.TrimSpace(r[col])
			if v == "" {
				continue
			}
			seen = true

			if allInt {
				if _, err := strconv.ParseInt(v, 10, 64); err != nil {
					allInt = false
				}
			}
			if allFloat {
				if _, err := strconv.ParseFloat(decimalComma(v), 64); err != nil {
					allFloat = false
				}
			}
			if allBool {
				if !isBoolLoose(v) {
					allBool = false
				}
			}
			if allDate {
				if !isDateLoose(v) {
					allDate = false
				}
			}
			if allTS {
				if !isTimestampLoose(v) {
					allTS = false
				}
			}
		}

		if !seen {
			continue
		}
		// Prefer more specific labels.
		switch {
		case allInt:
			out[col] = "integer"
		case allBool:
			out[col] = "boolean"
		case allDate:
			out[col] = "date"
		case allTS:
			out[col] = "timestamp"
		case allFloat:
			out[col] = "float"
		}
	}

	return out
}

// decimalComma maps the portal's "12,5" decimal notation onto a parseable
// form. Values that also contain a dot are left alone (thousands separators
// would make the rewrite ambiguous).
func decimalComma(v string) string {
	if strings.Count(v, ",") == 1 && !strings.Contains(v, ".") {
		return strings.Replace(v, ",", ".", 1)
	}
	return v
}

func isBoolLoose(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y", "0", "f", "false", "no", "n":
		return true
	}
	return false
}

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
}

var tsLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02.01.2006 15:04:05",
}

func isDateLoose(s string) bool {
	s = strings.TrimSpace(s)
	for _, lay := range dateLayouts {
		if _, err := time.Parse(lay, s); err == nil {
			return true
		}
	}
	return false
}

func isTimestampLoose(s string) bool {
	s = strings.TrimSpace(s)
	for _, lay := range tsLayouts {
		if _, err := time.Parse(lay, s); err == nil {
			return true
		}
	}
	return false
}
