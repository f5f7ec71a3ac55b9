package frame

import (
	"reflect"
	"strings"
	"testing"
)

// TestDetectSep covers the separator heuristic's contract: comma wins only
// on a strict majority across the sampled lines; ties and empty input
// resolve to semicolon.
func TestDetectSep(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want rune
	}{
		{"comma majority", "a,b\nc,d\ne,f\n", Comma},
		{"semicolon majority", "a;b\nc;d\n", Semicolon},
		{"tie prefers semicolon", "a,b;c\nx,y;z\n", Semicolon},
		{"empty text", "", Semicolon},
		{"blank lines skipped", "\n\n\na,b\n", Comma},
		{"only first five non-empty lines counted", "a;b\na;b\na;b\na;b\na;b\n" + strings.Repeat("1,2,3,4\n", 50), Semicolon},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectSep(tc.text); got != tc.want {
				t.Fatalf("DetectSep(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

// TestDecodeCSV_Latin1 verifies that raw ISO-8859-1 bytes decode into
// correct UTF-8 cell values.
func TestDecodeCSV_Latin1(t *testing.T) {
	t.Parallel()

	// "Ort;Größe" with 0xF6 for 'ö' and 0xDF for 'ß', as the portal serves it.
	raw := []byte("Ort;Gr\xf6\xdfe\nK\xf6ln;405\n")

	f, err := DecodeCSV(raw)
	if err != nil {
		t.Fatalf("DecodeCSV: %v", err)
	}
	if !reflect.DeepEqual(f.Columns, []string{"Ort", "Größe"}) {
		t.Fatalf("columns: %#v", f.Columns)
	}
	if f.Rows[0][0] != "Köln" {
		t.Fatalf("expected decoded umlaut, got %q", f.Rows[0][0])
	}
}

// TestParseCSV_SkipsMisalignedRows verifies best-effort parsing: records
// with the wrong field count are dropped, the rest survive.
func TestParseCSV_SkipsMisalignedRows(t *testing.T) {
	t.Parallel()

	f, err := ParseCSV("a;b\n1;2\nbroken\n3;4\n", Semicolon)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if f.NumRows() != 2 {
		t.Fatalf("expected 2 rows, got %d: %#v", f.NumRows(), f.Rows)
	}
}

// TestParseCSV_StripsByteOrderMark verifies a leading BOM never ends up
// glued to the first column name.
func TestParseCSV_StripsByteOrderMark(t *testing.T) {
	t.Parallel()

	f, err := ParseCSV("\uFEFFjahr;ort\n2023;Köln\n", Semicolon)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if f.Columns[0] != "jahr" {
		t.Fatalf("first column = %q, want %q", f.Columns[0], "jahr")
	}
}

// TestHead_Clamps verifies out-of-range row counts, including negative
// ones coming from flag input, never panic.
func TestHead_Clamps(t *testing.T) {
	t.Parallel()

	f := &Frame{Columns: []string{"a"}, Rows: [][]string{{"1"}, {"2"}}}

	if got := f.Head(-1); got.NumRows() != 0 {
		t.Fatalf("Head(-1) rows = %d, want 0", got.NumRows())
	}
	if got := f.Head(10); got.NumRows() != 2 {
		t.Fatalf("Head(10) rows = %d, want 2", got.NumRows())
	}
}

// TestInferTypes covers the label ladder: integer beats float, mixed
// content falls back to text, and German decimal commas count as float.
func TestInferTypes(t *testing.T) {
	t.Parallel()

	f, err := ParseCSV("id;rate;name;day\n1;3,5;x;01.02.2020\n2;4,0;y;03.04.2021\n", Semicolon)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	want := []string{"integer", "float", "text", "date"}
	if !reflect.DeepEqual(f.Types, want) {
		t.Fatalf("types: want %v got %v", want, f.Types)
	}
}

// TestSignature verifies the column→type mapping, including the collapse
// of duplicate column names.
func TestSignature(t *testing.T) {
	t.Parallel()

	f := &Frame{Columns: []string{"a", "b", "a"}, Types: []string{"integer", "text", "float"}}
	sig := f.Signature()
	if len(sig) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(sig))
	}
	if sig["a"] != "float" {
		t.Fatalf("duplicate column should keep the later type, got %q", sig["a"])
	}
}

// TestHasUnnamedLeadingPair verifies the malformed-export detector.
func TestHasUnnamedLeadingPair(t *testing.T) {
	t.Parallel()

	bad, err := ParseCSV("x;;;v\n1;2;3;4\n", Semicolon)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if !bad.HasUnnamedLeadingPair() {
		t.Fatalf("expected unnamed leading pair on %#v", bad.Columns)
	}

	ok, err := ParseCSV("x;y;z\n1;2;3\n", Semicolon)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if ok.HasUnnamedLeadingPair() {
		t.Fatalf("unexpected unnamed leading pair on %#v", ok.Columns)
	}
}

// TestPreview checks the rendered shape: header line plus one indexed line
// per row, bounded by n.
func TestPreview(t *testing.T) {
	t.Parallel()

	f, err := ParseCSV("Ort;Wert\nBerlin;1\nKöln;2\nUlm;3\n", Semicolon)
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}

	p := f.Preview(2)
	lines := strings.Split(p, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines:\n%s", len(lines), p)
	}
	if !strings.Contains(lines[0], "Ort") || !strings.Contains(lines[0], "Wert") {
		t.Fatalf("header line missing columns: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0") || !strings.HasPrefix(lines[2], "1") {
		t.Fatalf("rows should be index-prefixed:\n%s", p)
	}
}

// TestEncodeCSV verifies the download rendering round-trips through a
// semicolon-separated parse.
func TestEncodeCSV(t *testing.T) {
	t.Parallel()

	f := &Frame{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "x"}, {"2", "y"}}}
	got, err := ParseCSV(string(f.EncodeCSV()), Semicolon)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if !reflect.DeepEqual(got.Columns, f.Columns) || !reflect.DeepEqual(got.Rows, f.Rows) {
		t.Fatalf("round-trip mismatch: %#v", got)
	}
}
