// Package catalog defines the persisted metadata catalog: the record
// shape, the merge/deduplication semantics applied after every ingestion
// run, the caller-side filter used by search, and a backend-agnostic Store
// interface with a factory registry.
package catalog

// Reserved marker values. NotAvailable distinguishes "could not be
// computed" from "computed and empty"; NoTag marks feed entries that
// carried no category label.
const (
	NotAvailable = "NA"
	NoTag        = "No Tag"
)

// Record is one row of the catalog. JSON field names are a persistence
// contract shared with the store backends and must not change.
type Record struct {
	// Title is the catalog's deduplication key.
	Title   string `json:"Title"`
	Author  string `json:"Author"`
	Content string `json:"Content"`

	// CSV is the downloadable file link; absence marks the row unusable.
	CSV string `json:"CSV,omitempty"`

	// Tag is the first feed-reported category label, or NoTag.
	Tag      string   `json:"Tag"`
	Keywords []string `json:"Keywords"`

	// ColAndTyp is the column-name → type-label schema signature. nil
	// mirrors a NotAvailable preview: the CSV could not be introspected.
	ColAndTyp map[string]string `json:"Col_and_typ,omitempty"`

	// TopTenCols is the text preview of the first 10 rows, or NotAvailable.
	// It is the only field the matching backend ever sees.
	TopTenCols string `json:"top_ten_cols"`
}

// PreviewAvailable reports whether the record carries a usable preview.
// Records without one are excluded from the persisted catalog.
func (r Record) PreviewAvailable() bool {
	return r.TopTenCols != "" && r.TopTenCols != NotAvailable
}

// Merge appends fresh rows after existing ones, deduplicates on Title
// keeping the first occurrence (so on conflict the already-persisted row
// wins), and drops every row whose preview is unavailable.
//
// Merge is idempotent: merging a catalog with itself yields the original
// rows.
func Merge(existing, fresh []Record) []Record {
	out := make([]Record, 0, len(existing)+len(fresh))
	seen := make(map[string]struct{}, len(existing)+len(fresh))

	for _, r := range append(append([]Record{}, existing...), fresh...) {
		if _, dup := seen[r.Title]; dup {
			continue
		}
		seen[r.Title] = struct{}{}
		if !r.PreviewAvailable() {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Filter returns the records matching the caller's tag and keyword
// criteria. An empty tag or keyword list means "no constraint"; when both
// are given, a record must match the tag AND share at least one keyword.
func Filter(records []Record, tag string, keywords []string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if tag != "" && r.Tag != tag {
			continue
		}
		if len(keywords) > 0 && !anyKeyword(r.Keywords, keywords) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func anyKeyword(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// Tags returns the distinct tag labels in first-seen order, excluding the
// NoTag sentinel. Used to populate the search UI's topic dropdown.
func Tags(records []Record) []string {
	out := make([]string, 0, 16)
	seen := make(map[string]struct{})
	for _, r := range records {
		if r.Tag == "" || r.Tag == NoTag {
			continue
		}
		if _, dup := seen[r.Tag]; dup {
			continue
		}
		seen[r.Tag] = struct{}{}
		out = append(out, r.Tag)
	}
	return out
}

// AllKeywords returns the distinct keywords across the catalog in
// first-seen order.
func AllKeywords(records []Record) []string {
	out := make([]string, 0, 64)
	seen := make(map[string]struct{})
	for _, r := range records {
		for _, k := range r.Keywords {
			if k == "" {
				continue
			}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}
