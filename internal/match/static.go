package match

import (
	"context"

	"enrich/internal/catalog"
	"enrich/internal/frame"
)

// Static is a Suggester with a fixed verdict. It backs demo deployments
// that must work without a completion backend, and doubles as a test
// double.
type Static struct {
	// Index is the 1-based candidate position to pick. 0 means no match.
	Index         int
	UserColumn    string
	CatalogColumn string
}

func (s Static) Suggest(ctx context.Context, user *frame.Frame, candidates []catalog.Record) (Suggestion, error) {
	if s.Index < 1 || s.Index > len(candidates) {
		return Suggestion{}, ErrNoMatch
	}
	return Suggestion{
		Index:         s.Index,
		RecordTitle:   candidates[s.Index-1].Title,
		UserColumn:    s.UserColumn,
		CatalogColumn: s.CatalogColumn,
	}, nil
}
