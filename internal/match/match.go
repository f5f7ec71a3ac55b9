// Package match selects, for an uploaded dataset, the best joinable
// candidate from a filtered catalog subset together with the column pair
// to join on. The production implementation delegates the choice to a
// text-generation backend; a static implementation serves demos and tests.
package match

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"enrich/internal/catalog"
	"enrich/internal/frame"
)

// ErrNoMatch reports that the backend examined the candidates and found
// none joinable. It is a normal outcome, not a fault.
var ErrNoMatch = errors.New("match: no joinable dataset found")

// Error wraps backend and reply-parsing failures so callers can separate
// them from ErrNoMatch and from join failures further down the pipeline.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "match: " + e.Reason
	}
	return fmt.Sprintf("match: %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Suggestion is a parsed, validated backend verdict.
type Suggestion struct {
	// Index is the 1-based position in the candidate list that was shown
	// to the backend.
	Index int

	// RecordTitle is the title of the chosen catalog record, resolved
	// against the same candidate slice the prompt was built from. Callers
	// should key on it rather than on Index: the positional id is only
	// stable for the lifetime of one request.
	RecordTitle string

	UserColumn    string
	CatalogColumn string
}

// Suggester picks a join candidate for the user's dataset.
type Suggester interface {
	// Suggest returns ErrNoMatch when no candidate is joinable and *Error
	// for backend or protocol failures. candidates must be non-empty.
	Suggest(ctx context.Context, user *frame.Frame, candidates []catalog.Record) (Suggestion, error)
}

// maxCandidates bounds how many catalog previews go into one prompt.
const maxCandidates = 6

// maxUserRows bounds how many uploaded rows go into one prompt.
const maxUserRows = 10

var replyRe = regexp.MustCompile(`Dataset: (\d+), columns to join: (\w+) - (\w+)`)

// buildSystemPrompt renders the instruction the backend operates under:
// the expected answer format and the numbered candidate previews.
func buildSystemPrompt(candidates []catalog.Record) string {
	var b strings.Builder
	b.WriteString("You are given numbered datasets and will receive a user dataset. ")
	b.WriteString("Decide which single dataset can be joined onto the user dataset and on which column pair. ")
	b.WriteString("Answer exactly in the form 'Dataset: <number>, columns to join: <user column> - <dataset column>'. ")
	b.WriteString("If none is joinable, answer exactly '0'.\n\n")

	for i, c := range candidates {
		if i >= maxCandidates {
			break
		}
		fmt.Fprintf(&b, "Dataset %d:\n%s\n\n", i+1, c.TopTenCols)
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildUserPrompt renders the head of the user's dataset, sent as the
// user-role half of the request.
func buildUserPrompt(user *frame.Frame) string {
	return "User dataset:\n" + user.Preview(maxUserRows)
}

// parseReply turns the backend's raw reply into a Suggestion resolved
// against candidates. Any reply that does not match the expected shape,
// including the literal "0", means no match.
func parseReply(reply string, candidates []catalog.Record) (Suggestion, error) {
	m := replyRe.FindStringSubmatch(reply)
	if m == nil {
		return Suggestion{}, ErrNoMatch
	}

	idx, err := strconv.Atoi(m[1])
	if err != nil || idx < 1 {
		return Suggestion{}, ErrNoMatch
	}
	shown := len(candidates)
	if shown > maxCandidates {
		shown = maxCandidates
	}
	if idx > shown {
		return Suggestion{}, &Error{Reason: fmt.Sprintf("backend picked dataset %d of %d", idx, shown)}
	}

	return Suggestion{
		Index:         idx,
		RecordTitle:   candidates[idx-1].Title,
		UserColumn:    m[2],
		CatalogColumn: m[3],
	}, nil
}
