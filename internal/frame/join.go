package frame

import "fmt"

// JoinError reports a join column that does not exist on one side of the
// join. It is surfaced to the user as a non-fatal message; Side tells the
// caller which dataset to point at.
type JoinError struct {
	Side   string // "user" or "catalog"
	Column string
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("join column %q not found in %s dataset", e.Column, e.Side)
}

// LeftJoin performs a left outer join of user against candidate on equality
// of userCol and candCol.
//
// Semantics:
//   - Every user row is preserved, in order. A user row with multiple
//     candidate matches is emitted once per match.
//   - User rows without a match get empty values for all candidate-derived
//     columns.
//   - The candidate's join column is folded into the user's when both sides
//     join on the same name; otherwise it is carried as a regular added
//     column. Candidate columns whose name collides with a user column are
//     suffixed "_y".
//
// The second return value lists the output columns that did not exist in
// the user dataset, in their resulting order. It exists for downstream
// highlighting only.
func LeftJoin(user, candidate *Frame, userCol, candCol string) (*Frame, []string, error) {
	uIdx := user.ColumnIndex(userCol)
	if uIdx < 0 {
		return nil, nil, &JoinError{Side: "user", Column: userCol}
	}
	cIdx := candidate.ColumnIndex(candCol)
	if cIdx < 0 {
		return nil, nil, &JoinError{Side: "catalog", Column: candCol}
	}

	userCols := make(map[string]struct{}, len(user.Columns))
	for _, c := range user.Columns {
		userCols[c] = struct{}{}
	}

	// Candidate columns carried into the output, excluding the join column
	// when it folds into the user's.
	carried := make([]int, 0, len(candidate.Columns))
	added := make([]string, 0, len(candidate.Columns))
	for i, c := range candidate.Columns {
		if i == cIdx && candCol == userCol {
			continue
		}
		name := c
		if _, clash := userCols[c]; clash {
			name = c + "_y"
		}
		carried = append(carried, i)
		added = append(added, name)
	}

	// Index the candidate rows by join key.
	byKey := make(map[string][]int, len(candidate.Rows))
	for ri, row := range candidate.Rows {
		if cIdx >= len(row) {
			continue
		}
		byKey[row[cIdx]] = append(byKey[row[cIdx]], ri)
	}

	out := &Frame{
		Columns: append(append([]string{}, user.Columns...), added...),
		Rows:    make([][]string, 0, len(user.Rows)),
	}

	emit := func(userRow []string, candRow []string) {
		row := make([]string, 0, len(out.Columns))
		row = append(row, userRow...)
		for _, ci := range carried {
			if candRow == nil || ci >= len(candRow) {
				row = append(row, "")
				continue
			}
			row = append(row, candRow[ci])
		}
		out.Rows = append(out.Rows, row)
	}

	for _, uRow := range user.Rows {
		if uIdx >= len(uRow) {
			emit(uRow, nil)
			continue
		}
		matches := byKey[uRow[uIdx]]
		if len(matches) == 0 {
			emit(uRow, nil)
			continue
		}
		for _, ri := range matches {
			emit(uRow, candidate.Rows[ri])
		}
	}

	out.Types = inferTypes(out.Columns, out.Rows)
	return out, added, nil
}
