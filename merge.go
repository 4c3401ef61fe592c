package shroud

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// SideCounts holds a per-input count.
type SideCounts struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// MergeResult is the outcome of a merge.
type MergeResult struct {
	Table        *Table
	Strategy     MergeStrategy
	Mode         PrivacyMode
	QualityScore float64    // Matched pairs over the larger input, in [0,1]
	Matched      int        // Joined row pairs
	Unmatched    SideCounts // Rows with no partner, per side
	Duplicates   SideCounts // Rows whose key repeats an earlier row, per side
	NullKeys     SideCounts // Rows with a null or empty key, per side
}

// Merge joins left and right on key.
//
// Both inputs must already be in mode; mixing raw, pseudonymized and masked
// views fails with ErrPrivacyModeMismatch. A key column that was masked fails
// with ErrSchemaMismatch, and pseudonymized inputs from different sessions
// fail with ErrSessionMismatch. Null keys never match. Repeated
// keys produce every pairing. The output holds the key column once, then the
// left columns, then the right columns; a name present on both sides is
// prefixed with "left_" and "right_".
func Merge(ctx context.Context, left, right *Table, key string, strategy MergeStrategy, mode PrivacyMode) (*MergeResult, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if left == nil || right == nil {
		return nil, newConfigError("merge", "tables must not be nil")
	}
	if !IsValidStrategy(strategy) {
		return nil, newConfigError("strategy", fmt.Sprintf("unknown strategy %q", strategy))
	}
	if !IsValidMode(mode) {
		return nil, newConfigError("mode", fmt.Sprintf("unknown mode %q", mode))
	}
	if left.Mode() != mode || right.Mode() != mode {
		return nil, &MergeError{
			Err:       ErrPrivacyModeMismatch,
			Key:       key,
			LeftMode:  left.Mode(),
			RightMode: right.Mode(),
			Requested: mode,
		}
	}

	lk, rk := left.ColumnIndex(key), right.ColumnIndex(key)
	if lk < 0 {
		return nil, &MergeError{Err: ErrSchemaMismatch, Side: "left", Key: key}
	}
	if rk < 0 {
		return nil, &MergeError{Err: ErrSchemaMismatch, Side: "right", Key: key}
	}

	// Masking is lossy: ACC001 and ACC101 both display as ACC*01, so masked
	// keys would pair unrelated rows.
	for _, side := range []struct {
		name string
		t    *Table
	}{{"left", left}, {"right", right}} {
		if side.t.Privacy.AppliedTo(TransformMask, key) {
			return nil, &MergeError{
				Err:    ErrSchemaMismatch,
				Side:   side.name,
				Key:    key,
				Reason: "masked values are not unique; merge the pseudonymized views instead",
			}
		}
	}
	if mode == ModePseudonymized {
		ls, rs := left.Privacy.SessionID, right.Privacy.SessionID
		if ls != "" && rs != "" && ls != rs {
			return nil, &MergeError{
				Err:    ErrSessionMismatch,
				Key:    key,
				Reason: fmt.Sprintf("tokens come from sessions %s and %s", ls, rs),
			}
		}
	}

	res := &MergeResult{Strategy: strategy, Mode: mode}
	out := &Table{
		Name:    left.Name + "_" + right.Name,
		Columns: mergedColumns(left, right, lk, rk),
	}
	width := len(out.Columns)

	// Index right rows by key.
	index := make(map[string][]int)
	for i, row := range right.Rows {
		c := cellAt(row, rk)
		if c.Empty() {
			res.NullKeys.Right++
			continue
		}
		if len(index[c.Value]) > 0 {
			res.Duplicates.Right++
		}
		index[c.Value] = append(index[c.Value], i)
	}

	leftFlagged := lo.SliceToMap(left.Privacy.FlaggedRows, func(i int) (int, bool) { return i, true })
	rightFlagged := lo.SliceToMap(right.Privacy.FlaggedRows, func(i int) (int, bool) { return i, true })

	emit := func(li, ri int) {
		row := make([]Cell, 0, width)
		if li >= 0 {
			row = append(row, cellAt(left.Rows[li], lk))
		} else {
			row = append(row, cellAt(right.Rows[ri], rk))
		}
		row = appendSide(row, left, li, lk)
		row = appendSide(row, right, ri, rk)
		if leftFlagged[li] || rightFlagged[ri] {
			out.Privacy.flag(len(out.Rows))
		}
		out.Rows = append(out.Rows, row)
	}

	usedRight := make([]bool, len(right.Rows))
	seenLeft := make(map[string]bool)
	for li, row := range left.Rows {
		c := cellAt(row, lk)
		if c.Empty() {
			res.NullKeys.Left++
		} else {
			if seenLeft[c.Value] {
				res.Duplicates.Left++
			}
			seenLeft[c.Value] = true
		}

		matches := index[c.Value]
		if c.Empty() || len(matches) == 0 {
			res.Unmatched.Left++
			if strategy == MergeLeft || strategy == MergeOuter {
				emit(li, -1)
			}
			continue
		}
		for _, ri := range matches {
			usedRight[ri] = true
			res.Matched++
			emit(li, ri)
		}
	}

	for ri, used := range usedRight {
		if used {
			continue
		}
		res.Unmatched.Right++
		if strategy == MergeRight || strategy == MergeOuter {
			emit(-1, ri)
		}
	}

	res.QualityScore = mergeQuality(res.Matched, left.Len(), right.Len())

	out.Privacy.Mode = mode
	if left.Privacy.SessionID == right.Privacy.SessionID {
		out.Privacy.SessionID = left.Privacy.SessionID
	}
	out.Privacy.Transforms = append(left.Privacy.Clone().Transforms, right.Privacy.Clone().Transforms...)
	out.Privacy.record(TransformMerge, time.Now(), []string{key})
	res.Table = out

	emitMergeComplete(ctx, res, time.Since(start))
	return res, nil
}

// mergeQuality is matched pairs over the larger input, clamped to [0,1].
func mergeQuality(matched, leftRows, rightRows int) float64 {
	denom := max(leftRows, rightRows)
	if denom == 0 {
		return 0
	}
	return clamp01(float64(matched) / float64(denom))
}

// mergedColumns builds the output schema.
func mergedColumns(left, right *Table, lk, rk int) []Column {
	keyCol := left.Columns[lk]
	if keyCol.Kind == "" {
		keyCol.Kind = right.Columns[rk].Kind
	}

	leftNames := lo.SliceToMap(left.Columns, func(c Column) (string, bool) { return c.Name, true })
	rightNames := lo.SliceToMap(right.Columns, func(c Column) (string, bool) { return c.Name, true })

	cols := []Column{keyCol}
	for j, c := range left.Columns {
		if j == lk {
			continue
		}
		if rightNames[c.Name] {
			c.Name = "left_" + c.Name
		}
		cols = append(cols, c)
	}
	for j, c := range right.Columns {
		if j == rk {
			continue
		}
		if leftNames[c.Name] {
			c.Name = "right_" + c.Name
		}
		cols = append(cols, c)
	}
	return cols
}

// appendSide appends the non-key cells of row i of t, or nulls when i < 0.
func appendSide(dst []Cell, t *Table, i, key int) []Cell {
	for j := range t.Columns {
		if j == key {
			continue
		}
		if i < 0 {
			dst = append(dst, Null())
			continue
		}
		dst = append(dst, cellAt(t.Rows[i], j))
	}
	return dst
}

// cellAt returns row[j], or null for a short row.
func cellAt(row []Cell, j int) Cell {
	if j < 0 || j >= len(row) {
		return Null()
	}
	return row[j]
}
