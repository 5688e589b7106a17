package manifest

import (
	"golang.org/x/sync/errgroup"
)

// parallelThreshold is the batch size below which rows are normalized on the
// calling goroutine even when workers are configured.
const parallelThreshold = 256

// BatchOptions controls batch normalization.
type BatchOptions struct {
	// Selected restricts normalization to these 1-based row numbers. Empty
	// means every row.
	Selected []int
	// Search filters the returned rows with MatchesNormalized. It only
	// narrows the preview; counts of selected rows are unaffected.
	Search string
	// Workers bounds parallel normalization. Values <= 1 run sequentially.
	Workers int
}

// BatchResult is the outcome of normalizing a batch. There is no failure
// status: per-field problems show up only in DegradedFields.
type BatchResult struct {
	Rows           []NormalizedRow `json:"rows"`
	TotalRows      int             `json:"total_rows"`
	SelectedRows   int             `json:"selected_rows"`
	MatchedRows    int             `json:"matched_rows"`
	DegradedFields int             `json:"degraded_fields"`
}

// SelectRows returns the rows whose RowNumber is listed, preserving input
// order. An empty selection returns rows unchanged.
func SelectRows(rows []RawRow, selected []int) []RawRow {
	if len(selected) == 0 {
		return rows
	}
	want := make(map[int]struct{}, len(selected))
	for _, n := range selected {
		want[n] = struct{}{}
	}
	out := make([]RawRow, 0, len(selected))
	for _, r := range rows {
		if _, ok := want[r.RowNumber]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Normalize standardizes a batch of rows. Output order matches input order
// regardless of Workers, and the same input always yields the same output.
func Normalize(rows []RawRow, set *MappingSet, opts BatchOptions) BatchResult {
	selected := SelectRows(rows, opts.Selected)

	normalized := make([]NormalizedRow, len(selected))
	degraded := make([]int, len(selected))

	if opts.Workers <= 1 || len(selected) < parallelThreshold {
		for i, r := range selected {
			normalized[i], degraded[i] = normalizeRow(r, set)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(opts.Workers)
		for i := range selected {
			g.Go(func() error {
				normalized[i], degraded[i] = normalizeRow(selected[i], set)
				return nil
			})
		}
		_ = g.Wait()
	}

	result := BatchResult{
		TotalRows:    len(rows),
		SelectedRows: len(selected),
	}
	for _, d := range degraded {
		result.DegradedFields += d
	}

	if opts.Search == "" {
		result.Rows = normalized
	} else {
		result.Rows = make([]NormalizedRow, 0, len(normalized))
		for _, r := range normalized {
			if MatchesNormalized(r, opts.Search) {
				result.Rows = append(result.Rows, r)
			}
		}
	}
	result.MatchedRows = len(result.Rows)

	return result
}
