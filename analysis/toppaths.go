package analysis

// TopPathsOptions bounds the popular-paths report.
type TopPathsOptions struct {
	// MinLength and MaxLength bound the reported window sizes. Defaults are
	// 2 and 3 when zero.
	MinLength int
	MaxLength int
	// Limit caps the number of returned paths. Zero means 20.
	Limit int
}

// TopPaths reports the most traveled contiguous windows across the
// extracted paths: the dashboard's "popular routes" list. Unlike funnel
// mining it applies no support floor, just a result cap, and overlapping
// windows are deliberately kept so a dominant route shows up at every
// length.
func TopPaths(paths []Path, opts TopPathsOptions) []Sequence {
	minLen := opts.MinLength
	if minLen < 2 {
		minLen = 2
	}
	maxLen := opts.MaxLength
	if maxLen < minLen {
		maxLen = 3
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}

	mined := MineSequences(paths, MineOptions{
		MinSupport:    1,
		TotalSessions: len(paths),
	})

	var result []Sequence
	for _, seq := range mined {
		if len(seq.Steps) < minLen || len(seq.Steps) > maxLen {
			continue
		}
		result = append(result, seq)
		if len(result) >= limit {
			break
		}
	}
	return result
}
