package analysis

import (
	"sort"
	"strings"
)

// Sequence is one mined contiguous sub-sequence with its support.
type Sequence struct {
	Steps      []PathStep
	Count      int
	Percentage float64
}

// Key returns a stable identity for the sequence. Step kind is part of the
// key, so a page step and a goal step with the same text never collide.
func (s Sequence) Key() string {
	return sequenceKey(s.Steps)
}

func sequenceKey(steps []PathStep) string {
	parts := make([]string, len(steps))
	for i, step := range steps {
		parts[i] = string(step.Kind) + ":" + step.Value
	}
	return strings.Join(parts, "\x1f")
}

// MineOptions bounds sequence mining.
type MineOptions struct {
	// MinSupport is the absolute occurrence count a sequence needs.
	MinSupport int
	// MinPercentage is the required share of TotalSessions, in percent.
	MinPercentage float64
	// TotalSessions sizes the percentage denominator. Zero disables the
	// percentage filter.
	TotalSessions int
}

const (
	minMinedLength = 2
	maxMinedLength = 4
)

// MineSequences counts every contiguous sub-sequence of length 2 through 4
// across the extracted paths and keeps those meeting both the absolute
// support and the percentage-of-sessions floor. Results are sorted by
// count descending, ties broken by percentage descending.
//
// Raising MinSupport can only shrink the result set, never grow it.
func MineSequences(paths []Path, opts MineOptions) []Sequence {
	counts := make(map[string]int)
	shapes := make(map[string][]PathStep)

	for _, path := range paths {
		maxLen := maxMinedLength
		if len(path.Steps) < maxLen {
			maxLen = len(path.Steps)
		}
		for length := minMinedLength; length <= maxLen; length++ {
			for i := 0; i+length <= len(path.Steps); i++ {
				window := path.Steps[i : i+length]
				key := sequenceKey(window)
				if _, seen := counts[key]; !seen {
					shape := make([]PathStep, length)
					copy(shape, window)
					shapes[key] = shape
				}
				counts[key]++
			}
		}
	}

	var result []Sequence
	for key, count := range counts {
		if count < opts.MinSupport {
			continue
		}
		percentage := 0.0
		if opts.TotalSessions > 0 {
			percentage = float64(count) / float64(opts.TotalSessions) * 100
		}
		if opts.TotalSessions > 0 && percentage < opts.MinPercentage {
			continue
		}
		result = append(result, Sequence{Steps: shapes[key], Count: count, Percentage: percentage})
	}

	sort.Slice(result, func(a, b int) bool {
		if result[a].Count != result[b].Count {
			return result[a].Count > result[b].Count
		}
		if result[a].Percentage != result[b].Percentage {
			return result[a].Percentage > result[b].Percentage
		}
		return result[a].Key() < result[b].Key()
	})
	return result
}

// FilterRedundant removes sequences subsumed by a longer kept sequence:
// processing longest-first, a strictly shorter sequence is dropped when it
// appears as a contiguous window of an already-kept one. This keeps
// A→B→C and drops A→B when the longer funnel already captures the same
// users. Idempotent: filtering the output again changes nothing.
func FilterRedundant(sequences []Sequence) []Sequence {
	if len(sequences) == 0 {
		return nil
	}

	ordered := make([]Sequence, len(sequences))
	copy(ordered, sequences)
	sort.SliceStable(ordered, func(a, b int) bool {
		if len(ordered[a].Steps) != len(ordered[b].Steps) {
			return len(ordered[a].Steps) > len(ordered[b].Steps)
		}
		return ordered[a].Count > ordered[b].Count
	})

	var kept []Sequence
	for _, seq := range ordered {
		subsumed := false
		for _, longer := range kept {
			if len(seq.Steps) < len(longer.Steps) && containsWindow(longer.Steps, seq.Steps) {
				subsumed = true
				break
			}
		}
		if !subsumed {
			kept = append(kept, seq)
		}
	}

	sort.SliceStable(kept, func(a, b int) bool {
		if kept[a].Count != kept[b].Count {
			return kept[a].Count > kept[b].Count
		}
		return kept[a].Percentage > kept[b].Percentage
	})
	return kept
}

func containsWindow(haystack, needle []PathStep) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// AdaptiveSupport picks a support floor proportional to the mined
// population. Small populations (cohorts under 50 sessions) get a relaxed
// 20% floor so real patterns are not lost; large ones use 2% capped at 50
// so noise does not pass.
func AdaptiveSupport(population int) int {
	if population < 50 {
		return maxInt(3, population*20/100)
	}
	return maxInt(3, minInt(population*2/100, 50))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
