package analysis

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"uxpulse/api/models"
)

// MaterializeOptions controls funnel construction from mined sequences.
type MaterializeOptions struct {
	// BaseURL prefixes step targets so funnel definitions carry full URLs.
	BaseURL string
	// CohortName marks cohort-scoped discovery in the funnel description.
	CohortName string
	Goals      GoalResolver
}

// genericStepNames are step names too vague to stand on their own.
var genericStepNames = map[string]bool{
	"Programs": true,
	"Index":    true,
	"Main":     true,
}

const maxStepNameLen = 40

// MaterializeFunnels converts surviving sequences into funnel definitions.
// Funnels with fewer than two steps, or without at least one URL step, are
// rejected outright.
func MaterializeFunnels(sequences []Sequence, opts MaterializeOptions) []models.ConversionFunnel {
	var funnels []models.ConversionFunnel
	for _, seq := range sequences {
		funnel, ok := materializeOne(seq, opts)
		if ok {
			funnels = append(funnels, funnel)
		}
	}
	return funnels
}

func materializeOne(seq Sequence, opts MaterializeOptions) (models.ConversionFunnel, bool) {
	if len(seq.Steps) < 2 {
		return models.ConversionFunnel{}, false
	}

	steps := make(models.FunnelSteps, 0, len(seq.Steps))
	urlSteps := 0
	var pathParts []string
	for _, step := range seq.Steps {
		switch step.Kind {
		case StepPage:
			target := opts.BaseURL + step.Value
			steps = append(steps, models.URLStep{Target: target, Name: StepNameFromPath(step.Value)})
			urlSteps++
			pathParts = append(pathParts, step.Value)
		case StepGoal:
			name := step.Value
			if opts.Goals != nil {
				if goal, ok := opts.Goals.GoalByCode(step.Value); ok {
					name = goal.Name
				}
			}
			steps = append(steps, models.GoalStep{Code: step.Value, Name: name})
			pathParts = append(pathParts, step.Value)
		}
	}
	if urlSteps == 0 {
		return models.ConversionFunnel{}, false
	}

	first := steps[0].StepName()
	last := steps[len(steps)-1].StepName()
	var name string
	if len(steps) == 2 {
		name = fmt.Sprintf("%s → %s (auto, %d)", first, last, seq.Count)
	} else {
		name = fmt.Sprintf("%s → ... → %s (auto, %d)", first, last, seq.Count)
	}

	description := fmt.Sprintf(
		"Automatically discovered funnel from observed user paths. %d users followed %s (%.1f%% of all sessions).",
		seq.Count, strings.Join(pathParts, " → "), seq.Percentage,
	)
	if opts.CohortName != "" {
		description += fmt.Sprintf(" Discovered within cohort %q.", opts.CohortName)
	}

	return models.ConversionFunnel{
		Name:            name,
		Description:     description,
		Steps:           steps,
		IsPreset:        false,
		RequireSequence: true,
		AllowSkipSteps:  false,
		Frequency:       seq.Count,
		Percentage:      math.Round(seq.Percentage*100) / 100,
		CohortName:      opts.CohortName,
	}, true
}

// StepNameFromPath derives a human step name from the last non-trivial
// segment of a discovery path. Generic or overlong names fall back to the
// second-to-last segment; especially generic single words compose both.
func StepNameFromPath(path string) string {
	var parts []string
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "Home Page"
	}

	name := cleanSegmentName(parts[len(parts)-1])
	if len(parts) > 1 && (genericStepNames[name] || len(name) > maxStepNameLen) {
		prev := cleanSegmentName(parts[len(parts)-2])
		if genericStepNames[name] && !strings.Contains(name, " ") {
			name = prev + " " + name
		} else {
			name = prev
		}
	}
	return name
}

func cleanSegmentName(segment string) string {
	segment = fileExtRe.ReplaceAllString(segment, "")
	segment = strings.NewReplacer("-", " ", "_", " ").Replace(segment)
	return titleCase(segment)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		first, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(first)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
