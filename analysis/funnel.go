package analysis

import (
	"math"
	"strings"

	"uxpulse/api/models"
)

// FunnelCalculator determines per-session step attainment and aggregates
// entry/completion/drop-off metrics for a funnel definition.
type FunnelCalculator struct {
	Goals GoalResolver
}

// Calculate runs the funnel against the given sessions. clientFilter, when
// non-nil, restricts the calculation to those client IDs (cohort scoping).
//
// With RequireSequence the per-session matching is a strict left-to-right
// state machine: step i is only tested while awaiting step i, and a failed
// step halts the session's progress there. Without it every step is tested
// independently against the whole session.
func (c *FunnelCalculator) Calculate(funnel *models.ConversionFunnel, sessions []models.VisitSession, clientFilter map[string]struct{}) models.FunnelMetrics {
	steps := funnel.Steps
	if len(steps) == 0 {
		return models.FunnelMetrics{StepMetrics: []models.StepMetric{}}
	}

	reached := make([]map[string]struct{}, len(steps))
	for i := range reached {
		reached[i] = make(map[string]struct{})
	}

	for si := range sessions {
		session := &sessions[si]
		if clientFilter != nil {
			if _, ok := clientFilter[session.ClientID]; !ok {
				continue
			}
		}

		if funnel.RequireSequence {
			for i, step := range steps {
				if !c.stepAchieved(session, step) {
					break
				}
				reached[i][session.ClientID] = struct{}{}
			}
		} else {
			for i, step := range steps {
				if c.stepAchieved(session, step) {
					reached[i][session.ClientID] = struct{}{}
				}
			}
		}
	}

	totalEntered := len(reached[0])
	totalCompleted := len(reached[len(steps)-1])

	overall := 0.0
	if totalEntered > 0 {
		overall = float64(totalCompleted) / float64(totalEntered) * 100
	}

	stepMetrics := make([]models.StepMetric, 0, len(steps))
	prev := totalEntered
	for i, step := range steps {
		users := len(reached[i])
		conv := 0.0
		dropPct := 0.0
		drop := prev - users
		if prev > 0 {
			conv = float64(users) / float64(prev) * 100
			dropPct = float64(drop) / float64(prev) * 100
		}
		stepMetrics = append(stepMetrics, models.StepMetric{
			StepNumber:         i + 1,
			StepName:           step.StepName(),
			StepType:           stepTypeOf(step),
			StepTarget:         stepTargetOf(step),
			UsersReached:       users,
			ConversionFromPrev: round2(conv),
			DropOff:            drop,
			DropOffPercentage:  round2(dropPct),
		})
		prev = users
	}

	return models.FunnelMetrics{
		TotalEntered:      totalEntered,
		TotalCompleted:    totalCompleted,
		OverallConversion: round2(overall),
		StepMetrics:       stepMetrics,
	}
}

// CalculateByCohorts re-runs the calculator restricted to each cohort's
// member set. Cohorts without members are skipped and reported back by
// name so the caller can log the "no members" diagnostic.
func (c *FunnelCalculator) CalculateByCohorts(funnel *models.ConversionFunnel, sessions []models.VisitSession, cohorts []models.UserCohort) ([]models.CohortFunnelMetrics, []string) {
	var breakdown []models.CohortFunnelMetrics
	var skipped []string

	for i := range cohorts {
		cohort := &cohorts[i]
		members := cohort.MemberSet()
		if len(members) == 0 {
			skipped = append(skipped, cohort.Name)
			continue
		}

		metrics := c.Calculate(funnel, sessions, members)
		participation := 0.0
		if cohort.UsersCount > 0 {
			participation = float64(metrics.TotalEntered) / float64(cohort.UsersCount) * 100
		}
		breakdown = append(breakdown, models.CohortFunnelMetrics{
			CohortID:          cohort.ID,
			CohortName:        cohort.Name,
			UsersInCohort:     cohort.UsersCount,
			Metrics:           metrics,
			ParticipationRate: round2(participation),
		})
	}
	return breakdown, skipped
}

func (c *FunnelCalculator) stepAchieved(session *models.VisitSession, step models.FunnelStep) bool {
	switch s := step.(type) {
	case models.URLStep:
		for i := range session.Hits {
			if URLStepMatches(session.Hits[i].URL, s.Target) {
				return true
			}
		}
		return false
	case models.GoalStep:
		if c.Goals == nil {
			return false
		}
		goal, ok := c.Goals.GoalByCode(s.Code)
		if !ok {
			return false
		}
		return c.goalAchieved(session, goal)
	}
	return false
}

func (c *FunnelCalculator) goalAchieved(session *models.VisitSession, goal models.Goal) bool {
	switch goal.Match.Type {
	case models.MatchIdentifier:
		// Identifier goals resolve through the session's goal-ID set only.
		if goal.YMGoalID == 0 {
			return false
		}
		return session.CompletedGoal(goal.YMGoalID)
	case models.MatchURLPrefix:
		if goal.Match.Value == "" {
			return false
		}
		for i := range session.Hits {
			if strings.HasPrefix(session.Hits[i].URL, goal.Match.Value) {
				return true
			}
		}
		return false
	case models.MatchURLContains:
		if goal.Match.Value == "" {
			return false
		}
		for i := range session.Hits {
			if strings.Contains(session.Hits[i].URL, goal.Match.Value) {
				return true
			}
		}
		return false
	case models.MatchClick:
		// Click goals need instrumentation we do not ingest.
		return false
	}
	return false
}

// URLStepMatches reports whether a hit URL attains a URL funnel step:
// exact match after normalization, or the hit path is a path-prefix
// descendant of the step target after /base/ and /bachelor/ are
// equivalenced.
func URLStepMatches(hitURL, target string) bool {
	if hitURL == "" || target == "" {
		return false
	}
	if NormalizeURL(hitURL) != "" && NormalizeURL(hitURL) == NormalizeURL(target) {
		return true
	}

	hitPath := equivalentPath(extractPath(hitURL))
	targetPath := equivalentPath(extractPath(target))
	if hitPath == "" || targetPath == "" {
		return false
	}
	if hitPath == targetPath {
		return true
	}
	return strings.HasPrefix(hitPath, targetPath+"/")
}

func stepTypeOf(step models.FunnelStep) string {
	if _, ok := step.(models.GoalStep); ok {
		return "goal"
	}
	return "url"
}

func stepTargetOf(step models.FunnelStep) string {
	switch s := step.(type) {
	case models.URLStep:
		return s.Target
	case models.GoalStep:
		return s.Code
	}
	return ""
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
