package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// FunnelStep is the tagged union of step kinds. Concrete types are
// URLStep and GoalStep; the JSON form is {"type":"url"|"goal", ...}.
type FunnelStep interface {
	StepName() string
	stepType() string
}

// URLStep is attained by a hit whose normalized path equals, or is a
// path-prefix descendant of, Target.
type URLStep struct {
	Target string `json:"url"`
	Name   string `json:"name"`
}

func (s URLStep) StepName() string { return s.Name }
func (s URLStep) stepType() string { return "url" }

// GoalStep is attained through the goal registry: identifier goals via the
// session's recorded goal-ID set, URL-based goals via hit scanning.
type GoalStep struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

func (s GoalStep) StepName() string { return s.Name }
func (s GoalStep) stepType() string { return "goal" }

// FunnelSteps is an ordered step list with the wire format used by the
// dashboard and the funnel definition files.
type FunnelSteps []FunnelStep

func (fs FunnelSteps) MarshalJSON() ([]byte, error) {
	out := make([]map[string]string, 0, len(fs))
	for _, step := range fs {
		entry := map[string]string{"type": step.stepType(), "name": step.StepName()}
		switch s := step.(type) {
		case URLStep:
			entry["url"] = s.Target
		case GoalStep:
			entry["code"] = s.Code
		}
		out = append(out, entry)
	}
	return json.Marshal(out)
}

func (fs *FunnelSteps) UnmarshalJSON(data []byte) error {
	var raw []struct {
		Type string `json:"type"`
		URL  string `json:"url"`
		Code string `json:"code"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	steps := make(FunnelSteps, 0, len(raw))
	for i, r := range raw {
		switch r.Type {
		case "url":
			if r.URL == "" {
				return fmt.Errorf("step %d: url step without url", i)
			}
			steps = append(steps, URLStep{Target: r.URL, Name: r.Name})
		case "goal":
			if r.Code == "" {
				return fmt.Errorf("step %d: goal step without code", i)
			}
			steps = append(steps, GoalStep{Code: r.Code, Name: r.Name})
		default:
			return fmt.Errorf("step %d: unknown step type %q", i, r.Type)
		}
	}
	*fs = steps
	return nil
}

// ConversionFunnel is an ordered list of steps whose sequential attainment
// is measured across sessions.
type ConversionFunnel struct {
	ID          string      `json:"id"`
	VersionID   int         `json:"version_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Steps       FunnelSteps `json:"steps"`
	IsPreset    bool        `json:"is_preset"`

	// RequireSequence makes steps count only in order, each after the
	// previous. AllowSkipSteps is stored for funnel definitions but does
	// not alter matching: attainment is always strictly no-skipping.
	RequireSequence bool `json:"require_sequence"`
	AllowSkipSteps  bool `json:"allow_skip_steps"`

	// Set for discovered funnels.
	Frequency  int     `json:"frequency,omitempty"`
	Percentage float64 `json:"percentage,omitempty"`
	CohortName string  `json:"cohort_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// StepMetric is one row of a funnel's per-step breakdown.
type StepMetric struct {
	StepNumber         int     `json:"step_number"`
	StepName           string  `json:"step_name"`
	StepType           string  `json:"step_type"`
	StepTarget         string  `json:"step_target"`
	UsersReached       int     `json:"users_reached"`
	ConversionFromPrev float64 `json:"conversion_from_prev"`
	DropOff            int     `json:"drop_off"`
	DropOffPercentage  float64 `json:"drop_off_percentage"`
}

// FunnelMetrics aggregates step attainment across sessions.
type FunnelMetrics struct {
	TotalEntered      int          `json:"total_entered"`
	TotalCompleted    int          `json:"total_completed"`
	OverallConversion float64      `json:"overall_conversion"`
	StepMetrics       []StepMetric `json:"step_metrics"`
	Commentary        string       `json:"commentary,omitempty"`
}

// CohortFunnelMetrics is the per-cohort breakdown of a funnel.
type CohortFunnelMetrics struct {
	CohortID          string        `json:"cohort_id"`
	CohortName        string        `json:"cohort_name"`
	UsersInCohort     int           `json:"users_in_cohort"`
	Metrics           FunnelMetrics `json:"funnel_metrics"`
	ParticipationRate float64       `json:"funnel_participation_rate"`
}

// StoredFunnelMetrics is the cached metrics row persisted per funnel and
// version, optionally with the cohort breakdown attached.
type StoredFunnelMetrics struct {
	FunnelID        string                `json:"funnel_id"`
	VersionID       int                   `json:"version_id"`
	IncludesCohorts bool                  `json:"includes_cohorts"`
	Metrics         FunnelMetrics         `json:"metrics"`
	CohortBreakdown []CohortFunnelMetrics `json:"cohort_breakdown,omitempty"`
	CalculatedAt    time.Time             `json:"calculated_at"`
	DurationSec     float64               `json:"calculation_duration_sec"`
}
