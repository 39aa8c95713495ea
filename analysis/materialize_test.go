package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uxpulse/api/models"
)

func TestMaterializeFunnels_TwoStepName(t *testing.T) {
	seq := Sequence{
		Steps:      []PathStep{{StepPage, "/programs/math/"}, {StepPage, "/apply/"}},
		Count:      42,
		Percentage: 12.3456,
	}

	funnels := MaterializeFunnels([]Sequence{seq}, MaterializeOptions{BaseURL: "https://site.ru"})
	require.Len(t, funnels, 1)

	f := funnels[0]
	assert.Equal(t, "Math → Apply (auto, 42)", f.Name)
	assert.True(t, f.RequireSequence)
	assert.False(t, f.AllowSkipSteps)
	assert.False(t, f.IsPreset)
	assert.Equal(t, 42, f.Frequency)
	assert.Equal(t, 12.35, f.Percentage)

	require.Len(t, f.Steps, 2)
	url, ok := f.Steps[0].(models.URLStep)
	require.True(t, ok)
	assert.Equal(t, "https://site.ru/programs/math/", url.Target)
}

func TestMaterializeFunnels_LongerNameElides(t *testing.T) {
	seq := Sequence{
		Steps: []PathStep{{StepPage, "/"}, {StepPage, "/programs/math/"}, {StepPage, "/apply/"}},
		Count: 7,
	}

	funnels := MaterializeFunnels([]Sequence{seq}, MaterializeOptions{})
	require.Len(t, funnels, 1)
	assert.Equal(t, "Home Page → ... → Apply (auto, 7)", funnels[0].Name)
}

func TestMaterializeFunnels_RejectsTooShort(t *testing.T) {
	seq := Sequence{Steps: []PathStep{{StepPage, "/a/"}}, Count: 5}
	assert.Empty(t, MaterializeFunnels([]Sequence{seq}, MaterializeOptions{}))
}

func TestMaterializeFunnels_RejectsGoalOnly(t *testing.T) {
	seq := Sequence{
		Steps: []PathStep{{StepGoal, "signup"}, {StepGoal, "purchase"}},
		Count: 5,
	}
	assert.Empty(t, MaterializeFunnels([]Sequence{seq}, MaterializeOptions{}))
}

func TestMaterializeFunnels_GoalStepNameFromRegistry(t *testing.T) {
	goals := stubGoals{7: {Code: "signup", Name: "Sign up", YMGoalID: 7}}
	seq := Sequence{
		Steps: []PathStep{{StepPage, "/apply/"}, {StepGoal, "signup"}},
		Count: 9,
	}

	funnels := MaterializeFunnels([]Sequence{seq}, MaterializeOptions{Goals: goals})
	require.Len(t, funnels, 1)
	goal, ok := funnels[0].Steps[1].(models.GoalStep)
	require.True(t, ok)
	assert.Equal(t, "Sign up", goal.Name)
}

func TestMaterializeFunnels_CohortDescription(t *testing.T) {
	seq := Sequence{
		Steps: []PathStep{{StepPage, "/a/"}, {StepPage, "/b/"}},
		Count: 5,
	}
	funnels := MaterializeFunnels([]Sequence{seq}, MaterializeOptions{CohortName: "Explorers"})
	require.Len(t, funnels, 1)
	assert.Contains(t, funnels[0].Description, `cohort "Explorers"`)
	assert.Equal(t, "Explorers", funnels[0].CohortName)
}

func TestStepNameFromPath(t *testing.T) {
	assert.Equal(t, "Home Page", StepNameFromPath("/"))
	assert.Equal(t, "Math", StepNameFromPath("/programs/math/"))
	assert.Equal(t, "Open Day", StepNameFromPath("/events/open-day/"))
	assert.Equal(t, "Programs", StepNameFromPath("/programs/"))
	assert.Equal(t, "Bachelor Programs", StepNameFromPath("/bachelor/programs/"))
	assert.Equal(t, "Математика", StepNameFromPath("/programs/математика/"))
}
