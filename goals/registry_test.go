package goals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uxpulse/api/models"
)

const sampleYAML = `
goals:
  - code: signup
    name: Sign up
    ym_goal_id: 42
    match:
      type: identifier
  - code: thanks
    name: Thank you page
    match:
      type: url_prefix
      value: https://site.ru/thanks
`

func TestParse(t *testing.T) {
	reg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	goal, ok := reg.GoalByCode("signup")
	require.True(t, ok)
	assert.Equal(t, int64(42), goal.YMGoalID)
	assert.Equal(t, models.MatchIdentifier, goal.Match.Type)

	byID, ok := reg.GoalByID(42)
	require.True(t, ok)
	assert.Equal(t, "signup", byID.Code)

	_, ok = reg.GoalByCode("missing")
	assert.False(t, ok)
	assert.Len(t, reg.All(), 2)
}

func TestParse_DuplicateCode(t *testing.T) {
	_, err := Parse([]byte(`
goals:
  - code: signup
    match: {type: identifier}
  - code: signup
    match: {type: identifier}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate goal code")
}

func TestParse_URLMatchNeedsValue(t *testing.T) {
	_, err := Parse([]byte(`
goals:
  - code: broken
    match: {type: url_prefix}
`))
	require.Error(t, err)
}

func TestParse_UnknownMatchType(t *testing.T) {
	_, err := Parse([]byte(`
goals:
  - code: broken
    match: {type: regex}
`))
	require.Error(t, err)
}
