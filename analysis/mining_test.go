package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pagePath(visit string, values ...string) Path {
	steps := make([]PathStep, len(values))
	for i, v := range values {
		steps[i] = PathStep{Kind: StepPage, Value: v}
	}
	return Path{VisitID: visit, ClientID: visit, Steps: steps}
}

func repeatPaths(n int, values ...string) []Path {
	paths := make([]Path, n)
	for i := range paths {
		paths[i] = pagePath("v", values...)
	}
	return paths
}

func TestMineSequences_CountsContiguousWindows(t *testing.T) {
	paths := repeatPaths(10, "/a/", "/b/", "/c/")

	mined := MineSequences(paths, MineOptions{MinSupport: 5, TotalSessions: 10})
	// Windows: a→b, b→c, a→b→c, each seen 10 times.
	require.Len(t, mined, 3)
	for _, seq := range mined {
		assert.Equal(t, 10, seq.Count)
		assert.Equal(t, 100.0, seq.Percentage)
	}
}

func TestFilterRedundant_KeepsOnlyLongest(t *testing.T) {
	paths := repeatPaths(10, "/a/", "/b/", "/c/")
	mined := MineSequences(paths, MineOptions{MinSupport: 5, TotalSessions: 10})

	kept := FilterRedundant(mined)
	require.Len(t, kept, 1)
	assert.Len(t, kept[0].Steps, 3)
	assert.Equal(t, 10, kept[0].Count)
}

func TestFilterRedundant_Idempotent(t *testing.T) {
	paths := append(repeatPaths(10, "/a/", "/b/", "/c/"), repeatPaths(8, "/x/", "/y/")...)
	mined := MineSequences(paths, MineOptions{MinSupport: 3, TotalSessions: 18})

	once := FilterRedundant(mined)
	twice := FilterRedundant(once)
	assert.Equal(t, once, twice)
}

func TestFilterRedundant_KeepsNonSubsumedShort(t *testing.T) {
	paths := append(repeatPaths(10, "/a/", "/b/", "/c/"), repeatPaths(8, "/x/", "/y/")...)
	mined := MineSequences(paths, MineOptions{MinSupport: 3, TotalSessions: 18})

	kept := FilterRedundant(mined)
	keys := make(map[string]bool)
	for _, seq := range kept {
		keys[seq.Key()] = true
	}
	assert.True(t, keys[sequenceKey([]PathStep{{StepPage, "/a/"}, {StepPage, "/b/"}, {StepPage, "/c/"}})])
	assert.True(t, keys[sequenceKey([]PathStep{{StepPage, "/x/"}, {StepPage, "/y/"}})])
	assert.False(t, keys[sequenceKey([]PathStep{{StepPage, "/a/"}, {StepPage, "/b/"}})])
}

// Raising the support floor can only shrink the result set.
func TestMineSequences_SupportMonotonicity(t *testing.T) {
	paths := append(repeatPaths(12, "/a/", "/b/", "/c/"), repeatPaths(4, "/x/", "/y/")...)

	low := MineSequences(paths, MineOptions{MinSupport: 3, TotalSessions: 16})
	high := MineSequences(paths, MineOptions{MinSupport: 10, TotalSessions: 16})

	assert.LessOrEqual(t, len(high), len(low))
	lowKeys := make(map[string]bool)
	for _, seq := range low {
		lowKeys[seq.Key()] = true
	}
	for _, seq := range high {
		assert.True(t, lowKeys[seq.Key()], "sequence %q missing from lower-support run", seq.Key())
	}
}

func TestMineSequences_GoalAndPageStepsNeverCollide(t *testing.T) {
	paths := []Path{
		{Steps: []PathStep{{StepPage, "signup"}, {StepPage, "/b/"}}},
		{Steps: []PathStep{{StepGoal, "signup"}, {StepPage, "/b/"}}},
	}
	mined := MineSequences(paths, MineOptions{MinSupport: 1})
	assert.Len(t, mined, 2)
}

func TestAdaptiveSupport(t *testing.T) {
	assert.Equal(t, 3, AdaptiveSupport(10), "tiny population floors at 3")
	assert.Equal(t, 4, AdaptiveSupport(20), "small population uses 20%")
	assert.Equal(t, 3, AdaptiveSupport(100), "large population uses 2%")
	assert.Equal(t, 20, AdaptiveSupport(1000))
	assert.Equal(t, 50, AdaptiveSupport(5000), "support caps at 50")
}
