package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicExplicitTerms(t *testing.T) {
	assert := assert.New(t)

	h, err := NewHeuristic([]string{"Merde", "putain"}, nil)
	require.NoError(t, err)

	fixtures := []struct {
		text  string
		score float64
	}{
		{text: "", score: 0},
		{text: "bonjour tout le monde", score: 0},
		{text: "oh MERDE alors", score: ExplicitTermScore},
		{text: "pùtaín", score: ExplicitTermScore},
		{text: "merdique", score: 0},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.score, h.Score(fix.text), fix.text)
	}
}

func TestHeuristicPatterns(t *testing.T) {
	assert := assert.New(t)

	h, err := NewHeuristic(nil, []PatternRule{
		{Pattern: `\bva te faire\b`, Score: 8.5},
		{Pattern: `\bta gueule\b`, Score: 6.0},
	})
	require.NoError(t, err)

	assert.Equal(8.5, h.Score("VA TE FAIRE voir"))
	assert.Equal(6.0, h.Score("oh ta gueule toi"))
	assert.Equal(0.0, h.Score("gueule de bois"))
}

func TestHeuristicTakesMax(t *testing.T) {
	assert := assert.New(t)

	h, err := NewHeuristic([]string{"merde"}, []PatternRule{
		{Pattern: `\bta gueule\b`, Score: 6.0},
	})
	require.NoError(t, err)

	// both rules hit; highest score wins
	assert.Equal(ExplicitTermScore, h.Score("ta gueule espèce de merde"))
}

func TestHeuristicRejectsBadRules(t *testing.T) {
	assert := assert.New(t)

	_, err := NewHeuristic(nil, []PatternRule{{Pattern: `[`, Score: 5}})
	assert.Error(err)

	_, err = NewHeuristic(nil, []PatternRule{{Pattern: `ok`, Score: 0}})
	assert.Error(err)

	_, err = NewHeuristic(nil, []PatternRule{{Pattern: `ok`, Score: -1}})
	assert.Error(err)
}
