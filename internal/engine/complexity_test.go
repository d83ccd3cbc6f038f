package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateMaxIterationsFloorsAtFifty(t *testing.T) {
	// Even a simple, low-keyword task gets the "max(computed, 50)" floor,
	// so the 35-iteration mid-complexity branch is unreachable.
	require.Equal(t, 50, EstimateMaxIterations("say hello"))
	require.Equal(t, 50, EstimateMaxIterations("register a new account and log in"))
	require.Equal(t, 50, EstimateMaxIterations("search and find the cheapest flight"))
}

func TestEstimateMaxIterationsWordCountBump(t *testing.T) {
	longTask := "please go to the site and carefully click through every single page until you find the exact item we are looking for and then add it to the cart"
	require.Equal(t, 50, EstimateMaxIterations(longTask))
}
