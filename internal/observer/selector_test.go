package observer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsValidSelector(t *testing.T) {
	cases := []struct {
		name     string
		selector string
		want     bool
	}{
		{"id selector", "#submit-button", true},
		{"data-testid attribute", `[data-testid="login-button"]`, true},
		{"name attribute", `input[name="email"]`, true},
		{"aria-label attribute", `[aria-label="Close"]`, true},
		{"class selector rejected", ".btn-primary", false},
		{"nth-child rejected", "#list li:nth-child(2)", false},
		{"first-child rejected even with id", "#list:first-child", false},
		{"descendant combinator rejected", "#parent > .child", false},
		{"no stable attribute", "div[style='color:red']", false},
		{"empty selector", "", false},
		{"whitespace only", "   ", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, IsValidSelector(tc.selector))
		})
	}
}

func TestFilterValidSelectors(t *testing.T) {
	in := []string{"#a", ".bad", "#a", `[name="x"]`, "#b:first-child"}
	got := FilterValidSelectors(in)
	require.Equal(t, []string{"#a", `[name="x"]`}, got)
}
