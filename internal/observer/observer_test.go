package observer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigestIsStableAndSensitiveToContent(t *testing.T) {
	a := Digest("<html><body>hello</body></html>")
	b := Digest("<html><body>hello</body></html>")
	c := Digest("<html><body>goodbye</body></html>")

	require.Equal(t, a, b, "same content must hash identically")
	require.NotEqual(t, a, c, "different content must hash differently")
	require.Len(t, a, 32, "expected a hex-encoded MD5 digest")
}

func TestTruncateRunes(t *testing.T) {
	require.Equal(t, "hello", truncateRunes("  hello  ", 10))
	require.Equal(t, "he", truncateRunes("hello", 2))
}

func TestTruncateStringsDedupesAndCaps(t *testing.T) {
	in := []string{"Sign in", "Sign in", "ab", "", "Log out", "Sign in"}
	got := truncateStrings(in, 2)
	require.Equal(t, []string{"Sign in", "Log out"}, got)
}
