package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncateString(t *testing.T) {
	require.Equal(t, "hello", truncateString("hello", 10))
	require.Equal(t, "he...", truncateString("hello", 2))
}

func TestAnthropicResponseDecodesTextContent(t *testing.T) {
	raw, err := json.Marshal(anthropicResponse{Content: []anthropicContent{{Type: "text", Text: "hello back"}}})
	require.NoError(t, err)

	var resp anthropicResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Len(t, resp.Content, 1)
	require.Equal(t, "hello back", resp.Content[0].Text)
}

func TestAnthropicErrorMessage(t *testing.T) {
	e := anthropicError{Type: "invalid_request_error", Message: "bad request"}
	require.Equal(t, "bad request", e.Error())

	e2 := anthropicError{Type: "overloaded_error"}
	require.Equal(t, "overloaded_error", e2.Error())
}
