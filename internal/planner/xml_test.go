package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kkonovalov/webagent-core/internal/model"
)

func TestExtractAndParseCanonicalForm(t *testing.T) {
	raw := `Here is my plan:
<answer>
<?xml version="1.0" encoding="UTF-8"?>
<interaction>
  <step>
    <operation>click</operation>
    <selector>#submit-button</selector>
    <value></value>
    <description>submit the form</description>
    <retry>
      <max_attempts>2</max_attempts>
      <alternate_selector>[data-testid="submit"]</alternate_selector>
    </retry>
  </step>
</interaction>
</answer>`

	step, err := extractAndParse(raw)
	require.NoError(t, err)
	require.Equal(t, model.OpClick, step.Operation)
	require.Equal(t, "#submit-button", step.Selector)
	require.Equal(t, "submit the form", step.Description)
	require.Equal(t, 2, step.Retry.MaxAttempts)
	require.Equal(t, `[data-testid="submit"]`, step.Retry.AlternateSelector)
}

func TestExtractAndParseTolerateBareStep(t *testing.T) {
	raw := "some preamble\n<step><operation>wait</operation><selector></selector><value>500</value></step>\ntrailing text"

	step, err := extractAndParse(raw)
	require.NoError(t, err)
	require.Equal(t, model.OpWait, step.Operation)
	require.Equal(t, "500", step.Value)
}

func TestExtractAndParseNoBlockFound(t *testing.T) {
	_, err := extractAndParse("I don't know what to do.")
	require.Error(t, err)
}

func TestExtractAndParseMissingOperation(t *testing.T) {
	raw := `<interaction><step><selector>#x</selector></step></interaction>`
	_, err := extractAndParse(raw)
	require.Error(t, err)
}

func TestSanitizeSelector(t *testing.T) {
	cases := map[string]string{
		"#submit}":     "#submit",
		"{#submit":     "#submit",
		"#list[0]}":    "#list[0]}",
		"{[0]#submit":  "{[0]#submit",
		"  #trim-me  ": "#trim-me",
	}
	for in, want := range cases {
		require.Equal(t, want, sanitizeSelector(in), "input %q", in)
	}
}
