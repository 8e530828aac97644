package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObjectFromBareJSON(t *testing.T) {
	payload, err := ExtractObject(`{"proposal": "use kafka", "count": 3}`)
	require.NoError(t, err)
	assert.Equal(t, "use kafka", payload["proposal"])
	assert.Equal(t, float64(3), payload["count"])
}

func TestExtractObjectPrefersFencedBlock(t *testing.T) {
	text := "Here is my answer.\n```json\n{\"proposal\": \"fenced\"}\n```\nAnd some trailing prose {\"proposal\": \"loose\"}."
	payload, err := ExtractObject(text)
	require.NoError(t, err)
	assert.Equal(t, "fenced", payload["proposal"])
}

func TestExtractObjectFromSurroundingProse(t *testing.T) {
	text := `Sure! My recommendation: {"decision": "queue {primary}", "note": "braces \"inside\" strings are fine"} hope that helps.`
	payload, err := ExtractObject(text)
	require.NoError(t, err)
	assert.Equal(t, "queue {primary}", payload["decision"])
}

func TestExtractObjectHandlesNestedObjects(t *testing.T) {
	payload, err := ExtractObject(`prefix {"outer": {"inner": {"deep": true}}} suffix`)
	require.NoError(t, err)
	outer, ok := payload["outer"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, outer, "inner")
}

func TestExtractObjectFailures(t *testing.T) {
	_, err := ExtractObject("")
	assert.ErrorIs(t, err, ErrNoObject)

	_, err = ExtractObject("no json here at all")
	assert.ErrorIs(t, err, ErrNoObject)

	_, err = ExtractObject(`{"unterminated": true`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated")

	_, err = ExtractObject(`{not valid json}`)
	require.Error(t, err)
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	payload := map[string]any{"ADR": 1, "tasks": 2}

	v, ok := Lookup(payload, "ADR")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = Lookup(payload, "adr")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = Lookup(payload, "TASKS")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = Lookup(payload, "RISKS")
	assert.False(t, ok)
}
