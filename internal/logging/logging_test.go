package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFollowsOutput(t *testing.T) {
	early := Logger("early") // created before the output is configured

	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatConsole)
	require.NoError(t, err)
	prev := SetOutput(w)
	defer SetOutput(prev)

	early.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "early")
	assert.NotContains(t, buf.String(), "{", "console output is not JSON")
}

func TestNewWriterFormats(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatJSON)
	require.NoError(t, err)
	assert.Same(t, &buf, w)

	_, err = NewWriter(&buf, "xml")
	assert.Error(t, err)

	assert.Error(t, Configure("loud", FormatJSON))
}
