package staking

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolstake/internal/logging"
	"github.com/tolelom/tolstake/internal/testutil"
)

func TestLedgerLogsFollowConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	w, err := logging.NewWriter(&buf, logging.FormatConsole)
	require.NoError(t, err)
	prev := logging.SetOutput(w)
	defer logging.SetOutput(prev)

	require.NoError(t, Init(testutil.NewStateDB(), 1000, 0))
	out := buf.String()
	assert.Contains(t, out, "ledger initialized")
	assert.Contains(t, out, "staking")
	assert.NotContains(t, out, `"message"`, "console output, not JSON")
}
