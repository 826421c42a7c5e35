package commands

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTime(t *testing.T) {
	isolate(t)
	srv := startServer(t)

	out, err := execute(t, "", "time", "--addr", srv.addr, "--token", testToken)
	require.NoError(t, err)
	assert.Contains(t, out, "Server time")
	assert.Contains(t, out, "Drift")

	out, err = execute(t, "", "time", "--addr", srv.addr, "--token", testToken, "-o", "json")
	require.NoError(t, err)

	var st ServerTime
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.WithinDuration(t, time.Now(), st.Server, 5*time.Second)
	assert.NotEmpty(t, st.Drift)
}
