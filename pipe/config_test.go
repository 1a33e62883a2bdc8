package pipe

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// t.Setenv registers the restore; the unset makes the defaults kick in.
	for _, key := range []string{"XIAOZHI_TOKEN", "XIAOZHI_ENDPOINT", "MCP_SCRIPT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "wss://api.xiaozhi.me/mcp/", cfg.Endpoint)
	assert.Equal(t, "reminder-server", cfg.Command)
	assert.Equal(t, 1*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 60*time.Second, cfg.MaxReconnectDelay)
	assert.Equal(t, 5*time.Second, cfg.GracePeriod)
	assert.Equal(t, 20*time.Second, cfg.PingInterval)
	assert.Equal(t, 10*time.Second, cfg.PingTimeout)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("XIAOZHI_TOKEN", "env-token-0123456789")
	t.Setenv("MCP_SCRIPT", "python3 my_server.py")
	t.Setenv("MCP_PIPE_MAX_RECONNECT_DELAY", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env-token-0123456789", cfg.Token)
	assert.Equal(t, "python3 my_server.py", cfg.Command)
	assert.Equal(t, 30*time.Second, cfg.MaxReconnectDelay)
}

func TestValidateMissingToken(t *testing.T) {
	cfg := Config{Token: "", Command: "cat"}
	err := cfg.Validate()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "not set")
	assert.NotEmpty(t, cfgErr.Remediation)
}

func TestValidateShortToken(t *testing.T) {
	cfg := Config{Token: "短tok", Command: "cat"}
	err := cfg.Validate()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "too short")
}

func TestValidateTrimsWhitespace(t *testing.T) {
	cfg := Config{Token: "  token-0123456789  \n", Command: "cat"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "token-0123456789", cfg.Token)
}

func TestValidateWhitespaceOnlyCommand(t *testing.T) {
	for _, command := range []string{"", "   ", " \t\n "} {
		cfg := Config{Token: "token-0123456789", Command: command}
		err := cfg.Validate()
		require.Error(t, err, "command %q", command)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, cfgErr.Reason, "no child command")
	}
}

func TestValidateWhitespaceOnlyToken(t *testing.T) {
	cfg := Config{Token: "   \n\t ", Command: "cat"}
	err := cfg.Validate()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "not set")
}
