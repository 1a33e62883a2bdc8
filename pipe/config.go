package pipe

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// minTokenLen is the shortest token we accept. Real tokens are much
// longer; anything below this is a paste error.
const minTokenLen = 10

// Config holds all pipe configuration. Fields are populated from the
// environment by Load and may be overridden by CLI flags before Validate
// is called.
type Config struct {
	// Token authenticates the pipe to the endpoint. It is carried as a
	// query parameter on the WebSocket URL.
	Token string `envconfig:"XIAOZHI_TOKEN"`

	// Endpoint is the WebSocket URL to bridge the child process to.
	Endpoint string `envconfig:"XIAOZHI_ENDPOINT" default:"wss://api.xiaozhi.me/mcp/"`

	// Command is the child process to supervise, optionally followed by
	// space-separated arguments.
	Command string `envconfig:"MCP_SCRIPT" default:"reminder-server"`

	// ReconnectDelay is the backoff floor; MaxReconnectDelay the cap.
	ReconnectDelay    time.Duration `envconfig:"MCP_PIPE_RECONNECT_DELAY" default:"1s"`
	MaxReconnectDelay time.Duration `envconfig:"MCP_PIPE_MAX_RECONNECT_DELAY" default:"60s"`

	// GracePeriod is how long a child gets to exit after SIGTERM before
	// it is killed.
	GracePeriod time.Duration `envconfig:"MCP_PIPE_GRACE_PERIOD" default:"5s"`

	// PingInterval/PingTimeout configure WebSocket keepalive probing.
	PingInterval time.Duration `envconfig:"MCP_PIPE_PING_INTERVAL" default:"20s"`
	PingTimeout  time.Duration `envconfig:"MCP_PIPE_PING_TIMEOUT" default:"10s"`

	// StatusAddr, when set, enables the local HTTP status endpoint.
	StatusAddr string `envconfig:"MCP_PIPE_STATUS_ADDR"`
}

// Load reads configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}
	return cfg, nil
}

// Validate checks startup preconditions. The token is trimmed first since
// tokens pasted from a browser often pick up stray whitespace.
func (c *Config) Validate() error {
	c.Token = strings.TrimSpace(c.Token)
	if c.Token == "" {
		return &ConfigError{
			Reason: "XIAOZHI_TOKEN environment variable not set",
			Remediation: []string{
				"Set your token:",
				"  export XIAOZHI_TOKEN=your_actual_token",
				"Get your token from your xiaozhi account settings (https://api.xiaozhi.me)",
			},
		}
	}
	if len(c.Token) < minTokenLen {
		return &ConfigError{
			Reason: fmt.Sprintf("XIAOZHI_TOKEN seems too short (%d characters)", len(c.Token)),
			Remediation: []string{
				"Verify the token against your xiaozhi account settings (https://api.xiaozhi.me)",
			},
		}
	}
	if len(strings.Fields(c.Command)) == 0 {
		return &ConfigError{Reason: "no child command configured"}
	}
	return nil
}
