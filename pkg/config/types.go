package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Channel   ChannelConfig   `yaml:"channel"`
	Identity  IdentityConfig  `yaml:"identity"`
	Typing    TypingConfig    `yaml:"typing"`
	Retention RetentionConfig `yaml:"retention"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
	Docs      DocsConfig      `yaml:"docs"`
}

// SecurityConfig guards the local HTTP surface.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// ServerConfig holds the local HTTP surface settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// StorageConfig holds journal settings.
type StorageConfig struct {
	// JournalPath is the Pebble directory; empty disables persistence.
	JournalPath string `yaml:"journal_path"`
}

// ChannelConfig holds the websocket connection to the remote peer.
type ChannelConfig struct {
	URL                string   `yaml:"url"`
	Token              string   `yaml:"token"`
	ReconnectBaseDelay Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  Duration `yaml:"reconnect_max_delay"`
	MaxReconnects      int      `yaml:"max_reconnects"`
}

// IdentityConfig names the local user.
type IdentityConfig struct {
	UserID      string `yaml:"user_id"`
	Username    string `yaml:"username"`
	Avatar      string `yaml:"avatar"`
	BubbleColor string `yaml:"bubble_color"`
}

// TypingConfig tunes outbound typing signals.
type TypingConfig struct {
	TTL   Duration `yaml:"ttl"`
	Rate  float64  `yaml:"rate"`
	Burst int      `yaml:"burst"`
}

// RetentionConfig holds configuration for journal compaction runs.
type RetentionConfig struct {
	Enabled bool     `yaml:"enabled"`
	Cron    string   `yaml:"cron"`
	Period  Duration `yaml:"period"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text|json
}

// DocsConfig toggles the swagger UI endpoint.
type DocsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// Duration unmarshals from Go duration strings ("90s", "5m") or bare
// integers meaning milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw == "" {
		*d = 0
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(n) * time.Millisecond)
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(dur)
	return nil
}

// Duration converts to the stdlib type.
func (d Duration) Duration() time.Duration { return time.Duration(d) }
