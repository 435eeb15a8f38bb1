// Package config loads the effective configuration from flags, a YAML
// file and environment variables, in that order of precedence.
package config

import (
	"flag"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr    string
	Journal string
	Channel string
	Config  string
	Set     map[string]bool
}

// ParseConfigFlags parses command-line flags into a Flags struct.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	journalPtr := flag.String("journal", "./.journal", "journal database path")
	channelPtr := flag.String("channel", "", "websocket channel URL")
	cfgPtr := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{Addr: *addrPtr, Journal: *journalPtr, Channel: *channelPtr, Config: *cfgPtr, Set: set}
}

// ResolveConfigPath decides the config file path from the flag value and
// the CHATSYNC_CONFIG environment variable when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("CHATSYNC_CONFIG"); p != "" {
		return p
	}
	return flagPath
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseConfigFile resolves the config path and loads the YAML file. A
// missing file is not fatal; it returns an empty config.
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	path := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ApplyEnvOverrides overlays CHATSYNC_* environment variables onto cfg
// and reports whether any were present.
func ApplyEnvOverrides(cfg *Config) bool {
	used := false

	if v := os.Getenv("CHATSYNC_ADDR"); v != "" {
		used = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("CHATSYNC_JOURNAL_PATH"); v != "" {
		used = true
		cfg.Storage.JournalPath = v
	}
	if v := os.Getenv("CHATSYNC_CHANNEL_URL"); v != "" {
		used = true
		cfg.Channel.URL = v
	}
	if v := os.Getenv("CHATSYNC_CHANNEL_TOKEN"); v != "" {
		used = true
		cfg.Channel.Token = v
	}
	if v := os.Getenv("CHATSYNC_USER_ID"); v != "" {
		used = true
		cfg.Identity.UserID = v
	}
	if v := os.Getenv("CHATSYNC_USERNAME"); v != "" {
		used = true
		cfg.Identity.Username = v
	}
	if v := os.Getenv("CHATSYNC_AVATAR"); v != "" {
		used = true
		cfg.Identity.Avatar = v
	}
	if v := os.Getenv("CHATSYNC_BUBBLE_COLOR"); v != "" {
		used = true
		cfg.Identity.BubbleColor = v
	}
	if v := os.Getenv("CHATSYNC_LOG_LEVEL"); v != "" {
		used = true
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CHATSYNC_RETENTION_ENABLED"); v != "" {
		used = true
		vl := strings.ToLower(strings.TrimSpace(v))
		cfg.Retention.Enabled = vl == "1" || vl == "true" || vl == "yes"
	}
	if v := os.Getenv("CHATSYNC_RETENTION_CRON"); v != "" {
		used = true
		cfg.Retention.Cron = v
	}
	if v := os.Getenv("CHATSYNC_CORS_ORIGINS"); v != "" {
		used = true
		var origins []string
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				origins = append(origins, s)
			}
		}
		cfg.Security.CORS.AllowedOrigins = origins
	}
	if v := os.Getenv("CHATSYNC_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			used = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("CHATSYNC_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			used = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("CHATSYNC_DOCS_ENABLED"); v != "" {
		used = true
		vl := strings.ToLower(strings.TrimSpace(v))
		cfg.Docs.Enabled = vl == "1" || vl == "true" || vl == "yes"
	}
	return used
}

// Effective is the merged result handed to the app.
type Effective struct {
	Config *Config
	Addr   string
	// JournalPath resolves flag > env/file; empty disables persistence.
	JournalPath string
	Source      string // "flags", "config", or "env"
}

// LoadEffective merges file, env and flags into the running config.
// Flags that were explicitly set win; env overrides the file.
func LoadEffective(flags Flags) (Effective, error) {
	cfg, fileFound, err := ParseConfigFile(flags)
	if err != nil {
		return Effective{}, err
	}
	envUsed := ApplyEnvOverrides(cfg)

	source := "flags"
	if fileFound {
		source = "config"
	}
	if envUsed {
		source = "env"
	}

	addr := cfg.Addr()
	if flags.Set["addr"] {
		addr = flags.Addr
		source = "flags"
	}
	journal := cfg.Storage.JournalPath
	if flags.Set["journal"] || journal == "" {
		journal = flags.Journal
	}
	if flags.Set["channel"] {
		cfg.Channel.URL = flags.Channel
	}
	return Effective{Config: cfg, Addr: addr, JournalPath: journal, Source: source}, nil
}
