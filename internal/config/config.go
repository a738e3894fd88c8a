// Package config loads the squadmin YAML configuration: the Discord
// surface, the server inventory with its RCON credentials, and the
// timeout knobs for the fallback chain.
package config

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultRCONPort is Squad's conventional RCON port.
const DefaultRCONPort = 27165

type Config struct {
	Discord DiscordConfig `yaml:"discord"`

	// SecretKey is the raw key material for decrypting stored RCON
	// ciphertexts, usually referenced as ${SQUADMIN_SECRET_KEY}. Empty
	// means ciphertexts cannot be opened; plaintext passwords still work.
	SecretKey string `yaml:"secret_key"`

	// AuditLog is the JSON-lines file admin actions are appended to.
	// Empty disables auditing.
	AuditLog string `yaml:"audit_log"`

	Timeouts TimeoutConfig     `yaml:"timeouts"`
	Servers  map[string]Server `yaml:"servers"`
}

type DiscordConfig struct {
	Token   string `yaml:"token"`
	GuildID string `yaml:"guild_id"`
}

// TimeoutConfig tunes the fallback chain. Zero values fall back to the
// package defaults.
type TimeoutConfig struct {
	RCONMs  int `yaml:"rcon_ms"`  // hard deadline per binary-protocol attempt
	QueryMs int `yaml:"query_ms"` // A2S request timeout
}

// Server is one managed game server.
type Server struct {
	DisplayName string `yaml:"display_name"`
	Host        string `yaml:"host"`
	RCONPort    int    `yaml:"rcon_port"`
	QueryPort   int    `yaml:"query_port"`

	// RCONPassword is a plaintext password (possibly base64-wrapped; the
	// secret resolver sniffs that out).
	RCONPassword string `yaml:"rcon_password"`

	// RCONCipher is an AES-256-GCM blob, base64(iv||tag||ciphertext),
	// decryptable with secret_key.
	RCONCipher string `yaml:"rcon_cipher"`
}

// Port returns the configured RCON port, defaulted.
func (s Server) Port() int {
	if s.RCONPort == 0 {
		return DefaultRCONPort
	}
	return s.RCONPort
}

// RCONAddr returns the host:port RCON endpoint.
func (s Server) RCONAddr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port()))
}

// QueryAddr returns the host:port A2S endpoint, or "" when the server has
// no query port configured.
func (s Server) QueryAddr() string {
	if s.QueryPort == 0 {
		return ""
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(s.QueryPort))
}

// Load reads and validates the config file. Environment variables
// referenced as ${VAR_NAME} in string values are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return fmt.Errorf("discord.token is required")
	}
	if c.Discord.GuildID == "" {
		return fmt.Errorf("discord.guild_id is required")
	}
	for name, srv := range c.Servers {
		if srv.Host == "" {
			return fmt.Errorf("server %q: host is required", name)
		}
		if srv.RCONPort < 0 || srv.RCONPort > 65535 {
			return fmt.Errorf("server %q: rcon_port out of range: %d", name, srv.RCONPort)
		}
	}
	return nil
}

// RCONTimeout returns the per-attempt deadline for binary-protocol stages.
func (c *Config) RCONTimeout() time.Duration {
	if c.Timeouts.RCONMs > 0 {
		return time.Duration(c.Timeouts.RCONMs) * time.Millisecond
	}
	return 2500 * time.Millisecond
}

// QueryTimeout returns the A2S request timeout.
func (c *Config) QueryTimeout() time.Duration {
	if c.Timeouts.QueryMs > 0 {
		return time.Duration(c.Timeouts.QueryMs) * time.Millisecond
	}
	return 5 * time.Second
}

// ServerKeys returns the server keys sorted for stable Discord choices.
func (c *Config) ServerKeys() []string {
	keys := make([]string, 0, len(c.Servers))
	for name := range c.Servers {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// QueryableServers returns servers with an A2S query port configured.
func (c *Config) QueryableServers() map[string]Server {
	result := make(map[string]Server)
	for name, srv := range c.Servers {
		if srv.QueryPort > 0 {
			result[name] = srv
		}
	}
	return result
}

// DisplayName returns the display name for a server key, falling back to
// the key itself.
func (c *Config) DisplayName(key string) string {
	if srv, ok := c.Servers[key]; ok && srv.DisplayName != "" {
		return srv.DisplayName
	}
	return key
}
