package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/sipeed/dispatchkit/pkg/feedback"
	"github.com/sipeed/dispatchkit/pkg/ratelimit"
	"github.com/sipeed/dispatchkit/pkg/utils"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so telegram operator lists can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []any to handle mixed types
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Duration reads and writes as a Go duration string such as "3s".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type LogConfig struct {
	Level string `json:"level" env:"DISPATCHKIT_LOG_LEVEL"`
	File  string `json:"file"  env:"DISPATCHKIT_LOG_FILE"`
}

// RateLimitConfig shapes the bucket of commands carrying a rate-limit
// property without explicit values.
type RateLimitConfig struct {
	Enabled bool     `json:"enabled" env:"DISPATCHKIT_RATE_LIMIT_ENABLED"`
	Every   Duration `json:"every"   env:"DISPATCHKIT_RATE_LIMIT_EVERY"`
	Burst   int      `json:"burst"   env:"DISPATCHKIT_RATE_LIMIT_BURST"`
}

type ConsoleConfig struct {
	Prompt      string `json:"prompt"       env:"DISPATCHKIT_CONSOLE_PROMPT"`
	HistoryFile string `json:"history_file" env:"DISPATCHKIT_CONSOLE_HISTORY_FILE"`
	Name        string `json:"name"         env:"DISPATCHKIT_CONSOLE_NAME"`
	Color       bool   `json:"color"        env:"DISPATCHKIT_CONSOLE_COLOR"`
}

// UserConfig is a websocket identity selected by its token.
type UserConfig struct {
	Name        string   `json:"name"`
	Token       string   `json:"token"`
	Operator    bool     `json:"operator"`
	Permissions []string `json:"permissions"`
}

type WebSocketConfig struct {
	Host           string       `json:"host"            env:"DISPATCHKIT_WEBSOCKET_HOST"`
	Port           int          `json:"port"            env:"DISPATCHKIT_WEBSOCKET_PORT"`
	Path           string       `json:"path"            env:"DISPATCHKIT_WEBSOCKET_PATH"`
	AllowAnonymous bool         `json:"allow_anonymous" env:"DISPATCHKIT_WEBSOCKET_ALLOW_ANONYMOUS"`
	Users          []UserConfig `json:"users"`
}

type TelegramConfig struct {
	Enabled          bool                `json:"enabled"           env:"DISPATCHKIT_TELEGRAM_ENABLED"`
	Token            string              `json:"token"             env:"DISPATCHKIT_TELEGRAM_TOKEN"`
	Proxy            string              `json:"proxy"             env:"DISPATCHKIT_TELEGRAM_PROXY"`
	Operators        FlexibleStringSlice `json:"operators"         env:"DISPATCHKIT_TELEGRAM_OPERATORS"`
	Permissions      []string            `json:"permissions"       env:"DISPATCHKIT_TELEGRAM_PERMISSIONS"`
	RegisterCommands bool                `json:"register_commands" env:"DISPATCHKIT_TELEGRAM_REGISTER_COMMANDS"`
}

type HistoryConfig struct {
	Enabled bool   `json:"enabled" env:"DISPATCHKIT_HISTORY_ENABLED"`
	Path    string `json:"path"    env:"DISPATCHKIT_HISTORY_PATH"`
	Limit   int    `json:"limit"   env:"DISPATCHKIT_HISTORY_LIMIT"`
}

type Config struct {
	Log       LogConfig         `json:"log"`
	Feedback  map[string]string `json:"feedback"`
	RateLimit RateLimitConfig   `json:"rate_limit"`
	Console   ConsoleConfig     `json:"console"`
	WebSocket WebSocketConfig   `json:"websocket"`
	Telegram  TelegramConfig    `json:"telegram"`
	History   HistoryConfig     `json:"history"`
	mu        sync.RWMutex
}

// LoadConfig reads the JSON file at path over the defaults. A missing file
// is not an error. A .env file next to it is loaded into the environment,
// without overriding variables already set, and DISPATCHKIT_* variables
// are applied last.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	dotenv := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(dotenv); err == nil {
		if err := godotenv.Load(dotenv); err != nil {
			return nil, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return utils.WriteFileAtomic(path, data, 0o600, 0o755)
}

func (c *Config) Lock()    { c.mu.Lock() }
func (c *Config) Unlock()  { c.mu.Unlock() }
func (c *Config) RLock()   { c.mu.RLock() }
func (c *Config) RUnlock() { c.mu.RUnlock() }

// FeedbackTemplates converts the configured overrides.
func (c *Config) FeedbackTemplates() feedback.Templates {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t := make(feedback.Templates, len(c.Feedback))
	for k, v := range c.Feedback {
		t[feedback.Category(k)] = v
	}
	return t
}

func (c *Config) Limiter() ratelimit.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ratelimit.Config{
		Enabled: c.RateLimit.Enabled,
		Every:   time.Duration(c.RateLimit.Every),
		Burst:   c.RateLimit.Burst,
	}
}

func (c *Config) HistoryPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.History.Path)
}

func (c *Config) ConsoleHistoryPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Console.HistoryFile)
}

// User finds the websocket identity owning token.
func (c *Config) User(token string) (UserConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if token == "" {
		return UserConfig{}, false
	}
	for _, u := range c.WebSocket.Users {
		if u.Token == token {
			return u, true
		}
	}
	return UserConfig{}, false
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
