// DispatchKit - command definition and dispatch engine
// License: MIT
//
// Copyright (c) 2026 DispatchKit contributors

package config

import "time"

// DefaultConfig returns the default configuration for DispatchKit.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Feedback: map[string]string{},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Every:   Duration(3 * time.Second),
			Burst:   1,
		},
		Console: ConsoleConfig{
			Prompt:      "> ",
			HistoryFile: "~/.dispatchkit/console_history",
			Name:        "console",
			Color:       true,
		},
		WebSocket: WebSocketConfig{
			Host: "127.0.0.1",
			Port: 18790,
			Path: "/ws",
		},
		Telegram: TelegramConfig{
			Enabled:          false,
			Operators:        FlexibleStringSlice{},
			RegisterCommands: true,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "~/.dispatchkit/history.db",
			Limit:   20,
		},
	}
}
