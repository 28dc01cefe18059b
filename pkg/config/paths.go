package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvDispatchKitConfig = "DISPATCHKIT_CONFIG"
	EnvDispatchKitHome   = "DISPATCHKIT_HOME"
)

type RuntimePaths struct {
	HomeDir    string
	ConfigPath string
}

func ResolveRuntimePaths() RuntimePaths {
	if configPath := expandHome(strings.TrimSpace(os.Getenv(EnvDispatchKitConfig))); configPath != "" {
		return RuntimePaths{HomeDir: filepath.Dir(configPath), ConfigPath: configPath}
	}

	homeDir := expandHome(strings.TrimSpace(os.Getenv(EnvDispatchKitHome)))
	if homeDir == "" {
		homeDir = defaultHome()
	}

	return RuntimePaths{HomeDir: homeDir, ConfigPath: filepath.Join(homeDir, "config.json")}
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".dispatchkit"
	}
	return filepath.Join(home, ".dispatchkit")
}
