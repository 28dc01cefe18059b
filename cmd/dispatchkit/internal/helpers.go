package internal

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sipeed/dispatchkit/pkg/builtin"
	"github.com/sipeed/dispatchkit/pkg/config"
	"github.com/sipeed/dispatchkit/pkg/engine"
	"github.com/sipeed/dispatchkit/pkg/history"
	"github.com/sipeed/dispatchkit/pkg/logger"
	"github.com/sipeed/dispatchkit/pkg/ratelimit"
)

const Logo = "⌘"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

// ConfigPathOverride is set by the --config flag.
var ConfigPathOverride string

func GetConfigPath() string {
	if ConfigPathOverride != "" {
		return ConfigPathOverride
	}
	return config.ResolveRuntimePaths().ConfigPath
}

// LoadConfig reads the config and applies its logging section.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(GetConfigPath())
	if err != nil {
		return nil, err
	}

	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	if cfg.Log.File != "" {
		if err := logger.EnableFileLogging(cfg.Log.File); err != nil {
			return nil, fmt.Errorf("enable file logging: %w", err)
		}
	}
	return cfg, nil
}

// Runtime is an engine loaded with the built-in commands.
type Runtime struct {
	Engine  *engine.Engine
	Set     *builtin.Set
	History *history.Store
}

// NewRuntime builds the engine from cfg. Hosts attach their registrars
// before calling RegisterBuiltins so they see every root command.
func NewRuntime(cfg *config.Config) (*Runtime, error) {
	e := engine.New(
		engine.WithFeedback(cfg.FeedbackTemplates()),
		engine.WithLimiter(ratelimit.NewLimiter(cfg.Limiter())),
	)
	rt := &Runtime{Engine: e, Set: builtin.NewSet()}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		store.Subscribe(e.Hooks())
		rt.History = store
	}
	return rt, nil
}

// RegisterBuiltins registers the built-in commands, announcing through
// every given announcer.
func (r *Runtime) RegisterBuiltins(ctx context.Context, announcers ...builtin.Announcer) error {
	r.Set.Announce = func(msg string) {
		logger.InfoCF("dispatchkit", "Announcement", map[string]any{"message": msg})
		for _, a := range announcers {
			a(msg)
		}
	}
	return r.Set.Register(ctx, r.Engine)
}

func (r *Runtime) Close() error {
	if r.History == nil {
		return nil
	}
	return r.History.Close()
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

func GetVersion() string {
	return version
}
