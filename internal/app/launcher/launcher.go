// Package launcher wires path resolution, first-run setup, the HTTP
// application and the server lifecycle into one startup sequence.
package launcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"aipolish/internal/delivery/server/bootstrap"
	"aipolish/internal/delivery/server/lifecycle"
	"aipolish/internal/infra/browser"
	"aipolish/internal/infra/observability"
	"aipolish/internal/infra/paths"
	"aipolish/internal/shared/config"
	"aipolish/internal/shared/logging"
	"aipolish/internal/webui"
	"aipolish/internal/webui/handlers"
	"aipolish/internal/webui/middleware"
)

// DefaultRateLimit applies to /api when Options.RateLimit is left zero.
var DefaultRateLimit = middleware.RateLimitConfig{RequestsPerMinute: 600, Burst: 60}

// StoreOpener initializes the persistence layer at path. The launcher only
// hands over the location and closes the store on exit.
type StoreOpener func(ctx context.Context, path string) (io.Closer, error)

// Options configure Launch. Zero values select production behavior.
type Options struct {
	Version string

	// DataDir overrides the user data folder.
	DataDir string
	// Host and Port override the settings file when set.
	Host string
	Port *int
	// NoBrowser skips the browser even when OPEN_BROWSER is true.
	NoBrowser   bool
	GracePeriod time.Duration
	// Development enables CORS and disables release mode in gin.
	Development bool
	// RateLimit bounds /api requests per client. Zero selects
	// DefaultRateLimit; a negative RequestsPerMinute turns limiting off.
	RateLimit middleware.RateLimitConfig
	// DisableMetrics removes /api/metrics.
	DisableMetrics bool

	Resolver  *paths.Resolver
	EnvLookup config.EnvLookup
	OpenStore StoreOpener
	Modules   []webui.APIModule
	Opener    browser.Opener
	Signals   <-chan os.Signal
	// Status receives the short lines meant for the person at the console.
	Status        io.Writer
	Logger        logging.Logger
	OnStateChange func(lifecycle.State)
}

// Environment is the outcome of the steps that run before anything binds.
type Environment struct {
	Context  paths.ExecutionContext
	Config   config.AppConfig
	Degraded *bootstrap.DegradedComponents
	LogFile  string
}

func (o Options) logger() logging.Logger {
	if o.Logger != nil {
		return logging.OrNop(o.Logger)
	}
	return logging.NewComponentLogger("Launcher")
}

func (o Options) rateLimit() middleware.RateLimitConfig {
	if o.RateLimit == (middleware.RateLimitConfig{}) {
		return DefaultRateLimit
	}
	return o.RateLimit
}

func (o Options) status() io.Writer {
	if o.Status == nil {
		return io.Discard
	}
	return o.Status
}

// Resolve computes the execution context honoring the data-dir override.
func Resolve(opts Options) (paths.ExecutionContext, error) {
	resolver := paths.NewResolver()
	if opts.Resolver != nil {
		resolver = *opts.Resolver
	}
	if opts.DataDir != "" {
		resolver.DataDirOverride = opts.DataDir
	}
	return resolver.Resolve()
}

// Prepare resolves paths, attaches the log file and runs first-run setup.
// It never opens a socket. The caller owns logging.Close.
func Prepare(opts Options) (*Environment, error) {
	logger := opts.logger()
	env := &Environment{Degraded: bootstrap.NewDegradedComponents()}

	stages := []bootstrap.Stage{
		{Name: "resolve-paths", Required: true, Init: func() error {
			ectx, err := Resolve(opts)
			if err != nil {
				return err
			}
			env.Context = ectx
			return nil
		}},
		{Name: "log-file", Required: false, Init: func() error {
			path, err := logging.ConfigureFile(env.Context.LogDir())
			if err != nil {
				return err
			}
			env.LogFile = path
			return nil
		}},
		{Name: "environment", Required: true, Init: func() error {
			lookup := opts.EnvLookup
			if lookup == nil {
				lookup = config.DefaultEnvLookup
			}
			cfg, err := bootstrap.New(
				bootstrap.WithLogger(logging.NewComponentLogger("Bootstrap")),
				bootstrap.WithEnvLookup(lookup),
			).EnsureEnvironment(env.Context)
			if err != nil {
				return err
			}
			cfg = applyOverrides(cfg, opts)
			if err := cfg.Validate(); err != nil {
				return err
			}
			env.Config = cfg
			return nil
		}},
	}
	if err := bootstrap.RunStages(stages, env.Degraded, logger); err != nil {
		return nil, err
	}
	logging.SetLevel(logging.ParseLevel(env.Config.LogLevel))
	return env, nil
}

func applyOverrides(cfg config.AppConfig, opts Options) config.AppConfig {
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Port != nil {
		cfg.Port = *opts.Port
	}
	if opts.NoBrowser {
		cfg.OpenBrowser = false
	}
	return cfg
}

// Launch runs the whole startup sequence and blocks until the server has
// stopped. Every error returned before the listener is bound leaves no
// socket behind.
func Launch(ctx context.Context, opts Options) error {
	logger := opts.logger()
	defer func() { _ = logging.Close() }()

	env, err := Prepare(opts)
	if err != nil {
		return err
	}
	cfg := env.Config
	ectx := env.Context
	logger.Info("Data folder %s (bundled=%v, assets=%s)", ectx.UserDataDir, ectx.Bundled, ectx.AssetsDir)
	logger.Debug("Settings %+v", cfg.Redacted())
	status := opts.status()
	if !env.Degraded.IsEmpty() {
		fmt.Fprintf(status, "Running without: %s\n", strings.Join(env.Degraded.Names(), ", "))
	}

	if opts.OpenStore != nil {
		store, err := opts.OpenStore(ctx, cfg.StorePath)
		if err != nil {
			return fmt.Errorf("open store %s: %w", cfg.StorePath, err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("Close store: %v", err)
			}
		}()
	}

	handler, err := compose(env, opts)
	if err != nil {
		return err
	}

	// A Ctrl+C that arrived while the steps above ran ends startup here,
	// before any socket exists.
	select {
	case sig := <-opts.Signals:
		logger.Info("Received %v during startup, not starting the server", sig)
		return fmt.Errorf("startup interrupted by %v: %w", sig, context.Canceled)
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var manager *lifecycle.Manager
	manager = lifecycle.New(lifecycle.Config{
		Addr:        cfg.Address(),
		GracePeriod: opts.GracePeriod,
		OpenBrowser: cfg.OpenBrowser,
		BrowserURL:  cfg.URL(),
		Opener:      opts.Opener,
		Signals:     opts.Signals,
		Logger:      logging.NewComponentLogger("Lifecycle"),
		OnStateChange: func(state lifecycle.State) {
			switch state {
			case lifecycle.Serving:
				fmt.Fprintf(status, "AI Polish is running at %s\n", manager.URL())
				fmt.Fprintf(status, "Settings: %s\n", ectx.EnvFilePath())
				fmt.Fprintln(status, "Press Ctrl+C to stop.")
			case lifecycle.Draining:
				fmt.Fprintln(status, "Stopping...")
			}
			if opts.OnStateChange != nil {
				opts.OnStateChange(state)
			}
		},
	})
	return manager.Run(ctx, handler)
}

func compose(env *Environment, opts Options) (http.Handler, error) {
	cfg := env.Config
	var metrics *observability.HTTPMetrics
	metricsPath := ""
	if !opts.DisableMetrics {
		metrics = observability.NewHTTPMetrics()
		metricsPath = webui.DefaultAPIPrefix + webui.MetricsRoute
	}

	system := handlers.NewSystemHandler(handlers.SystemInfo{
		Version:     opts.Version,
		Bundled:     env.Context.Bundled,
		DataDir:     env.Context.UserDataDir,
		StorePath:   cfg.StorePath,
		ConfigFile:  cfg.SourceFile,
		AssetsDir:   env.Context.AssetsDir,
		Pending:     cfg.Placeholders(),
		Degraded:    env.Degraded.Map(),
		ListenAddr:  cfg.Address(),
		BrowserURL:  cfg.URL(),
		MetricsPath: metricsPath,
	})
	modules := append([]webui.APIModule{system}, opts.Modules...)

	engine, err := webui.NewEngine(webui.Config{
		Development: opts.Development,
		RateLimit:   opts.rateLimit(),
		Metrics:     metrics,
		Logger:      logging.NewComponentLogger("HTTP"),
	}, env.Context.Assets, modules...)
	if err != nil {
		return nil, err
	}
	return engine, nil
}
