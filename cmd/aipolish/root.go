package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"aipolish/internal/app/launcher"
	"aipolish/internal/delivery/server/lifecycle"
	"aipolish/internal/infra/paths"
	"aipolish/internal/shared/config"
	"aipolish/internal/shared/logging"
	"aipolish/internal/webui/middleware"
)

const (
	flagDataDir   = "data-dir"
	flagHost      = "host"
	flagPort      = "port"
	flagNoBrowser = "no-browser"
	flagGrace     = "grace"
	flagDev       = "dev"
	flagRateLimit = "rate-limit"
	flagFormat    = "format"
)

// app holds the process boundary so commands can be driven from tests.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	resolver  *paths.Resolver
	envLookup config.EnvLookup
	// launch defaults to launcher.Launch.
	launch        func(ctx context.Context, opts launcher.Options) error
	notifySignals func() (<-chan os.Signal, func())
}

func (a *app) isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// run executes the command line and returns the process exit code.
func run(args []string, a *app) int {
	color.NoColor = !a.isTerminal(a.stderr)

	v := viper.New()
	root := newRootCommand(a, v)
	root.SetArgs(args)
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(context.Background())
	if err == nil {
		return launcher.ExitOK
	}
	a.reportError(err)

	code := launcher.ExitFailure
	var exitErr *ExitCodeError
	if errors.As(err, &exitErr) && exitErr.Code != 0 {
		code = exitErr.Code
	}
	// A double-clicked console window closes with the process; keep the
	// message on screen until the user has read it.
	if paths.Bundled && a.isTerminal(a.stdin) {
		fmt.Fprintln(a.stderr, "Press Enter to close this window.")
		_, _ = bufio.NewReader(a.stdin).ReadString('\n')
	}
	return code
}

func (a *app) reportError(err error) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	msg := launcher.UserMessage(err)
	fmt.Fprintf(a.stderr, "%s %s\n", red("Error:"), msg)
	if detail := err.Error(); detail != msg {
		fmt.Fprintln(a.stderr, gray("Details: "+detail))
	}
}

func newRootCommand(a *app, v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "aipolish",
		Short: "AI Polish desktop server",
		Long: `AI Polish runs the text polishing web app on this computer and opens it in your browser.

Settings live in the .env file next to the program; it is created on first start.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd, v)
		},
	}

	flags := root.PersistentFlags()
	flags.String(flagDataDir, "", "folder for settings and data (relative paths are next to the program)")
	flags.String(flagHost, "", "listen host (overrides HOST in the settings file)")
	flags.Int(flagPort, 0, "listen port (overrides PORT in the settings file)")
	flags.Bool(flagNoBrowser, false, "do not open a browser window")
	flags.Duration(flagGrace, lifecycle.DefaultGracePeriod, "how long open requests may finish on shutdown")
	flags.Bool(flagDev, false, "development mode: enable CORS for a separate frontend dev server")
	flags.Int(flagRateLimit, launcher.DefaultRateLimit.RequestsPerMinute, "API requests per minute allowed from one client (0 turns the limit off)")
	_ = v.BindPFlags(flags)
	_ = v.BindEnv(flagDataDir, config.EnvOverridePrefix+"DATA_DIR")
	_ = v.BindEnv(flagGrace, config.EnvOverridePrefix+"GRACE")
	_ = v.BindEnv(flagRateLimit, config.EnvOverridePrefix+"RATE_LIMIT")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the server and open the browser (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.serve(cmd, v)
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create the settings file and data folder without starting the server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.initialize(cmd, v)
			},
		},
		newPathsCommand(a, v),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprintf(cmd.OutOrStdout(), "aipolish %s (bundled=%v)\n", version, paths.Bundled)
				return nil
			},
		},
	)
	return root
}

func (a *app) options(cmd *cobra.Command, v *viper.Viper) launcher.Options {
	opts := launcher.Options{
		Version:     version,
		DataDir:     strings.TrimSpace(v.GetString(flagDataDir)),
		Host:        strings.TrimSpace(v.GetString(flagHost)),
		NoBrowser:   v.GetBool(flagNoBrowser),
		GracePeriod: v.GetDuration(flagGrace),
		Development: v.GetBool(flagDev),
		RateLimit:   rateLimit(v.GetInt(flagRateLimit)),
		Resolver:    a.resolver,
		EnvLookup:   a.envLookup,
		Status:      cmd.OutOrStdout(),
	}
	if cmd.Flags().Changed(flagPort) {
		port := v.GetInt(flagPort)
		opts.Port = &port
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = lifecycle.DefaultGracePeriod
	}
	return opts
}

// rateLimit turns a requests-per-minute setting into the API limiter config,
// allowing short bursts of a tenth of the minute's budget.
func rateLimit(perMinute int) middleware.RateLimitConfig {
	if perMinute <= 0 {
		return middleware.RateLimitConfig{RequestsPerMinute: -1}
	}
	return middleware.RateLimitConfig{RequestsPerMinute: perMinute, Burst: max(perMinute/10, 1)}
}

func (a *app) serve(cmd *cobra.Command, v *viper.Viper) error {
	opts := a.options(cmd, v)
	if a.notifySignals != nil {
		signals, stop := a.notifySignals()
		defer stop()
		opts.Signals = signals
	}
	launch := a.launch
	if launch == nil {
		launch = launcher.Launch
	}
	return withExitCode(launch(cmd.Context(), opts))
}

func (a *app) initialize(cmd *cobra.Command, v *viper.Viper) error {
	defer func() { _ = logging.Close() }()
	env, err := launcher.Prepare(a.options(cmd, v))
	if err != nil {
		return withExitCode(err)
	}

	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(out, "%s %s\n", green("Settings file:"), env.Context.EnvFilePath())
	fmt.Fprintf(out, "%s %s\n", green("Data folder:  "), env.Context.UserDataDir)
	if pending := env.Config.Placeholders(); len(pending) > 0 {
		fmt.Fprintf(out, "%s %s\n", yellow("Still to fill in:"), strings.Join(pending, ", "))
	}
	return nil
}

// pathsReport is the machine-readable form of the execution context.
type pathsReport struct {
	Bundled       bool   `json:"bundled" yaml:"bundled"`
	ExecutableDir string `json:"executable_dir" yaml:"executable_dir"`
	AssetsDir     string `json:"assets_dir" yaml:"assets_dir"`
	UserDataDir   string `json:"user_data_dir" yaml:"user_data_dir"`
	EnvFile       string `json:"env_file" yaml:"env_file"`
	StorePath     string `json:"store_path" yaml:"store_path"`
	LogDir        string `json:"log_dir" yaml:"log_dir"`
}

func newPathsReport(ctx paths.ExecutionContext) pathsReport {
	return pathsReport{
		Bundled:       ctx.Bundled,
		ExecutableDir: ctx.ExecutableDir,
		AssetsDir:     ctx.AssetsDir,
		UserDataDir:   ctx.UserDataDir,
		EnvFile:       ctx.EnvFilePath(),
		StorePath:     ctx.StorePath(),
		LogDir:        ctx.LogDir(),
	}
}

func newPathsCommand(a *app, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Show where settings, data and assets are read from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, err := launcher.Resolve(a.options(cmd, v))
			if err != nil {
				return withExitCode(err)
			}
			format, _ := cmd.Flags().GetString(flagFormat)
			return writePaths(cmd.OutOrStdout(), newPathsReport(ctx), format)
		},
	}
	cmd.Flags().String(flagFormat, "text", "output format: text, json or yaml")
	return cmd
}

func writePaths(w io.Writer, report pathsReport, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		rows := [][2]string{
			{"Bundled", fmt.Sprint(report.Bundled)},
			{"Program folder", report.ExecutableDir},
			{"Assets", report.AssetsDir},
			{"Data folder", report.UserDataDir},
			{"Settings file", report.EnvFile},
			{"Database", report.StorePath},
			{"Logs", report.LogDir},
		}
		for _, row := range rows {
			fmt.Fprintf(w, "%-15s %s\n", row[0]+":", row[1])
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (expected text, json or yaml)", format)
	}
}
