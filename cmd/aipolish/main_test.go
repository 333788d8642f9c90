package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"aipolish/internal/app/launcher"
	"aipolish/internal/delivery/server/lifecycle"
	"aipolish/internal/infra/paths"
	"aipolish/internal/shared/config"
	"aipolish/internal/webui/middleware"
)

func noEnv(string) (string, bool) { return "", false }

func testApp(t *testing.T) (*app, *bytes.Buffer, *bytes.Buffer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "install")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	exe := filepath.Join(dir, "aipolish")
	require.NoError(t, os.WriteFile(exe, []byte("binary"), 0o755))
	realDir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return &app{
		stdin:  strings.NewReader(""),
		stdout: stdout,
		stderr: stderr,
		resolver: &paths.Resolver{
			Bundled:    true,
			Executable: func() (string, error) { return exe, nil },
			EmbeddedAssets: func() (fs.FS, error) {
				return fstest.MapFS{"index.html": &fstest.MapFile{Data: []byte("<html></html>")}}, nil
			},
		},
		envLookup: noEnv,
	}, stdout, stderr, realDir
}

func TestServePassesFlagsToLauncher(t *testing.T) {
	a, _, _, _ := testApp(t)
	var got launcher.Options
	a.launch = func(_ context.Context, opts launcher.Options) error {
		got = opts
		return nil
	}

	code := run([]string{"serve", "--port", "9001", "--host", "0.0.0.0", "--no-browser", "--grace", "2s", "--data-dir", "profile"}, a)
	require.Equal(t, launcher.ExitOK, code)

	require.NotNil(t, got.Port)
	assert.Equal(t, 9001, *got.Port)
	assert.Equal(t, "0.0.0.0", got.Host)
	assert.True(t, got.NoBrowser)
	assert.Equal(t, 2*time.Second, got.GracePeriod)
	assert.Equal(t, "profile", got.DataDir)
	assert.Equal(t, version, got.Version)
}

func TestServeRateLimitFlag(t *testing.T) {
	cases := map[string]struct {
		args []string
		want middleware.RateLimitConfig
	}{
		"default":  {[]string{"serve"}, launcher.DefaultRateLimit},
		"custom":   {[]string{"serve", "--rate-limit", "120"}, middleware.RateLimitConfig{RequestsPerMinute: 120, Burst: 12}},
		"small":    {[]string{"serve", "--rate-limit", "5"}, middleware.RateLimitConfig{RequestsPerMinute: 5, Burst: 1}},
		"disabled": {[]string{"serve", "--rate-limit", "0"}, middleware.RateLimitConfig{RequestsPerMinute: -1}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			a, _, _, _ := testApp(t)
			var got launcher.Options
			a.launch = func(_ context.Context, opts launcher.Options) error {
				got = opts
				return nil
			}
			require.Equal(t, launcher.ExitOK, run(tc.args, a))
			assert.Equal(t, tc.want, got.RateLimit)
		})
	}
}

func TestRootDefaultsToServe(t *testing.T) {
	a, _, _, _ := testApp(t)
	called := false
	a.launch = func(_ context.Context, opts launcher.Options) error {
		called = true
		assert.Nil(t, opts.Port)
		assert.Equal(t, lifecycle.DefaultGracePeriod, opts.GracePeriod)
		return nil
	}
	require.Equal(t, launcher.ExitOK, run(nil, a))
	assert.True(t, called)
}

func TestServeMapsErrorsToExitCodes(t *testing.T) {
	cases := map[string]struct {
		err  error
		code int
	}{
		"bind":     {&lifecycle.BindError{Addr: "127.0.0.1:8000", Port: 8000, Err: errors.New("address already in use")}, launcher.ExitBind},
		"config":   {&config.ConfigError{File: "/x/.env", Field: "SECRET_KEY", Reason: "is missing"}, launcher.ExitConfig},
		"resolve":  {&paths.ResolutionError{Op: "executable path"}, launcher.ExitResolution},
		"running":  {&lifecycle.AlreadyRunningError{}, launcher.ExitAlreadyRunning},
		"generic":  {errors.New("boom"), launcher.ExitFailure},
		"canceled": {context.Canceled, launcher.ExitOK},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			a, _, stderr, _ := testApp(t)
			a.launch = func(context.Context, launcher.Options) error { return tc.err }

			assert.Equal(t, tc.code, run([]string{"serve"}, a))
			if tc.code != launcher.ExitOK {
				assert.Contains(t, stderr.String(), "Error:")
				assert.Contains(t, stderr.String(), launcher.UserMessage(tc.err))
			} else {
				assert.Empty(t, stderr.String())
			}
		})
	}
}

func TestBindErrorMessageNamesPort(t *testing.T) {
	a, _, stderr, _ := testApp(t)
	a.launch = func(context.Context, launcher.Options) error {
		return &lifecycle.BindError{Addr: "127.0.0.1:8123", Port: 8123, Err: errors.New("in use")}
	}
	assert.Equal(t, launcher.ExitBind, run(nil, a))
	assert.Contains(t, stderr.String(), "Port 8123")
}

func TestInitCreatesSettings(t *testing.T) {
	a, stdout, _, dir := testApp(t)

	require.Equal(t, launcher.ExitOK, run([]string{"init"}, a))
	envPath := filepath.Join(dir, paths.EnvFileName)
	assert.FileExists(t, envPath)
	assert.Contains(t, stdout.String(), envPath)
	assert.Contains(t, stdout.String(), config.KeyOpenAIAPIKey)

	before, err := os.ReadFile(envPath)
	require.NoError(t, err)
	require.Equal(t, launcher.ExitOK, run([]string{"init"}, a))
	after, err := os.ReadFile(envPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPathsFormats(t *testing.T) {
	a, stdout, _, dir := testApp(t)

	require.Equal(t, launcher.ExitOK, run([]string{"paths", "--format", "json"}, a))
	var report pathsReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.True(t, report.Bundled)
	assert.Equal(t, dir, report.UserDataDir)
	assert.Equal(t, filepath.Join(dir, paths.StoreFileName), report.StorePath)

	stdout.Reset()
	require.Equal(t, launcher.ExitOK, run([]string{"paths", "--format", "yaml"}, a))
	var fromYAML pathsReport
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &fromYAML))
	assert.Equal(t, report, fromYAML)

	stdout.Reset()
	require.Equal(t, launcher.ExitOK, run([]string{"paths"}, a))
	assert.Contains(t, stdout.String(), "Settings file:")
	assert.Contains(t, stdout.String(), filepath.Join(dir, paths.EnvFileName))

	assert.Equal(t, launcher.ExitFailure, run([]string{"paths", "--format", "xml"}, a))
}

func TestPathsResolutionFailure(t *testing.T) {
	a, _, stderr, _ := testApp(t)
	a.resolver = &paths.Resolver{Bundled: true, Executable: func() (string, error) { return "", errors.New("gone") }}

	assert.Equal(t, launcher.ExitResolution, run([]string{"paths"}, a))
	assert.Contains(t, stderr.String(), "regular folder")
}

func TestVersion(t *testing.T) {
	a, stdout, _, _ := testApp(t)
	require.Equal(t, launcher.ExitOK, run([]string{"version"}, a))
	assert.Contains(t, stdout.String(), "aipolish "+version)
}

func TestUnknownCommand(t *testing.T) {
	a, _, stderr, _ := testApp(t)
	assert.Equal(t, launcher.ExitFailure, run([]string{"frobnicate"}, a))
	assert.Contains(t, stderr.String(), "unknown command")
}
