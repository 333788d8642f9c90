package bootstrap

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aipolish/internal/infra/paths"
	"aipolish/internal/shared/config"
	"aipolish/internal/shared/logging"
)

func noEnv(string) (string, bool) { return "", false }

func newTestBootstrapper(opts ...Option) *Bootstrapper {
	base := []Option{WithLogger(logging.Nop()), WithEnvLookup(noEnv)}
	return New(append(base, opts...)...)
}

func contextFor(dir string) paths.ExecutionContext {
	return paths.ExecutionContext{Bundled: true, ExecutableDir: dir, UserDataDir: dir}
}

func TestEnsureEnvironmentCreatesDataDirAndTemplate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "profile")
	ctx := contextFor(dir)

	cfg, err := newTestBootstrapper().EnsureEnvironment(ctx)
	require.NoError(t, err)

	data, err := os.ReadFile(ctx.EnvFilePath())
	require.NoError(t, err)
	values, err := godotenv.Unmarshal(string(data))
	require.NoError(t, err)

	assert.Equal(t, cfg.SecretKey, values[config.KeySecretKey])
	assert.Len(t, cfg.SecretKey, 43)
	assert.Equal(t, config.PlaceholderValue, values[config.KeyOpenAIAPIKey])
	assert.Equal(t, config.PlaceholderValue, values[config.KeyAdminPassword])
	assert.Equal(t, ctx.StorePath(), cfg.StorePath)
	assert.Equal(t, config.SQLiteURL(ctx.StorePath()), cfg.DatabaseURL)

	_, err = os.Stat(ctx.StorePath())
	assert.True(t, os.IsNotExist(err), "bootstrap must not create the datastore")

	info, err := os.Stat(ctx.EnvFilePath())
	require.NoError(t, err)
	if filepath.Separator == '/' {
		assert.Equal(t, os.FileMode(envFileMode), info.Mode().Perm())
	}
}

func TestEnsureEnvironmentIsIdempotent(t *testing.T) {
	ctx := contextFor(t.TempDir())
	b := newTestBootstrapper()

	_, err := b.EnsureEnvironment(ctx)
	require.NoError(t, err)
	first, err := os.ReadFile(ctx.EnvFilePath())
	require.NoError(t, err)

	_, err = b.EnsureEnvironment(ctx)
	require.NoError(t, err)
	second, err := os.ReadFile(ctx.EnvFilePath())
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first, second), "second run must leave .env byte-identical")
}

func TestEnsureEnvironmentNeverOverwritesUserEdits(t *testing.T) {
	ctx := contextFor(t.TempDir())
	edited := "SECRET_KEY=mine\nOPENAI_API_KEY=sk-live\nADMIN_USERNAME=me\nADMIN_PASSWORD=pw\n"
	require.NoError(t, os.WriteFile(ctx.EnvFilePath(), []byte(edited), 0o600))

	calls := 0
	b := newTestBootstrapper(WithSecretGenerator(func() (string, error) {
		calls++
		return "unused", nil
	}))
	cfg, err := b.EnsureEnvironment(ctx)
	require.NoError(t, err)

	assert.Zero(t, calls)
	assert.Equal(t, "mine", cfg.SecretKey)
	data, err := os.ReadFile(ctx.EnvFilePath())
	require.NoError(t, err)
	assert.Equal(t, edited, string(data))
}

func TestSeparateFirstRunsGenerateDifferentSecrets(t *testing.T) {
	b := newTestBootstrapper()
	a, err := b.EnsureEnvironment(contextFor(t.TempDir()))
	require.NoError(t, err)
	c, err := b.EnsureEnvironment(contextFor(t.TempDir()))
	require.NoError(t, err)

	assert.NotEqual(t, a.SecretKey, c.SecretKey)
}

func TestCrashBeforePublishLeavesNoEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, paths.EnvFileName)
	crash := errors.New("simulated crash")

	b := newTestBootstrapper()
	b.beforePublish = func(tmpPath string) error {
		assert.Equal(t, dir, filepath.Dir(tmpPath), "temp file must live beside the target")
		tmpData, err := os.ReadFile(tmpPath)
		require.NoError(t, err)
		assert.Contains(t, string(tmpData), config.KeySecretKey)

		_, statErr := os.Stat(envPath)
		assert.True(t, os.IsNotExist(statErr), ".env must not be visible before it is published")
		return crash
	}

	created, err := b.EnsureEnvFile(envPath)
	require.ErrorIs(t, err, crash)
	assert.False(t, created)

	_, statErr := os.Stat(envPath)
	assert.True(t, os.IsNotExist(statErr))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed write must not leave temp files behind")
}

func TestConcurrentFirstRunKeepsOtherFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, paths.EnvFileName)
	const theirs = "SECRET_KEY=from-the-other-instance\n"

	b := newTestBootstrapper()
	b.beforePublish = func(string) error {
		// Another instance finishes its first run in the meantime.
		return os.WriteFile(envPath, []byte(theirs), 0o600)
	}

	created, err := b.EnsureEnvFile(envPath)
	require.NoError(t, err)
	assert.False(t, created)

	data, err := os.ReadFile(envPath)
	require.NoError(t, err)
	assert.Equal(t, theirs, string(data))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be removed")
}

func TestPublishedFileHasNoExtraLinks(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, paths.EnvFileName)

	created, err := newTestBootstrapper().EnsureEnvFile(envPath)
	require.NoError(t, err)
	require.True(t, created)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, paths.EnvFileName, entries[0].Name())
	info, err := os.Stat(envPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStaleTempFileDoesNotBlockFirstRun(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, ".env.tmp-123")
	require.NoError(t, os.WriteFile(stale, []byte("SECRET_KE"), 0o600))

	cfg, err := newTestBootstrapper().EnsureEnvironment(contextFor(dir))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.SecretKey)

	data, err := os.ReadFile(stale)
	require.NoError(t, err)
	assert.Equal(t, "SECRET_KE", string(data))
}

func TestEnsureEnvironmentReportsMissingRequiredField(t *testing.T) {
	ctx := contextFor(t.TempDir())
	require.NoError(t, os.WriteFile(ctx.EnvFilePath(), []byte("SECRET_KEY=x\nADMIN_USERNAME=a\nADMIN_PASSWORD=b\n"), 0o600))

	_, err := newTestBootstrapper().EnsureEnvironment(ctx)
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, config.KeyOpenAIAPIKey, cfgErr.Field)
	assert.Equal(t, ctx.EnvFilePath(), cfgErr.File)
}

func TestEnsureEnvFileRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.Mkdir(envPath, 0o755))

	_, err := newTestBootstrapper().EnsureEnvFile(envPath)
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.True(t, strings.Contains(cfgErr.Reason, "folder"))
}

func TestEnsureEnvFileSecretFailure(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	b := newTestBootstrapper(WithSecretGenerator(func() (string, error) {
		return "", errors.New("entropy unavailable")
	}))

	_, err := b.EnsureEnvFile(envPath)
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	_, statErr := os.Stat(envPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEnsureEnvironmentFailsWhenDataDirIsAFile(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "profile")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := newTestBootstrapper().EnsureEnvironment(contextFor(blocker))
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, blocker, cfgErr.File)
}

func TestGenerateSecretShape(t *testing.T) {
	s, err := GenerateSecret()
	require.NoError(t, err)
	assert.Len(t, s, 43)
	assert.NotContains(t, s, "=")
}
