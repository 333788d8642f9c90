package bootstrap

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"aipolish/internal/infra/paths"
	"aipolish/internal/shared/config"
	"aipolish/internal/shared/logging"
)

const (
	secretBytes  = 32
	envFileMode  = 0o600
	dataDirMode  = 0o755
	tempFileGlob = ".tmp-*"
)

// errTargetExists reports that writeFileAtomic found the destination taken.
var errTargetExists = errors.New("file already exists")

// Bootstrapper performs first-run setup of the user data directory: it makes
// sure the directory and its .env exist, then loads the configuration.
// Existing files are never modified.
type Bootstrapper struct {
	logger         logging.Logger
	generateSecret func() (string, error)
	envLookup      config.EnvLookup
	// beforePublish runs once the temp file is complete and before it is
	// linked into place.
	beforePublish func(tmpPath string) error
}

// Option customizes a Bootstrapper.
type Option func(*Bootstrapper)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(b *Bootstrapper) {
		b.logger = logging.OrNop(logger)
	}
}

// WithSecretGenerator replaces the signing secret source.
func WithSecretGenerator(gen func() (string, error)) Option {
	return func(b *Bootstrapper) {
		b.generateSecret = gen
	}
}

// WithEnvLookup replaces the environment used for AIPOLISH_ overrides.
func WithEnvLookup(lookup config.EnvLookup) Option {
	return func(b *Bootstrapper) {
		b.envLookup = lookup
	}
}

// New returns a Bootstrapper with production defaults.
func New(opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		logger:         logging.NewComponentLogger("Bootstrap"),
		generateSecret: GenerateSecret,
		envLookup:      config.DefaultEnvLookup,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// EnsureEnvironment prepares ctx.UserDataDir and returns the loaded
// configuration. StorePath is computed but the store itself is left to the
// persistence layer.
func (b *Bootstrapper) EnsureEnvironment(ctx paths.ExecutionContext) (config.AppConfig, error) {
	var cfg config.AppConfig
	envPath := ctx.EnvFilePath()

	stages := []Stage{
		{Name: "data-dir", Required: true, Init: func() error {
			return ensureDir(ctx.UserDataDir)
		}},
		{Name: "env-file", Required: true, Init: func() error {
			created, err := b.EnsureEnvFile(envPath)
			if err != nil {
				return err
			}
			if created {
				b.logger.Info("Created settings file %s", envPath)
			}
			return nil
		}},
		{Name: "load-config", Required: true, Init: func() error {
			loaded, err := config.Load(envPath,
				config.WithEnvLookup(b.envLookup),
				config.WithStorePath(ctx.StorePath()),
			)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		}},
	}
	if err := RunStages(stages, nil, b.logger); err != nil {
		return config.AppConfig{}, err
	}

	if pending := cfg.Placeholders(); len(pending) > 0 {
		b.logger.Warn("Settings still need to be filled in %s: %s", envPath, strings.Join(pending, ", "))
	}
	return cfg, nil
}

// EnsureEnvFile writes a freshly rendered template to path when no file is
// there yet. It reports whether a file was created.
func (b *Bootstrapper) EnsureEnvFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.IsDir() {
			return false, &config.ConfigError{File: path, Reason: "is a folder, not a file"}
		}
		return false, nil
	case !errors.Is(err, fs.ErrNotExist):
		return false, &config.ConfigError{File: path, Reason: "cannot be checked", Err: err}
	}

	secret, err := b.generateSecret()
	if err != nil {
		return false, &config.ConfigError{File: path, Reason: "a signing secret could not be generated", Err: err}
	}
	doc, err := config.RenderTemplate(secret)
	if err != nil {
		return false, &config.ConfigError{File: path, Reason: "template could not be rendered", Err: err}
	}
	if err := verifyDocument(doc, secret); err != nil {
		return false, &config.ConfigError{File: path, Reason: "template is invalid", Err: err}
	}
	switch err := writeFileAtomic(path, doc, envFileMode, b.beforePublish); {
	case errors.Is(err, errTargetExists):
		// Another process created it first; theirs wins.
		b.logger.Info("Settings file %s appeared while starting, keeping it", path)
		return false, nil
	case err != nil:
		return false, &config.ConfigError{File: path, Reason: "cannot be written", Err: err}
	}
	return true, nil
}

// GenerateSecret returns 32 random bytes, base64url-encoded without padding.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// verifyDocument parses the rendered template the same way a dotenv reader
// would and checks the secret survived intact.
func verifyDocument(doc []byte, secret string) error {
	values, err := godotenv.Unmarshal(string(doc))
	if err != nil {
		return fmt.Errorf("parse rendered template: %w", err)
	}
	if values[config.KeySecretKey] != secret {
		return fmt.Errorf("rendered template does not carry %s", config.KeySecretKey)
	}
	for _, key := range config.RequiredKeys {
		if _, ok := values[key]; !ok {
			return fmt.Errorf("rendered template is missing %s", key)
		}
	}
	return nil
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return &config.ConfigError{File: dir, Reason: "data folder is not set"}
	}
	if err := os.MkdirAll(dir, dataDirMode); err != nil {
		return &config.ConfigError{File: dir, Reason: "data folder cannot be created", Err: err}
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the destination directory and
// hard-links it to path, so readers see either no file or the whole file and
// an existing path is never replaced. It returns errTargetExists when path is
// already taken.
func writeFileAtomic(path string, data []byte, perm os.FileMode, beforePublish func(string) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+tempFileGlob)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// On success the temp name is only a second link to the new file.
		_ = os.Remove(tmpPath)
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if beforePublish != nil {
		if err = beforePublish(tmpPath); err != nil {
			return err
		}
	}
	if err = publish(tmpPath, path); err != nil {
		return err
	}
	syncDir(dir)
	return nil
}

// publish makes tmpPath visible as path without ever replacing an existing
// file.
func publish(tmpPath, path string) error {
	err := os.Link(tmpPath, path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return errTargetExists
	}
	// Filesystems without hard links (FAT, some network shares) fall back
	// to a rename guarded by an existence check.
	if _, statErr := os.Lstat(path); statErr == nil {
		return errTargetExists
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("move into place: %w", err)
	}
	return nil
}

// syncDir persists the rename on filesystems that need it. Not every
// platform can open a directory for syncing, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
