// Package paths resolves where the launcher keeps its configuration, data
// and frontend assets. Resolution happens once at startup and never
// consults the working directory or argv[0].
package paths

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"aipolish/web"
)

const (
	// EnvFileName is the user-editable configuration file inside UserDataDir.
	EnvFileName = ".env"
	// StoreFileName is the datastore file handed to the persistence layer.
	StoreFileName = "aipolish.db"
	// LogDirName holds the launcher log file inside UserDataDir.
	LogDirName = "logs"

	devDataDirName      = "data"
	embeddedAssetsLabel = "embed:web/dist"
)

// ExecutionContext is computed once at startup and passed explicitly to every
// component that needs a location.
type ExecutionContext struct {
	Bundled       bool
	ExecutableDir string
	// AssetsDir describes where Assets comes from; in bundled mode the tree is
	// compiled into the binary and AssetsDir is a label, not a filesystem path.
	AssetsDir   string
	Assets      fs.FS
	UserDataDir string
}

// EnvFilePath returns UserDataDir/.env.
func (c ExecutionContext) EnvFilePath() string {
	return filepath.Join(c.UserDataDir, EnvFileName)
}

// StorePath returns the persistent store location. It only depends on
// UserDataDir, so backups are a plain copy of that file.
func (c ExecutionContext) StorePath() string {
	return filepath.Join(c.UserDataDir, StoreFileName)
}

// LogDir returns the directory for the launcher log file.
func (c ExecutionContext) LogDir() string {
	return filepath.Join(c.UserDataDir, LogDirName)
}

// ResolutionError reports that the executable location could not be
// determined. It is always fatal.
type ResolutionError struct {
	Op  string
	Err error
}

func (e *ResolutionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("resolve paths: %s", e.Op)
	}
	return fmt.Sprintf("resolve paths: %s: %v", e.Op, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage is the plain-language rendition shown to end users.
func (e *ResolutionError) UserMessage() string {
	return "The program could not work out which folder it is running from, so it cannot find its settings. " +
		"Try moving it to a regular folder (for example your Desktop) and start it again."
}

// Resolver computes an ExecutionContext. The zero value is not usable; start
// from NewResolver and override fields in tests.
type Resolver struct {
	Bundled bool
	// Executable reports the OS path of the running image.
	Executable func() (string, error)
	// SourceRoot locates the project checkout when not bundled.
	SourceRoot func() (string, error)
	// EmbeddedAssets returns the frontend compiled into the binary.
	EmbeddedAssets func() (fs.FS, error)
	// DataDirOverride replaces UserDataDir. Relative values are joined to the
	// executable directory.
	DataDirOverride string
}

// NewResolver returns a resolver wired to the running process.
func NewResolver() Resolver {
	return Resolver{
		Bundled:        Bundled,
		Executable:     os.Executable,
		SourceRoot:     sourceRoot,
		EmbeddedAssets: web.Dist,
	}
}

// Resolve is shorthand for NewResolver().Resolve().
func Resolve() (ExecutionContext, error) {
	return NewResolver().Resolve()
}

// Resolve determines the execution context.
func (r Resolver) Resolve() (ExecutionContext, error) {
	exeDir, err := r.executableDir()
	if err != nil {
		return ExecutionContext{}, err
	}

	ctx := ExecutionContext{
		Bundled:       r.Bundled,
		ExecutableDir: exeDir,
	}

	if r.Bundled {
		if r.EmbeddedAssets == nil {
			return ExecutionContext{}, &ResolutionError{Op: "embedded assets", Err: errors.New("no embedded asset source")}
		}
		assets, err := r.EmbeddedAssets()
		if err != nil {
			return ExecutionContext{}, &ResolutionError{Op: "embedded assets", Err: err}
		}
		ctx.Assets = assets
		ctx.AssetsDir = embeddedAssetsLabel
		ctx.UserDataDir = exeDir
	} else {
		if r.SourceRoot == nil {
			return ExecutionContext{}, &ResolutionError{Op: "source root", Err: errors.New("no source root locator")}
		}
		root, err := r.SourceRoot()
		if err != nil {
			return ExecutionContext{}, &ResolutionError{Op: "source root", Err: err}
		}
		if !filepath.IsAbs(root) {
			return ExecutionContext{}, &ResolutionError{Op: "source root", Err: fmt.Errorf("path %q is not absolute", root)}
		}
		ctx.AssetsDir = filepath.Join(root, "web", web.DistDir)
		ctx.Assets = os.DirFS(ctx.AssetsDir)
		ctx.UserDataDir = filepath.Join(root, devDataDirName)
	}

	if override := strings.TrimSpace(r.DataDirOverride); override != "" {
		if !filepath.IsAbs(override) {
			override = filepath.Join(exeDir, override)
		}
		ctx.UserDataDir = filepath.Clean(override)
	}

	return ctx, nil
}

func (r Resolver) executableDir() (string, error) {
	if r.Executable == nil {
		return "", &ResolutionError{Op: "executable path", Err: errors.New("no executable locator")}
	}
	exe, err := r.Executable()
	if err != nil {
		return "", &ResolutionError{Op: "executable path", Err: err}
	}
	exe = strings.TrimSpace(exe)
	if exe == "" {
		return "", &ResolutionError{Op: "executable path", Err: errors.New("operating system reported an empty path")}
	}
	if !filepath.IsAbs(exe) {
		return "", &ResolutionError{Op: "executable path", Err: fmt.Errorf("path %q is not absolute", exe)}
	}
	// Symlinked launchers (e.g. a desktop shortcut on Linux) must still
	// resolve to the real install folder.
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// sourceRoot walks up from this file's compiled location to the module root.
func sourceRoot() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok || file == "" {
		return "", errors.New("source location unavailable")
	}
	return sourceRootFrom(file)
}

// sourceRootFrom maps the compiled path of this file to the module root.
// Builds with -trimpath record a module-relative path, which would make the
// result depend on the working directory, so those are rejected.
func sourceRootFrom(file string) (string, error) {
	if !filepath.IsAbs(file) {
		return "", fmt.Errorf("source path %q is not absolute (built with -trimpath?)", file)
	}
	// internal/infra/paths/paths.go -> module root
	root := filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
	if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
		return "", fmt.Errorf("module root %s: %w", root, err)
	}
	return root, nil
}
