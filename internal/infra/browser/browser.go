// Package browser opens the user's default web browser.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	pkgbrowser "github.com/pkg/browser"
)

// ErrHeadless is returned when no graphical session is available.
var ErrHeadless = errors.New("no graphical session available")

// LaunchError reports a failed browser launch. It is never fatal: the server
// keeps running and the user can open the address manually.
type LaunchError struct {
	URL string
	Err error
}

func (e *LaunchError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("open browser at %s: %v", e.URL, e.Err)
}

func (e *LaunchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage is the plain-language rendition shown to end users.
func (e *LaunchError) UserMessage() string {
	return fmt.Sprintf("Could not open your web browser automatically. Open %s in your browser to continue.", e.URL)
}

// Opener launches a URL in a browser.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, url string) error

func (f OpenerFunc) Open(ctx context.Context, url string) error {
	return f(ctx, url)
}

// System opens URLs with the platform's default browser.
type System struct {
	// GOOS defaults to runtime.GOOS.
	GOOS string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// launch defaults to pkg/browser.OpenURL.
	launch func(string) error
}

// NewSystem returns an opener for the running platform.
func NewSystem() *System {
	return &System{GOOS: runtime.GOOS, Getenv: os.Getenv, launch: openURL}
}

// Open starts the browser and returns without waiting for it to exit.
func (s *System) Open(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return &LaunchError{URL: url, Err: errors.New("empty URL")}
	}
	if err := ctx.Err(); err != nil {
		return &LaunchError{URL: url, Err: err}
	}
	if s.headless() {
		return &LaunchError{URL: url, Err: ErrHeadless}
	}
	launch := s.launch
	if launch == nil {
		launch = openURL
	}
	if err := launch(url); err != nil {
		return &LaunchError{URL: url, Err: err}
	}
	return nil
}

func (s *System) headless() bool {
	goos := s.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	switch goos {
	case "windows", "darwin":
		return false
	}
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	return getenv("DISPLAY") == "" && getenv("WAYLAND_DISPLAY") == ""
}

func openURL(url string) error {
	// pkg/browser echoes the launcher's stdout into ours; keep the console
	// reserved for launcher status lines.
	pkgbrowser.Stdout = io.Discard
	pkgbrowser.Stderr = io.Discard
	return pkgbrowser.OpenURL(url)
}
