package browser

import (
	"context"
	"errors"
	"testing"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestSystemOpenReportsHeadless(t *testing.T) {
	launched := false
	s := &System{
		GOOS:   "linux",
		Getenv: envMap(nil),
		launch: func(string) error { launched = true; return nil },
	}

	err := s.Open(context.Background(), "http://127.0.0.1:8000/")
	var launchErr *LaunchError
	if !errors.As(err, &launchErr) {
		t.Fatalf("expected LaunchError, got %v", err)
	}
	if !errors.Is(err, ErrHeadless) {
		t.Fatalf("expected ErrHeadless, got %v", err)
	}
	if launched {
		t.Fatal("launcher must not run without a display")
	}
	if launchErr.UserMessage() == "" {
		t.Fatal("expected user message")
	}
}

func TestSystemOpenLaunchesWithDisplay(t *testing.T) {
	var got string
	s := &System{
		GOOS:   "linux",
		Getenv: envMap(map[string]string{"WAYLAND_DISPLAY": "wayland-0"}),
		launch: func(url string) error { got = url; return nil },
	}
	if err := s.Open(context.Background(), " http://127.0.0.1:8000/ "); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != "http://127.0.0.1:8000/" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestSystemOpenIgnoresDisplayOnDesktopPlatforms(t *testing.T) {
	for _, goos := range []string{"windows", "darwin"} {
		called := false
		s := &System{GOOS: goos, Getenv: envMap(nil), launch: func(string) error { called = true; return nil }}
		if err := s.Open(context.Background(), "http://localhost:8000/"); err != nil {
			t.Fatalf("%s: %v", goos, err)
		}
		if !called {
			t.Fatalf("%s: expected launcher call", goos)
		}
	}
}

func TestSystemOpenWrapsLaunchFailure(t *testing.T) {
	boom := errors.New("xdg-open: not found")
	s := &System{GOOS: "windows", launch: func(string) error { return boom }}
	err := s.Open(context.Background(), "http://localhost:8000/")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
}

func TestSystemOpenRejectsEmptyURLAndCancelledContext(t *testing.T) {
	s := &System{GOOS: "windows", launch: func(string) error { return nil }}
	if err := s.Open(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty URL")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Open(ctx, "http://localhost/"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOpenerFunc(t *testing.T) {
	var opener Opener = OpenerFunc(func(ctx context.Context, url string) error { return nil })
	if err := opener.Open(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
}
