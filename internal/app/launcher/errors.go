package launcher

import (
	"context"
	"errors"

	"aipolish/internal/delivery/server/lifecycle"
	"aipolish/internal/infra/paths"
	"aipolish/internal/shared/config"
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitResolution     = 2
	ExitConfig         = 3
	ExitBind           = 4
	ExitAlreadyRunning = 5
)

// ExitCode maps a Launch error to the process exit code.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return ExitOK
	}
	var (
		resErr     *paths.ResolutionError
		cfgErr     *config.ConfigError
		bindErr    *lifecycle.BindError
		runningErr *lifecycle.AlreadyRunningError
	)
	switch {
	case errors.As(err, &resErr):
		return ExitResolution
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.As(err, &bindErr):
		return ExitBind
	case errors.As(err, &runningErr):
		return ExitAlreadyRunning
	default:
		return ExitFailure
	}
}

type userMessager interface {
	UserMessage() string
}

// UserMessage returns the plain-language explanation carried by err, or
// err's own text when it has none.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var um userMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return err.Error()
}
