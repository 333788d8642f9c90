package main

import "aipolish/internal/app/launcher"

// ExitCodeError carries the process exit code chosen for err.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// withExitCode classifies err for the process exit status.
func withExitCode(err error) error {
	if err == nil {
		return nil
	}
	code := launcher.ExitCode(err)
	if code == launcher.ExitOK {
		return nil
	}
	return &ExitCodeError{Code: code, Err: err}
}
