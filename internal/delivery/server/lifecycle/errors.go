package lifecycle

import (
	"errors"
	"fmt"
	"io/fs"
)

// BindError reports that the listener could not be opened. No socket is
// left behind when it is returned.
type BindError struct {
	Addr string
	Port int
	Err  error
}

func (e *BindError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("bind %s (port %d): %v", e.Addr, e.Port, e.Err)
}

func (e *BindError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// PermissionDenied reports whether the OS refused the port rather than
// another program holding it.
func (e *BindError) PermissionDenied() bool {
	return e != nil && errors.Is(e.Err, fs.ErrPermission)
}

// UserMessage is the plain-language rendition shown to end users.
func (e *BindError) UserMessage() string {
	if e.PermissionDenied() {
		return fmt.Sprintf("The program is not allowed to use port %d. "+
			"Choose a port above 1024 with PORT in the settings file and start it again.", e.Port)
	}
	return fmt.Sprintf("Port %d is already in use, probably by another copy of this program. "+
		"Close the other copy or choose a different PORT in the settings file, then start it again.", e.Port)
}

// AlreadyRunningError is returned when Run is called while a server is
// already running in this process, or on a Manager that has been used.
type AlreadyRunningError struct {
	Addr string
}

func (e *AlreadyRunningError) Error() string {
	if e == nil || e.Addr == "" {
		return "server already running"
	}
	return fmt.Sprintf("server already running on %s", e.Addr)
}

// UserMessage is the plain-language rendition shown to end users.
func (e *AlreadyRunningError) UserMessage() string {
	return "The server is already running in this program."
}
