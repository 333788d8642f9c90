package config

import "fmt"

// ConfigError reports a configuration problem that stops startup. It always
// names the file and, when known, the offending field.
type ConfigError struct {
	File   string
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	msg := "config " + e.File
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage is the plain-language rendition shown to end users.
func (e *ConfigError) UserMessage() string {
	if e.Field != "" {
		return fmt.Sprintf("The setting %s in %s %s. Open that file in a text editor, correct the value and start the program again.",
			e.Field, e.File, e.Reason)
	}
	return fmt.Sprintf("The settings file %s could not be used (%s). Check that the folder is writable and the file is a plain text file, then start the program again.",
		e.File, e.Reason)
}
