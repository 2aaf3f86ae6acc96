// Package prompt provides interactive terminal prompts for CLI commands.
package prompt

import "errors"

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")
