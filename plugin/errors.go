package plugin

import (
	"strings"

	"github.com/jmgilman/go/errors"
)

// Error codes for plugin construction.
const (
	// CodePluginInvalid indicates a malformed plugin file or descriptor.
	CodePluginInvalid errors.ErrorCode = "PLUGIN_INVALID"

	// CodePluginIO indicates an I/O failure while reading a plugin file.
	CodePluginIO errors.ErrorCode = "PLUGIN_IO_FAILED"
)

// invalidPlugin builds a CodePluginInvalid error that carries the error
// level problems in its context under "problems".
func invalidPlugin(path string, problems []Problem) error {
	messages := make([]string, 0, len(problems))
	for _, p := range problems {
		if p.Level == LevelError {
			messages = append(messages, p.Message)
		}
	}

	return errors.WithContextMap(
		errors.Newf(CodePluginInvalid, "invalid plugin: %s", strings.Join(messages, "; ")),
		map[string]interface{}{
			"plugin":   path,
			"problems": messages,
		},
	)
}

// Problems extracts the descriptor problems carried by a CodePluginInvalid
// error, if any.
func Problems(err error) []string {
	var platformErr errors.PlatformError
	if !errors.As(err, &platformErr) {
		return nil
	}
	problems, _ := platformErr.Context()["problems"].([]string)
	return problems
}
