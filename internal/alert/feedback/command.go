// Package feedback implements the alert ports on a desktop host: sound and
// deep links through external commands, vibration as terminal bells, and
// local notifications through a notify command.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNoCommand is returned when an adapter has no command configured.
var ErrNoCommand = errors.New("no command configured")

// placeholder in a command line is replaced by the call's argument; without
// one the argument is appended.
const placeholder = "{}"

// Command is an external program and its arguments.
type Command []string

// ParseCommand splits a command line on whitespace.
func ParseCommand(line string) Command {
	return Command(strings.Fields(line))
}

// Args returns the argument list for one invocation.
func (c Command) Args(values ...string) []string {
	if len(c) == 0 {
		return values
	}
	args := make([]string, 0, len(c)+len(values))
	substituted := false
	for _, a := range c[1:] {
		if a == placeholder {
			args = append(args, values...)
			substituted = true
			continue
		}
		args = append(args, a)
	}
	if !substituted {
		args = append(args, values...)
	}
	return args
}

// Run executes the command with values substituted.
func (c Command) Run(ctx context.Context, values ...string) error {
	if len(c) == 0 {
		return ErrNoCommand
	}
	out, err := exec.CommandContext(ctx, c[0], c.Args(values...)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("running %s: %w: %s", c[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
