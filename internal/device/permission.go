package device

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// PermissionStatus is the outcome of a notification permission request.
type PermissionStatus int

const (
	StatusNotDetermined PermissionStatus = iota
	StatusDenied
	StatusAuthorized
	StatusProvisional
)

// String returns the status name.
func (s PermissionStatus) String() string {
	switch s {
	case StatusDenied:
		return "denied"
	case StatusAuthorized:
		return "authorized"
	case StatusProvisional:
		return "provisional"
	default:
		return "not_determined"
	}
}

// Enabled reports whether notifications may be delivered under this status.
func (s PermissionStatus) Enabled() bool {
	return s == StatusAuthorized || s == StatusProvisional
}

// ParsePermissionStatus parses a status name as produced by String.
func ParsePermissionStatus(s string) (PermissionStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "authorized", "granted":
		return StatusAuthorized, nil
	case "provisional":
		return StatusProvisional, nil
	case "denied":
		return StatusDenied, nil
	case "", "not_determined":
		return StatusNotDetermined, nil
	default:
		return StatusNotDetermined, fmt.Errorf("unknown permission status %q", s)
	}
}

// PermissionRequester asks the user for permission to post notifications.
type PermissionRequester interface {
	RequestPermission(ctx context.Context) (PermissionStatus, error)
}

// Grant is a PermissionRequester that always answers with a fixed status.
type Grant PermissionStatus

// RequestPermission returns the fixed status.
func (g Grant) RequestPermission(_ context.Context) (PermissionStatus, error) {
	return PermissionStatus(g), nil
}

// PromptRequester asks for permission on a terminal.
type PromptRequester struct {
	In  io.Reader
	Out io.Writer
}

// RequestPermission prints a yes/no question and waits for an answer.
// Anything other than y or yes counts as a denial.
func (p *PromptRequester) RequestPermission(ctx context.Context) (PermissionStatus, error) {
	if _, err := fmt.Fprint(p.Out, "Allow notifications? [y/N] "); err != nil {
		return StatusNotDetermined, fmt.Errorf("writing prompt: %w", err)
	}

	type answer struct {
		line string
		err  error
	}
	answers := make(chan answer, 1)
	go func() {
		line, err := readLine(p.In)
		answers <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return StatusNotDetermined, ctx.Err()
	case a := <-answers:
		if a.err != nil && a.line == "" {
			return StatusNotDetermined, fmt.Errorf("reading answer: %w", a.err)
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return StatusAuthorized, nil
		default:
			return StatusDenied, nil
		}
	}
}

// readLine reads up to and including the next newline one byte at a time, so
// input after the answer stays in r for whoever reads it next.
func readLine(r io.Reader) (string, error) {
	var (
		line strings.Builder
		b    [1]byte
	)
	for {
		n, err := r.Read(b[:])
		if n > 0 {
			line.WriteByte(b[0])
			if b[0] == '\n' {
				return line.String(), nil
			}
		}
		if err != nil {
			return line.String(), err
		}
	}
}
