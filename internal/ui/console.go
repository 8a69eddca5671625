package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/konect/konect/internal/pairing"
)

// Console owns the terminal. Lines typed while a prompt or confirmation is
// waiting answer it; all other lines are commands.
type Console struct {
	in  io.Reader
	out io.Writer

	outMu sync.Mutex

	mu       sync.Mutex
	waiters  []chan string
	closed   bool
	commands chan string
	once     sync.Once
}

// NewConsole creates a console on the given reader and writer.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:       in,
		out:      out,
		commands: make(chan string, 16),
	}
}

// Start begins reading lines. The command channel is closed at end of input.
func (c *Console) Start(ctx context.Context) {
	c.once.Do(func() {
		go c.read(ctx)
	})
}

// Commands returns typed lines that did not answer a question.
func (c *Console) Commands() <-chan string {
	return c.commands
}

// Printf writes to the terminal.
func (c *Console) Printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// Prompt shows an alert and blocks until the user presses Enter.
func (c *Console) Prompt(ctx context.Context, title, body string) error {
	_, err := c.ask(ctx, fmt.Sprintf("\n*** %s ***\n%s\n(press Enter to dismiss) ", title, body))
	return err
}

// Confirm asks a yes/no question; only the confirm label or "y"/"yes"
// confirms.
func (c *Console) Confirm(ctx context.Context, q pairing.Confirmation) (bool, error) {
	answer, err := c.ask(ctx, fmt.Sprintf("\n%s\n%s\n[%s/%s] ", q.Title, q.Message, q.CancelLabel, q.ConfirmLabel))
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case strings.ToLower(q.ConfirmLabel), "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (c *Console) ask(ctx context.Context, text string) (string, error) {
	w := make(chan string, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", io.EOF
	}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	c.Printf("%s", text)

	select {
	case line, ok := <-w:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		c.removeWaiter(w)
		return "", ctx.Err()
	}
}

func (c *Console) removeWaiter(w chan string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, x := range c.waiters {
		if x == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

func (c *Console) read(ctx context.Context) {
	defer c.closeAll()

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		line := scanner.Text()

		c.mu.Lock()
		if len(c.waiters) > 0 {
			w := c.waiters[0]
			c.waiters = c.waiters[1:]
			c.mu.Unlock()
			w <- line
			continue
		}
		c.mu.Unlock()

		select {
		case c.commands <- line:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Console) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.waiters {
		close(w)
	}
	c.waiters = nil
	c.closed = true
	close(c.commands)
}
