// Package console is the host's line-oriented admin console. Each input line
// is run against a cobra command tree built once per Console.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"endpointd/internal/host"
	"endpointd/internal/slogutil"
	"endpointd/pkg/server"
)

// ErrQuit is returned by Exec for the quit command.
var ErrQuit = errors.New("quit")

// DefaultPrompt is printed before each line when Options.Prompt is empty.
const DefaultPrompt = "endpointd> "

// Options configure a Console.
type Options struct {
	Prompt string
	// DefaultPort is used by start when no port is given.
	DefaultPort int
	Logger      *slog.Logger
}

// Console executes admin commands against a host.
type Console struct {
	host        *host.Host
	srv         *server.Server
	out         io.Writer
	prompt      string
	defaultPort int
	logger      *slog.Logger

	root     *cobra.Command
	jsonOut  bool
	quitting bool
}

// New builds the command tree. Command output goes to out.
func New(h *host.Host, out io.Writer, opts Options) *Console {
	c := &Console{
		host:        h,
		srv:         h.Server(),
		out:         out,
		prompt:      opts.Prompt,
		defaultPort: opts.DefaultPort,
		logger:      opts.Logger,
	}
	if c.prompt == "" {
		c.prompt = DefaultPrompt
	}
	if c.logger == nil {
		c.logger = slogutil.NewDiscardLogger()
	}
	c.root = c.buildCommands()
	return c
}

// Exec runs one command line. Blank lines are ignored.
func (c *Console) Exec(line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}

	c.jsonOut = false
	c.root.SetArgs(args)
	err := c.root.Execute()
	if c.quitting {
		return ErrQuit
	}
	return err
}

// Run reads commands from in until quit, end of input or ctx is done.
// Command errors are printed and do not end the loop.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(c.out, c.prompt)
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case err := <-readErr:
			fmt.Fprintln(c.out)
			return err
		case line := <-lines:
			err := c.Exec(line)
			switch {
			case errors.Is(err, ErrQuit):
				return nil
			case err != nil:
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}
}
