// Package shell implements the interactive command loop.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fruitsalade/dirfetch/internal/logging"
	"github.com/fruitsalade/dirfetch/internal/metrics"
	"github.com/fruitsalade/dirfetch/internal/session"
	"github.com/fruitsalade/dirfetch/pkg/errkind"
)

// Prompt is printed before every command line.
const Prompt = "> "

const interruptHint = "If you want to exit, please type q(quit) or type Ctrl-D\nPlease don't type Ctrl-C\n"

// Shell reads commands and runs them against a session.
type Shell struct {
	sess   *session.Session
	in     *bufio.Reader
	out    io.Writer
	styles styles
}

// New creates a shell. in must be the reader shared with any overwrite
// prompt.
func New(sess *session.Session, in *bufio.Reader, out io.Writer) *Shell {
	return &Shell{
		sess:   sess,
		in:     in,
		out:    out,
		styles: newStyles(out),
	}
}

type readResult struct {
	line string
	err  error
}

// Run reads and executes lines until quit or end of input. A value on
// interrupts while waiting for input prints a hint; while a command runs it
// cancels that command.
func (sh *Shell) Run(ctx context.Context, interrupts <-chan os.Signal) error {
	for {
		fmt.Fprint(sh.out, Prompt)
		line, err := sh.readLine(ctx, interrupts)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(sh.out)
			return nil
		}
		if err != nil {
			return err
		}
		if sh.runLine(ctx, line, interrupts) {
			return nil
		}
	}
}

// readLine keeps a single read outstanding, so the overwrite prompt can use
// the same reader while a command runs.
func (sh *Shell) readLine(ctx context.Context, interrupts <-chan os.Signal) (string, error) {
	ch := make(chan readResult, 1)
	go func() {
		line, err := sh.in.ReadString('\n')
		ch <- readResult{line: line, err: err}
	}()

	for {
		select {
		case r := <-ch:
			if r.err != nil && r.line == "" {
				return "", r.err
			}
			return strings.TrimRight(r.line, "\r\n"), nil
		case <-interrupts:
			fmt.Fprint(sh.out, "\n"+interruptHint+Prompt)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (sh *Shell) runLine(ctx context.Context, line string, interrupts <-chan os.Signal) bool {
	cmdCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-interrupts:
			cancel()
		case <-done:
		}
	}()

	return sh.Execute(cmdCtx, line)
}

// Execute runs one command line and reports whether the shell should quit.
// Command errors are printed, never returned, and a panicking command does
// not end the session.
func (sh *Shell) Execute(ctx context.Context, line string) (quit bool) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordCommandError(errkind.Unknown.String())
			logging.WithContext(sh.sess.Context(ctx)).Error("Exception: command panicked",
				logging.String("line", line),
				logging.Any("panic", r),
			)
			quit = false
		}
	}()

	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "q", "quit":
		return true
	case "h", "help":
		sh.newRootCmd(ctx, new(bool)).Help()
		return false
	}

	var ran bool
	root := sh.newRootCmd(ctx, &ran)
	root.SetArgs(strings.Fields(line))
	if err := root.ExecuteContext(ctx); err != nil {
		if !ran {
			err = errkind.New(errkind.Arg, "%s", err.Error())
		}
		sh.report(ctx, err)
	}
	return false
}

func (sh *Shell) report(ctx context.Context, err error) {
	kind := errkind.Of(err)
	metrics.RecordCommandError(kind.String())

	switch kind {
	case errkind.Arg, errkind.Decode:
		fmt.Fprintln(sh.out, err)
		fmt.Fprintln(sh.out, "Type h(help) for help")
	case errkind.NotFound:
		fmt.Fprintln(sh.out, err)
	case errkind.Index:
		fmt.Fprintln(sh.out, "IndexError:", err)
	case errkind.SpecialCharacter:
		logging.WithContext(sh.sess.Context(ctx)).Error(err.Error())
		fmt.Fprintln(sh.out, "Special character:", err)
	case errkind.Transfer:
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(sh.out, "Interrupted")
			return
		}
		fmt.Fprintln(sh.out, err)
	default:
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(sh.out, "Interrupted")
			return
		}
		logging.WithContext(sh.sess.Context(ctx)).Error("Exception: "+err.Error(), logging.Err(err))
	}
}
