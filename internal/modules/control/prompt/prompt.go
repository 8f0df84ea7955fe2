// Package prompt asks the operator for a credential on the terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/sydneycally-inclane-2812/temp-monitor-site/internal/modules/control/service"
)

const (
	Label = "Enter credentials: "
	esc   = "\x1b"
)

// Prompter reads a credential line. On a terminal the input is not echoed.
type Prompter struct {
	out      io.Writer
	readLine func() (string, error)
	// saveTerm snapshots the terminal mode and returns a func restoring it. nil when in is
	// not a terminal.
	saveTerm func() (restore func())
}

// New returns a prompter reading from in. When in is a terminal, input is read without echo.
func New(in io.Reader, out io.Writer) *Prompter {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		return &Prompter{
			out: out,
			readLine: func() (string, error) {
				b, err := term.ReadPassword(fd)
				// ReadPassword swallows the newline
				fmt.Fprintln(out)
				return string(b), err
			},
			saveTerm: func() func() {
				state, err := term.GetState(fd)
				if err != nil {
					return func() {}
				}
				return func() { _ = term.Restore(fd, state) }
			},
		}
	}
	r := bufio.NewReader(in)
	return &Prompter{out: out, readLine: func() (string, error) {
		line, err := r.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}}
}

// Credentials prompts until a non-blank credential is entered and returns it trimmed. EOF, an
// Escape keypress or ctx cancellation (Ctrl-C) return service.ErrCancelled. Blank input prints
// the empty-credential message and asks again.
func (p *Prompter) Credentials(ctx context.Context) (string, error) {
	for {
		fmt.Fprint(p.out, Label)

		type result struct {
			line string
			err  error
		}
		restore := func() {}
		if p.saveTerm != nil {
			restore = p.saveTerm()
		}

		ch := make(chan result, 1)
		go func() {
			line, err := p.readLine()
			ch <- result{line, err}
		}()

		var res result
		select {
		case <-ctx.Done():
			// the reader is still blocked with echo off
			restore()
			fmt.Fprintln(p.out)
			return "", service.ErrCancelled
		case res = <-ch:
		}

		if res.err != nil {
			if errors.Is(res.err, io.EOF) {
				return "", service.ErrCancelled
			}
			return "", fmt.Errorf("read credentials: %w", res.err)
		}
		if strings.Contains(res.line, esc) {
			return "", service.ErrCancelled
		}
		line := strings.TrimSpace(res.line)
		if line == "" {
			fmt.Fprintln(p.out, service.EmptyCredentials)
			continue
		}
		return line, nil
	}
}
