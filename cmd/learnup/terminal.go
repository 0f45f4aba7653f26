package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/learnup/learnup/internal/comments"
)

// Terminal prints notices and asks questions on the controlling terminal.
type Terminal struct {
	in        *bufio.Reader
	out       io.Writer
	errOut    io.Writer
	stdinfd   int
	assumeYes bool
}

var (
	_ comments.Notifier  = (*Terminal)(nil)
	_ comments.Confirmer = (*Terminal)(nil)
)

func NewTerminal() *Terminal {
	return &Terminal{
		in:      bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		errOut:  os.Stderr,
		stdinfd: int(os.Stdin.Fd()),
	}
}

func (t *Terminal) Notify(_ context.Context, n comments.Notice) {
	if n.Level == comments.LevelFailure {
		fmt.Fprintf(t.errOut, "✗ %s\n", n.Message)
		return
	}
	fmt.Fprintf(t.out, "✓ %s\n", n.Message)
}

// Confirm asks a y/N question. Anything but y or yes declines.
func (t *Terminal) Confirm(_ context.Context, prompt string) bool {
	if t.assumeYes {
		return true
	}
	fmt.Fprintf(t.out, "%s [y/N]: ", prompt)
	answer, err := t.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// Password reads a secret without echo when stdin is a terminal, and a plain
// line otherwise.
func (t *Terminal) Password(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	if term.IsTerminal(t.stdinfd) {
		pwd, err := term.ReadPassword(t.stdinfd)
		fmt.Fprintln(t.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pwd), nil
	}
	line, err := t.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
