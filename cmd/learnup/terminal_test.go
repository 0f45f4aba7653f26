package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnup/learnup/internal/comments"
	"github.com/learnup/learnup/internal/model"
)

func newTestTerminal(input string) (*Terminal, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return &Terminal{
		in:      bufio.NewReader(strings.NewReader(input)),
		out:     &out,
		errOut:  &errOut,
		stdinfd: -1,
	}, &out, &errOut
}

func TestTerminalNotify(t *testing.T) {
	term, out, errOut := newTestTerminal("")
	ctx := context.Background()

	term.Notify(ctx, comments.Notice{Level: comments.LevelSuccess, Message: "Comment posted"})
	term.Notify(ctx, comments.Notice{Level: comments.LevelFailure, Message: "Failed to post comment"})

	assert.Equal(t, "✓ Comment posted\n", out.String())
	assert.Equal(t, "✗ Failed to post comment\n", errOut.String())
}

func TestTerminalConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		term, out, _ := newTestTerminal(tt.input)
		got := term.Confirm(context.Background(), "Delete this comment?")
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Equal(t, "Delete this comment? [y/N]: ", out.String())
	}
}

func TestTerminalAssumeYes(t *testing.T) {
	term, out, _ := newTestTerminal("n\n")
	term.assumeYes = true
	assert.True(t, term.Confirm(context.Background(), "Delete this comment?"))
	assert.Empty(t, out.String())
}

func TestTerminalPasswordFromPipe(t *testing.T) {
	term, out, _ := newTestTerminal("hunter22\r\n")
	pwd, err := term.Password("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "hunter22", pwd)
	assert.Equal(t, "Password: ", out.String())
}

func TestEntityFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	ef := addEntityFlags(fs)
	require.NoError(t, fs.Parse([]string{"--scope", "Video", "--entity", " intro-1 "}))

	ref, err := ef.ref()
	require.NoError(t, err)
	assert.Equal(t, model.EntityRef{Scope: model.ScopeVideo, ID: "intro-1"}, ref)
	assert.True(t, ef.set())
}

func TestEntityFlagsErrors(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	ef := addEntityFlags(fs)
	require.NoError(t, fs.Parse(nil))
	assert.False(t, ef.set())

	_, err := ef.ref()
	assert.ErrorContains(t, err, "--scope")

	*ef.scope = "post"
	_, err = ef.ref()
	assert.ErrorContains(t, err, "--entity")
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Nil(t, splitList(" , "))
	assert.Equal(t, []string{"a.png", "b.png"}, splitList("a.png, ,b.png"))
}

func TestSortOrder(t *testing.T) {
	less, err := sortOrder("server")
	require.NoError(t, err)
	assert.Nil(t, less)

	less, err = sortOrder("newest")
	require.NoError(t, err)
	assert.NotNil(t, less)

	_, err = sortOrder("top")
	assert.Error(t, err)
}
