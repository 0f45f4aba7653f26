package comments

import (
	"context"
	"log/slog"

	"github.com/learnup/learnup/internal/model"
)

type Level int

const (
	LevelSuccess Level = iota
	LevelFailure
)

func (l Level) String() string {
	if l == LevelFailure {
		return "failure"
	}
	return "success"
}

// Notice is a transient message about the outcome of an operation.
type Notice struct {
	Level   Level
	Message string
}

type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notice)

func (f NotifierFunc) Notify(ctx context.Context, n Notice) {
	f(ctx, n)
}

// LogNotifier writes notices to a structured logger.
type LogNotifier struct {
	Log *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notice) {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	if n.Level == LevelFailure {
		log.WarnContext(ctx, n.Message, "notice", n.Level.String())
		return
	}
	log.InfoContext(ctx, n.Message, "notice", n.Level.String())
}

// Confirmer gates destructive operations behind a yes/no prompt.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

// ProfileSource returns the profile of the signed-in user.
type ProfileSource interface {
	Profile(ctx context.Context) (model.Author, error)
}
