package store

import (
	"context"
	"errors"
	"time"

	"github.com/learnup/learnup/internal/model"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("duplicate email")
	ErrDuplicateKey   = errors.New("duplicate key")
)

type Store interface {
	CommentStore
	UserStore
	AuthStore
	Close() error
}

// CommentStore persists comments. ListComments returns root comments newest
// first followed by replies oldest first.
type CommentStore interface {
	CreateComment(ctx context.Context, c *model.Comment) error
	GetComment(ctx context.Context, id string) (model.Comment, error)
	ListComments(ctx context.Context, ref model.EntityRef) ([]model.Comment, error)
	UpdateComment(ctx context.Context, id, content string, updatedAt time.Time) (model.Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	FindUserByEmail(ctx context.Context, email string) (model.User, error)
	AddUserKey(ctx context.Context, key *model.UserKey) error
	FindUserKey(ctx context.Context, alg, publicKey string) (model.UserKey, model.User, error)
}

type AuthStore interface {
	CreateChallenge(ctx context.Context, c model.Challenge) error
	ConsumeChallenge(ctx context.Context, challenge string) (model.Challenge, error)
	CreateToken(ctx context.Context, token model.Token) error
	GetToken(ctx context.Context, token string) (model.Token, error)
}
