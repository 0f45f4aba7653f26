// Package auth issues and checks bearer tokens for the comment API. Users
// sign in with an email and password, or with a registered public key by
// signing a one-time challenge.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/learnup/learnup/internal/model"
	"github.com/learnup/learnup/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrChallengeExpired   = errors.New("challenge expired")
)

type Service struct {
	store        store.Store
	tokenTTL     time.Duration
	challengeTTL time.Duration
	admins       map[string]bool
}

func NewService(store store.Store, tokenTTL, challengeTTL time.Duration) *Service {
	return &Service{
		store:        store,
		tokenTTL:     tokenTTL,
		challengeTTL: challengeTTL,
		admins:       map[string]bool{},
	}
}

// SetAdmins marks the given emails as admins on registration.
func (s *Service) SetAdmins(emails []string) {
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			s.admins[e] = true
		}
	}
}

type Registration struct {
	Name     string
	Email    string
	Password string
	Avatar   string
	Role     model.Role
}

func (s *Service) Register(ctx context.Context, r Registration) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}
	role := r.Role
	if role == model.RoleAdmin || role == model.RoleUnknown {
		role = model.RoleStudent
	}
	if s.admins[strings.ToLower(strings.TrimSpace(r.Email))] {
		role = model.RoleAdmin
	}
	u := model.User{
		Name:         strings.TrimSpace(r.Name),
		Email:        strings.TrimSpace(r.Email),
		PasswordHash: string(hash),
		Avatar:       r.Avatar,
		Role:         role,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateUser(ctx, &u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// Login checks an email and password and issues a token.
func (s *Service) Login(ctx context.Context, email, password string) (model.Token, model.User, error) {
	u, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Token{}, model.User{}, ErrInvalidCredentials
		}
		return model.Token{}, model.User{}, err
	}
	if u.PasswordHash == "" {
		return model.Token{}, model.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return model.Token{}, model.User{}, ErrInvalidCredentials
	}
	token, err := s.issueToken(ctx, u.ID)
	if err != nil {
		return model.Token{}, model.User{}, err
	}
	return token, u, nil
}

func (s *Service) CreateChallenge(ctx context.Context, alg string) (model.Challenge, error) {
	if !SupportedAlg(alg) {
		return model.Challenge{}, fmt.Errorf("unsupported alg: %s", alg)
	}
	challenge, err := randomToken(32)
	if err != nil {
		return model.Challenge{}, err
	}
	c := model.Challenge{
		Challenge: challenge,
		Alg:       strings.ToLower(alg),
		ExpiresAt: time.Now().Add(s.challengeTTL),
	}
	if err := s.store.CreateChallenge(ctx, c); err != nil {
		return model.Challenge{}, err
	}
	return c, nil
}

// VerifyAndCreateToken consumes challenge, checks its signature against a
// registered key, and issues a token for the key's owner.
func (s *Service) VerifyAndCreateToken(ctx context.Context, alg, publicKey, challenge, signature string) (model.Token, model.User, error) {
	alg = strings.ToLower(alg)
	c, err := s.store.ConsumeChallenge(ctx, challenge)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Token{}, model.User{}, ErrInvalidCredentials
		}
		return model.Token{}, model.User{}, err
	}
	if time.Now().After(c.ExpiresAt) {
		return model.Token{}, model.User{}, ErrChallengeExpired
	}
	if c.Alg != alg {
		return model.Token{}, model.User{}, errors.New("challenge alg mismatch")
	}
	if err := VerifySignature(alg, publicKey, challenge, signature); err != nil {
		return model.Token{}, model.User{}, err
	}

	_, u, err := s.store.FindUserKey(ctx, alg, publicKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Token{}, model.User{}, ErrInvalidCredentials
		}
		return model.Token{}, model.User{}, err
	}
	token, err := s.issueToken(ctx, u.ID)
	if err != nil {
		return model.Token{}, model.User{}, err
	}
	return token, u, nil
}

// AddKey registers a public key for userID after checking it parses.
func (s *Service) AddKey(ctx context.Context, userID, alg, publicKey string) (model.UserKey, error) {
	alg = strings.ToLower(alg)
	if err := ParsePublicKey(alg, publicKey); err != nil {
		return model.UserKey{}, err
	}
	key := model.UserKey{UserID: userID, Alg: alg, PublicKey: publicKey, CreatedAt: time.Now()}
	if err := s.store.AddUserKey(ctx, &key); err != nil {
		return model.UserKey{}, err
	}
	return key, nil
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, bearer string) (model.User, error) {
	token, err := s.store.GetToken(ctx, bearer)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, err
	}
	if time.Now().After(token.ExpiresAt) {
		return model.User{}, ErrTokenExpired
	}
	return s.store.GetUser(ctx, token.UserID)
}

func (s *Service) issueToken(ctx context.Context, userID string) (model.Token, error) {
	value, err := randomToken(32)
	if err != nil {
		return model.Token{}, err
	}
	token := model.Token{
		Token:     value,
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.tokenTTL),
	}
	if err := s.store.CreateToken(ctx, token); err != nil {
		return model.Token{}, err
	}
	return token, nil
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
