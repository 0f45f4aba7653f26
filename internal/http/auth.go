package httpapp

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/learnup/learnup/internal/auth"
	"github.com/learnup/learnup/internal/model"
	"github.com/learnup/learnup/internal/store"
)

type registerBody struct {
	Name     string `json:"name" validate:"required,max=80"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Avatar   string `json:"avatar" validate:"omitempty,url"`
	Role     string `json:"role" validate:"omitempty,oneof=student instructor"`
}

func (b *registerBody) normalize() {
	b.Name = strings.TrimSpace(b.Name)
	b.Email = strings.TrimSpace(b.Email)
	b.Avatar = strings.TrimSpace(b.Avatar)
}

type loginBody struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type challengeBody struct {
	Alg string `json:"alg" validate:"required,oneof=ed25519 secp256k1"`
}

type verifyBody struct {
	Alg       string `json:"alg" validate:"required,oneof=ed25519 secp256k1"`
	PublicKey string `json:"public_key" validate:"required"`
	Challenge string `json:"challenge" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type keyBody struct {
	Alg       string `json:"alg" validate:"required,oneof=ed25519 secp256k1"`
	PublicKey string `json:"public_key" validate:"required"`
}

type tokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      model.Author `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "login", s.cfg.RateLimits.LoginPerMinute) {
		return
	}
	var body registerBody
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, err := s.auth.Register(r.Context(), auth.Registration{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
		Avatar:   body.Avatar,
		Role:     model.ParseRole(body.Role),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, errors.New("email already registered"))
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u.Profile())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "login", s.cfg.RateLimits.LoginPerMinute) {
		return
	}
	var body loginBody
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token, u, err := s.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token.Token, ExpiresAt: token.ExpiresAt, User: u.Profile()})
}

func (s *Server) handleAuthChallenge(w http.ResponseWriter, r *http.Request) {
	var body challengeBody
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	challenge, err := s.auth.CreateChallenge(r.Context(), body.Alg)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"challenge":  challenge.Challenge,
		"expires_at": challenge.ExpiresAt,
	})
}

func (s *Server) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "login", s.cfg.RateLimits.LoginPerMinute) {
		return
	}
	var body verifyBody
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	token, u, err := s.auth.VerifyAndCreateToken(r.Context(),
		body.Alg, strings.TrimSpace(body.PublicKey), strings.TrimSpace(body.Challenge), strings.TrimSpace(body.Signature))
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token.Token, ExpiresAt: token.ExpiresAt, User: u.Profile()})
}

func (s *Server) handleAddKey(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	var body keyBody
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	key, err := s.auth.AddKey(r.Context(), user.ID, body.Alg, strings.TrimSpace(body.PublicKey))
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			writeError(w, http.StatusConflict, errors.New("key already registered"))
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         key.ID,
		"alg":        key.Alg,
		"public_key": key.PublicKey,
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			notFound(w)
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Profile())
}
