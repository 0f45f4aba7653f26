// Package httpapp serves the comment REST API over sqlite storage.
package httpapp

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/learnup/learnup/internal/auth"
	"github.com/learnup/learnup/internal/config"
	"github.com/learnup/learnup/internal/model"
	"github.com/learnup/learnup/internal/rate"
	"github.com/learnup/learnup/internal/store"
)

type Server struct {
	store    store.Store
	auth     *auth.Service
	limiter  rate.Limiter
	cfg      config.Server
	validate *validator.Validate
	log      *slog.Logger
	router   chi.Router
}

func NewServer(store store.Store, authSvc *auth.Service, limiter rate.Limiter, cfg config.Server, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		store:    store,
		auth:     authSvc,
		limiter:  limiter,
		cfg:      cfg,
		validate: validator.New(),
		log:      log,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) { notFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) { methodNotAllowed(w) })

	r.Get("/version", s.handleVersion)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/challenge", s.handleAuthChallenge)
		r.Post("/verify", s.handleAuthVerify)
		r.Post("/keys", s.handleAddKey)
		r.Get("/user/{userID}", s.handleGetUser)
	})

	r.Route("/comments", func(r chi.Router) {
		r.Route("/{scope}/{entityID}/comments", func(r chi.Router) {
			r.Get("/", s.handleListComments)
			r.Post("/", s.handleCreateComment)
			r.Post("/{commentID}/reply", s.handleReplyComment)
			r.Post("/{commentID}/replies", s.handleReplyComment)
		})
		r.Put("/{commentID}", s.handleEditComment)
		r.Delete("/{commentID}", s.handleDeleteComment)
	})

	s.router = r
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"version": s.cfg.Version})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) allowRateLimit(w http.ResponseWriter, r *http.Request, action string, perMinute int) bool {
	key := fmt.Sprintf("%s:ip:%s", action, s.clientIP(r))
	if ok, retry := s.limiter.Allow(key, rate.PerMinute(perMinute)); !ok {
		writeRateLimit(w, retry)
		return false
	}
	return true
}

func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) (model.User, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
		return model.User{}, false
	}
	bearer := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	user, err := s.auth.Authenticate(r.Context(), bearer)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrTokenExpired) || errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, err)
			return model.User{}, false
		}
		s.internalError(w, r, err)
		return model.User{}, false
	}
	return user, true
}

func (s *Server) clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// decode reads a JSON body into dest and validates it.
func (s *Server) decode(r *http.Request, dest any) error {
	if err := readJSON(r.Body, dest); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if n, ok := dest.(interface{ normalize() }); ok {
		n.normalize()
	}
	if err := s.validate.Struct(dest); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			first := vErrs[0]
			return fmt.Errorf("field %s failed %q", strings.ToLower(first.Field()), first.Tag())
		}
		return err
	}
	return nil
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, errors.New("internal error"))
}

func readJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeRateLimit(w http.ResponseWriter, retry time.Duration) {
	secs := int(retry.Seconds())
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate limit exceeded",
		"retry_after": secs,
	})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, errors.New("not found"))
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}
