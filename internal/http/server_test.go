package httpapp

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnup/learnup/internal/auth"
	"github.com/learnup/learnup/internal/config"
	"github.com/learnup/learnup/internal/model"
	"github.com/learnup/learnup/internal/rate"
	"github.com/learnup/learnup/internal/store/sqlite"
)

type allowAllLimiter struct{}

func (allowAllLimiter) Allow(string, rate.Policy) (bool, time.Duration) {
	return true, 0
}

type harness struct {
	t      *testing.T
	server *Server
}

func newHarness(t *testing.T, limiter rate.Limiter, cfg config.Server) *harness {
	t.Helper()
	st, err := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	authSvc := auth.NewService(st, time.Hour, time.Minute)
	authSvc.SetAdmins([]string{"admin@example.com"})
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &harness{t: t, server: NewServer(st, authSvc, limiter, cfg, quiet)}
}

func (h *harness) do(method, path, token, body string) *httptest.ResponseRecorder {
	h.t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	h.server.ServeHTTP(resp, req)
	return resp
}

// signup registers a user and returns its id and token.
func (h *harness) signup(name, email string) (string, string) {
	h.t.Helper()
	resp := h.do(http.MethodPost, "/auth/register", "",
		fmt.Sprintf(`{"name":%q,"email":%q,"password":"password123"}`, name, email))
	require.Equal(h.t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = h.do(http.MethodPost, "/auth/login", "",
		fmt.Sprintf(`{"email":%q,"password":"password123"}`, email))
	require.Equal(h.t, http.StatusOK, resp.Code, resp.Body.String())
	var out struct {
		Token string       `json:"token"`
		User  model.Author `json:"user"`
	}
	require.NoError(h.t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out.User.ID, out.Token
}

func decodeComment(t *testing.T, resp *httptest.ResponseRecorder) model.Comment {
	t.Helper()
	var c model.Comment
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &c), resp.Body.String())
	return c
}

func TestCommentEndpoints(t *testing.T) {
	h := newHarness(t, allowAllLimiter{}, config.Server{})
	uid, token := h.signup("Ada", "ada@example.com")

	resp := h.do(http.MethodPost, "/comments/post/p1/comments", token, `{"content":"  first  ","images":[]}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	root := decodeComment(t, resp)
	assert.Equal(t, "first", root.Content)
	assert.Equal(t, "p1", root.Post)
	assert.Equal(t, uid, root.Author.ID)
	assert.Equal(t, []string{}, root.Images)

	resp = h.do(http.MethodPost, "/comments/post/p1/comments/"+root.ID+"/reply", token, `{"content":"second"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	reply := decodeComment(t, resp)
	assert.Equal(t, root.ID, reply.ParentID())

	resp = h.do(http.MethodPost, "/comments/post/p1/comments/"+root.ID+"/replies", token, `{"images":["https://img.example/a.png"]}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = h.do(http.MethodGet, "/comments/post/p1/comments", "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var list []model.Comment
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list, 3)
	assert.Equal(t, root.ID, list[0].ID)
	assert.Equal(t, reply.ID, list[1].ID)

	resp = h.do(http.MethodPut, "/comments/"+root.ID, token, `{"content":"edited"}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	edited := decodeComment(t, resp)
	assert.Equal(t, "edited", edited.Content)
	assert.True(t, edited.Edited())

	resp = h.do(http.MethodDelete, "/comments/"+root.ID, token, "")
	require.Equal(t, http.StatusNoContent, resp.Code)
	assert.Empty(t, resp.Body.String())

	resp = h.do(http.MethodGet, "/comments/post/p1/comments", "", "")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	assert.Len(t, list, 2, "replies survive their parent")
}

func TestEmptyListIsArray(t *testing.T) {
	h := newHarness(t, allowAllLimiter{}, config.Server{})

	resp := h.do(http.MethodGet, "/comments/subject/s1/comments", "", "")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[]`, resp.Body.String())
}

func TestCommentValidation(t *testing.T) {
	h := newHarness(t, allowAllLimiter{}, config.Server{})
	_, token := h.signup("Ada", "ada@example.com")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		want   int
	}{
		{"no token", http.MethodPost, "/comments/post/p1/comments", "", `{"content":"x"}`, http.StatusUnauthorized},
		{"bad token", http.MethodPost, "/comments/post/p1/comments", "nope", `{"content":"x"}`, http.StatusUnauthorized},
		{"empty body", http.MethodPost, "/comments/post/p1/comments", token, `{"content":"   ","images":[]}`, http.StatusBadRequest},
		{"blank image", http.MethodPost, "/comments/post/p1/comments", token, `{"images":[""]}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/comments/post/p1/comments", token, `{"text":"x"}`, http.StatusBadRequest},
		{"unknown scope", http.MethodPost, "/comments/course/p1/comments", token, `{"content":"x"}`, http.StatusBadRequest},
		{"missing parent", http.MethodPost, "/comments/post/p1/comments/nope/reply", token, `{"content":"x"}`, http.StatusBadRequest},
		{"edit missing", http.MethodPut, "/comments/nope", token, `{"content":"x"}`, http.StatusNotFound},
		{"edit empty", http.MethodPut, "/comments/nope", token, `{"content":" "}`, http.StatusBadRequest},
		{"delete missing", http.MethodDelete, "/comments/nope", token, "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := h.do(tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.want, resp.Code, resp.Body.String())
		})
	}
}

func TestReplyMustShareEntity(t *testing.T) {
	h := newHarness(t, allowAllLimiter{}, config.Server{})
	_, token := h.signup("Ada", "ada@example.com")

	resp := h.do(http.MethodPost, "/comments/video/v1/comments", token, `{"content":"root"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	root := decodeComment(t, resp)

	resp = h.do(http.MethodPost, "/comments/video/v2/comments/"+root.ID+"/reply", token, `{"content":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestOnlyOwnerOrAdminMayChange(t *testing.T) {
	h := newHarness(t, allowAllLimiter{}, config.Server{})
	_, owner := h.signup("Ada", "ada@example.com")
	_, other := h.signup("Lin", "lin@example.com")
	_, admin := h.signup("Root", "admin@example.com")

	resp := h.do(http.MethodPost, "/comments/post/p1/comments", owner, `{"content":"mine"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	c := decodeComment(t, resp)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPut, "/comments/"+c.ID, other, `{"content":"hijack"}`).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodDelete, "/comments/"+c.ID, other, "").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodPut, "/comments/"+c.ID, admin, `{"content":"moderated"}`).Code)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/comments/"+c.ID, admin, "").Code)
}

func TestUserProfile(t *testing.T) {
	h := newHarness(t, allowAllLimiter{}, config.Server{})
	uid, _ := h.signup("Ada", "ada@example.com")

	resp := h.do(http.MethodGet, "/auth/user/"+uid, "", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"_id":%q,"name":"Ada","role":"student"}`, uid), resp.Body.String())

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/auth/user/nobody", "", "").Code)
}

func TestRegisterConflictAndLogin(t *testing.T) {
	h := newHarness(t, allowAllLimiter{}, config.Server{})
	h.signup("Ada", "ada@example.com")

	resp := h.do(http.MethodPost, "/auth/register", "", `{"name":"Ada","email":"ada@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = h.do(http.MethodPost, "/auth/register", "", `{"name":"Bad","email":"not-an-email","password":"password123"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = h.do(http.MethodPost, "/auth/login", "", `{"email":"ada@example.com","password":"wrong-password"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCommentRateLimit(t *testing.T) {
	h := newHarness(t, rate.NewMemory(), config.Server{RateLimits: config.RateLimits{CommentPerMinute: 2}})
	_, token := h.signup("Ada", "ada@example.com")

	for i := 0; i < 2; i++ {
		resp := h.do(http.MethodPost, "/comments/post/p1/comments", token, `{"content":"x"}`)
		require.Equal(t, http.StatusCreated, resp.Code)
	}
	resp := h.do(http.MethodPost, "/comments/post/p1/comments", token, `{"content":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))
}

func TestDeleteSharesCommentRateLimit(t *testing.T) {
	h := newHarness(t, rate.NewMemory(), config.Server{RateLimits: config.RateLimits{CommentPerMinute: 2}})
	_, token := h.signup("Ada", "ada@example.com")

	resp := h.do(http.MethodPost, "/comments/post/p1/comments", token, `{"content":"x"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	c := decodeComment(t, resp)

	resp = h.do(http.MethodDelete, "/comments/"+c.ID, token, "")
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = h.do(http.MethodDelete, "/comments/"+c.ID, token, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.NotEmpty(t, resp.Header().Get("Retry-After"))
}

func TestVersionAndNotFound(t *testing.T) {
	h := newHarness(t, allowAllLimiter{}, config.Server{Version: "1.2.3"})

	resp := h.do(http.MethodGet, "/version", "", "")
	assert.JSONEq(t, `{"version":"1.2.3"}`, resp.Body.String())

	resp = h.do(http.MethodGet, "/nowhere", "", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.JSONEq(t, `{"error":"not found"}`, resp.Body.String())
}
