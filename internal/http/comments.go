package httpapp

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/learnup/learnup/internal/model"
	"github.com/learnup/learnup/internal/store"
)

var (
	errUnknownScope  = errors.New("unknown scope")
	errParentMissing = errors.New("parent comment not found")
	errParentEntity  = errors.New("parent comment belongs to another entity")
	errNotOwner      = errors.New("only the author or an admin may change this comment")
)

// commentBody is a create or reply payload.
type commentBody model.Draft

func (b *commentBody) normalize() {
	b.Content = strings.TrimSpace(b.Content)
	if len(b.Images) == 0 {
		b.Images = nil
	}
}

type editBody struct {
	Content string `json:"content" validate:"required"`
}

func (b *editBody) normalize() {
	b.Content = strings.TrimSpace(b.Content)
}

func entityRef(r *http.Request) (model.EntityRef, error) {
	scope, ok := model.ParseScope(chi.URLParam(r, "scope"))
	if !ok {
		return model.EntityRef{}, errUnknownScope
	}
	id := strings.TrimSpace(chi.URLParam(r, "entityID"))
	if id == "" {
		return model.EntityRef{}, errors.New("entity id required")
	}
	return model.EntityRef{Scope: scope, ID: id}, nil
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	ref, err := entityRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	list, err := s.store.ListComments(r.Context(), ref)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	s.createComment(w, r, "")
}

func (s *Server) handleReplyComment(w http.ResponseWriter, r *http.Request) {
	s.createComment(w, r, chi.URLParam(r, "commentID"))
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request, parentID string) {
	if !s.allowRateLimit(w, r, "comment", s.cfg.RateLimits.CommentPerMinute) {
		return
	}
	user, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	ref, err := entityRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var body commentBody
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	comment := model.Comment{
		Author:    model.RefID(user.ID),
		Content:   body.Content,
		Images:    body.Images,
		CreatedAt: time.Now(),
	}
	comment.SetEntity(ref)

	if parentID != "" {
		parent, err := s.store.GetComment(r.Context(), parentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusBadRequest, errParentMissing)
				return
			}
			s.internalError(w, r, err)
			return
		}
		if parent.Entity() != ref {
			writeError(w, http.StatusBadRequest, errParentEntity)
			return
		}
		comment.ParentComment = &parent.ID
	}

	if err := s.store.CreateComment(r.Context(), &comment); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) handleEditComment(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "comment", s.cfg.RateLimits.CommentPerMinute) {
		return
	}
	user, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	var body editBody
	if err := s.decode(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := chi.URLParam(r, "commentID")
	if _, ok := s.ownedComment(w, r, user, id); !ok {
		return
	}
	updated, err := s.store.UpdateComment(r.Context(), id, body.Content, time.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			notFound(w)
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "comment", s.cfg.RateLimits.CommentPerMinute) {
		return
	}
	user, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "commentID")
	if _, ok := s.ownedComment(w, r, user, id); !ok {
		return
	}
	if err := s.store.DeleteComment(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			notFound(w)
			return
		}
		s.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedComment loads comment id and checks that user may change it.
func (s *Server) ownedComment(w http.ResponseWriter, r *http.Request, user model.User, id string) (model.Comment, bool) {
	c, err := s.store.GetComment(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			notFound(w)
			return model.Comment{}, false
		}
		s.internalError(w, r, err)
		return model.Comment{}, false
	}
	if c.Author.ID != user.ID && user.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, errNotOwner)
		return model.Comment{}, false
	}
	return c, true
}
