// Package comments keeps the client-side view of a comment thread: the flat
// comment collection, the author cache, and the operations that load and
// mutate them against the comment API.
package comments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/learnup/learnup/internal/model"
	"github.com/learnup/learnup/internal/thread"
)

var (
	ErrEmptyComment = errors.New("comment cannot be empty")
	ErrNoParent     = errors.New("reply needs a parent comment")
	ErrNoEntity     = errors.New("no post, subject or video selected")
	ErrCancelled    = errors.New("cancelled")
)

// API is the remote comment API.
type API interface {
	ListComments(ctx context.Context, ref model.EntityRef) ([]model.Comment, error)
	CreateComment(ctx context.Context, ref model.EntityRef, d model.Draft) (model.Comment, error)
	ReplyComment(ctx context.Context, ref model.EntityRef, parentID string, d model.Draft) (model.Comment, error)
	EditComment(ctx context.Context, id, content string) (model.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	AuthorFetcher
}

type Option func(*Service)

func WithResolver(r *Resolver) Option {
	return func(s *Service) {
		s.resolver = r
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithProfileSource(p ProfileSource) Option {
	return func(s *Service) {
		s.profiles = p
	}
}

func WithConfirmer(c Confirmer) Option {
	return func(s *Service) {
		s.confirmer = c
	}
}

// WithRefetch controls whether Edit and Delete reload the thread after
// patching the store. On by default.
func WithRefetch(refetch bool) Option {
	return func(s *Service) {
		s.refetch = refetch
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

type Service struct {
	api       API
	store     Store
	resolver  *Resolver
	notifier  Notifier
	profiles  ProfileSource
	confirmer Confirmer
	refetch   bool
	validate  *validator.Validate
	log       *slog.Logger
}

type editPayload struct {
	Content string `validate:"required"`
}

// NewService wires a Service. Without WithResolver, authors are resolved with
// a Resolver over api and store.
func NewService(api API, store Store, opts ...Option) *Service {
	s := &Service{
		api:      api,
		store:    store,
		notifier: LogNotifier{},
		refetch:  true,
		validate: validator.New(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = NewResolver(api, store, WithResolverLogger(s.log))
	}
	return s
}

func (s *Service) Store() Store {
	return s.store
}

// Thread assembles the current collection into a forest.
func (s *Service) Thread() ([]thread.Node, error) {
	return thread.Assemble(s.store.Comments())
}

// Load replaces the collection with the comments of ref and resolves their
// authors. On failure the collection is left as it was.
func (s *Service) Load(ctx context.Context, ref model.EntityRef) error {
	list, err := s.api.ListComments(ctx, ref)
	if err != nil {
		s.store.Fail(err)
		s.notify(ctx, LevelFailure, "Failed to load comments")
		return fmt.Errorf("load comments for %s: %w", ref, err)
	}
	s.store.Reset(ref, list)
	s.log.DebugContext(ctx, "comments loaded", "entity", ref.String(), "count", len(list))
	s.resolver.Resolve(ctx, list)
	return nil
}

// Create posts a new root comment and puts it at the head of the collection.
func (s *Service) Create(ctx context.Context, ref model.EntityRef, d model.Draft) (model.Comment, error) {
	if ref.ID == "" {
		return model.Comment{}, ErrNoEntity
	}
	d, err := s.checkDraft(ctx, d)
	if err != nil {
		return model.Comment{}, err
	}
	c, err := s.api.CreateComment(ctx, ref, d)
	if err != nil {
		s.notify(ctx, LevelFailure, "Failed to post comment")
		return model.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	s.attachViewer(ctx, &c)
	s.store.AddRoot(c)
	s.notify(ctx, LevelSuccess, "Comment posted")
	return c, nil
}

// Reply posts a reply to parentID and appends it to the collection.
func (s *Service) Reply(ctx context.Context, ref model.EntityRef, parentID string, d model.Draft) (model.Comment, error) {
	if ref.ID == "" {
		return model.Comment{}, ErrNoEntity
	}
	if strings.TrimSpace(parentID) == "" {
		s.notify(ctx, LevelFailure, ErrNoParent.Error())
		return model.Comment{}, ErrNoParent
	}
	d, err := s.checkDraft(ctx, d)
	if err != nil {
		return model.Comment{}, err
	}
	c, err := s.api.ReplyComment(ctx, ref, parentID, d)
	if err != nil {
		s.notify(ctx, LevelFailure, "Failed to post reply")
		return model.Comment{}, fmt.Errorf("reply to %s: %w", parentID, err)
	}
	if c.IsRoot() {
		c.ParentComment = &parentID
	}
	s.attachViewer(ctx, &c)
	s.store.AddReply(c)
	s.notify(ctx, LevelSuccess, "Reply posted")
	return c, nil
}

// Edit replaces the body of comment id.
func (s *Service) Edit(ctx context.Context, id, content string) (model.Comment, error) {
	content = strings.TrimSpace(content)
	if err := s.validate.Struct(editPayload{Content: content}); err != nil {
		s.notify(ctx, LevelFailure, ErrEmptyComment.Error())
		return model.Comment{}, ErrEmptyComment
	}
	c, err := s.api.EditComment(ctx, id, content)
	if err != nil {
		s.notify(ctx, LevelFailure, "Failed to update comment")
		return model.Comment{}, fmt.Errorf("edit comment %s: %w", id, err)
	}
	if c.Content == "" {
		c.Content = content
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	s.store.Replace(id, model.Patch{Content: c.Content, UpdatedAt: c.UpdatedAt})
	s.notify(ctx, LevelSuccess, "Comment updated")
	s.reload(ctx)
	return c, nil
}

// Delete removes comment id after confirmation. Replies to it are left in
// the collection.
func (s *Service) Delete(ctx context.Context, id string) error {
	if s.confirmer != nil && !s.confirmer.Confirm(ctx, "Delete this comment?") {
		return ErrCancelled
	}
	if err := s.api.DeleteComment(ctx, id); err != nil {
		s.notify(ctx, LevelFailure, "Failed to delete comment")
		return fmt.Errorf("delete comment %s: %w", id, err)
	}
	s.store.Remove(id)
	s.notify(ctx, LevelSuccess, "Comment deleted")
	s.reload(ctx)
	return nil
}

func (s *Service) reload(ctx context.Context) {
	if !s.refetch {
		return
	}
	ref := s.store.Entity()
	if ref.IsZero() {
		return
	}
	if err := s.Load(ctx, ref); err != nil {
		s.log.WarnContext(ctx, "reload after mutation failed", "entity", ref.String(), "error", err)
	}
}

func (s *Service) checkDraft(ctx context.Context, d model.Draft) (model.Draft, error) {
	d.Content = strings.TrimSpace(d.Content)
	if len(d.Images) == 0 {
		d.Images = nil
	}
	if err := s.validate.Struct(d); err != nil {
		s.notify(ctx, LevelFailure, ErrEmptyComment.Error())
		return d, ErrEmptyComment
	}
	return d, nil
}

// attachViewer embeds the signed-in user's profile as the author of a comment
// they just created, so it renders without an author lookup.
func (s *Service) attachViewer(ctx context.Context, c *model.Comment) {
	if s.profiles == nil {
		return
	}
	p, err := s.profiles.Profile(ctx)
	if err != nil {
		s.log.DebugContext(ctx, "no local profile for new comment", "error", err)
		return
	}
	if p.ID == "" {
		p.ID = c.Author.ID
	}
	if c.Author.ID != "" && c.Author.ID != p.ID {
		return
	}
	c.Author = model.RefProfile(p)
	s.store.CacheAuthor(p)
}

func (s *Service) notify(ctx context.Context, level Level, msg string) {
	s.notifier.Notify(ctx, Notice{Level: level, Message: msg})
}
