package model

import (
	"strings"
	"time"
)

// Scope names the kind of entity a comment thread is attached to.
type Scope string

const (
	ScopePost    Scope = "post"
	ScopeSubject Scope = "subject"
	ScopeVideo   Scope = "video"
)

func ParseScope(s string) (Scope, bool) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopePost:
		return ScopePost, true
	case ScopeSubject:
		return ScopeSubject, true
	case ScopeVideo:
		return ScopeVideo, true
	}
	return "", false
}

// EntityRef identifies the post, subject or video that owns a thread.
type EntityRef struct {
	Scope Scope
	ID    string
}

func (r EntityRef) IsZero() bool {
	return r.Scope == "" && r.ID == ""
}

func (r EntityRef) String() string {
	return string(r.Scope) + "/" + r.ID
}

// Comment is the flat record served by the comment API.
type Comment struct {
	ID            string    `json:"_id"`
	Post          string    `json:"post,omitempty"`
	Subject       string    `json:"subject,omitempty"`
	Video         string    `json:"video,omitempty"`
	Author        AuthorRef `json:"user"`
	Content       string    `json:"content"`
	Images        []string  `json:"images"`
	ParentComment *string   `json:"parentComment,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Entity returns the parent entity the comment belongs to.
func (c Comment) Entity() EntityRef {
	switch {
	case c.Post != "":
		return EntityRef{Scope: ScopePost, ID: c.Post}
	case c.Subject != "":
		return EntityRef{Scope: ScopeSubject, ID: c.Subject}
	case c.Video != "":
		return EntityRef{Scope: ScopeVideo, ID: c.Video}
	}
	return EntityRef{}
}

// SetEntity populates exactly one parent-entity field.
func (c *Comment) SetEntity(ref EntityRef) {
	c.Post, c.Subject, c.Video = "", "", ""
	switch ref.Scope {
	case ScopePost:
		c.Post = ref.ID
	case ScopeSubject:
		c.Subject = ref.ID
	case ScopeVideo:
		c.Video = ref.ID
	}
}

func (c Comment) IsRoot() bool {
	return c.ParentComment == nil || *c.ParentComment == ""
}

// ParentID returns the parent comment id, or "" for roots.
func (c Comment) ParentID() string {
	if c.ParentComment == nil {
		return ""
	}
	return *c.ParentComment
}

// Edited reports whether the comment was updated after creation.
func (c Comment) Edited() bool {
	return c.UpdatedAt.After(c.CreatedAt)
}

// Draft is the body of a create or reply request.
type Draft struct {
	Content string   `json:"content" validate:"required_without=Images"`
	Images  []string `json:"images" validate:"omitempty,dive,required"`
}

// Patch is what an edit changes on a stored comment.
type Patch struct {
	Content   string
	UpdatedAt time.Time
}

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Avatar       string
	Role         Role
	CreatedAt    time.Time
}

// Profile is the public view of a user served by /auth/user/{id}.
func (u User) Profile() Author {
	return Author{ID: u.ID, Name: u.Name, Avatar: u.Avatar, Role: u.Role}
}

type UserKey struct {
	ID        int64
	UserID    string
	Alg       string
	PublicKey string
	CreatedAt time.Time
}

type Challenge struct {
	Challenge string
	Alg       string
	ExpiresAt time.Time
}

type Token struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}
