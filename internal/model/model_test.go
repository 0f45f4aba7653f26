package model

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentDecodesBareAuthorID(t *testing.T) {
	raw := `{"_id":"c1","post":"p1","user":"u1","content":"hi","images":[],"createdAt":"2024-03-01T10:00:00Z","updatedAt":"2024-03-01T10:00:00Z"}`

	var c Comment
	require.NoError(t, json.Unmarshal([]byte(raw), &c))

	assert.Equal(t, "u1", c.Author.ID)
	assert.False(t, c.Author.Embedded())
	assert.Equal(t, EntityRef{Scope: ScopePost, ID: "p1"}, c.Entity())
	assert.True(t, c.IsRoot())
	assert.False(t, c.Edited())
}

func TestCommentDecodesEmbeddedAuthor(t *testing.T) {
	raw := `{"_id":"c2","subject":"s1","user":{"_id":"u2","name":"Ada","avatar":"/a.png","role":"teacher"},"content":"","images":["/img/1.png"],"parentComment":"c1","createdAt":"2024-03-01T10:00:00Z","updatedAt":"2024-03-01T11:00:00Z"}`

	var c Comment
	require.NoError(t, json.Unmarshal([]byte(raw), &c))

	require.True(t, c.Author.Embedded())
	assert.Equal(t, "u2", c.Author.ID)
	assert.Equal(t, "Ada", c.Author.Profile.Name)
	assert.Equal(t, RoleInstructor, c.Author.Profile.Role)
	assert.Equal(t, "c1", c.ParentID())
	assert.Equal(t, EntityRef{Scope: ScopeSubject, ID: "s1"}, c.Entity())
	assert.True(t, c.Edited())
}

func TestAuthorRefEncodesTheShapeItHolds(t *testing.T) {
	bare, err := json.Marshal(RefID("u1"))
	require.NoError(t, err)
	assert.JSONEq(t, `"u1"`, string(bare))

	embedded, err := json.Marshal(RefProfile(Author{ID: "u1", Name: "Ada", Role: RoleAdmin}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":"u1","name":"Ada","role":"admin"}`, string(embedded))
}

func TestNullAuthorDecodesToZeroRef(t *testing.T) {
	var c Comment
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"c1","video":"v1","user":null}`), &c))
	assert.Equal(t, AuthorRef{}, c.Author)
	assert.Equal(t, ScopeVideo, c.Entity().Scope)
}

func TestParseRoleFallsBackToUnknown(t *testing.T) {
	cases := map[string]Role{
		"student":    RoleStudent,
		"Teacher":    RoleInstructor,
		" admin ":    RoleAdmin,
		"superadmin": RoleUnknown,
		"":           RoleUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseRole(in), in)
	}
	assert.Equal(t, "gray", RoleUnknown.Color())
	assert.Empty(t, RoleUnknown.Label())
	assert.Equal(t, "Instructor", RoleInstructor.Label())
}

func TestUnknownAuthorUsesPlaceholder(t *testing.T) {
	a := UnknownAuthor("u9")
	assert.Equal(t, "Unknown", a.DisplayName())
	assert.Equal(t, PlaceholderAvatar, a.DisplayAvatar())
	assert.Equal(t, "Unknown", Author{ID: "u1"}.DisplayName())
}

func TestSetEntityKeepsExactlyOneReference(t *testing.T) {
	c := Comment{Post: "p1"}
	c.SetEntity(EntityRef{Scope: ScopeVideo, ID: "v1"})
	assert.Empty(t, c.Post)
	assert.Equal(t, "v1", c.Video)

	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	assert.False(t, c.Edited())
}

func TestParseScope(t *testing.T) {
	s, ok := ParseScope("Subject")
	assert.True(t, ok)
	assert.Equal(t, ScopeSubject, s)

	_, ok = ParseScope("course")
	assert.False(t, ok)
}
