package model

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"
)

// PlaceholderAvatar is shown for authors without an avatar or not yet resolved.
const PlaceholderAvatar = "/images/avatar-placeholder.png"

const unknownAuthorName = "Unknown"

type Author struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Role   Role   `json:"role,omitempty"`
}

// UnknownAuthor is the display fallback for an unresolved author id.
func UnknownAuthor(id string) Author {
	return Author{ID: id, Name: unknownAuthorName, Avatar: PlaceholderAvatar}
}

func (a Author) DisplayName() string {
	if strings.TrimSpace(a.Name) == "" {
		return unknownAuthorName
	}
	return a.Name
}

func (a Author) DisplayAvatar() string {
	if a.Avatar == "" {
		return PlaceholderAvatar
	}
	return a.Avatar
}

// AuthorRef is the "user" field of a comment. Depending on the endpoint it
// is either a bare author id or an embedded partial author object.
type AuthorRef struct {
	ID      string
	Profile *Author
}

func RefID(id string) AuthorRef {
	return AuthorRef{ID: id}
}

func RefProfile(a Author) AuthorRef {
	return AuthorRef{ID: a.ID, Profile: &a}
}

func (r AuthorRef) Embedded() bool {
	return r.Profile != nil
}

func (r AuthorRef) MarshalJSON() ([]byte, error) {
	if r.Profile != nil {
		p := *r.Profile
		if p.ID == "" {
			p.ID = r.ID
		}
		return json.Marshal(p)
	}
	return json.Marshal(r.ID)
}

func (r *AuthorRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = AuthorRef{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = AuthorRef{ID: id}
		return nil
	}
	var a Author
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = AuthorRef{ID: a.ID, Profile: &a}
	return nil
}
