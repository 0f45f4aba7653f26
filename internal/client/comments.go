package client

import (
	"context"
	"net/http"

	"github.com/learnup/learnup/internal/model"
)

const (
	threadPath = "/comments/{scope}/{entity}/comments"
	replyPath  = threadPath + "/{parent}/reply"
	itemPath   = "/comments/{id}"
)

type draftBody struct {
	Content string   `json:"content"`
	Images  []string `json:"images"`
}

func bodyOf(d model.Draft) draftBody {
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return draftBody{Content: d.Content, Images: images}
}

func entityParams(ref model.EntityRef) map[string]string {
	return map[string]string{"scope": string(ref.Scope), "entity": ref.ID}
}

// ListComments fetches the flat comment list of an entity.
func (c *Client) ListComments(ctx context.Context, ref model.EntityRef) ([]model.Comment, error) {
	var list []model.Comment
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   threadPath,
		params: entityParams(ref),
		result: &list,
	})
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Comment{}
	}
	return list, nil
}

func (c *Client) CreateComment(ctx context.Context, ref model.EntityRef, d model.Draft) (model.Comment, error) {
	var out model.Comment
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   threadPath,
		params: entityParams(ref),
		body:   bodyOf(d),
		result: &out,
		authed: true,
	})
	return out, err
}

func (c *Client) ReplyComment(ctx context.Context, ref model.EntityRef, parentID string, d model.Draft) (model.Comment, error) {
	params := entityParams(ref)
	params["parent"] = parentID
	var out model.Comment
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   replyPath,
		params: params,
		body:   bodyOf(d),
		result: &out,
		authed: true,
	})
	return out, err
}

func (c *Client) EditComment(ctx context.Context, id, content string) (model.Comment, error) {
	var out model.Comment
	err := c.do(ctx, call{
		method: http.MethodPut,
		path:   itemPath,
		params: map[string]string{"id": id},
		body:   map[string]string{"content": content},
		result: &out,
		authed: true,
	})
	return out, err
}

func (c *Client) DeleteComment(ctx context.Context, id string) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		path:   itemPath,
		params: map[string]string{"id": id},
		authed: true,
	})
}

// GetAuthor fetches the public profile of a user.
func (c *Client) GetAuthor(ctx context.Context, id string) (model.Author, error) {
	var out model.Author
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/auth/user/{id}",
		params: map[string]string{"id": id},
		result: &out,
	})
	return out, err
}
