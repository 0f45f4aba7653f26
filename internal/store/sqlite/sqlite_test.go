package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/learnup/learnup/internal/model"
	"github.com/learnup/learnup/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

var lesson = model.EntityRef{Scope: model.ScopeVideo, ID: "v1"}

func addComment(t *testing.T, st *Store, author, parent, content string) model.Comment {
	t.Helper()
	c := model.Comment{Author: model.RefID(author), Content: content}
	c.SetEntity(lesson)
	if parent != "" {
		c.ParentComment = &parent
	}
	if err := st.CreateComment(context.Background(), &c); err != nil {
		t.Fatalf("create comment: %v", err)
	}
	return c
}

func TestCommentLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	root := addComment(t, st, "u1", "", "Hello")
	if root.ID == "" {
		t.Fatalf("expected generated id")
	}

	got, err := st.GetComment(ctx, root.ID)
	if err != nil {
		t.Fatalf("get comment: %v", err)
	}
	if got.Content != "Hello" || got.Video != "v1" || got.Author.ID != "u1" {
		t.Fatalf("unexpected comment: %+v", got)
	}
	if got.Images == nil || len(got.Images) != 0 {
		t.Fatalf("expected empty images, got %#v", got.Images)
	}
	if got.Edited() {
		t.Fatalf("new comment should not read as edited")
	}

	updated, err := st.UpdateComment(ctx, root.ID, "Hello again", got.CreatedAt)
	if err != nil {
		t.Fatalf("update comment: %v", err)
	}
	if updated.Content != "Hello again" {
		t.Fatalf("unexpected content: %s", updated.Content)
	}
	if !updated.Edited() {
		t.Fatalf("expected updated_at after created_at")
	}

	if err := st.DeleteComment(ctx, root.ID); err != nil {
		t.Fatalf("delete comment: %v", err)
	}
	if _, err := st.GetComment(ctx, root.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := st.DeleteComment(ctx, root.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestListCommentsOrder(t *testing.T) {
	st := newTestStore(t)

	first := addComment(t, st, "u1", "", "first")
	second := addComment(t, st, "u2", "", "second")
	r1 := addComment(t, st, "u2", first.ID, "r1")
	r2 := addComment(t, st, "u3", first.ID, "r2")

	other := model.Comment{Author: model.RefID("u1"), Content: "elsewhere"}
	other.SetEntity(model.EntityRef{Scope: model.ScopePost, ID: "v1"})
	if err := st.CreateComment(context.Background(), &other); err != nil {
		t.Fatalf("create comment: %v", err)
	}

	list, err := st.ListComments(context.Background(), lesson)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	want := []string{second.ID, first.ID, r1.ID, r2.ID}
	if len(list) != len(want) {
		t.Fatalf("expected %d comments, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, list[i].ID)
		}
	}
	if list[2].ParentID() != first.ID {
		t.Fatalf("expected reply parent %s, got %s", first.ID, list[2].ParentID())
	}
}

func TestListCommentsEmpty(t *testing.T) {
	st := newTestStore(t)

	list, err := st.ListComments(context.Background(), lesson)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", list)
	}
}

func TestDeleteLeavesReplies(t *testing.T) {
	st := newTestStore(t)

	root := addComment(t, st, "u1", "", "root")
	reply := addComment(t, st, "u2", root.ID, "reply")

	if err := st.DeleteComment(context.Background(), root.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err := st.ListComments(context.Background(), lesson)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != reply.ID {
		t.Fatalf("expected orphaned reply to remain, got %+v", list)
	}
}

func TestCommentImagesRoundTrip(t *testing.T) {
	st := newTestStore(t)

	c := model.Comment{Author: model.RefID("u1"), Images: []string{"a.png", "b.png"}}
	c.SetEntity(lesson)
	if err := st.CreateComment(context.Background(), &c); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := st.GetComment(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Images) != 2 || got.Images[1] != "b.png" {
		t.Fatalf("unexpected images: %#v", got.Images)
	}
}

func TestCreateCommentRequiresEntity(t *testing.T) {
	st := newTestStore(t)

	c := model.Comment{Author: model.RefID("u1"), Content: "x"}
	if err := st.CreateComment(context.Background(), &c); err == nil {
		t.Fatalf("expected error for comment without entity")
	}
}

func TestUpdateMissingComment(t *testing.T) {
	st := newTestStore(t)

	_, err := st.UpdateComment(context.Background(), "missing", "x", time.Now())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChallengeConsumedOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	c := model.Challenge{Challenge: "abc", Alg: "ed25519", ExpiresAt: time.Now().Add(time.Minute)}
	if err := st.CreateChallenge(ctx, c); err != nil {
		t.Fatalf("create challenge: %v", err)
	}
	if _, err := st.ConsumeChallenge(ctx, "abc"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := st.ConsumeChallenge(ctx, "abc"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on reuse, got %v", err)
	}
}
