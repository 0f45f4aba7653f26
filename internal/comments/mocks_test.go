package comments

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/learnup/learnup/internal/model"
)

// mockAPI is a testify mock of the comment API.
type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ListComments(ctx context.Context, ref model.EntityRef) ([]model.Comment, error) {
	args := m.Called(ctx, ref)
	list, _ := args.Get(0).([]model.Comment)
	return list, args.Error(1)
}

func (m *mockAPI) CreateComment(ctx context.Context, ref model.EntityRef, d model.Draft) (model.Comment, error) {
	args := m.Called(ctx, ref, d)
	return args.Get(0).(model.Comment), args.Error(1)
}

func (m *mockAPI) ReplyComment(ctx context.Context, ref model.EntityRef, parentID string, d model.Draft) (model.Comment, error) {
	args := m.Called(ctx, ref, parentID, d)
	return args.Get(0).(model.Comment), args.Error(1)
}

func (m *mockAPI) EditComment(ctx context.Context, id, content string) (model.Comment, error) {
	args := m.Called(ctx, id, content)
	return args.Get(0).(model.Comment), args.Error(1)
}

func (m *mockAPI) DeleteComment(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockAPI) GetAuthor(ctx context.Context, id string) (model.Author, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Author), args.Error(1)
}

type recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) last() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}
	}
	return r.notices[len(r.notices)-1]
}

type staticProfile model.Author

func (p staticProfile) Profile(context.Context) (model.Author, error) {
	return model.Author(p), nil
}
