package memory

import (
	"context"
	"slices"

	"github.com/socialhub/apiserver/internal/store"
	"github.com/socialhub/apiserver/types"
)

// CommentRepository implements comment persistence on top of DB.
type CommentRepository struct {
	db *DB
}

// ListByPost returns the comments of a post, newest first.
func (r *CommentRepository) ListByPost(ctx context.Context, postID string) ([]types.Comment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	return r.listLocked(func(c *types.Comment) bool { return c.PostID == postID }), nil
}

func (r *CommentRepository) ListByPosts(ctx context.Context, postIDs []string) (map[string][]types.Comment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	byPost := make(map[string][]types.Comment, len(postIDs))
	for _, comment := range r.listLocked(func(c *types.Comment) bool { return slices.Contains(postIDs, c.PostID) }) {
		byPost[comment.PostID] = append(byPost[comment.PostID], comment)
	}
	return byPost, nil
}

func (r *CommentRepository) Get(ctx context.Context, id string) (types.Comment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	comment, ok := r.db.comments[id]
	if !ok {
		return types.Comment{}, store.ErrNotFound
	}
	return cloneComment(comment), nil
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.posts[comment.PostID]; !ok {
		return types.Comment{}, store.ErrNotFound
	}
	if _, ok := r.db.users[comment.UserID]; !ok {
		return types.Comment{}, store.ErrNotFound
	}
	if comment.ID == "" {
		comment.ID = newID()
	}

	now := r.db.now()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	comment.Likes = []string{}

	stored := cloneComment(&comment)
	r.db.comments[comment.ID] = &stored
	r.db.commentOrder = append(r.db.commentOrder, comment.ID)
	return cloneComment(&stored), nil
}

func (r *CommentRepository) Update(ctx context.Context, comment types.Comment) (types.Comment, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, ok := r.db.comments[comment.ID]
	if !ok {
		return types.Comment{}, store.ErrNotFound
	}
	current.Description = comment.Description
	current.UpdatedAt = r.db.now()
	return cloneComment(current), nil
}

func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.comments[id]; !ok {
		return store.ErrNotFound
	}
	r.db.deleteCommentLocked(id)
	return nil
}

func (r *CommentRepository) ToggleLike(ctx context.Context, commentID, userID string) (types.Comment, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	comment, ok := r.db.comments[commentID]
	if !ok {
		return types.Comment{}, false, store.ErrNotFound
	}
	if _, ok := r.db.users[userID]; !ok {
		return types.Comment{}, false, store.ErrNotFound
	}

	liked := !slices.Contains(comment.Likes, userID)
	if liked {
		comment.Likes = append(comment.Likes, userID)
	} else {
		comment.Likes = removeString(comment.Likes, userID)
	}
	return cloneComment(comment), liked, nil
}

func (r *CommentRepository) listLocked(match func(*types.Comment) bool) []types.Comment {
	comments := []types.Comment{}
	for i := len(r.db.commentOrder) - 1; i >= 0; i-- {
		comment := r.db.comments[r.db.commentOrder[i]]
		if match(comment) {
			comments = append(comments, cloneComment(comment))
		}
	}
	return comments
}
