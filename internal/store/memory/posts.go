package memory

import (
	"context"
	"slices"

	"github.com/socialhub/apiserver/internal/store"
	"github.com/socialhub/apiserver/types"
)

// PostRepository implements post persistence on top of DB.
type PostRepository struct {
	db *DB
}

// List returns posts newest first.
func (r *PostRepository) List(ctx context.Context, offset, limit int) ([]types.Post, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	newest := slices.Clone(r.db.postOrder)
	slices.Reverse(newest)

	ids := page(newest, offset, limit)
	posts := make([]types.Post, 0, len(ids))
	for _, id := range ids {
		posts = append(posts, clonePost(r.db.posts[id]))
	}
	return posts, len(newest), nil
}

func (r *PostRepository) ListByAuthor(ctx context.Context, userID string) ([]types.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	posts := []types.Post{}
	for i := len(r.db.postOrder) - 1; i >= 0; i-- {
		post := r.db.posts[r.db.postOrder[i]]
		if post.UserID == userID {
			posts = append(posts, clonePost(post))
		}
	}
	return posts, nil
}

func (r *PostRepository) Get(ctx context.Context, id string) (types.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	post, ok := r.db.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return clonePost(post), nil
}

// Create stores the post and appends its id to the author's post list.
func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	author, ok := r.db.users[post.UserID]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	if post.ID == "" {
		post.ID = newID()
	}

	now := r.db.now()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.Likes = []string{}

	stored := clonePost(&post)
	r.db.posts[post.ID] = &stored
	r.db.postOrder = append(r.db.postOrder, post.ID)
	author.Posts = append(author.Posts, post.ID)
	return clonePost(&stored), nil
}

func (r *PostRepository) Update(ctx context.Context, post types.Post) (types.Post, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, ok := r.db.posts[post.ID]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	current.Type = post.Type
	current.ContentType = post.ContentType
	current.Content = post.Content
	current.UpdatedAt = r.db.now()
	return clonePost(current), nil
}

func (r *PostRepository) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.posts[id]; !ok {
		return store.ErrNotFound
	}
	r.db.deletePostLocked(id)
	return nil
}

func (r *PostRepository) ToggleLike(ctx context.Context, postID, userID string) (types.Post, bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	post, ok := r.db.posts[postID]
	if !ok {
		return types.Post{}, false, store.ErrNotFound
	}
	if _, ok := r.db.users[userID]; !ok {
		return types.Post{}, false, store.ErrNotFound
	}

	liked := !slices.Contains(post.Likes, userID)
	if liked {
		post.Likes = append(post.Likes, userID)
	} else {
		post.Likes = removeString(post.Likes, userID)
	}
	return clonePost(post), liked, nil
}
