package memory

import (
	"context"
	"slices"

	"github.com/socialhub/apiserver/internal/store"
	"github.com/socialhub/apiserver/types"
)

// UserRepository implements user persistence on top of DB.
type UserRepository struct {
	db *DB
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	user, ok := r.db.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, id := range r.db.userOrder {
		if user := r.db.users[id]; user.Username == username {
			return cloneUser(user), nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) GetMany(ctx context.Context, ids []string) ([]types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	users := make([]types.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := r.db.users[id]; ok {
			users = append(users, cloneUser(user))
		}
	}
	return users, nil
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	ids := page(r.db.userOrder, offset, limit)
	users := make([]types.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, cloneUser(r.db.users[id]))
	}
	return users, len(r.db.userOrder), nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.usernameTakenLocked(user.Username, "") {
		return types.User{}, store.ErrConflict
	}
	if user.ID == "" {
		user.ID = newID()
	}
	if _, exists := r.db.users[user.ID]; exists {
		return types.User{}, store.ErrConflict
	}

	now := r.db.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Followers = []string{}
	user.Following = []string{}
	user.Posts = []string{}

	stored := cloneUser(&user)
	r.db.users[user.ID] = &stored
	r.db.userOrder = append(r.db.userOrder, user.ID)
	return cloneUser(&stored), nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	current, ok := r.db.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if r.usernameTakenLocked(user.Username, user.ID) {
		return types.User{}, store.ErrConflict
	}

	current.Username = user.Username
	current.Name = user.Name
	current.Role = user.Role
	current.PasswordHash = user.PasswordHash
	current.Bio = user.Bio
	current.ProfilePic = user.ProfilePic
	current.Gender = user.Gender
	current.Age = user.Age
	current.Interests = slices.Clone(user.Interests)
	current.UpdatedAt = r.db.now()
	return cloneUser(current), nil
}

// Delete removes the user together with authored content, likes and
// every follow edge touching the user.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.users[id]; !ok {
		return store.ErrNotFound
	}

	for _, postID := range slices.Clone(r.db.postOrder) {
		if r.db.posts[postID].UserID == id {
			r.db.deletePostLocked(postID)
		}
	}
	for _, commentID := range slices.Clone(r.db.commentOrder) {
		comment := r.db.comments[commentID]
		if comment.UserID == id {
			r.db.deleteCommentLocked(commentID)
			continue
		}
		comment.Likes = removeString(comment.Likes, id)
	}
	for _, post := range r.db.posts {
		post.Likes = removeString(post.Likes, id)
	}
	for _, other := range r.db.users {
		other.Followers = removeString(other.Followers, id)
		other.Following = removeString(other.Following, id)
	}

	delete(r.db.users, id)
	r.db.userOrder = removeString(r.db.userOrder, id)
	return nil
}

func (r *UserRepository) Follow(ctx context.Context, followerID, followeeID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	follower, ok := r.db.users[followerID]
	if !ok {
		return store.ErrNotFound
	}
	followee, ok := r.db.users[followeeID]
	if !ok {
		return store.ErrNotFound
	}
	if slices.Contains(followee.Followers, followerID) {
		return store.ErrConflict
	}

	followee.Followers = append(followee.Followers, followerID)
	if !slices.Contains(follower.Following, followeeID) {
		follower.Following = append(follower.Following, followeeID)
	}
	return nil
}

func (r *UserRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	follower, ok := r.db.users[followerID]
	if !ok {
		return store.ErrNotFound
	}
	followee, ok := r.db.users[followeeID]
	if !ok {
		return store.ErrNotFound
	}
	if !slices.Contains(followee.Followers, followerID) {
		return store.ErrNotRelated
	}

	followee.Followers = removeString(followee.Followers, followerID)
	follower.Following = removeString(follower.Following, followeeID)
	return nil
}

// Seed stores the user verbatim, including relationship lists. It exists
// so tests can reproduce data written by older, inconsistent code.
func (r *UserRepository) Seed(user types.User) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored := cloneUser(&user)
	if _, exists := r.db.users[user.ID]; !exists {
		r.db.userOrder = append(r.db.userOrder, user.ID)
	}
	r.db.users[user.ID] = &stored
}

func (r *UserRepository) usernameTakenLocked(username, exceptID string) bool {
	for id, user := range r.db.users {
		if id != exceptID && user.Username == username {
			return true
		}
	}
	return false
}
