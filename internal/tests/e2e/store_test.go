//go:build e2e

package e2e

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/socialhub/apiserver/config"
	"github.com/socialhub/apiserver/internal/db"
	"github.com/socialhub/apiserver/internal/store"
	"github.com/socialhub/apiserver/types"
)

type repos struct {
	users    *store.UserRepository
	posts    *store.PostRepository
	comments *store.CommentRepository
}

func openRepos(t *testing.T) repos {
	t.Helper()
	conn, err := db.Open(context.Background(), config.LoadConfig().Database)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return repos{
		users:    store.NewUserRepository(conn),
		posts:    store.NewPostRepository(conn),
		comments: store.NewCommentRepository(conn),
	}
}

func (r repos) createUser(t *testing.T, name string) types.User {
	t.Helper()
	user, err := r.users.Create(context.Background(), types.User{
		Username:     fmt.Sprintf("%s-%d", name, time.Now().UnixNano()),
		Name:         name,
		Role:         types.RoleUser,
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

func (r repos) reload(t *testing.T, id string) types.User {
	t.Helper()
	user, err := r.users.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s): %v", id, err)
	}
	return user
}

func TestPostgresFollowEdges(t *testing.T) {
	r := openRepos(t)
	ctx := context.Background()
	alice := r.createUser(t, "alice")
	bob := r.createUser(t, "bob")

	if err := r.users.Follow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if err := r.users.Follow(ctx, alice.ID, bob.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("second Follow error = %v, want ErrConflict", err)
	}
	if !slices.Contains(r.reload(t, alice.ID).Following, bob.ID) || !slices.Contains(r.reload(t, bob.ID).Followers, alice.ID) {
		t.Fatal("follow edge not visible from both sides")
	}

	if err := r.users.Unfollow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("Unfollow: %v", err)
	}
	if err := r.users.Unfollow(ctx, alice.ID, bob.ID); !errors.Is(err, store.ErrNotRelated) {
		t.Fatalf("second Unfollow error = %v, want ErrNotRelated", err)
	}
	if err := r.users.Follow(ctx, alice.ID, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Follow missing error = %v, want ErrNotFound", err)
	}
}

func TestPostgresLikeToggle(t *testing.T) {
	r := openRepos(t)
	ctx := context.Background()
	alice := r.createUser(t, "alice")
	bob := r.createUser(t, "bob")

	post, err := r.posts.Create(ctx, types.Post{UserID: alice.ID, Type: "sports", ContentType: types.ContentTypeText, Content: "match day"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	liked, likes := true, []string{bob.ID}
	for range 2 {
		got, isLiked, err := r.posts.ToggleLike(ctx, post.ID, bob.ID)
		if err != nil {
			t.Fatalf("ToggleLike: %v", err)
		}
		if isLiked != liked || !slices.Equal(got.Likes, likes) {
			t.Fatalf("liked = %v likes = %v, want %v %v", isLiked, got.Likes, liked, likes)
		}
		liked, likes = false, []string{}
	}

	comment, err := r.comments.Create(ctx, types.Comment{PostID: post.ID, UserID: bob.ID, Description: "nice"})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if _, isLiked, err := r.comments.ToggleLike(ctx, comment.ID, alice.ID); err != nil || !isLiked {
		t.Fatalf("comment ToggleLike = %v, %v", isLiked, err)
	}
	if _, _, err := r.posts.ToggleLike(ctx, "missing", bob.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("ToggleLike missing error = %v, want ErrNotFound", err)
	}
}

func TestPostgresDeleteCascades(t *testing.T) {
	r := openRepos(t)
	ctx := context.Background()
	alice := r.createUser(t, "alice")
	bob := r.createUser(t, "bob")

	if err := r.users.Follow(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	alicePost, err := r.posts.Create(ctx, types.Post{UserID: alice.ID, Type: "health", ContentType: types.ContentTypeText, Content: "run"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	bobPost, err := r.posts.Create(ctx, types.Post{UserID: bob.ID, Type: "health", ContentType: types.ContentTypeText, Content: "swim"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	onAlicePost, err := r.comments.Create(ctx, types.Comment{PostID: alicePost.ID, UserID: bob.ID, Description: "go"})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	aliceComment, err := r.comments.Create(ctx, types.Comment{PostID: bobPost.ID, UserID: alice.ID, Description: "nice"})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if _, _, err := r.posts.ToggleLike(ctx, bobPost.ID, alice.ID); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}

	if err := r.posts.Delete(ctx, alicePost.ID); err != nil {
		t.Fatalf("delete post: %v", err)
	}
	if _, err := r.comments.Get(ctx, onAlicePost.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("comment of deleted post error = %v, want ErrNotFound", err)
	}
	if slices.Contains(r.reload(t, alice.ID).Posts, alicePost.ID) {
		t.Fatal("deleted post still listed on its author")
	}

	if err := r.users.Delete(ctx, alice.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := r.comments.Get(ctx, aliceComment.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("comment of deleted user error = %v, want ErrNotFound", err)
	}
	survivor := r.reload(t, bob.ID)
	if len(survivor.Following) != 0 {
		t.Fatalf("following after delete = %v", survivor.Following)
	}
	post, err := r.posts.Get(ctx, bobPost.ID)
	if err != nil {
		t.Fatalf("Get surviving post: %v", err)
	}
	if len(post.Likes) != 0 {
		t.Fatalf("likes after delete = %v", post.Likes)
	}
}
