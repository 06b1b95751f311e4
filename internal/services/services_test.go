package services_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/socialhub/apiserver/internal/auth"
	"github.com/socialhub/apiserver/internal/services"
	"github.com/socialhub/apiserver/internal/store"
	"github.com/socialhub/apiserver/internal/store/memory"
	"github.com/socialhub/apiserver/types"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.ActivityEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event types.ActivityEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) kinds() []types.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]types.EventKind, 0, len(p.events))
	for _, event := range p.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

type countingRecorder struct {
	counts map[string]int
}

func (r *countingRecorder) RecordRelationship(kind string) {
	r.counts[kind]++
}

type fixture struct {
	db       *memory.DB
	users    *services.UserService
	posts    *services.PostService
	comments *services.CommentService
	events   *recordingPublisher
	metrics  *countingRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.New()
	events := &recordingPublisher{}
	metrics := &countingRecorder{counts: map[string]int{}}
	opts := services.Options{Events: events, Metrics: metrics}

	users := services.NewUserService(db.Users(), opts)
	return &fixture{
		db:       db,
		users:    users,
		posts:    services.NewPostService(db.Posts(), db.Comments(), users, opts),
		comments: services.NewCommentService(db.Comments(), db.Posts(), users, opts),
		events:   events,
		metrics:  metrics,
	}
}

func (f *fixture) register(t *testing.T, username string) auth.Identity {
	t.Helper()
	user, err := f.users.Register(context.Background(), services.RegisterInput{
		Username: username,
		Password: "password123",
		Name:     "Name " + username,
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", username, err)
	}
	return auth.Identity{ID: user.ID, Role: user.Role, Username: user.Username}
}

func (f *fixture) admin(t *testing.T, username string) auth.Identity {
	t.Helper()
	id := f.register(t, username)
	user, err := f.users.Promote(context.Background(), username)
	if err != nil {
		t.Fatalf("Promote(%s): %v", username, err)
	}
	id.Role = user.Role
	return id
}

func (f *fixture) user(t *testing.T, id string) types.User {
	t.Helper()
	user, err := f.users.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s): %v", id, err)
	}
	return user
}

func (f *fixture) textPost(t *testing.T, author auth.Identity, content string) types.Post {
	t.Helper()
	post, err := f.posts.Create(context.Background(), author, services.PostInput{
		Type:        "sports",
		ContentType: types.ContentTypeText,
		Content:     content,
	})
	if err != nil {
		t.Fatalf("Create post: %v", err)
	}
	return post
}

func TestRegisterDuplicateUsername(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice")

	_, err := f.users.Register(context.Background(), services.RegisterInput{
		Username: "alice",
		Password: "password123",
		Name:     "Another Alice",
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("Register duplicate error = %v, want ErrConflict", err)
	}

	_, total, err := f.users.List(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 {
		t.Fatalf("total users = %d, want 1", total)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   services.RegisterInput
	}{
		{name: "missing username", in: services.RegisterInput{Password: "password123", Name: "x"}},
		{name: "missing name", in: services.RegisterInput{Username: "bob", Password: "password123"}},
		{name: "short password", in: services.RegisterInput{Username: "bob", Password: "123", Name: "x"}},
		{name: "bad gender", in: services.RegisterInput{Username: "bob", Password: "password123", Name: "x", Gender: "robot"}},
		{name: "bad interest", in: services.RegisterInput{Username: "bob", Password: "password123", Name: "x", Interests: []string{"knitting"}}},
		{name: "negative age", in: services.RegisterInput{Username: "bob", Password: "password123", Name: "x", Age: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.Register(context.Background(), tt.in)
			var verr *services.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
		})
	}
}

func TestRegisterAssignsUserRole(t *testing.T) {
	f := newFixture(t)
	user, err := f.users.Register(context.Background(), services.RegisterInput{
		Username:  "carol",
		Password:  "password123",
		Name:      "Carol",
		Gender:    "Female",
		Interests: []string{"Sports", "comedy", "sports"},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != types.RoleUser {
		t.Fatalf("role = %q, want user", user.Role)
	}
	if user.Gender != "female" {
		t.Fatalf("gender = %q, want female", user.Gender)
	}
	if !slices.Equal(user.Interests, []string{"sports", "comedy"}) {
		t.Fatalf("interests = %v", user.Interests)
	}
	if user.PasswordHash == "password123" || user.PasswordHash == "" {
		t.Fatal("password was not hashed")
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")

	user, err := f.users.Authenticate(context.Background(), "alice", "password123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.ID != alice.ID {
		t.Fatalf("Authenticate id = %s, want %s", user.ID, alice.ID)
	}

	if _, err := f.users.Authenticate(context.Background(), "alice", "wrong-password"); !errors.Is(err, services.ErrInvalidCredentials) {
		t.Fatalf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := f.users.Authenticate(context.Background(), "nobody", "password123"); !errors.Is(err, services.ErrInvalidCredentials) {
		t.Fatalf("unknown user error = %v, want ErrInvalidCredentials", err)
	}
}

func TestFollowUnfollowSymmetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	if err := f.users.Follow(ctx, alice, bob.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if !slices.Contains(f.user(t, alice.ID).Following, bob.ID) {
		t.Fatal("bob missing from alice.following")
	}
	if !slices.Contains(f.user(t, bob.ID).Followers, alice.ID) {
		t.Fatal("alice missing from bob.followers")
	}

	if err := f.users.Unfollow(ctx, alice, bob.ID); err != nil {
		t.Fatalf("Unfollow: %v", err)
	}
	if slices.Contains(f.user(t, alice.ID).Following, bob.ID) {
		t.Fatal("bob still in alice.following")
	}
	if slices.Contains(f.user(t, bob.ID).Followers, alice.ID) {
		t.Fatal("alice still in bob.followers")
	}

	if got := f.metrics.counts[services.RelationshipFollow]; got != 1 {
		t.Fatalf("follow metric = %d, want 1", got)
	}
	kinds := f.events.kinds()
	if !slices.Equal(kinds, []types.EventKind{types.EventUserFollowed, types.EventUserUnfollowed}) {
		t.Fatalf("events = %v", kinds)
	}
}

func TestFollowTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	if err := f.users.Follow(ctx, alice, bob.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if err := f.users.Follow(ctx, alice, bob.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("second Follow error = %v, want ErrConflict", err)
	}
	if got := len(f.user(t, bob.ID).Followers); got != 1 {
		t.Fatalf("bob followers = %d, want 1", got)
	}
	if got := len(f.user(t, alice.ID).Following); got != 1 {
		t.Fatalf("alice following = %d, want 1", got)
	}
}

func TestFollowRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	root := f.admin(t, "root")

	if err := f.users.Follow(ctx, alice, alice.ID); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("self follow error = %v, want ErrForbidden", err)
	}
	if err := f.users.Follow(ctx, root, root.ID); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("admin self follow error = %v, want ErrForbidden", err)
	}
	if err := f.users.Follow(ctx, root, alice.ID); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("admin follow error = %v, want ErrForbidden", err)
	}
	if err := f.users.Follow(ctx, alice, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("follow missing error = %v, want ErrNotFound", err)
	}
	if err := f.users.Unfollow(ctx, alice, root.ID); !errors.Is(err, store.ErrNotRelated) {
		t.Fatalf("unfollow unrelated error = %v, want ErrNotRelated", err)
	}
	if got := len(f.user(t, alice.ID).Following); got != 0 {
		t.Fatalf("alice following = %d, want 0", got)
	}
}

func TestProfileUpdateSelfOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	root := f.admin(t, "root")

	bio := "hello there"
	if _, err := f.users.UpdateProfile(ctx, bob, alice.ID, services.ProfileUpdate{Bio: &bio}); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("other update error = %v, want ErrForbidden", err)
	}
	if _, err := f.users.UpdateProfile(ctx, root, alice.ID, services.ProfileUpdate{Bio: &bio}); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("admin update error = %v, want ErrForbidden", err)
	}

	age := 30
	updated, err := f.users.UpdateProfile(ctx, alice, alice.ID, services.ProfileUpdate{
		Bio:       &bio,
		Age:       &age,
		Interests: []string{"business"},
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Bio != bio || updated.Age != 30 || !slices.Equal(updated.Interests, []string{"business"}) {
		t.Fatalf("updated = %+v", updated)
	}

	taken := "bob"
	if _, err := f.users.UpdateProfile(ctx, alice, alice.ID, services.ProfileUpdate{Username: &taken}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("rename to taken error = %v, want ErrConflict", err)
	}
}

func TestProfileUpdateStripsMarkup(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")

	bio := "<script>alert(1)</script>hi <b>there</b>"
	updated, err := f.users.UpdateProfile(context.Background(), alice, alice.ID, services.ProfileUpdate{Bio: &bio})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if updated.Bio != "hi there" {
		t.Fatalf("bio = %q, want %q", updated.Bio, "hi there")
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	if err := f.users.ChangePassword(ctx, bob, alice.ID, "password123", "newpassword"); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("other change error = %v, want ErrForbidden", err)
	}
	if err := f.users.ChangePassword(ctx, alice, alice.ID, "nope-nope", "newpassword"); !errors.Is(err, services.ErrInvalidCredentials) {
		t.Fatalf("wrong current error = %v, want ErrInvalidCredentials", err)
	}
	if err := f.users.ChangePassword(ctx, alice, alice.ID, "password123", "newpassword"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := f.users.Authenticate(ctx, "alice", "newpassword"); err != nil {
		t.Fatalf("Authenticate with new password: %v", err)
	}
	if _, err := f.users.Authenticate(ctx, "alice", "password123"); !errors.Is(err, services.ErrInvalidCredentials) {
		t.Fatalf("old password error = %v, want ErrInvalidCredentials", err)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")
	root := f.admin(t, "root")

	alicePost := f.textPost(t, alice, "alice post")
	bobPost := f.textPost(t, bob, "bob post")
	if _, err := f.comments.Create(ctx, alice, bobPost.ID, "nice"); err != nil {
		t.Fatalf("Create comment: %v", err)
	}
	if _, _, err := f.posts.ToggleLike(ctx, alice, bobPost.ID); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}
	if err := f.users.Follow(ctx, alice, bob.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if err := f.users.Follow(ctx, bob, alice.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}

	if err := f.users.Delete(ctx, bob, alice.ID); !errors.Is(err, services.ErrForbidden) {
		t.Fatalf("delete other error = %v, want ErrForbidden", err)
	}
	if err := f.users.Delete(ctx, root, alice.ID); err != nil {
		t.Fatalf("admin Delete: %v", err)
	}

	if _, err := f.users.GetByID(ctx, alice.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleted user lookup error = %v, want ErrNotFound", err)
	}
	if _, err := f.posts.Get(ctx, alicePost.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("deleted user's post lookup error = %v, want ErrNotFound", err)
	}
	remaining, err := f.posts.Get(ctx, bobPost.ID)
	if err != nil {
		t.Fatalf("Get bob post: %v", err)
	}
	if len(remaining.Comments) != 0 {
		t.Fatalf("bob post comments = %d, want 0", len(remaining.Comments))
	}
	if remaining.LikedBy(alice.ID) {
		t.Fatal("deleted user's like survived")
	}
	b := f.user(t, bob.ID)
	if len(b.Followers) != 0 || len(b.Following) != 0 {
		t.Fatalf("bob relationships = %v / %v, want empty", b.Followers, b.Following)
	}
}

func TestSelfDelete(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice")

	if err := f.users.Delete(context.Background(), alice, alice.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.users.Delete(context.Background(), alice, alice.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second Delete error = %v, want ErrNotFound", err)
	}
}
