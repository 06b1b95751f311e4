// Package memory implements the repositories in process memory for development and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/socialhub/apiserver/internal/services"
	"github.com/socialhub/apiserver/types"
)

// DB holds every collection behind a single mutex, so each repository
// call is atomic with respect to all others.
type DB struct {
	mu sync.Mutex

	users    map[string]*types.User
	posts    map[string]*types.Post
	comments map[string]*types.Comment

	userOrder    []string
	postOrder    []string
	commentOrder []string

	now func() time.Time
}

// New creates an empty in-memory database.
func New() *DB {
	return &DB{
		users:    make(map[string]*types.User),
		posts:    make(map[string]*types.Post),
		comments: make(map[string]*types.Comment),
		now:      time.Now,
	}
}

// Users returns the user repository view of the database.
func (db *DB) Users() *UserRepository { return &UserRepository{db: db} }

// Posts returns the post repository view of the database.
func (db *DB) Posts() *PostRepository { return &PostRepository{db: db} }

// Comments returns the comment repository view of the database.
func (db *DB) Comments() *CommentRepository { return &CommentRepository{db: db} }

// RepairRelationships restores follower/following symmetry and drops
// references to users that no longer exist. It returns the number of fixes.
func (db *DB) RepairRelationships(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	fixed := 0
	for _, id := range db.userOrder {
		user := db.users[id]

		kept := user.Following[:0]
		for _, followee := range user.Following {
			target, ok := db.users[followee]
			if !ok || followee == id {
				fixed++
				continue
			}
			if !slices.Contains(target.Followers, id) {
				target.Followers = append(target.Followers, id)
				fixed++
			}
			kept = append(kept, followee)
		}
		user.Following = kept

		kept = user.Followers[:0]
		for _, follower := range user.Followers {
			source, ok := db.users[follower]
			if !ok || follower == id {
				fixed++
				continue
			}
			if !slices.Contains(source.Following, id) {
				source.Following = append(source.Following, id)
				fixed++
			}
			kept = append(kept, follower)
		}
		user.Followers = kept
	}
	return fixed, nil
}

func newID() string {
	return uuid.NewString()
}

func removeString(values []string, value string) []string {
	return slices.DeleteFunc(values, func(v string) bool { return v == value })
}

func cloneUser(u *types.User) types.User {
	out := *u
	out.Interests = slices.Clone(u.Interests)
	out.Followers = nonNil(slices.Clone(u.Followers))
	out.Following = nonNil(slices.Clone(u.Following))
	out.Posts = nonNil(slices.Clone(u.Posts))
	return out
}

func clonePost(p *types.Post) types.Post {
	out := *p
	out.Likes = nonNil(slices.Clone(p.Likes))
	return out
}

func cloneComment(c *types.Comment) types.Comment {
	out := *c
	out.Likes = nonNil(slices.Clone(c.Likes))
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// deletePostLocked removes a post, its comments and its id from the
// author's post list. Caller holds db.mu.
func (db *DB) deletePostLocked(id string) {
	post, ok := db.posts[id]
	if !ok {
		return
	}
	for _, commentID := range slices.Clone(db.commentOrder) {
		if db.comments[commentID].PostID == id {
			db.deleteCommentLocked(commentID)
		}
	}
	if author, ok := db.users[post.UserID]; ok {
		author.Posts = removeString(author.Posts, id)
	}
	delete(db.posts, id)
	db.postOrder = removeString(db.postOrder, id)
}

func (db *DB) deleteCommentLocked(id string) {
	delete(db.comments, id)
	db.commentOrder = removeString(db.commentOrder, id)
}

var (
	_ services.UserRepository       = (*UserRepository)(nil)
	_ services.PostRepository       = (*PostRepository)(nil)
	_ services.CommentRepository    = (*CommentRepository)(nil)
	_ services.RelationshipRepairer = (*DB)(nil)
)
