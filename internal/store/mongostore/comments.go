package mongostore

import (
	"context"
	"time"

	"github.com/socialhub/apiserver/internal/store"
	"github.com/socialhub/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CommentRepository stores comments in their own collection keyed by post.
type CommentRepository struct {
	db *DB
}

func (r *CommentRepository) ListByPost(ctx context.Context, postID string) ([]types.Comment, error) {
	return r.find(ctx, bson.M{"post_id": postID})
}

func (r *CommentRepository) ListByPosts(ctx context.Context, postIDs []string) (map[string][]types.Comment, error) {
	out := make(map[string][]types.Comment, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	comments, err := r.find(ctx, bson.M{"post_id": bson.M{"$in": postIDs}})
	if err != nil {
		return nil, err
	}
	for _, comment := range comments {
		out[comment.PostID] = append(out[comment.PostID], comment)
	}
	return out, nil
}

func (r *CommentRepository) Get(ctx context.Context, id string) (types.Comment, error) {
	var comment types.Comment
	if err := r.db.comments.FindOne(ctx, bson.M{"_id": id}).Decode(&comment); err != nil {
		return types.Comment{}, translate(err)
	}
	comment.Likes = orEmpty(comment.Likes)
	return comment, nil
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	if err := exists(ctx, r.db.posts, comment.PostID); err != nil {
		return types.Comment{}, err
	}
	if err := exists(ctx, r.db.users, comment.UserID); err != nil {
		return types.Comment{}, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	comment.ID = newID()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	comment.Likes = []string{}

	if _, err := r.db.comments.InsertOne(ctx, comment); err != nil {
		return types.Comment{}, translate(err)
	}
	return comment, nil
}

func (r *CommentRepository) Update(ctx context.Context, comment types.Comment) (types.Comment, error) {
	result, err := r.db.comments.UpdateByID(ctx, comment.ID, bson.M{"$set": bson.M{
		"description": comment.Description,
		"updated_at":  time.Now().UTC(),
	}})
	if err != nil {
		return types.Comment{}, err
	}
	if result.MatchedCount == 0 {
		return types.Comment{}, store.ErrNotFound
	}
	return r.Get(ctx, comment.ID)
}

func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.comments.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *CommentRepository) ToggleLike(ctx context.Context, commentID, userID string) (types.Comment, bool, error) {
	liked, err := toggleLike(ctx, r.db, r.db.comments, commentID, userID)
	if err != nil {
		return types.Comment{}, false, err
	}
	comment, err := r.Get(ctx, commentID)
	if err != nil {
		return types.Comment{}, false, err
	}
	return comment, liked, nil
}

func (r *CommentRepository) find(ctx context.Context, filter bson.M) ([]types.Comment, error) {
	cursor, err := r.db.comments.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, err
	}
	comments := make([]types.Comment, 0)
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, err
	}
	for i := range comments {
		comments[i].Likes = orEmpty(comments[i].Likes)
	}
	return comments, nil
}
