package mongostore

import (
	"context"
	"time"

	"github.com/socialhub/apiserver/internal/store"
	"github.com/socialhub/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// PostRepository stores posts and keeps the author's post list in step.
type PostRepository struct {
	db *DB
}

func (r *PostRepository) List(ctx context.Context, offset, limit int) ([]types.Post, int, error) {
	total, err := r.db.posts.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	skip, size := pageOptions(offset, limit)
	posts, err := r.find(ctx, bson.M{}, options.Find().SetSort(newestFirst).SetSkip(skip).SetLimit(size))
	if err != nil {
		return nil, 0, err
	}
	return posts, int(total), nil
}

func (r *PostRepository) ListByAuthor(ctx context.Context, userID string) ([]types.Post, error) {
	return r.find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(newestFirst))
}

func (r *PostRepository) Get(ctx context.Context, id string) (types.Post, error) {
	var post types.Post
	if err := r.db.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		return types.Post{}, translate(err)
	}
	post.Likes = orEmpty(post.Likes)
	return post, nil
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	post.ID = newID()
	post.CreatedAt = now
	post.UpdatedAt = now
	post.Likes = []string{}

	err := r.db.withTx(ctx, func(sc mongo.SessionContext) error {
		result, err := r.db.users.UpdateByID(sc, post.UserID, bson.M{"$push": bson.M{"posts": post.ID}})
		if err != nil {
			return err
		}
		if result.MatchedCount == 0 {
			return store.ErrNotFound
		}
		_, err = r.db.posts.InsertOne(sc, post)
		return err
	})
	if err != nil {
		return types.Post{}, translate(err)
	}
	return post, nil
}

func (r *PostRepository) Update(ctx context.Context, post types.Post) (types.Post, error) {
	result, err := r.db.posts.UpdateByID(ctx, post.ID, bson.M{"$set": bson.M{
		"type":         post.Type,
		"content_type": post.ContentType,
		"content":      post.Content,
		"updated_at":   time.Now().UTC(),
	}})
	if err != nil {
		return types.Post{}, err
	}
	if result.MatchedCount == 0 {
		return types.Post{}, store.ErrNotFound
	}
	return r.Get(ctx, post.ID)
}

func (r *PostRepository) Delete(ctx context.Context, id string) error {
	return r.db.withTx(ctx, func(sc mongo.SessionContext) error {
		var post types.Post
		if err := r.db.posts.FindOne(sc, bson.M{"_id": id}).Decode(&post); err != nil {
			return translate(err)
		}
		if _, err := r.db.comments.DeleteMany(sc, bson.M{"post_id": id}); err != nil {
			return err
		}
		if _, err := r.db.posts.DeleteOne(sc, bson.M{"_id": id}); err != nil {
			return err
		}
		_, err := r.db.users.UpdateByID(sc, post.UserID, bson.M{"$pull": bson.M{"posts": id}})
		return err
	})
}

func (r *PostRepository) ToggleLike(ctx context.Context, postID, userID string) (types.Post, bool, error) {
	liked, err := toggleLike(ctx, r.db, r.db.posts, postID, userID)
	if err != nil {
		return types.Post{}, false, err
	}
	post, err := r.Get(ctx, postID)
	if err != nil {
		return types.Post{}, false, err
	}
	return post, liked, nil
}

func (r *PostRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]types.Post, error) {
	cursor, err := r.db.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	posts := make([]types.Post, 0)
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Likes = orEmpty(posts[i].Likes)
	}
	return posts, nil
}

// likeTarget is the part of *mongo.Collection needed to flip a like.
type likeTarget interface {
	documentCounter
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// toggleLike flips userID in the likes array of the document id.
func toggleLike(ctx context.Context, db *DB, coll likeTarget, id, userID string) (bool, error) {
	if err := exists(ctx, db.users, userID); err != nil {
		return false, err
	}
	return flipLike(ctx, coll, id, userID)
}

// flipLike runs the push and pull branches as conditional updates, so
// concurrent toggles never leave duplicates behind. A concurrent toggle can
// win between the two branches; the pair is retried once before the
// document is checked for existence.
func flipLike(ctx context.Context, coll likeTarget, id, userID string) (bool, error) {
	for range 2 {
		added, err := coll.UpdateOne(ctx,
			bson.M{"_id": id, "likes": bson.M{"$ne": userID}},
			bson.M{"$push": bson.M{"likes": userID}},
		)
		if err != nil {
			return false, err
		}
		if added.ModifiedCount == 1 {
			return true, nil
		}

		removed, err := coll.UpdateOne(ctx,
			bson.M{"_id": id, "likes": userID},
			bson.M{"$pull": bson.M{"likes": userID}},
		)
		if err != nil {
			return false, err
		}
		if removed.ModifiedCount == 1 {
			return false, nil
		}
	}

	if err := exists(ctx, coll, id); err != nil {
		return false, err
	}
	return false, store.ErrConflict
}
