// Package mongostore implements the repositories on MongoDB. Relationship
// lists are embedded in documents, so every paired write runs inside a
// multi-document transaction and RepairRelationships restores symmetry
// for data written without one.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/socialhub/apiserver/config"
	"github.com/socialhub/apiserver/internal/services"
	"github.com/socialhub/apiserver/internal/store"
	"github.com/socialhub/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	postsCollection    = "posts"
	commentsCollection = "comments"

	defaultConnectTimeout = 10 * time.Second
)

var (
	_ services.UserRepository       = (*UserRepository)(nil)
	_ services.PostRepository       = (*PostRepository)(nil)
	_ services.CommentRepository    = (*CommentRepository)(nil)
	_ services.RelationshipRepairer = (*DB)(nil)
)

// DB bundles the client and the collections used by the repositories.
type DB struct {
	client   *mongo.Client
	users    *mongo.Collection
	posts    *mongo.Collection
	comments *mongo.Collection
}

// Open connects to MongoDB, verifies the connection and ensures indexes.
// Transactions require a replica set or sharded cluster.
func Open(ctx context.Context, cfg config.MongoConfig) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	database := client.Database(cfg.Database)
	db := &DB{
		client:   client,
		users:    database.Collection(usersCollection),
		posts:    database.Collection(postsCollection),
		comments: database.Collection(commentsCollection),
	}
	if err := db.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return db, nil
}

// Close disconnects the client.
func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

func (db *DB) Users() *UserRepository { return &UserRepository{db: db} }

func (db *DB) Posts() *PostRepository { return &PostRepository{db: db} }

func (db *DB) Comments() *CommentRepository { return &CommentRepository{db: db} }

func (db *DB) ensureIndexes(ctx context.Context) error {
	if _, err := db.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	if _, err := db.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("posts index: %w", err)
	}
	if _, err := db.comments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("comments index: %w", err)
	}
	return nil
}

// withTx runs fn inside a transaction. fn must use the session context for
// every operation that belongs to the transaction.
func (db *DB) withTx(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := db.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

// RepairRelationships restores follower/following symmetry and drops
// references to missing users. It returns the number of fixes applied.
func (db *DB) RepairRelationships(ctx context.Context) (int, error) {
	cursor, err := db.users.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{
		"_id": 1, "followers": 1, "following": 1,
	}))
	if err != nil {
		return 0, err
	}
	var users []types.User
	if err := cursor.All(ctx, &users); err != nil {
		return 0, err
	}

	byID := make(map[string]*types.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	fixed := 0
	apply := func(id string, update bson.M) error {
		fixed++
		_, err := db.users.UpdateByID(ctx, id, update)
		return err
	}

	for _, user := range users {
		for _, followee := range user.Following {
			target, ok := byID[followee]
			if !ok || followee == user.ID {
				if err := apply(user.ID, bson.M{"$pull": bson.M{"following": followee}}); err != nil {
					return fixed, err
				}
				continue
			}
			if !slices.Contains(target.Followers, user.ID) {
				target.Followers = append(target.Followers, user.ID)
				if err := apply(followee, bson.M{"$addToSet": bson.M{"followers": user.ID}}); err != nil {
					return fixed, err
				}
			}
		}
		for _, follower := range user.Followers {
			source, ok := byID[follower]
			if !ok || follower == user.ID {
				if err := apply(user.ID, bson.M{"$pull": bson.M{"followers": follower}}); err != nil {
					return fixed, err
				}
				continue
			}
			if !slices.Contains(source.Following, user.ID) {
				source.Following = append(source.Following, user.ID)
				if err := apply(follower, bson.M{"$addToSet": bson.M{"following": user.ID}}); err != nil {
					return fixed, err
				}
			}
		}
	}
	return fixed, nil
}

func newID() string {
	return uuid.NewString()
}

// translate maps driver errors onto store sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrConflict
	default:
		return err
	}
}

type documentCounter interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

func exists(ctx context.Context, coll documentCounter, id string) error {
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func pageOptions(offset, limit int) (int64, int64) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}
	return int64(offset), int64(limit)
}
