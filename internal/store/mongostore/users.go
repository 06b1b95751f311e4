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

// UserRepository stores users with embedded relationship lists.
type UserRepository struct {
	db *DB
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepository) GetMany(ctx context.Context, ids []string) ([]types.User, error) {
	if len(ids) == 0 {
		return []types.User{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	total, err := r.db.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}
	skip, size := pageOptions(offset, limit)
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(skip).
		SetLimit(size)
	users, err := r.find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	return users, int(total), nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	user.ID = newID()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Interests = orEmpty(user.Interests)
	user.Followers = []string{}
	user.Following = []string{}
	user.Posts = []string{}

	if _, err := r.db.users.InsertOne(ctx, user); err != nil {
		return types.User{}, translate(err)
	}
	return user, nil
}

// Update writes profile fields only. Relationship lists are owned by
// Follow, Unfollow and the post repository.
func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	update := bson.M{"$set": bson.M{
		"username":      user.Username,
		"name":          user.Name,
		"role":          user.Role,
		"password_hash": user.PasswordHash,
		"bio":           user.Bio,
		"profile_pic":   user.ProfilePic,
		"gender":        user.Gender,
		"age":           user.Age,
		"interests":     orEmpty(user.Interests),
		"updated_at":    time.Now().UTC(),
	}}
	result, err := r.db.users.UpdateByID(ctx, user.ID, update)
	if err != nil {
		return types.User{}, translate(err)
	}
	if result.MatchedCount == 0 {
		return types.User{}, store.ErrNotFound
	}
	return r.GetByID(ctx, user.ID)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.db.withTx(ctx, func(sc mongo.SessionContext) error {
		if err := exists(sc, r.db.users, id); err != nil {
			return err
		}

		postIDs, err := r.db.posts.Distinct(sc, "_id", bson.M{"user_id": id})
		if err != nil {
			return err
		}
		if _, err := r.db.comments.DeleteMany(sc, bson.M{"$or": bson.A{
			bson.M{"user_id": id},
			bson.M{"post_id": bson.M{"$in": postIDs}},
		}}); err != nil {
			return err
		}
		if _, err := r.db.posts.DeleteMany(sc, bson.M{"user_id": id}); err != nil {
			return err
		}

		pullLike := bson.M{"$pull": bson.M{"likes": id}}
		if _, err := r.db.posts.UpdateMany(sc, bson.M{"likes": id}, pullLike); err != nil {
			return err
		}
		if _, err := r.db.comments.UpdateMany(sc, bson.M{"likes": id}, pullLike); err != nil {
			return err
		}
		if _, err := r.db.users.UpdateMany(sc,
			bson.M{"$or": bson.A{bson.M{"followers": id}, bson.M{"following": id}}},
			bson.M{"$pull": bson.M{"followers": id, "following": id}},
		); err != nil {
			return err
		}

		_, err = r.db.users.DeleteOne(sc, bson.M{"_id": id})
		return err
	})
}

func (r *UserRepository) Follow(ctx context.Context, followerID, followeeID string) error {
	return r.db.withTx(ctx, func(sc mongo.SessionContext) error {
		if err := exists(sc, r.db.users, followerID); err != nil {
			return err
		}
		if err := exists(sc, r.db.users, followeeID); err != nil {
			return err
		}

		result, err := r.db.users.UpdateOne(sc,
			bson.M{"_id": followerID, "following": bson.M{"$ne": followeeID}},
			bson.M{"$push": bson.M{"following": followeeID}},
		)
		if err != nil {
			return err
		}
		if result.ModifiedCount == 0 {
			return store.ErrConflict
		}
		_, err = r.db.users.UpdateByID(sc, followeeID, bson.M{"$addToSet": bson.M{"followers": followerID}})
		return err
	})
}

func (r *UserRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return r.db.withTx(ctx, func(sc mongo.SessionContext) error {
		if err := exists(sc, r.db.users, followerID); err != nil {
			return err
		}
		if err := exists(sc, r.db.users, followeeID); err != nil {
			return err
		}

		following, err := r.db.users.UpdateByID(sc, followerID, bson.M{"$pull": bson.M{"following": followeeID}})
		if err != nil {
			return err
		}
		followers, err := r.db.users.UpdateByID(sc, followeeID, bson.M{"$pull": bson.M{"followers": followerID}})
		if err != nil {
			return err
		}
		if following.ModifiedCount == 0 && followers.ModifiedCount == 0 {
			return store.ErrNotRelated
		}
		return nil
	})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (types.User, error) {
	var user types.User
	if err := r.db.users.FindOne(ctx, filter).Decode(&user); err != nil {
		return types.User{}, translate(err)
	}
	normalizeUser(&user)
	return user, nil
}

func (r *UserRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]types.User, error) {
	cursor, err := r.db.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	users := make([]types.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	for i := range users {
		normalizeUser(&users[i])
	}
	return users, nil
}

func normalizeUser(user *types.User) {
	user.Interests = orEmpty(user.Interests)
	user.Followers = orEmpty(user.Followers)
	user.Following = orEmpty(user.Following)
	user.Posts = orEmpty(user.Posts)
}
