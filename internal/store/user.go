package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/socialhub/apiserver/types"
)

const userColumns = `id, username, name, role, password_hash, bio, profile_pic, gender, age, interests, created_at, updated_at`

// UserRepository handles persistence for users. Follow edges live in the
// follows table, so followers and following are two views of one row.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *UserRepository) GetMany(ctx context.Context, ids []string) ([]types.User, error) {
	if len(ids) == 0 {
		return []types.User{}, nil
	}
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1) ORDER BY created_at`
	return r.getMany(ctx, query, pq.Array(ids))
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	offset, limit = clampPage(offset, limit)

	const countQuery = `SELECT COUNT(1) FROM users`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id OFFSET $1 LIMIT $2`
	users, err := r.getMany(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.ID = newID()
	user.CreatedAt = now
	user.UpdatedAt = now

	interestsJSON, err := json.Marshal(orEmpty(user.Interests))
	if err != nil {
		return types.User{}, err
	}

	const query = `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Username,
		user.Name,
		user.Role,
		user.PasswordHash,
		user.Bio,
		user.ProfilePic,
		user.Gender,
		user.Age,
		interestsJSON,
		user.CreatedAt,
		user.UpdatedAt,
	); err != nil {
		return types.User{}, translate(err)
	}

	user.Interests = orEmpty(user.Interests)
	user.Followers = []string{}
	user.Following = []string{}
	user.Posts = []string{}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now().UTC()

	interestsJSON, err := json.Marshal(orEmpty(user.Interests))
	if err != nil {
		return types.User{}, err
	}

	const query = `
		UPDATE users
		SET username = $1,
			name = $2,
			role = $3,
			password_hash = $4,
			bio = $5,
			profile_pic = $6,
			gender = $7,
			age = $8,
			interests = $9,
			updated_at = $10
		WHERE id = $11`
	err = requireAffected(r.db.ExecContext(
		ctx,
		query,
		user.Username,
		user.Name,
		user.Role,
		user.PasswordHash,
		user.Bio,
		user.ProfilePic,
		user.Gender,
		user.Age,
		interestsJSON,
		user.UpdatedAt,
		user.ID,
	))
	if err != nil {
		return types.User{}, err
	}
	return r.GetByID(ctx, user.ID)
}

// Delete removes the user. Posts, comments, likes and follow edges go with
// it through ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	return requireAffected(r.db.ExecContext(ctx, query, id))
}

func (r *UserRepository) Follow(ctx context.Context, followerID, followeeID string) error {
	const query = `
		INSERT INTO follows (follower_id, followee_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, followerID, followeeID, time.Now().UTC())
	if err != nil {
		return translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *UserRepository) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		const existsQuery = `SELECT COUNT(1) FROM users WHERE id = $1 OR id = $2`
		var found int
		if err := tx.QueryRowContext(ctx, existsQuery, followerID, followeeID).Scan(&found); err != nil {
			return err
		}
		if found < 2 {
			return ErrNotFound
		}

		const query = `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`
		result, err := tx.ExecContext(ctx, query, followerID, followeeID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotRelated
		}
		return nil
	})
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (types.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return types.User{}, translate(err)
	}
	users := []*types.User{&user}
	if err := loadUserRelations(ctx, r.db, users); err != nil {
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) getMany(ctx context.Context, query string, args ...any) ([]types.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]types.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ptrs := make([]*types.User, len(users))
	for i := range users {
		ptrs[i] = &users[i]
	}
	if err := loadUserRelations(ctx, r.db, ptrs); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var interestsJSON []byte
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Role,
		&user.PasswordHash,
		&user.Bio,
		&user.ProfilePic,
		&user.Gender,
		&user.Age,
		&interestsJSON,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return types.User{}, err
	}
	if err := decodeInterests(interestsJSON, &user.Interests); err != nil {
		return types.User{}, err
	}
	user.Interests = orEmpty(user.Interests)
	return user, nil
}

func decodeInterests(data []byte, dst *[]string) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode interests: %w", err)
	}
	return nil
}

// loadUserRelations fills Followers, Following and Posts for users.
func loadUserRelations(ctx context.Context, q queryer, users []*types.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]string, len(users))
	for i, user := range users {
		ids[i] = user.ID
	}

	followers, err := groupIDs(ctx, q,
		`SELECT followee_id, follower_id FROM follows WHERE followee_id = ANY($1) ORDER BY created_at`,
		pq.Array(ids))
	if err != nil {
		return err
	}
	following, err := groupIDs(ctx, q,
		`SELECT follower_id, followee_id FROM follows WHERE follower_id = ANY($1) ORDER BY created_at`,
		pq.Array(ids))
	if err != nil {
		return err
	}
	posts, err := groupIDs(ctx, q,
		`SELECT user_id, id FROM posts WHERE user_id = ANY($1) ORDER BY created_at`,
		pq.Array(ids))
	if err != nil {
		return err
	}

	for _, user := range users {
		user.Followers = orEmpty(followers[user.ID])
		user.Following = orEmpty(following[user.ID])
		user.Posts = orEmpty(posts[user.ID])
	}
	return nil
}
