package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/socialhub/apiserver/types"
)

const postColumns = `id, user_id, type, content_type, content, created_at, updated_at`

// PostRepository handles persistence for posts and their likes.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) List(ctx context.Context, offset, limit int) ([]types.Post, int, error) {
	offset, limit = clampPage(offset, limit)

	const countQuery = `SELECT COUNT(1) FROM posts`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT ` + postColumns + `
		FROM posts
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2`
	posts, err := r.query(ctx, r.db, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *PostRepository) ListByAuthor(ctx context.Context, userID string) ([]types.Post, error) {
	const query = `
		SELECT ` + postColumns + `
		FROM posts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	return r.query(ctx, r.db, query, userID)
}

func (r *PostRepository) Get(ctx context.Context, id string) (types.Post, error) {
	return r.get(ctx, r.db, id)
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	now := time.Now().UTC()
	post.ID = newID()
	post.CreatedAt = now
	post.UpdatedAt = now

	const query = `
		INSERT INTO posts (` + postColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		post.ID,
		post.UserID,
		post.Type,
		post.ContentType,
		post.Content,
		post.CreatedAt,
		post.UpdatedAt,
	); err != nil {
		return types.Post{}, translate(err)
	}

	post.Likes = []string{}
	return post, nil
}

func (r *PostRepository) Update(ctx context.Context, post types.Post) (types.Post, error) {
	const query = `
		UPDATE posts
		SET type = $1,
			content_type = $2,
			content = $3,
			updated_at = $4
		WHERE id = $5`
	if err := requireAffected(r.db.ExecContext(
		ctx,
		query,
		post.Type,
		post.ContentType,
		post.Content,
		time.Now().UTC(),
		post.ID,
	)); err != nil {
		return types.Post{}, err
	}
	return r.Get(ctx, post.ID)
}

// Delete removes the post; comments and likes cascade.
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM posts WHERE id = $1`
	return requireAffected(r.db.ExecContext(ctx, query, id))
}

func (r *PostRepository) ToggleLike(ctx context.Context, postID, userID string) (types.Post, bool, error) {
	var (
		post  types.Post
		liked bool
	)
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		const lockQuery = `SELECT id FROM posts WHERE id = $1 FOR UPDATE`
		if err := tx.QueryRowContext(ctx, lockQuery, postID).Scan(new(string)); err != nil {
			return translate(err)
		}

		const unlikeQuery = `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`
		result, err := tx.ExecContext(ctx, unlikeQuery, postID, userID)
		if err != nil {
			return err
		}
		removed, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if removed == 0 {
			const likeQuery = `INSERT INTO post_likes (post_id, user_id, created_at) VALUES ($1, $2, $3)`
			if _, err := tx.ExecContext(ctx, likeQuery, postID, userID, time.Now().UTC()); err != nil {
				return translate(err)
			}
			liked = true
		}

		post, err = r.get(ctx, tx, postID)
		return err
	})
	if err != nil {
		return types.Post{}, false, err
	}
	return post, liked, nil
}

func (r *PostRepository) get(ctx context.Context, q queryer, id string) (types.Post, error) {
	const query = `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.Post{}, translate(err)
	}
	likes, err := groupIDs(ctx, q,
		`SELECT post_id, user_id FROM post_likes WHERE post_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return types.Post{}, err
	}
	post.Likes = orEmpty(likes[id])
	return post, nil
}

func (r *PostRepository) query(ctx context.Context, q queryer, query string, args ...any) ([]types.Post, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]types.Post, 0)
	ids := make([]string, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
		ids = append(ids, post.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return posts, nil
	}

	likes, err := groupIDs(ctx, q,
		`SELECT post_id, user_id FROM post_likes WHERE post_id = ANY($1) ORDER BY created_at`,
		pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Likes = orEmpty(likes[posts[i].ID])
	}
	return posts, nil
}

func scanPost(row rowScanner) (types.Post, error) {
	var post types.Post
	err := row.Scan(
		&post.ID,
		&post.UserID,
		&post.Type,
		&post.ContentType,
		&post.Content,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	return post, err
}
