package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/socialhub/apiserver/types"
)

const commentColumns = `id, post_id, user_id, description, created_at, updated_at`

// CommentRepository handles persistence for comments and their likes.
type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) ListByPost(ctx context.Context, postID string) ([]types.Comment, error) {
	const query = `
		SELECT ` + commentColumns + `
		FROM comments
		WHERE post_id = $1
		ORDER BY created_at DESC, id DESC`
	return r.query(ctx, r.db, query, postID)
}

func (r *CommentRepository) ListByPosts(ctx context.Context, postIDs []string) (map[string][]types.Comment, error) {
	out := make(map[string][]types.Comment, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	const query = `
		SELECT ` + commentColumns + `
		FROM comments
		WHERE post_id = ANY($1)
		ORDER BY created_at DESC, id DESC`
	comments, err := r.query(ctx, r.db, query, pq.Array(postIDs))
	if err != nil {
		return nil, err
	}
	for _, comment := range comments {
		out[comment.PostID] = append(out[comment.PostID], comment)
	}
	return out, nil
}

func (r *CommentRepository) Get(ctx context.Context, id string) (types.Comment, error) {
	return r.get(ctx, r.db, id)
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	now := time.Now().UTC()
	comment.ID = newID()
	comment.CreatedAt = now
	comment.UpdatedAt = now

	const query = `
		INSERT INTO comments (` + commentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		comment.ID,
		comment.PostID,
		comment.UserID,
		comment.Description,
		comment.CreatedAt,
		comment.UpdatedAt,
	); err != nil {
		return types.Comment{}, translate(err)
	}

	comment.Likes = []string{}
	return comment, nil
}

func (r *CommentRepository) Update(ctx context.Context, comment types.Comment) (types.Comment, error) {
	const query = `
		UPDATE comments
		SET description = $1,
			updated_at = $2
		WHERE id = $3`
	if err := requireAffected(r.db.ExecContext(ctx, query, comment.Description, time.Now().UTC(), comment.ID)); err != nil {
		return types.Comment{}, err
	}
	return r.Get(ctx, comment.ID)
}

func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM comments WHERE id = $1`
	return requireAffected(r.db.ExecContext(ctx, query, id))
}

func (r *CommentRepository) ToggleLike(ctx context.Context, commentID, userID string) (types.Comment, bool, error) {
	var (
		comment types.Comment
		liked   bool
	)
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		const lockQuery = `SELECT id FROM comments WHERE id = $1 FOR UPDATE`
		if err := tx.QueryRowContext(ctx, lockQuery, commentID).Scan(new(string)); err != nil {
			return translate(err)
		}

		const unlikeQuery = `DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2`
		result, err := tx.ExecContext(ctx, unlikeQuery, commentID, userID)
		if err != nil {
			return err
		}
		removed, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if removed == 0 {
			const likeQuery = `INSERT INTO comment_likes (comment_id, user_id, created_at) VALUES ($1, $2, $3)`
			if _, err := tx.ExecContext(ctx, likeQuery, commentID, userID, time.Now().UTC()); err != nil {
				return translate(err)
			}
			liked = true
		}

		comment, err = r.get(ctx, tx, commentID)
		return err
	})
	if err != nil {
		return types.Comment{}, false, err
	}
	return comment, liked, nil
}

func (r *CommentRepository) get(ctx context.Context, q queryer, id string) (types.Comment, error) {
	const query = `SELECT ` + commentColumns + ` FROM comments WHERE id = $1`
	comment, err := scanComment(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return types.Comment{}, translate(err)
	}
	likes, err := groupIDs(ctx, q,
		`SELECT comment_id, user_id FROM comment_likes WHERE comment_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return types.Comment{}, err
	}
	comment.Likes = orEmpty(likes[id])
	return comment, nil
}

func (r *CommentRepository) query(ctx context.Context, q queryer, query string, args ...any) ([]types.Comment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make([]types.Comment, 0)
	ids := make([]string, 0)
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
		ids = append(ids, comment.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return comments, nil
	}

	likes, err := groupIDs(ctx, q,
		`SELECT comment_id, user_id FROM comment_likes WHERE comment_id = ANY($1) ORDER BY created_at`,
		pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for i := range comments {
		comments[i].Likes = orEmpty(likes[comments[i].ID])
	}
	return comments, nil
}

func scanComment(row rowScanner) (types.Comment, error) {
	var comment types.Comment
	err := row.Scan(
		&comment.ID,
		&comment.PostID,
		&comment.UserID,
		&comment.Description,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	)
	return comment, err
}
