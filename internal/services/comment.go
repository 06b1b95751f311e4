package services

import (
	"context"

	"github.com/socialhub/apiserver/internal/auth"
	"github.com/socialhub/apiserver/types"
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	// ListByPost returns the comments of a post, newest first.
	ListByPost(ctx context.Context, postID string) ([]types.Comment, error)
	ListByPosts(ctx context.Context, postIDs []string) (map[string][]types.Comment, error)
	Get(ctx context.Context, id string) (types.Comment, error)
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
	Update(ctx context.Context, comment types.Comment) (types.Comment, error)
	Delete(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, commentID, userID string) (types.Comment, bool, error)
}

// CommentService encapsulates comment use-cases.
type CommentService struct {
	repo  CommentRepository
	posts PostRepository
	users *UserService
	opts  Options
}

func NewCommentService(repo CommentRepository, posts PostRepository, users *UserService, opts Options) *CommentService {
	return &CommentService{
		repo:  repo,
		posts: posts,
		users: users,
		opts:  opts.withDefaults(),
	}
}

// ListByPost returns the comments on postID. The post must exist.
func (s *CommentService) ListByPost(ctx context.Context, postID string) ([]types.FeedComment, error) {
	if _, err := s.posts.Get(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := s.repo.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	authorIDs := make([]string, 0, len(comments))
	for _, comment := range comments {
		authorIDs = append(authorIDs, comment.UserID)
	}
	authors, err := s.users.Summaries(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	out := make([]types.FeedComment, 0, len(comments))
	for _, comment := range comments {
		fc := types.FeedComment{Comment: comment}
		if author, ok := authors[comment.UserID]; ok {
			fc.Author = &author
		}
		out = append(out, fc)
	}
	return out, nil
}

func (s *CommentService) Get(ctx context.Context, id string) (types.Comment, error) {
	return s.repo.Get(ctx, id)
}

// Create attaches a comment by actor to postID.
func (s *CommentService) Create(ctx context.Context, actor auth.Identity, postID, description string) (types.Comment, error) {
	if actor.ID == "" {
		return types.Comment{}, ErrForbidden
	}
	if postID == "" {
		return types.Comment{}, invalidf("post_id is required")
	}
	description = sanitizeText(description)
	if description == "" {
		return types.Comment{}, invalidf("description is required")
	}

	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return types.Comment{}, err
	}

	created, err := s.repo.Create(ctx, types.Comment{
		PostID:      postID,
		UserID:      actor.ID,
		Description: description,
	})
	if err != nil {
		return types.Comment{}, err
	}
	s.opts.emit(ctx, types.EventCommentCreated, actor.ID, post.UserID, created.ID)
	return created, nil
}

// Update edits a comment. Only its author may do so.
func (s *CommentService) Update(ctx context.Context, actor auth.Identity, id, description string) (types.Comment, error) {
	comment, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Comment{}, err
	}
	if err := authorizeOwner(actor, comment.UserID); err != nil {
		return types.Comment{}, err
	}
	description = sanitizeText(description)
	if description == "" {
		return types.Comment{}, invalidf("description is required")
	}
	comment.Description = description
	return s.repo.Update(ctx, comment)
}

// Delete removes a comment. Allowed for the comment author or an admin.
func (s *CommentService) Delete(ctx context.Context, actor auth.Identity, id string) error {
	comment, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := authorizeOwnerOrAdmin(actor, comment.UserID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// ToggleLike flips the actor's like on the comment.
func (s *CommentService) ToggleLike(ctx context.Context, actor auth.Identity, id string) (types.Comment, bool, error) {
	if actor.ID == "" {
		return types.Comment{}, false, ErrForbidden
	}
	comment, liked, err := s.repo.ToggleLike(ctx, id, actor.ID)
	if err != nil {
		return types.Comment{}, false, err
	}
	if liked {
		s.opts.Metrics.RecordRelationship(RelationshipLike)
	} else {
		s.opts.Metrics.RecordRelationship(RelationshipUnlike)
	}
	return comment, liked, nil
}
