package services

import (
	"context"
	"strings"

	"github.com/socialhub/apiserver/internal/auth"
	"github.com/socialhub/apiserver/types"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	// List returns posts newest first together with the total count.
	List(ctx context.Context, offset, limit int) ([]types.Post, int, error)
	ListByAuthor(ctx context.Context, userID string) ([]types.Post, error)
	Get(ctx context.Context, id string) (types.Post, error)
	// Create stores the post and adds its id to the author's post list atomically.
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Update(ctx context.Context, post types.Post) (types.Post, error)
	// Delete removes the post, its comments and its id from the author's
	// post list atomically.
	Delete(ctx context.Context, id string) error
	// ToggleLike flips userID's membership in the like set and reports
	// whether the post is now liked.
	ToggleLike(ctx context.Context, postID, userID string) (types.Post, bool, error)
}

// PostInput carries the fields of a new post.
type PostInput struct {
	Type        string
	ContentType string
	Content     string
}

// PostUpdate carries optional post changes; empty fields are left untouched.
type PostUpdate struct {
	Type        string
	ContentType string
	Content     string
}

// PostService encapsulates post use-cases.
type PostService struct {
	repo     PostRepository
	comments CommentRepository
	users    *UserService
	opts     Options
}

func NewPostService(repo PostRepository, comments CommentRepository, users *UserService, opts Options) *PostService {
	return &PostService{
		repo:     repo,
		comments: comments,
		users:    users,
		opts:     opts.withDefaults(),
	}
}

// Feed returns posts newest first with their authors and comments.
func (s *PostService) Feed(ctx context.Context, offset, limit int) ([]types.FeedPost, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	posts, total, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	feed, err := s.enrich(ctx, posts)
	if err != nil {
		return nil, 0, err
	}
	return feed, total, nil
}

// ListByAuthor returns the author's posts newest first with comments.
func (s *PostService) ListByAuthor(ctx context.Context, userID string) ([]types.FeedPost, error) {
	posts, err := s.repo.ListByAuthor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, posts)
}

// Get returns a single post with its author and comments.
func (s *PostService) Get(ctx context.Context, id string) (types.FeedPost, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.FeedPost{}, err
	}
	feed, err := s.enrich(ctx, []types.Post{post})
	if err != nil {
		return types.FeedPost{}, err
	}
	return feed[0], nil
}

// Create publishes a post authored by actor. Any author supplied by the
// client is ignored.
func (s *PostService) Create(ctx context.Context, actor auth.Identity, in PostInput) (types.Post, error) {
	if actor.ID == "" {
		return types.Post{}, ErrForbidden
	}
	post := types.Post{UserID: actor.ID}
	if err := applyPostFields(&post, in.Type, in.ContentType, in.Content); err != nil {
		return types.Post{}, err
	}

	created, err := s.repo.Create(ctx, post)
	if err != nil {
		return types.Post{}, err
	}
	s.opts.emit(ctx, types.EventPostCreated, actor.ID, "", created.ID)
	return created, nil
}

// Update edits a post. Only its author may do so.
func (s *PostService) Update(ctx context.Context, actor auth.Identity, id string, in PostUpdate) (types.Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Post{}, err
	}
	if err := authorizeOwner(actor, post.UserID); err != nil {
		return types.Post{}, err
	}

	category, contentType, content := post.Type, post.ContentType, post.Content
	if strings.TrimSpace(in.Type) != "" {
		category = in.Type
	}
	if strings.TrimSpace(in.ContentType) != "" {
		contentType = in.ContentType
	}
	if strings.TrimSpace(in.Content) != "" {
		content = in.Content
	}
	if err := applyPostFields(&post, category, contentType, content); err != nil {
		return types.Post{}, err
	}
	return s.repo.Update(ctx, post)
}

// Delete removes a post and its comments. Allowed for the author or an
// admin. The deleted post is returned so callers can release its media.
func (s *PostService) Delete(ctx context.Context, actor auth.Identity, id string) (types.Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Post{}, err
	}
	if err := authorizeOwnerOrAdmin(actor, post.UserID); err != nil {
		return types.Post{}, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return types.Post{}, err
	}
	return post, nil
}

// ToggleLike flips the actor's like on the post.
func (s *PostService) ToggleLike(ctx context.Context, actor auth.Identity, id string) (types.Post, bool, error) {
	if actor.ID == "" {
		return types.Post{}, false, ErrForbidden
	}
	post, liked, err := s.repo.ToggleLike(ctx, id, actor.ID)
	if err != nil {
		return types.Post{}, false, err
	}
	if liked {
		s.opts.Metrics.RecordRelationship(RelationshipLike)
		s.opts.emit(ctx, types.EventPostLiked, actor.ID, post.UserID, post.ID)
	} else {
		s.opts.Metrics.RecordRelationship(RelationshipUnlike)
	}
	return post, liked, nil
}

func (s *PostService) enrich(ctx context.Context, posts []types.Post) ([]types.FeedPost, error) {
	feed := make([]types.FeedPost, 0, len(posts))
	if len(posts) == 0 {
		return feed, nil
	}

	postIDs := make([]string, 0, len(posts))
	authorIDs := make([]string, 0, len(posts))
	for _, post := range posts {
		postIDs = append(postIDs, post.ID)
		authorIDs = append(authorIDs, post.UserID)
	}

	commentsByPost, err := s.comments.ListByPosts(ctx, postIDs)
	if err != nil {
		return nil, err
	}
	for _, comments := range commentsByPost {
		for _, comment := range comments {
			authorIDs = append(authorIDs, comment.UserID)
		}
	}

	authors, err := s.users.Summaries(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	for _, post := range posts {
		item := types.FeedPost{Post: post, Comments: []types.FeedComment{}}
		if author, ok := authors[post.UserID]; ok {
			item.Author = &author
		}
		for _, comment := range commentsByPost[post.ID] {
			fc := types.FeedComment{Comment: comment}
			if author, ok := authors[comment.UserID]; ok {
				fc.Author = &author
			}
			item.Comments = append(item.Comments, fc)
		}
		feed = append(feed, item)
	}
	return feed, nil
}

func applyPostFields(post *types.Post, category, contentType, content string) error {
	category = strings.ToLower(strings.TrimSpace(category))
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if category == "" || contentType == "" || strings.TrimSpace(content) == "" {
		return invalidf("type, content_type and content are required")
	}
	if !oneOf(category, types.PostCategories) {
		return invalidf("type must be one of %s", strings.Join(types.PostCategories, ", "))
	}
	if !oneOf(contentType, types.ContentTypes) {
		return invalidf("content_type must be one of %s", strings.Join(types.ContentTypes, ", "))
	}
	if contentType == types.ContentTypeText {
		content = sanitizeText(content)
		if content == "" {
			return invalidf("content cannot be empty")
		}
	} else {
		content = strings.TrimSpace(content)
	}

	post.Type = category
	post.ContentType = contentType
	post.Content = content
	return nil
}
