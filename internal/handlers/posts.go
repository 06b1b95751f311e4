package handlers

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/socialhub/apiserver/internal/services"
	"github.com/socialhub/apiserver/types"
)

// PostRequest creates or edits a post. Image posts are sent as multipart
// with the picture in the "content" file field.
type PostRequest struct {
	Type        string `json:"type"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

type PostHandler struct {
	base
	posts *services.PostService
}

func NewPostHandler(posts *services.PostService, common Common) *PostHandler {
	return &PostHandler{base: newBase(common), posts: posts}
}

func PostRouter(r chi.Router, h *PostHandler) {
	r.Get("/", h.Feed)
	r.Get("/{postID}", h.Get)
	r.Get("/user/{userID}", h.ListByAuthor)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/mine", h.Mine)
		r.Post("/", h.Create)
		r.Put("/{postID}", h.Update)
		r.Delete("/{postID}", h.Delete)
		r.Post("/{postID}/like", h.Like)
	})
}

func (h *PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	feed, total, err := h.posts.Feed(r.Context(), offset, limit)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[types.FeedPost]{
		Items: feed,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		h.fail(w, r, err, "post not found")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) ListByAuthor(w http.ResponseWriter, r *http.Request) {
	h.writeAuthorPosts(w, r, chi.URLParam(r, "userID"))
}

func (h *PostHandler) Mine(w http.ResponseWriter, r *http.Request) {
	h.writeAuthorPosts(w, r, actorFrom(r).ID)
}

func (h *PostHandler) writeAuthorPosts(w http.ResponseWriter, r *http.Request, userID string) {
	posts, err := h.posts.ListByAuthor(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// readPost decodes a post payload. An uploaded image, if any, is returned
// separately and forces the image content type.
func (h *PostHandler) readPost(w http.ResponseWriter, r *http.Request) (PostRequest, *multipart.FileHeader, error) {
	var req PostRequest
	if !isMultipart(r) {
		if err := decodeJSON(r, &req); err != nil {
			return PostRequest{}, nil, &services.ValidationError{Message: err.Error()}
		}
		if strings.EqualFold(strings.TrimSpace(req.ContentType), types.ContentTypeImage) {
			return PostRequest{}, nil, &services.ValidationError{Message: "image posts must be uploaded as multipart/form-data"}
		}
		return req, nil, nil
	}

	if err := parseMultipart(w, r); err != nil {
		return PostRequest{}, nil, err
	}
	req = PostRequest{
		Type:        r.FormValue("type"),
		ContentType: r.FormValue("content_type"),
		Content:     r.FormValue("content"),
	}
	upload := formFile(r, "content")
	if upload != nil {
		req.ContentType = types.ContentTypeImage
	} else if strings.EqualFold(strings.TrimSpace(req.ContentType), types.ContentTypeImage) {
		return PostRequest{}, nil, &services.ValidationError{Message: "image posts require a content file"}
	}
	return req, upload, nil
}

func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, upload, err := h.readPost(w, r)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	if upload != nil {
		if req.Content, err = h.saveUpload(r.Context(), upload); err != nil {
			h.fail(w, r, err, "")
			return
		}
	}

	post, err := h.posts.Create(r.Context(), actorFrom(r), services.PostInput{
		Type:        req.Type,
		ContentType: req.ContentType,
		Content:     req.Content,
	})
	if err != nil {
		if upload != nil {
			h.release(r.Context(), req.Content)
		}
		h.fail(w, r, err, "user not found")
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")

	req, upload, err := h.readPost(w, r)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	previous, err := h.posts.Get(r.Context(), postID)
	if err != nil {
		h.fail(w, r, err, "post not found")
		return
	}
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	if contentType == "" {
		contentType = previous.ContentType
	}
	if contentType == types.ContentTypeText && strings.TrimSpace(req.Content) == "" && previous.ContentType == types.ContentTypeImage {
		writeError(w, http.StatusBadRequest, "content is required when switching to text")
		return
	}
	// Image content is always a path minted by saveUpload in this request.
	if contentType == types.ContentTypeImage && upload == nil && strings.TrimSpace(req.Content) != "" {
		writeError(w, http.StatusBadRequest, "image content must be uploaded as multipart/form-data")
		return
	}

	if upload != nil {
		if req.Content, err = h.saveUpload(r.Context(), upload); err != nil {
			h.fail(w, r, err, "")
			return
		}
	}

	post, err := h.posts.Update(r.Context(), actorFrom(r), postID, services.PostUpdate{
		Type:        req.Type,
		ContentType: req.ContentType,
		Content:     req.Content,
	})
	if err != nil {
		if upload != nil {
			h.release(r.Context(), req.Content)
		}
		h.fail(w, r, err, "post not found")
		return
	}
	if previous.ContentType == types.ContentTypeImage &&
		(post.ContentType != types.ContentTypeImage || post.Content != previous.Content) {
		h.release(r.Context(), previous.Content)
	}

	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "postID"))
	if err != nil {
		h.fail(w, r, err, "post not found")
		return
	}
	if post.ContentType == types.ContentTypeImage {
		h.release(r.Context(), post.Content)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PostHandler) Like(w http.ResponseWriter, r *http.Request) {
	post, liked, err := h.posts.ToggleLike(r.Context(), actorFrom(r), chi.URLParam(r, "postID"))
	if err != nil {
		h.fail(w, r, err, "post not found")
		return
	}
	writeJSON(w, http.StatusOK, LikeResponse{Liked: liked, Likes: orEmpty(post.Likes)})
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
