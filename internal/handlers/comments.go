package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/socialhub/apiserver/internal/services"
)

type CreateCommentRequest struct {
	PostID      string `json:"post_id"`
	Description string `json:"description"`
}

type UpdateCommentRequest struct {
	Description string `json:"description"`
}

type CommentHandler struct {
	base
	comments *services.CommentService
}

func NewCommentHandler(comments *services.CommentService, common Common) *CommentHandler {
	return &CommentHandler{base: newBase(common), comments: comments}
}

func CommentRouter(r chi.Router, h *CommentHandler) {
	r.Get("/post/{postID}", h.ListByPost)
	r.Get("/{commentID}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Post("/", h.Create)
		r.Put("/{commentID}", h.Update)
		r.Delete("/{commentID}", h.Delete)
		r.Post("/{commentID}/like", h.Like)
	})
}

func (h *CommentHandler) ListByPost(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.ListByPost(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		h.fail(w, r, err, "post not found")
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *CommentHandler) Get(w http.ResponseWriter, r *http.Request) {
	comment, err := h.comments.Get(r.Context(), chi.URLParam(r, "commentID"))
	if err != nil {
		h.fail(w, r, err, "comment not found")
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.comments.Create(r.Context(), actorFrom(r), req.PostID, req.Description)
	if err != nil {
		h.fail(w, r, err, "post not found")
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.comments.Update(r.Context(), actorFrom(r), chi.URLParam(r, "commentID"), req.Description)
	if err != nil {
		h.fail(w, r, err, "comment not found")
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "commentID")); err != nil {
		h.fail(w, r, err, "comment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CommentHandler) Like(w http.ResponseWriter, r *http.Request) {
	comment, liked, err := h.comments.ToggleLike(r.Context(), actorFrom(r), chi.URLParam(r, "commentID"))
	if err != nil {
		h.fail(w, r, err, "comment not found")
		return
	}
	writeJSON(w, http.StatusOK, LikeResponse{Liked: liked, Likes: orEmpty(comment.Likes)})
}
