package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/socialhub/apiserver/internal/auth"
	"github.com/socialhub/apiserver/internal/services"
	"github.com/socialhub/apiserver/internal/store"
	"github.com/socialhub/apiserver/types"
)

// RegisterRequest is the JSON payload for registration. Multipart requests
// carry the same fields as form values plus an optional profile_pic file.
type RegisterRequest struct {
	Username  string   `json:"username"`
	Password  string   `json:"password"`
	Name      string   `json:"name"`
	Bio       string   `json:"bio"`
	Gender    string   `json:"gender"`
	Age       int      `json:"age"`
	Interests []string `json:"interests"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse returns a session token alongside the account.
type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

// ProfileRequest is a partial profile update; omitted fields are unchanged.
type ProfileRequest struct {
	Username  *string  `json:"username"`
	Name      *string  `json:"name"`
	Bio       *string  `json:"bio"`
	Gender    *string  `json:"gender"`
	Age       *int     `json:"age"`
	Interests []string `json:"interests"`
}

type PasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type UserHandler struct {
	base
	users  *services.UserService
	posts  *services.PostService
	issuer *auth.Issuer
}

func NewUserHandler(users *services.UserService, posts *services.PostService, issuer *auth.Issuer, common Common) *UserHandler {
	return &UserHandler{
		base:   newBase(common),
		users:  users,
		posts:  posts,
		issuer: issuer,
	}
}

// UserRouter mounts account and relationship routes. limit, when non-nil,
// guards the credential endpoints.
func UserRouter(r chi.Router, h *UserHandler, limit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	r.Get("/", h.List)
	r.Get("/{userID}", h.Get)
	r.Get("/{userID}/followers", h.Followers)
	r.Get("/{userID}/following", h.Following)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/me", h.Me)
		r.Put("/{userID}", h.Update)
		r.Put("/{userID}/password", h.ChangePassword)
		r.Delete("/{userID}", h.Delete)
		r.Post("/{userID}/follow", h.Follow)
		r.Post("/{userID}/unfollow", h.Unfollow)
	})
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	var upload *multipart.FileHeader
	if isMultipart(r) {
		if err := parseMultipart(w, r); err != nil {
			h.fail(w, r, err, "")
			return
		}
		age, err := parseOptionalInt(r.FormValue("age"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "age must be a number")
			return
		}
		req = RegisterRequest{
			Username:  r.FormValue("username"),
			Password:  r.FormValue("password"),
			Name:      r.FormValue("name"),
			Bio:       r.FormValue("bio"),
			Gender:    r.FormValue("gender"),
			Age:       age,
			Interests: parseTags(r.FormValue("interests")),
		}
		upload = formFile(r, "profile_pic")
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := services.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		Name:      req.Name,
		Bio:       req.Bio,
		Gender:    req.Gender,
		Age:       req.Age,
		Interests: req.Interests,
	}
	if upload != nil {
		path, err := h.saveUpload(r.Context(), upload)
		if err != nil {
			h.fail(w, r, err, "")
			return
		}
		in.ProfilePic = path
	}

	user, err := h.users.Register(r.Context(), in)
	if err != nil {
		h.release(r.Context(), in.ProfilePic)
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		h.fail(w, r, err, "")
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, user)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.recordAuthFailure("bad_credentials")
		}
		h.fail(w, r, err, "")
		return
	}

	h.respondWithToken(w, r, http.StatusOK, user)
}

func (h *UserHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, user types.User) {
	token, err := h.issuer.Issue(auth.Identity{ID: user.ID, Role: user.Role, Username: user.Username})
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	writeJSON(w, status, AuthResponse{Token: token, User: user})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, total, err := h.users.List(r.Context(), offset, limit)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[types.User]{
		Items: users,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByID(r.Context(), actorFrom(r).ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Followers(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.users.Followers(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *UserHandler) Following(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.users.Following(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.fail(w, r, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "userID")

	var req ProfileRequest
	var upload *multipart.FileHeader
	if isMultipart(r) {
		if err := parseMultipart(w, r); err != nil {
			h.fail(w, r, err, "")
			return
		}
		var err error
		if req, err = profileFromForm(r); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		upload = formFile(r, "profile_pic")
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Resolve the target before storing any upload.
	previous, err := h.users.GetByID(r.Context(), targetID)
	if err != nil {
		h.fail(w, r, err, "user not found")
		return
	}

	in := services.ProfileUpdate{
		Username:  req.Username,
		Name:      req.Name,
		Bio:       req.Bio,
		Gender:    req.Gender,
		Age:       req.Age,
		Interests: req.Interests,
	}
	var saved string
	if upload != nil {
		if saved, err = h.saveUpload(r.Context(), upload); err != nil {
			h.fail(w, r, err, "")
			return
		}
		in.ProfilePic = &saved
	}

	user, err := h.users.UpdateProfile(r.Context(), actorFrom(r), targetID, in)
	if err != nil {
		h.release(r.Context(), saved)
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "username already taken")
			return
		}
		h.fail(w, r, err, "user not found")
		return
	}
	if saved != "" && previous.ProfilePic != saved {
		h.release(r.Context(), previous.ProfilePic)
	}

	writeJSON(w, http.StatusOK, user)
}

func profileFromForm(r *http.Request) (ProfileRequest, error) {
	var req ProfileRequest
	if v, ok := formValue(r, "username"); ok {
		req.Username = &v
	}
	if v, ok := formValue(r, "name"); ok {
		req.Name = &v
	}
	if v, ok := formValue(r, "bio"); ok {
		req.Bio = &v
	}
	if v, ok := formValue(r, "gender"); ok {
		req.Gender = &v
	}
	if v, ok := formValue(r, "age"); ok {
		age, err := parseOptionalInt(v)
		if err != nil {
			return ProfileRequest{}, errors.New("age must be a number")
		}
		req.Age = &age
	}
	if v, ok := formValue(r, "interests"); ok {
		req.Interests = parseTags(v)
	}
	return req, nil
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.users.ChangePassword(r.Context(), actorFrom(r), chi.URLParam(r, "userID"), req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusBadRequest, "current password is incorrect")
			return
		}
		h.fail(w, r, err, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "password updated"})
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "userID")

	// Collect media before the cascade removes the records pointing at it.
	var media []string
	if user, err := h.users.GetByID(r.Context(), targetID); err == nil {
		media = append(media, user.ProfilePic)
	}
	if posts, err := h.posts.ListByAuthor(r.Context(), targetID); err == nil {
		for _, post := range posts {
			if post.ContentType == types.ContentTypeImage {
				media = append(media, post.Content)
			}
		}
	}

	if err := h.users.Delete(r.Context(), actorFrom(r), targetID); err != nil {
		h.fail(w, r, err, "user not found")
		return
	}
	for _, path := range media {
		h.release(r.Context(), path)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	err := h.users.Follow(r.Context(), actorFrom(r), chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "already following")
			return
		}
		h.fail(w, r, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "followed"})
}

func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	err := h.users.Unfollow(r.Context(), actorFrom(r), chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, store.ErrNotRelated) {
			writeError(w, http.StatusBadRequest, "not following")
			return
		}
		h.fail(w, r, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "unfollowed"})
}
