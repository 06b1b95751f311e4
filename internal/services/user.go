package services

import (
	"context"
	"errors"
	"strings"

	"github.com/socialhub/apiserver/internal/auth"
	"github.com/socialhub/apiserver/internal/store"
	"github.com/socialhub/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	RelationshipFollow   = "follow"
	RelationshipUnfollow = "unfollow"
	RelationshipLike     = "like"
	RelationshipUnlike   = "unlike"

	minPasswordLength = 6
	maxUsernameLength = 32
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetMany(ctx context.Context, ids []string) ([]types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	// Delete removes the user, the posts and comments they authored, their
	// likes and every follow edge touching them, atomically.
	Delete(ctx context.Context, id string) error
	// Follow records followerID -> followeeID on both user records atomically.
	// It returns store.ErrConflict when the relationship already exists.
	Follow(ctx context.Context, followerID, followeeID string) error
	// Unfollow removes the relationship from both records atomically.
	// It returns store.ErrNotRelated when there is nothing to remove.
	Unfollow(ctx context.Context, followerID, followeeID string) error
}

// RelationshipRepairer is implemented by backends whose follow lists can
// drift out of symmetry.
type RelationshipRepairer interface {
	RepairRelationships(ctx context.Context) (int, error)
}

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Username   string
	Password   string
	Name       string
	Bio        string
	Gender     string
	Age        int
	Interests  []string
	ProfilePic string
}

// ProfileUpdate carries optional profile changes; nil fields are left untouched.
type ProfileUpdate struct {
	Username   *string
	Name       *string
	Bio        *string
	Gender     *string
	Age        *int
	Interests  []string
	ProfilePic *string
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
	opts Options
}

func NewUserService(repo UserRepository, opts Options) *UserService {
	return &UserService{repo: repo, opts: opts.withDefaults()}
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	return s.repo.List(ctx, offset, limit)
}

// Summaries resolves user ids to public summaries, skipping unknown ids.
func (s *UserService) Summaries(ctx context.Context, ids []string) (map[string]types.UserSummary, error) {
	out := make(map[string]types.UserSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := s.repo.GetMany(ctx, uniqueStrings(ids))
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		out[user.ID] = user.Summary()
	}
	return out, nil
}

// Followers lists the users following id.
func (s *UserService) Followers(ctx context.Context, id string) ([]types.UserSummary, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.orderedSummaries(ctx, user.Followers)
}

// Following lists the users id follows.
func (s *UserService) Following(ctx context.Context, id string) ([]types.UserSummary, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.orderedSummaries(ctx, user.Following)
}

// Register validates the input, hashes the password and stores a new
// account with role "user".
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	username := strings.TrimSpace(in.Username)
	name := sanitizeText(in.Name)
	if username == "" || name == "" || in.Password == "" {
		return types.User{}, invalidf("username, name and password are required")
	}
	if err := validateUsername(username); err != nil {
		return types.User{}, err
	}
	if len(in.Password) < minPasswordLength {
		return types.User{}, invalidf("password must be at least %d characters", minPasswordLength)
	}

	user := types.User{
		Username:   username,
		Name:       name,
		Role:       types.RoleUser,
		Bio:        sanitizeText(in.Bio),
		ProfilePic: in.ProfilePic,
		Age:        in.Age,
	}
	if err := applyProfileFields(&user, in.Gender, in.Age, in.Interests); err != nil {
		return types.User{}, err
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return types.User{}, store.ErrConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}
	user.PasswordHash = string(hashed)

	return s.repo.Create(ctx, user)
}

// Authenticate checks a username/password pair.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return types.User{}, invalidf("missing credentials")
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// UpdateProfile applies profile changes. Only the user themself may do so.
func (s *UserService) UpdateProfile(ctx context.Context, actor auth.Identity, targetID string, in ProfileUpdate) (types.User, error) {
	if err := authorizeOwner(actor, targetID); err != nil {
		return types.User{}, err
	}

	user, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return types.User{}, err
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validateUsername(username); err != nil {
			return types.User{}, err
		}
		user.Username = username
	}
	if in.Name != nil {
		name := sanitizeText(*in.Name)
		if name == "" {
			return types.User{}, invalidf("name cannot be empty")
		}
		user.Name = name
	}
	if in.Bio != nil {
		user.Bio = sanitizeText(*in.Bio)
	}
	if in.ProfilePic != nil {
		user.ProfilePic = *in.ProfilePic
	}

	gender, age, interests := user.Gender, user.Age, user.Interests
	if in.Gender != nil {
		gender = *in.Gender
	}
	if in.Age != nil {
		age = *in.Age
	}
	if in.Interests != nil {
		interests = in.Interests
	}
	if err := applyProfileFields(&user, gender, age, interests); err != nil {
		return types.User{}, err
	}

	return s.repo.Update(ctx, user)
}

// ChangePassword replaces the password after verifying the current one.
func (s *UserService) ChangePassword(ctx context.Context, actor auth.Identity, targetID, current, next string) error {
	if err := authorizeOwner(actor, targetID); err != nil {
		return err
	}
	if current == "" || next == "" {
		return invalidf("current_password and new_password are required")
	}
	if len(next) < minPasswordLength {
		return invalidf("password must be at least %d characters", minPasswordLength)
	}

	user, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordHash = string(hashed)
	_, err = s.repo.Update(ctx, user)
	return err
}

// Delete removes an account. Allowed for the user themself or an admin.
func (s *UserService) Delete(ctx context.Context, actor auth.Identity, targetID string) error {
	if err := authorizeOwnerOrAdmin(actor, targetID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, targetID)
}

// Follow makes actor follow targetID.
func (s *UserService) Follow(ctx context.Context, actor auth.Identity, targetID string) error {
	if err := authorizeFollow(actor, targetID); err != nil {
		return err
	}
	if err := s.repo.Follow(ctx, actor.ID, targetID); err != nil {
		return err
	}
	s.opts.Metrics.RecordRelationship(RelationshipFollow)
	s.opts.emit(ctx, types.EventUserFollowed, actor.ID, targetID, "")
	return nil
}

// Unfollow removes the actor -> targetID relationship.
func (s *UserService) Unfollow(ctx context.Context, actor auth.Identity, targetID string) error {
	if err := authorizeFollow(actor, targetID); err != nil {
		return err
	}
	if err := s.repo.Unfollow(ctx, actor.ID, targetID); err != nil {
		return err
	}
	s.opts.Metrics.RecordRelationship(RelationshipUnfollow)
	s.opts.emit(ctx, types.EventUserUnfollowed, actor.ID, targetID, "")
	return nil
}

// Promote grants the admin role to username.
func (s *UserService) Promote(ctx context.Context, username string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return types.User{}, err
	}
	user.Role = types.RoleAdmin
	return s.repo.Update(ctx, user)
}

func (s *UserService) orderedSummaries(ctx context.Context, ids []string) ([]types.UserSummary, error) {
	byID, err := s.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]types.UserSummary, 0, len(ids))
	for _, id := range ids {
		if summary, ok := byID[id]; ok {
			out = append(out, summary)
		}
	}
	return out, nil
}

func validateUsername(username string) error {
	if username == "" {
		return invalidf("username cannot be empty")
	}
	if len(username) > maxUsernameLength {
		return invalidf("username must be at most %d characters", maxUsernameLength)
	}
	if strings.ContainsAny(username, " \t\r\n/") {
		return invalidf("username cannot contain whitespace or slashes")
	}
	return nil
}

func applyProfileFields(user *types.User, gender string, age int, interests []string) error {
	gender = strings.ToLower(strings.TrimSpace(gender))
	if gender != "" && !oneOf(gender, types.Genders) {
		return invalidf("gender must be one of %s", strings.Join(types.Genders, ", "))
	}
	if age < 0 {
		return invalidf("age cannot be negative")
	}
	normalized, err := normalizeTags(interests, types.Interests)
	if err != nil {
		return invalidf("interests must be a subset of %s", strings.Join(types.Interests, ", "))
	}
	user.Gender = gender
	user.Age = age
	user.Interests = normalized
	return nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
