package types

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User represents an account in the system.
// It contains identity, role, profile attributes and relationship references.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id" bson:"_id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username" bson:"username"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name" bson:"name"`

	// Role indicates the user's authorization level within the system
	// ("admin" or "user").
	Role string `json:"role" db:"role" bson:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash" bson:"password_hash"`

	// Bio is a free-form profile description.
	Bio string `json:"bio" db:"bio" bson:"bio"`

	// ProfilePic is the path of the uploaded profile picture, if any
	// (e.g., "/uploads/<key>").
	ProfilePic string `json:"profile_pic" db:"profile_pic" bson:"profile_pic"`

	// Gender is either "male", "female" or empty.
	Gender string `json:"gender" db:"gender" bson:"gender"`

	// Age is the user's age in years; zero when unknown.
	Age int `json:"age" db:"age" bson:"age"`

	// Interests is a subset of the supported interest tags.
	Interests []string `json:"interests" db:"interests" bson:"interests"`

	// Followers holds the identifiers of users following this user.
	Followers []string `json:"followers" db:"-" bson:"followers"`

	// Following holds the identifiers of users this user follows.
	Following []string `json:"following" db:"-" bson:"following"`

	// Posts holds the identifiers of posts authored by this user.
	Posts []string `json:"posts" db:"-" bson:"posts"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at" bson:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

// UserSummary is the public subset of a user embedded in feeds and
// relationship listings.
type UserSummary struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	ProfilePic string `json:"profile_pic"`
}

// Summary returns the public subset of the user.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:         u.ID,
		Username:   u.Username,
		Name:       u.Name,
		ProfilePic: u.ProfilePic,
	}
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

var (
	Genders   = []string{"male", "female"}
	Interests = []string{"comedy", "sports", "fashion", "business"}
)
