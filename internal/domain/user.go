package domain

import (
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	// RolePlayer keeps the historic stored/claim value.
	RolePlayer    Role = "IGRAC"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// ParseRole accepts both the stored value and the client-facing name.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "IGRAC", "PLAYER":
		return RolePlayer, true
	case "MODERATOR":
		return RoleModerator, true
	case "ADMIN":
		return RoleAdmin, true
	}
	return "", false
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePlayer, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Name is the client-facing role string.
func (r Role) Name() string {
	if r == RolePlayer {
		return "PLAYER"
	}
	return string(r)
}

// MarshalText renders the client-facing name in JSON.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.Name()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, ok := ParseRole(string(text))
	if !ok {
		return Validation("unknown role %q", string(text))
	}
	*r = parsed
	return nil
}

// CanAuthor reports whether the role may create and submit quizzes.
func (r Role) CanAuthor() bool {
	return r == RoleModerator || r == RoleAdmin
}

// User is an account record. The password hash never leaves the account service.
type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	BirthDate    *time.Time `json:"birth_date,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	Country      string     `json:"country,omitempty"`
	Street       string     `json:"street,omitempty"`
	StreetNumber string     `json:"street_number,omitempty"`
	ProfileImage string     `json:"profile_image,omitempty"`
	Role         Role       `json:"role"`
	FailedLogins int        `json:"-"`
	LockedUntil  *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

// LockRemaining returns how long the account stays locked at now, zero when unlocked.
func (u User) LockRemaining(now time.Time) time.Duration {
	if u.LockedUntil == nil || !now.Before(*u.LockedUntil) {
		return 0
	}
	return u.LockedUntil.Sub(now)
}

// Registration carries the fields accepted by register.
type Registration struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	BirthDate    *time.Time
	Gender       string
	Country      string
	Street       string
	StreetNumber string
}

// ProfileField names a user attribute that the owner may change.
type ProfileField string

const (
	FieldFirstName    ProfileField = "first_name"
	FieldLastName     ProfileField = "last_name"
	FieldBirthDate    ProfileField = "birth_date"
	FieldGender       ProfileField = "gender"
	FieldCountry      ProfileField = "country"
	FieldStreet       ProfileField = "street"
	FieldStreetNumber ProfileField = "street_number"
)

// ProfileFields is the allow-list for profile updates.
var ProfileFields = []ProfileField{
	FieldFirstName, FieldLastName, FieldBirthDate, FieldGender,
	FieldCountry, FieldStreet, FieldStreetNumber,
}

// ProfileUpdate holds validated changes; nil pointers are left untouched.
type ProfileUpdate struct {
	FirstName    *string
	LastName     *string
	BirthDate    *time.Time
	ClearBirth   bool
	Gender       *string
	Country      *string
	Street       *string
	StreetNumber *string
}

// Apply copies the set fields onto u.
func (p ProfileUpdate) Apply(u *User) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.BirthDate != nil {
		u.BirthDate = p.BirthDate
	}
	if p.ClearBirth {
		u.BirthDate = nil
	}
	if p.Gender != nil {
		u.Gender = *p.Gender
	}
	if p.Country != nil {
		u.Country = *p.Country
	}
	if p.Street != nil {
		u.Street = *p.Street
	}
	if p.StreetNumber != nil {
		u.StreetNumber = *p.StreetNumber
	}
}

// LoginState is the counter snapshot after a failed login was recorded.
type LoginState struct {
	FailedLogins int
	LockedUntil  *time.Time
}

// Session is an issued access token.
type Session struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// ScopeQuizService marks tokens the gateway mints for calls to the quiz service.
// Browser sessions carry no scope.
const ScopeQuizService = "quiz-service"

// Principal is the verified identity carried by a session token.
type Principal struct {
	UserID    int64
	Email     string
	Role      Role
	Scope     string
	TokenID   string
	ExpiresAt time.Time
	Token     string
}

// User returns the identity fields of the principal as a User.
func (p Principal) User() User {
	return User{ID: p.UserID, Email: p.Email, Role: p.Role}
}

// LockoutPolicy bounds consecutive failed logins.
type LockoutPolicy struct {
	MaxFailedLogins int
	LockFor         time.Duration
}

// DefaultLockoutPolicy locks for one minute after three failures.
var DefaultLockoutPolicy = LockoutPolicy{MaxFailedLogins: 3, LockFor: time.Minute}
