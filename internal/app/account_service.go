package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/NitrousOX/DRS---projekat/internal/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// DefaultPasswordMinLength is the deployment-wide minimum password length.
const DefaultPasswordMinLength = 6

var avatarExtensions = map[string]struct{}{".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}}

// AccountOptions carries the optional collaborators of AccountService.
type AccountOptions struct {
	Policy            domain.LockoutPolicy
	PasswordMinLength int
	Revocations       RevocationStore
	Avatars           AvatarStore
	Logger            *zap.Logger
}

// AccountService implements registration, login with lockout, sessions and profiles.
type AccountService struct {
	users     UserRepository
	hasher    PasswordHasher
	tokens    TokenIssuer
	revoked   RevocationStore
	avatars   AvatarStore
	policy    domain.LockoutPolicy
	minLength int
	clock     func() time.Time
	logger    *zap.Logger
}

func NewAccountService(users UserRepository, hasher PasswordHasher, tokens TokenIssuer, opts AccountOptions) *AccountService {
	if opts.Policy.MaxFailedLogins <= 0 {
		opts.Policy.MaxFailedLogins = domain.DefaultLockoutPolicy.MaxFailedLogins
	}
	if opts.Policy.LockFor <= 0 {
		opts.Policy.LockFor = domain.DefaultLockoutPolicy.LockFor
	}
	if opts.PasswordMinLength <= 0 {
		opts.PasswordMinLength = DefaultPasswordMinLength
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &AccountService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		revoked:   opts.Revocations,
		avatars:   opts.Avatars,
		policy:    opts.Policy,
		minLength: opts.PasswordMinLength,
		clock:     time.Now,
		logger:    opts.Logger,
	}
}

// SetClock replaces the time source; tests use it to step through lock windows.
func (s *AccountService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Register creates a PLAYER account.
func (s *AccountService) Register(ctx context.Context, reg domain.Registration) (domain.User, error) {
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	reg.FirstName = strings.TrimSpace(reg.FirstName)
	reg.LastName = strings.TrimSpace(reg.LastName)

	required := []struct{ name, value string }{
		{"email", reg.Email},
		{"password", reg.Password},
		{"first_name", reg.FirstName},
		{"last_name", reg.LastName},
	}
	for _, f := range required {
		if f.value == "" {
			return domain.User{}, domain.Validation("missing required field: %s", f.name)
		}
	}
	if !emailPattern.MatchString(reg.Email) {
		return domain.User{}, domain.Validation("invalid email format")
	}
	if len(reg.Password) < s.minLength {
		return domain.User{}, domain.Validation("password must be at least %d characters", s.minLength)
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return domain.User{}, domain.Internal("could not register account", err)
	}
	user, err := s.users.Create(ctx, domain.User{
		Email:        reg.Email,
		PasswordHash: hash,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		BirthDate:    reg.BirthDate,
		Gender:       reg.Gender,
		Country:      reg.Country,
		Street:       reg.Street,
		StreetNumber: reg.StreetNumber,
		Role:         domain.RolePlayer,
		CreatedAt:    s.clock().UTC(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.User{}, domain.Conflict("user with this email already exists")
		}
		return domain.User{}, domain.Internal("could not register account", err)
	}
	s.logger.Info("account registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// Login checks the lock before the password; a locked account does not consume an attempt.
func (s *AccountService) Login(ctx context.Context, email, password string) (domain.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return domain.Session{}, domain.Validation("email and password are required")
	}

	user, err := s.users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
			return domain.Session{}, domain.InvalidCredentials()
		}
		return domain.Session{}, domain.Internal("login failed", err)
	}

	now := s.clock()
	if remaining := user.LockRemaining(now); remaining > 0 {
		metrics.LoginAttemptsTotal.WithLabelValues("locked").Inc()
		return domain.Session{}, domain.Locked(remaining)
	}

	if !s.hasher.Compare(user.PasswordHash, password) {
		state, err := s.users.RecordFailedLogin(ctx, user.ID, now, s.policy)
		if err != nil {
			return domain.Session{}, domain.Internal("login failed", err)
		}
		if state.LockedUntil != nil && state.LockedUntil.After(now) {
			s.logger.Warn("account locked after failed logins",
				zap.Int64("user_id", user.ID),
				zap.Int("failed_logins", state.FailedLogins),
				zap.Time("locked_until", *state.LockedUntil))
		}
		metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
		return domain.Session{}, domain.InvalidCredentials()
	}

	if err := s.users.ResetFailedLogins(ctx, user.ID); err != nil {
		return domain.Session{}, domain.Internal("login failed", err)
	}
	user.FailedLogins = 0
	user.LockedUntil = nil

	session, err := s.tokens.Issue(user)
	if err != nil {
		return domain.Session{}, domain.Internal("login failed", err)
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return session, nil
}

// Logout revokes the token when a revocation store is configured. It always succeeds.
func (s *AccountService) Logout(ctx context.Context, p domain.Principal) {
	if s.revoked == nil || p.TokenID == "" {
		return
	}
	if err := s.revoked.Revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		s.logger.Warn("token revocation failed", zap.Int64("user_id", p.UserID), zap.Error(err))
	}
}

// Authenticate verifies a browser session token and rejects revoked or scoped ones.
func (s *AccountService) Authenticate(ctx context.Context, token string) (domain.Principal, error) {
	p, err := s.tokens.Verify(token)
	if err != nil {
		return domain.Principal{}, err
	}
	if p.Scope != "" {
		return domain.Principal{}, domain.Unauthenticated("invalid session token")
	}
	if s.revoked != nil && p.TokenID != "" {
		revoked, err := s.revoked.IsRevoked(ctx, p.TokenID)
		if err != nil {
			return domain.Principal{}, domain.Internal("could not verify session", err)
		}
		if revoked {
			return domain.Principal{}, domain.Unauthenticated("session has been revoked")
		}
	}
	return p, nil
}

func (s *AccountService) Profile(ctx context.Context, userID int64) (domain.User, error) {
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		return domain.User{}, wrapStoreErr(err, "user")
	}
	return user, nil
}

// UpdateProfile applies an allow-listed change set.
func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, fields map[string]any) (domain.User, error) {
	update, err := ParseProfileUpdate(fields)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		return domain.User{}, wrapStoreErr(err, "user")
	}
	update.Apply(&user)
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return domain.User{}, wrapStoreErr(err, "user")
	}
	return user, nil
}

// ParseProfileUpdate validates client input field by field against domain.ProfileFields.
func ParseProfileUpdate(fields map[string]any) (domain.ProfileUpdate, error) {
	var update domain.ProfileUpdate
	if len(fields) == 0 {
		return update, domain.Validation("no fields to update")
	}
	for key, raw := range fields {
		field := domain.ProfileField(key)
		if field == domain.FieldBirthDate {
			if raw == nil {
				update.ClearBirth = true
				continue
			}
			str, ok := raw.(string)
			if !ok {
				return update, domain.Validation("birth_date must be a YYYY-MM-DD string")
			}
			parsed, err := time.Parse("2006-01-02", str)
			if err != nil {
				return update, domain.Validation("birth_date must be a YYYY-MM-DD string")
			}
			update.BirthDate = &parsed
			continue
		}

		target := profileTarget(&update, field)
		if target == nil {
			return update, domain.Validation("field %q cannot be updated", key)
		}
		str, ok := raw.(string)
		if !ok {
			return update, domain.Validation("field %q must be a string", key)
		}
		str = strings.TrimSpace(str)
		if (field == domain.FieldFirstName || field == domain.FieldLastName) && str == "" {
			return update, domain.Validation("field %q cannot be empty", key)
		}
		*target = &str
	}
	return update, nil
}

func profileTarget(u *domain.ProfileUpdate, field domain.ProfileField) **string {
	switch field {
	case domain.FieldFirstName:
		return &u.FirstName
	case domain.FieldLastName:
		return &u.LastName
	case domain.FieldGender:
		return &u.Gender
	case domain.FieldCountry:
		return &u.Country
	case domain.FieldStreet:
		return &u.Street
	case domain.FieldStreetNumber:
		return &u.StreetNumber
	}
	return nil
}

// SetAvatar stores an uploaded image and points the profile at it.
func (s *AccountService) SetAvatar(ctx context.Context, userID int64, filename, contentType string, body io.Reader) (domain.User, error) {
	if s.avatars == nil {
		return domain.User{}, domain.Internal("avatar storage is not configured", nil)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := avatarExtensions[ext]; !ok {
		return domain.User{}, domain.Validation("unsupported image type %q", ext)
	}
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		return domain.User{}, wrapStoreErr(err, "user")
	}
	key := fmt.Sprintf("avatars/%d-%s%s", userID, uuid.NewString(), ext)
	url, err := s.avatars.Save(ctx, key, contentType, body)
	if err != nil {
		return domain.User{}, domain.Internal("could not store avatar", err)
	}
	if err := s.users.SetProfileImage(ctx, userID, url); err != nil {
		return domain.User{}, wrapStoreErr(err, "user")
	}
	user.ProfileImage = url
	return user, nil
}

func (s *AccountService) DeleteAccount(ctx context.Context, userID int64) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		return wrapStoreErr(err, "user")
	}
	s.logger.Info("account deleted", zap.Int64("user_id", userID))
	return nil
}

func (s *AccountService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, domain.Internal("could not list users", err)
	}
	return users, nil
}

// ChangeRole sets the role of another account. roleName accepts PLAYER, MODERATOR or ADMIN.
func (s *AccountService) ChangeRole(ctx context.Context, actor domain.Principal, targetID int64, roleName string) (domain.User, error) {
	role, ok := domain.ParseRole(roleName)
	if !ok {
		return domain.User{}, domain.Validation("unknown role %q", roleName)
	}
	if actor.UserID == targetID {
		return domain.User{}, domain.Forbidden("cannot change your own role")
	}
	user, err := s.users.ByID(ctx, targetID)
	if err != nil {
		return domain.User{}, wrapStoreErr(err, "user")
	}
	if err := s.users.SetRole(ctx, targetID, role); err != nil {
		return domain.User{}, wrapStoreErr(err, "user")
	}
	user.Role = role
	s.logger.Info("role changed",
		zap.Int64("actor_id", actor.UserID),
		zap.Int64("user_id", targetID),
		zap.String("role", role.Name()))
	return user, nil
}

func (s *AccountService) DeleteUser(ctx context.Context, actor domain.Principal, targetID int64) error {
	if actor.UserID == targetID {
		return domain.Forbidden("cannot delete your own account from the admin panel")
	}
	return s.DeleteAccount(ctx, targetID)
}

// EnsureAdmin creates the admin account if no user owns the email. It reports whether it created one.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password string) (domain.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := s.users.ByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, false, domain.Internal("could not look up admin", err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, false, domain.Internal("could not hash admin password", err)
	}
	user, err := s.users.Create(ctx, domain.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Admin",
		LastName:     "Kviz",
		Role:         domain.RoleAdmin,
		CreatedAt:    s.clock().UTC(),
	})
	if err != nil {
		return domain.User{}, false, domain.Internal("could not create admin", err)
	}
	return user, true, nil
}

// wrapStoreErr keeps not-found errors and hides everything else.
func wrapStoreErr(err error, what string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound(what)
	}
	var de *domain.Error
	if errors.As(err, &de) && de.Kind != domain.KindInternal {
		return err
	}
	return domain.Internal("storage failure", err)
}
