package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
)

// UserRepository is an in-memory credential store. Every mutation holds the lock, which
// gives the same atomicity as the single-row updates of the SQL store.
type UserRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]domain.User
	byEmail map[string]int64
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[int64]domain.User),
		byEmail: make(map[string]int64),
	}
}

func (r *UserRepository) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; exists {
		return domain.User{}, domain.Conflict("email already registered")
	}
	r.nextID++
	user.ID = r.nextID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	r.byID[user.ID] = user
	r.byEmail[user.Email] = user.ID
	return user, nil
}

func (r *UserRepository) ByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return domain.User{}, domain.NotFound("user")
	}
	return r.byID[id], nil
}

func (r *UserRepository) ByID(_ context.Context, id int64) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return domain.User{}, domain.NotFound("user")
	}
	return user, nil
}

func (r *UserRepository) List(_ context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, user domain.User) error {
	return r.mutate(user.ID, func(u *domain.User) {
		u.FirstName = user.FirstName
		u.LastName = user.LastName
		u.BirthDate = user.BirthDate
		u.Gender = user.Gender
		u.Country = user.Country
		u.Street = user.Street
		u.StreetNumber = user.StreetNumber
	})
}

func (r *UserRepository) SetProfileImage(_ context.Context, id int64, url string) error {
	return r.mutate(id, func(u *domain.User) { u.ProfileImage = url })
}

func (r *UserRepository) SetRole(_ context.Context, id int64, role domain.Role) error {
	return r.mutate(id, func(u *domain.User) { u.Role = role })
}

func (r *UserRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return domain.NotFound("user")
	}
	delete(r.byID, id)
	delete(r.byEmail, user.Email)
	return nil
}

func (r *UserRepository) RecordFailedLogin(_ context.Context, id int64, now time.Time, policy domain.LockoutPolicy) (domain.LoginState, error) {
	var state domain.LoginState
	err := r.mutate(id, func(u *domain.User) {
		if u.LockedUntil != nil && now.Before(*u.LockedUntil) {
			// locked concurrently: the attempt is not counted
			state = domain.LoginState{FailedLogins: u.FailedLogins, LockedUntil: u.LockedUntil}
			return
		}
		if u.LockedUntil != nil {
			u.FailedLogins = 0
			u.LockedUntil = nil
		}
		u.FailedLogins++
		if u.FailedLogins >= policy.MaxFailedLogins {
			until := now.Add(policy.LockFor)
			u.LockedUntil = &until
		}
		state = domain.LoginState{FailedLogins: u.FailedLogins, LockedUntil: u.LockedUntil}
	})
	return state, err
}

func (r *UserRepository) ResetFailedLogins(_ context.Context, id int64) error {
	return r.mutate(id, func(u *domain.User) {
		u.FailedLogins = 0
		u.LockedUntil = nil
	})
}

func (r *UserRepository) mutate(id int64, fn func(u *domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return domain.NotFound("user")
	}
	fn(&user)
	r.byID[id] = user
	return nil
}
