package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NitrousOX/DRS---projekat/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolation = "23505"

const userColumns = `id, email, password_hash, first_name, last_name, birth_date, gender, country,
	street, street_number, profile_image, role, failed_logins, locked_until, created_at`

// recordFailedLoginSQL counts a failure in one statement. The WHERE clause skips accounts
// that are still locked, and an expired lock restarts the count at 1.
const recordFailedLoginSQL = `
UPDATE users SET
	failed_logins = CASE WHEN locked_until IS NOT NULL THEN 1 ELSE failed_logins + 1 END,
	locked_until = CASE
		WHEN (CASE WHEN locked_until IS NOT NULL THEN 1 ELSE failed_logins + 1 END) >= $2 THEN $3::timestamptz
		ELSE NULL
	END
WHERE id = $1 AND (locked_until IS NULL OR locked_until <= $4)
RETURNING failed_logins, locked_until`

// UserRepository is the credential store on Postgres via pgx.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u domain.User) (domain.User, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, first_name, last_name, birth_date, gender, country,
			street, street_number, profile_image, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		u.Email, u.PasswordHash, u.FirstName, u.LastName, u.BirthDate, u.Gender, u.Country,
		u.Street, u.StreetNumber, u.ProfileImage, string(u.Role),
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.User{}, domain.Conflict("email already registered")
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepository) ByID(ctx context.Context, id int64) (domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) one(ctx context.Context, query string, arg any) (domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.NotFound("user")
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) UpdateProfile(ctx context.Context, u domain.User) error {
	return r.exec(ctx, `
		UPDATE users SET first_name = $2, last_name = $3, birth_date = $4, gender = $5,
			country = $6, street = $7, street_number = $8
		WHERE id = $1`,
		u.ID, u.FirstName, u.LastName, u.BirthDate, u.Gender, u.Country, u.Street, u.StreetNumber)
}

func (r *UserRepository) SetProfileImage(ctx context.Context, id int64, url string) error {
	return r.exec(ctx, `UPDATE users SET profile_image = $2 WHERE id = $1`, id, url)
}

func (r *UserRepository) SetRole(ctx context.Context, id int64, role domain.Role) error {
	return r.exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, string(role))
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM users WHERE id = $1`, id)
}

func (r *UserRepository) RecordFailedLogin(ctx context.Context, id int64, now time.Time, policy domain.LockoutPolicy) (domain.LoginState, error) {
	var state domain.LoginState
	err := r.pool.QueryRow(ctx, recordFailedLoginSQL, id, policy.MaxFailedLogins, now.Add(policy.LockFor), now).
		Scan(&state.FailedLogins, &state.LockedUntil)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return state, fmt.Errorf("record failed login: %w", err)
	}
	// Either the user vanished or another request locked the account first.
	user, err := r.ByID(ctx, id)
	if err != nil {
		return state, err
	}
	return domain.LoginState{FailedLogins: user.FailedLogins, LockedUntil: user.LockedUntil}, nil
}

func (r *UserRepository) ResetFailedLogins(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE users SET failed_logins = 0, locked_until = NULL WHERE id = $1`, id)
}

func (r *UserRepository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("user")
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.BirthDate,
		&u.Gender, &u.Country, &u.Street, &u.StreetNumber, &u.ProfileImage, &role,
		&u.FailedLogins, &u.LockedUntil, &u.CreatedAt)
	if err != nil {
		return domain.User{}, err
	}
	parsed, ok := domain.ParseRole(role)
	if !ok {
		return domain.User{}, fmt.Errorf("user %d has unknown role %q", u.ID, role)
	}
	u.Role = parsed
	return u, nil
}
