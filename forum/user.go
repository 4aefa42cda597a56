package forum

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Hash      []byte    `json:"-"`
	APIKey    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	if err != nil {
		return err
	}
	u.Hash = hash
	return nil
}

func (u *User) PasswordMatches(input string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(u.Hash, []byte(input))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			//invalid password
			return false, nil
		default:
			//unknown error
			return false, err
		}
	}

	return true, nil
}

// RegisterUser creates an account. Username/email collisions are a
// Conflict; password policy beyond non-emptiness belongs to the caller.
func (d *Database) RegisterUser(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" || password == "" {
		return nil, NewValidation("username, email and password are required")
	}

	user := &User{Username: username, Email: email, APIKey: uuid.NewString()}
	if err := user.SetPassword(password); err != nil {
		return nil, storeErr(err, "failed to hash password")
	}

	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	query := `INSERT INTO users (username, email, password_hash, api_key)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, created_at, updated_at`
	err := d.pool.QueryRow(ctx, query, user.Username, user.Email, user.Hash, user.APIKey).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, NewConflict("username or email already taken")
		}
		return nil, storeErr(err, "failed to create user")
	}
	return user, nil
}

// Authenticate returns the user when the email/password pair checks out,
// NotFound otherwise. The same kind covers unknown email and bad
// password so the response does not leak which one failed.
func (d *Database) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, NewValidation("email and password are required")
	}

	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	var user User
	query := `SELECT id, username, email, password_hash, api_key, created_at, updated_at
	          FROM users WHERE email = $1`
	err := d.pool.QueryRow(ctx, query, email).Scan(&user.ID, &user.Username, &user.Email,
		&user.Hash, &user.APIKey, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, NewNotFound("invalid credentials")
		}
		return nil, storeErr(err, "failed to load user")
	}

	ok, err := user.PasswordMatches(password)
	if err != nil {
		return nil, storeErr(err, "failed to verify password")
	}
	if !ok {
		return nil, NewNotFound("invalid credentials")
	}
	return &user, nil
}

func (d *Database) GetUserByID(ctx context.Context, id int64) (*User, error) {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	var user User
	query := `SELECT id, username, email, password_hash, api_key, created_at, updated_at
	          FROM users WHERE id = $1`
	err := d.pool.QueryRow(ctx, query, id).Scan(&user.ID, &user.Username, &user.Email,
		&user.Hash, &user.APIKey, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, NewNotFound("user not found")
		}
		return nil, storeErr(err, "failed to load user")
	}
	return &user, nil
}
