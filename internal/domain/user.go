package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User-specific validation errors.
var (
	// ErrEmptyEmail is returned when a user's email is empty.
	ErrEmptyEmail = errors.New("email cannot be empty")

	// ErrEmptyHashedPassword is returned when a user's hashed password is empty.
	ErrEmptyHashedPassword = errors.New("hashed password cannot be empty")
)

// User represents an account that owns tasks and authenticates against the
// HTTP API and the gateway.
type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUser creates a new User with the given email and pre-hashed password.
// Returns an error if validation fails.
func NewUser(email, hashedPassword string) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrInvalidID
	}

	if u.Email == "" {
		return ErrEmptyEmail
	}

	// A full RFC 5322 check belongs to the request validation layer; the
	// domain only rejects obviously malformed addresses.
	if !strings.Contains(u.Email, "@") {
		return ErrInvalidEmail
	}

	if u.HashedPassword == "" {
		return ErrEmptyHashedPassword
	}

	return nil
}
