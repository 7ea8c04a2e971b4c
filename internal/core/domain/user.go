package domain

import (
	"errors"
	"time"
)

// Role defines the authorization level of a user.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
	RoleUser       Role = "user"
)

var (
	ErrInvalidRole   = errors.New("invalid user role")
	ErrEmptyUsername = errors.New("username cannot be empty")
	ErrUnknownUser   = errors.New("unknown user")
)

// IsValid checks if the role is a recognized system role.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleTechnician, RoleUser:
		return true
	}
	return false
}

// Allows reports whether r satisfies required. Admin > Technician > User.
func (r Role) Allows(required Role) bool {
	return r.rank() >= required.rank()
}

func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleTechnician:
		return 2
	case RoleUser:
		return 1
	}
	return 0
}

// User is an account known to the user-role store.
// Credentials live outside this system; only identity and role are kept.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUser creates a new validated user instance.
func NewUser(id, username string, role Role) (*User, error) {
	u := &User{
		ID:        id,
		Username:  username,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// IsTechnician returns true if the user can work the technician alert queue.
func (u *User) IsTechnician() bool {
	return u.Role.Allows(RoleTechnician)
}

// Validate ensures the user entity is in a valid state.
func (u *User) Validate() error {
	if u.Username == "" {
		return ErrEmptyUsername
	}
	if !u.Role.IsValid() {
		return ErrInvalidRole
	}
	return nil
}
