package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole represents the authorization role carried by a principal
type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

// DefaultMannerTemperature is the reputation score every new account starts with
const DefaultMannerTemperature = 36.5

// User represents a registered principal. Accounts are deactivated, never deleted.
type User struct {
	ID                uuid.UUID `json:"id" db:"id"`
	Username          string    `json:"username" db:"username"`
	Email             string    `json:"email" db:"email"`
	PasswordHash      string    `json:"-" db:"password_hash"`
	Nickname          string    `json:"nickname" db:"nickname"`
	PhoneNumber       string    `json:"phone_number,omitempty" db:"phone_number"`
	ProfileImageURL   string    `json:"profile_image_url,omitempty" db:"profile_image_url"`
	Location          string    `json:"location" db:"location"`
	MannerTemperature float64   `json:"manner_temperature" db:"manner_temperature"`
	Role              UserRole  `json:"role" db:"role"`
	IsActive          bool      `json:"is_active" db:"is_active"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// NewUser creates an active USER account with a fresh ID
func NewUser(username, email, passwordHash, nickname, location string) *User {
	now := time.Now().UTC()
	return &User{
		ID:                uuid.New(),
		Username:          username,
		Email:             email,
		PasswordHash:      passwordHash,
		Nickname:          nickname,
		Location:          location,
		MannerTemperature: DefaultMannerTemperature,
		Role:              RoleUser,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Roles returns the role set granted to the user
func (u *User) Roles() []string {
	return []string{string(u.Role)}
}

// Profile returns the public view of the user
func (u *User) Profile() *UserProfile {
	return &UserProfile{
		ID:                u.ID,
		Username:          u.Username,
		Email:             u.Email,
		Nickname:          u.Nickname,
		PhoneNumber:       u.PhoneNumber,
		ProfileImageURL:   u.ProfileImageURL,
		Location:          u.Location,
		MannerTemperature: u.MannerTemperature,
		Role:              u.Role,
		IsActive:          u.IsActive,
		CreatedAt:         u.CreatedAt,
	}
}

// UserProfile is a user without credential material, safe to return to clients
type UserProfile struct {
	ID                uuid.UUID `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	Nickname          string    `json:"nickname"`
	PhoneNumber       string    `json:"phone_number,omitempty"`
	ProfileImageURL   string    `json:"profile_image_url,omitempty"`
	Location          string    `json:"location"`
	MannerTemperature float64   `json:"manner_temperature"`
	Role              UserRole  `json:"role"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
}
