package models

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type Role string

const (
	RoleStudent   Role = "student"
	RoleRecruiter Role = "recruiter"
)

// User mirrors the identity provider's profile. ID is the provider's uid.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(128)"`
	Email     string    `json:"email" gorm:"index"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	ImageURL  string    `json:"image_url"`
	Role      Role      `json:"role" gorm:"type:varchar(20);default:'student'"`
	School    string    `json:"school"`
	UserTypes string    `json:"user_types"` // comma-separated tags
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName is the name used in rendered notification text
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		if u.Email != "" {
			return u.Email
		}
		return "Someone"
	}
	return name
}

// Tags splits UserTypes into its members
func (u *User) Tags() []string {
	var tags []string
	for _, tag := range strings.Split(u.UserTypes, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// UserCompact is the public projection embedded in other responses
type UserCompact struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ImageURL  string `json:"image_url"`
	Role      Role   `json:"role"`
}

func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		ImageURL:  u.ImageURL,
		Role:      u.Role,
	}
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
