package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type User struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Name           string    `json:"name"`
	DisplayName    string    `json:"display_name"`
	Email          string    `json:"email" gorm:"uniqueIndex"`
	Age            int       `json:"age"`
	Password       string    `json:"-"`                                         // bcrypt hash
	FirebaseUID    *string   `json:"firebase_uid,omitempty" gorm:"uniqueIndex"` // set for social-login users
	AvatarURL      *string   `json:"avatar_url"`
	Bio            string    `json:"bio"`
	FollowersCount int64     `json:"followers_count" gorm:"not null;default:0"`
	FollowingCount int64     `json:"following_count" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserCompact is the author/actor shape embedded in feed, comment and notification responses
type UserCompact struct {
	ID          uint    `json:"id"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}

// Label returns the name shown to other users
func (u *User) Label() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

func (u *User) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, DisplayName: u.Label(), AvatarURL: u.AvatarURL}
}

type CreateLocalUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Age      int    `json:"age" validate:"min=0,max=150"`
	Password string `json:"password" validate:"required,min=8"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type FirebaseLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

type UpdateUserRequest struct {
	Name        string  `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	DisplayName string  `json:"display_name,omitempty" validate:"omitempty,min=1,max=50"`
	Bio         string  `json:"bio,omitempty" validate:"omitempty,max=300"`
	AvatarURL   *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Age         int     `json:"age,omitempty" validate:"min=0,max=150"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
