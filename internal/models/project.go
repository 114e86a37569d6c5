package models

import "time"

const (
	ProjectStatusOpen   = "open"
	ProjectStatusClosed = "closed"
)

// Project is an entry on the connection hub board: someone looking for
// collaborators on a project.
type Project struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	OwnerID     uint      `json:"owner_id" gorm:"index;not null"`
	Title       string    `json:"title" gorm:"size:120"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags,omitempty" gorm:"serializer:json"`
	Status      string    `json:"status" gorm:"size:20;default:'open';index"`
	LikesCount  int64     `json:"likes_count" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectLike represents a like on a project
type ProjectLike struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ProjectID uint      `json:"project_id" gorm:"index;uniqueIndex:idx_project_user_like"`
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_project_user_like"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateProjectRequest struct {
	Title       string   `json:"title" validate:"required,min=3,max=120"`
	Description string   `json:"description" validate:"required,min=1,max=2000"`
	Tags        []string `json:"tags,omitempty" validate:"omitempty,max=10,dive,min=1,max=30"`
}

type UpdateProjectStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open closed"`
}
