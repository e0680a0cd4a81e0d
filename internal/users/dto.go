package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/0111v/projeto-faculdade/pkg/db/models"
	"github.com/0111v/projeto-faculdade/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	Role        enums.UserRole `json:"role"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new profile.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	Role         enums.UserRole
}

func FromModel(p *models.Profile) *UserDTO {
	if p == nil {
		return nil
	}
	return &UserDTO{
		ID:          p.ID,
		Email:       p.Email,
		Role:        p.Role,
		LastLoginAt: p.LastLoginAt,
		CreatedAt:   p.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.Profile {
	role := c.Role
	if !role.IsValid() {
		role = enums.UserRoleCustomer
	}
	return &models.Profile{
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		Role:         role,
	}
}
