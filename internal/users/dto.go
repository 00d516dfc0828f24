package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/isaacklow/supermart-backend/pkg/db/models"
	"github.com/isaacklow/supermart-backend/pkg/enums"
)

// UserDTO is the wire representation of a user account. The password hash
// never leaves the service layer.
type UserDTO struct {
	ID        uuid.UUID      `json:"id"`
	Username  string         `json:"username"`
	Email     string         `json:"email"`
	Role      enums.UserRole `json:"role"`
	Address   string         `json:"address"`
	Contact   string         `json:"contact"`
	CreatedAt time.Time      `json:"created_at"`
}

// UpdateProfileInput carries the fields a user may change on their own account.
type UpdateProfileInput struct {
	Username *string
	Address  *string
	Contact  *string
}

func toDTO(user *models.User) *UserDTO {
	return &UserDTO{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		Address:   user.Address,
		Contact:   user.Contact,
		CreatedAt: user.CreatedAt,
	}
}
