package httpapi

import (
	"time"

	"registra/internal/identity/models"
)

type createUserRequest struct {
	Email      string `json:"email"`
	NationalID string `json:"national_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Role       string `json:"role"`
	Login      string `json:"login,omitempty"`
	Password   string `json:"password,omitempty"`
}

type updateUserRequest struct {
	Email      *string `json:"email,omitempty"`
	NationalID *string `json:"national_id,omitempty"`
	Login      *string `json:"login,omitempty"`
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	Role       *string `json:"role,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

func (r updateUserRequest) patch() models.Patch {
	return models.Patch{
		Email:      r.Email,
		NationalID: r.NationalID,
		Login:      r.Login,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Role:       r.Role,
		Active:     r.Active,
	}
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

type userResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	NationalID string    `json:"national_id"`
	Login      string    `json:"login"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Role       string    `json:"role"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:         u.ID.String(),
		Email:      u.Email,
		NationalID: u.NationalID,
		Login:      u.Login,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       u.Role,
		Active:     u.Active,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

type listUsersResponse struct {
	Users []userResponse `json:"users"`
}

type resetPasswordResponse struct {
	Status      string    `json:"status"`
	Actor       string    `json:"actor"`
	CompletedAt time.Time `json:"completed_at"`
	Detail      string    `json:"detail,omitempty"`
}
