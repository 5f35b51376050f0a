package dto

import "github.com/noah-isme/channel-account-api/internal/models"

// RegisterRequest is the text part of the multipart registration form.
type RegisterRequest struct {
	FullName string `json:"fullName" form:"fullName" validate:"required,min=2,max=100"`
	Email    string `json:"email" form:"email" validate:"required,email,max=320"`
	Username string `json:"username" form:"username" validate:"required,username"`
	Password string `json:"password" form:"password" validate:"required,min=6,max=100"`
}

// LoginRequest accepts either identifier.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest carries the refresh token when the cookie is absent.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// DeleteAccountRequest re-confirms the password before deletion.
type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// ChangePasswordRequest replaces the current password.
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=100"`
}

// UpdateAccountRequest edits the profile details.
type UpdateAccountRequest struct {
	FullName string `json:"fullName" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=320"`
}

// SessionResponse is returned by login and refresh.
type SessionResponse struct {
	User         *models.AccountView `json:"user,omitempty"`
	AccessToken  string              `json:"accessToken"`
	RefreshToken string              `json:"refreshToken"`
}
