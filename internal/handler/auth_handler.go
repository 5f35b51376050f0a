package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/channel-account-api/internal/dto"
	"github.com/noah-isme/channel-account-api/internal/middleware"
	"github.com/noah-isme/channel-account-api/internal/models"
	"github.com/noah-isme/channel-account-api/internal/service"
	appErrors "github.com/noah-isme/channel-account-api/pkg/errors"
	"github.com/noah-isme/channel-account-api/pkg/response"
)

type sessionService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*service.Session, error)
	Logout(ctx context.Context, accountID string) error
	RefreshAccessToken(ctx context.Context, presented string) (*service.Session, error)
	Delete(ctx context.Context, accountID string, req dto.DeleteAccountRequest) error
}

type registrationService interface {
	Register(ctx context.Context, req dto.RegisterRequest, avatar, cover *models.MediaFile) (*models.Account, error)
	ChangePassword(ctx context.Context, id string, req dto.ChangePasswordRequest) error
}

// AuthHandler wires HTTP endpoints to the session and registration flows.
type AuthHandler struct {
	sessions sessionService
	accounts registrationService
	cookies  CookieSettings
	uploads  UploadLimits
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(sessions sessionService, accounts registrationService, cookies CookieSettings, uploads UploadLimits) *AuthHandler {
	return &AuthHandler{sessions: sessions, accounts: accounts, cookies: cookies, uploads: uploads}
}

// Register godoc
// @Summary Register account
// @Description Create an account with a required avatar and an optional cover image
// @Tags Authentication
// @Accept multipart/form-data
// @Produce json
// @Param fullName formData string true "Full name"
// @Param email formData string true "Email"
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Param avatar formData file true "Avatar image"
// @Param coverImage formData file false "Cover image"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorEnvelope
// @Failure 409 {object} response.ErrorEnvelope
// @Router /users/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	avatar, err := h.uploads.image(c, "avatar")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer avatar.Close()

	cover, err := h.uploads.image(c, "coverImage")
	if err != nil {
		response.Error(c, err)
		return
	}
	defer cover.Close()

	account, err := h.accounts.Register(c.Request.Context(), req, avatar.media(), cover.media())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, account.View(), "User registered successfully")
}

// Login godoc
// @Summary Authenticate account
// @Description Authenticate by username or email and password. Tokens are set as HttpOnly cookies and echoed in the body.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorEnvelope
// @Failure 401 {object} response.ErrorEnvelope
// @Failure 404 {object} response.ErrorEnvelope
// @Router /users/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	session, err := h.sessions.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.setSession(c, session.Tokens)
	response.OK(c, sessionResponse(session), "User logged In Successfully")
}

// Logout godoc
// @Summary Logout
// @Description Revoke the refresh token and clear the session cookies
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.ErrorEnvelope
// @Router /users/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	accountID, ok := currentAccountID(c)
	if !ok {
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), accountID); err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.clearSession(c)
	response.OK(c, gin.H{}, "User logged Out")
}

// Refresh godoc
// @Summary Refresh access token
// @Description Exchange the refresh token, from the refreshToken cookie or the body, for a new token pair
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.RefreshRequest false "Refresh payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.ErrorEnvelope
// @Router /users/refresh-token [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if cookie, err := c.Cookie(middleware.RefreshTokenCookie); err == nil && cookie != "" {
		req.RefreshToken = cookie
	} else if !bindOptionalJSON(c, &req, "invalid refresh payload") {
		return
	}

	session, err := h.sessions.RefreshAccessToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.setSession(c, session.Tokens)
	response.OK(c, dto.SessionResponse{
		AccessToken:  session.Tokens.Access.Value,
		RefreshToken: session.Tokens.Refresh.Value,
	}, "Access token refreshed")
}

// ChangePassword godoc
// @Summary Change password
// @Description Replace the password after verifying the current one. Every refresh token is revoked.
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ChangePasswordRequest true "Password payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorEnvelope
// @Failure 401 {object} response.ErrorEnvelope
// @Router /users/change-password [post]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	accountID, ok := currentAccountID(c)
	if !ok {
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid password payload"))
		return
	}

	if err := h.accounts.ChangePassword(c.Request.Context(), accountID, req); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{}, "Password changed successfully")
}

// Delete godoc
// @Summary Delete account
// @Description Permanently delete the authenticated account after confirming its password
// @Tags Authentication
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.DeleteAccountRequest true "Delete payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.ErrorEnvelope
// @Failure 404 {object} response.ErrorEnvelope
// @Router /users/delete [delete]
func (h *AuthHandler) Delete(c *gin.Context) {
	accountID, ok := currentAccountID(c)
	if !ok {
		return
	}

	var req dto.DeleteAccountRequest
	if !bindOptionalJSON(c, &req, "invalid delete payload") {
		return
	}

	if err := h.sessions.Delete(c.Request.Context(), accountID, req); err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.clearSession(c)
	response.OK(c, nil, "User deleted successfully")
}

func sessionResponse(session *service.Session) dto.SessionResponse {
	return dto.SessionResponse{
		User:         session.Account.View(),
		AccessToken:  session.Tokens.Access.Value,
		RefreshToken: session.Tokens.Refresh.Value,
	}
}
