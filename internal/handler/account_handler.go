package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/channel-account-api/internal/dto"
	"github.com/noah-isme/channel-account-api/internal/models"
	appErrors "github.com/noah-isme/channel-account-api/pkg/errors"
	"github.com/noah-isme/channel-account-api/pkg/response"
)

type accountService interface {
	CurrentAccount(ctx context.Context, id string) (*models.Account, error)
	UpdateDetails(ctx context.Context, id string, req dto.UpdateAccountRequest) (*models.Account, error)
	UpdateAvatar(ctx context.Context, id string, file *models.MediaFile) (*models.Account, error)
	UpdateCoverImage(ctx context.Context, id string, file *models.MediaFile) (*models.Account, error)
	ChannelProfile(ctx context.Context, username, viewerID string) (*models.ChannelProfile, error)
	WatchHistory(ctx context.Context, id string) ([]models.WatchHistoryEntry, error)
}

// AccountHandler serves the profile endpoints of the authenticated account.
type AccountHandler struct {
	service accountService
	uploads UploadLimits
}

// NewAccountHandler constructs the handler.
func NewAccountHandler(svc accountService, uploads UploadLimits) *AccountHandler {
	return &AccountHandler{service: svc, uploads: uploads}
}

// Current godoc
// @Summary Current account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.ErrorEnvelope
// @Router /users/current-user [get]
func (h *AccountHandler) Current(c *gin.Context) {
	accountID, ok := currentAccountID(c)
	if !ok {
		return
	}

	account, err := h.service.CurrentAccount(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, account.View(), "User fetched successfully")
}

// Update godoc
// @Summary Update account details
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.UpdateAccountRequest true "Account details"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorEnvelope
// @Failure 409 {object} response.ErrorEnvelope
// @Router /users/update-account [patch]
func (h *AccountHandler) Update(c *gin.Context) {
	accountID, ok := currentAccountID(c)
	if !ok {
		return
	}

	var req dto.UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid account payload"))
		return
	}

	account, err := h.service.UpdateDetails(c.Request.Context(), accountID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, account.View(), "Account details updated successfully")
}

// Avatar godoc
// @Summary Replace avatar
// @Tags Accounts
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param avatar formData file true "Avatar image"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorEnvelope
// @Router /users/avatar [patch]
func (h *AccountHandler) Avatar(c *gin.Context) {
	h.replaceImage(c, "avatar", h.service.UpdateAvatar, "Avatar image updated successfully")
}

// Cover godoc
// @Summary Replace cover image
// @Tags Accounts
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param coverImage formData file true "Cover image"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.ErrorEnvelope
// @Router /users/cover-image [patch]
func (h *AccountHandler) Cover(c *gin.Context) {
	h.replaceImage(c, "coverImage", h.service.UpdateCoverImage, "Cover image updated successfully")
}

type imageUpdate func(ctx context.Context, id string, file *models.MediaFile) (*models.Account, error)

func (h *AccountHandler) replaceImage(c *gin.Context, field string, update imageUpdate, message string) {
	accountID, ok := currentAccountID(c)
	if !ok {
		return
	}

	file, err := h.uploads.image(c, field)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	account, err := update(c.Request.Context(), accountID, file.media())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, account.View(), message)
}

// Channel godoc
// @Summary Channel profile
// @Description Public profile of a channel with subscription counters relative to the caller
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param username path string true "Channel username"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.ErrorEnvelope
// @Router /users/channel/{username} [get]
func (h *AccountHandler) Channel(c *gin.Context) {
	accountID, ok := currentAccountID(c)
	if !ok {
		return
	}

	profile, err := h.service.ChannelProfile(c.Request.Context(), c.Param("username"), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, profile, "User channel fetched successfully")
}

// History godoc
// @Summary Watch history
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /users/history [get]
func (h *AccountHandler) History(c *gin.Context) {
	accountID, ok := currentAccountID(c)
	if !ok {
		return
	}

	entries, err := h.service.WatchHistory(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, entries, "Watch history fetched successfully")
}
