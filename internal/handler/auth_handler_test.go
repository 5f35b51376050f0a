package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/channel-account-api/internal/dto"
	"github.com/noah-isme/channel-account-api/internal/middleware"
	"github.com/noah-isme/channel-account-api/internal/models"
	"github.com/noah-isme/channel-account-api/internal/service"
	appErrors "github.com/noah-isme/channel-account-api/pkg/errors"
)

type sessionServiceMock struct {
	session      *service.Session
	err          error
	lastLogin    dto.LoginRequest
	lastToken    string
	lastDelete   dto.DeleteAccountRequest
	logoutCalled bool
}

func (m *sessionServiceMock) Login(ctx context.Context, req dto.LoginRequest) (*service.Session, error) {
	m.lastLogin = req
	return m.session, m.err
}

func (m *sessionServiceMock) Logout(ctx context.Context, accountID string) error {
	m.logoutCalled = true
	return m.err
}

func (m *sessionServiceMock) RefreshAccessToken(ctx context.Context, presented string) (*service.Session, error) {
	m.lastToken = presented
	return m.session, m.err
}

func (m *sessionServiceMock) Delete(ctx context.Context, accountID string, req dto.DeleteAccountRequest) error {
	m.lastDelete = req
	return m.err
}

type registrationServiceMock struct {
	account   *models.Account
	err       error
	avatar    *models.MediaFile
	cover     *models.MediaFile
	lastReq   dto.RegisterRequest
	avatarLen int
}

func (m *registrationServiceMock) Register(ctx context.Context, req dto.RegisterRequest, avatar, cover *models.MediaFile) (*models.Account, error) {
	m.lastReq = req
	m.avatar = avatar
	m.cover = cover
	if avatar != nil {
		buf := make([]byte, 1024)
		n, _ := avatar.Content.Read(buf)
		m.avatarLen = n
	}
	return m.account, m.err
}

func (m *registrationServiceMock) ChangePassword(ctx context.Context, id string, req dto.ChangePasswordRequest) error {
	return m.err
}

func testSession() *service.Session {
	expires := time.Now().Add(time.Hour)
	return &service.Session{
		Account: &models.Account{ID: "acc-1", Username: "alice", PasswordHash: "hash"},
		Tokens: models.TokenPair{
			Access:  models.IssuedToken{Value: "access-1", ExpiresAt: expires},
			Refresh: models.IssuedToken{Value: "refresh-1", ExpiresAt: expires},
		},
	}
}

func newTestAuthHandler(sessions *sessionServiceMock, accounts *registrationServiceMock) *AuthHandler {
	cookies := CookieSettings{Secure: true, Path: "/", SameSite: http.SameSiteLaxMode}
	uploads := UploadLimits{MaxBytes: 1024, AllowedTypes: []string{"image/png", "image/jpeg"}}
	return NewAuthHandler(sessions, accounts, cookies, uploads)
}

func TestAuthHandlerLoginSetsCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := &sessionServiceMock{session: testSession()}
	h := newTestAuthHandler(sessions, &registrationServiceMock{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", jsonBody(t, map[string]string{"username": "alice", "password": "secret1"}))
	req.Header.Set("Content-Type", "application/json")
	c := authedContext(w, req, "")

	h.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", sessions.lastLogin.Username)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "User logged In Successfully", env.Message)
	assert.NotContains(t, string(env.Data), "hash")

	access := cookieByName(w.Result().Cookies(), middleware.AccessTokenCookie)
	require.NotNil(t, access)
	assert.Equal(t, "access-1", access.Value)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.NotNil(t, cookieByName(w.Result().Cookies(), middleware.RefreshTokenCookie))
}

func TestAuthHandlerLoginPropagatesServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := &sessionServiceMock{err: appErrors.Clone(appErrors.ErrUnauthorized, "Invalid user credentials")}
	h := newTestAuthHandler(sessions, &registrationServiceMock{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", jsonBody(t, map[string]string{"email": "a@b.io", "password": "x"}))
	req.Header.Set("Content-Type", "application/json")
	h.Login(authedContext(w, req, ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Result().Cookies())
}

func TestAuthHandlerRefreshPrefersCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := &sessionServiceMock{session: testSession()}
	h := newTestAuthHandler(sessions, &registrationServiceMock{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/refresh-token", jsonBody(t, map[string]string{"refreshToken": "from-body"}))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: middleware.RefreshTokenCookie, Value: "from-cookie"})
	h.Refresh(authedContext(w, req, ""))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from-cookie", sessions.lastToken)
	assert.Equal(t, "Access token refreshed", decodeEnvelope(t, w).Message)
}

func TestAuthHandlerRefreshFallsBackToBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := &sessionServiceMock{session: testSession()}
	h := newTestAuthHandler(sessions, &registrationServiceMock{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/refresh-token", jsonBody(t, map[string]string{"refreshToken": "from-body"}))
	req.Header.Set("Content-Type", "application/json")
	h.Refresh(authedContext(w, req, ""))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "from-body", sessions.lastToken)
}

func TestAuthHandlerLogoutClearsCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := &sessionServiceMock{}
	h := newTestAuthHandler(sessions, &registrationServiceMock{})

	w := httptest.NewRecorder()
	h.Logout(authedContext(w, httptest.NewRequest(http.MethodPost, "/logout", nil), "acc-1"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, sessions.logoutCalled)
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		cookie := cookieByName(w.Result().Cookies(), name)
		require.NotNil(t, cookie, name)
		assert.Empty(t, cookie.Value)
		assert.Less(t, cookie.MaxAge, 0)
		assert.True(t, cookie.HttpOnly)
	}
}

func TestAuthHandlerLogoutRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := &sessionServiceMock{}
	h := newTestAuthHandler(sessions, &registrationServiceMock{})

	w := httptest.NewRecorder()
	h.Logout(authedContext(w, httptest.NewRequest(http.MethodPost, "/logout", nil), ""))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, sessions.logoutCalled)
}

func TestAuthHandlerRegisterPassesImages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	accounts := &registrationServiceMock{account: &models.Account{ID: "acc-1", Username: "alice", PasswordHash: "hash"}}
	h := newTestAuthHandler(&sessionServiceMock{}, accounts)

	body, contentType := multipartBody(t, map[string]string{
		"fullName": "Alice",
		"email":    "alice@example.com",
		"username": "alice",
		"password": "secret1",
	}, formFile{field: "avatar", filename: "me.png", content: pngBytes})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/register", body)
	req.Header.Set("Content-Type", contentType)
	h.Register(authedContext(w, req, ""))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "alice", accounts.lastReq.Username)
	require.NotNil(t, accounts.avatar)
	assert.Equal(t, "image/png", accounts.avatar.ContentType)
	assert.Equal(t, "me.png", accounts.avatar.Filename)
	assert.Equal(t, len(pngBytes), accounts.avatarLen)
	assert.Nil(t, accounts.cover)
	assert.NotContains(t, w.Body.String(), "hash")
}

func TestAuthHandlerRegisterRejectsOversizedAndNonImage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]formFile{
		"oversized": {field: "avatar", filename: "big.png", content: append(append([]byte{}, pngBytes...), make([]byte, 2048)...)},
		"not image": {field: "avatar", filename: "notes.png", content: []byte("plain text pretending to be an image")},
	}
	for name, file := range cases {
		t.Run(name, func(t *testing.T) {
			accounts := &registrationServiceMock{}
			h := newTestAuthHandler(&sessionServiceMock{}, accounts)
			body, contentType := multipartBody(t, map[string]string{"username": "alice"}, file)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/register", body)
			req.Header.Set("Content-Type", contentType)
			h.Register(authedContext(w, req, ""))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, accounts.lastReq.Username)
		})
	}
}

func TestAuthHandlerDeleteClearsCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := &sessionServiceMock{}
	h := newTestAuthHandler(sessions, &registrationServiceMock{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/delete", jsonBody(t, map[string]string{"password": "secret1"}))
	req.Header.Set("Content-Type", "application/json")
	h.Delete(authedContext(w, req, "acc-1"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "secret1", sessions.lastDelete.Password)
	assert.Len(t, w.Result().Cookies(), 2)
}

func TestParseSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteStrictMode, parseSameSite("Strict"))
	assert.Equal(t, http.SameSiteNoneMode, parseSameSite("none"))
	assert.Equal(t, http.SameSiteLaxMode, parseSameSite(""))
	assert.Equal(t, http.SameSiteDefaultMode, parseSameSite("bogus"))
}
