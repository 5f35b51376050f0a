package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/channel-account-api/internal/middleware"
	"github.com/noah-isme/channel-account-api/internal/models"
)

// pngBytes starts with the PNG signature so content sniffing reports image/png.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)

type formFile struct {
	field    string
	filename string
	content  []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(payload)
}

func authedContext(w *httptest.ResponseRecorder, req *http.Request, accountID string) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	if accountID != "" {
		claims := &models.TokenClaims{Kind: models.TokenKindAccess}
		claims.Subject = accountID
		c.Set(middleware.ContextUserKey, claims)
	}
	return c
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
