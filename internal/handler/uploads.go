package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/channel-account-api/internal/models"
	"github.com/noah-isme/channel-account-api/pkg/config"
	appErrors "github.com/noah-isme/channel-account-api/pkg/errors"
)

// UploadLimits bound the images accepted from multipart forms.
type UploadLimits struct {
	MaxBytes     int64
	AllowedTypes []string
}

// NewUploadLimits converts the media configuration.
func NewUploadLimits(cfg config.MediaConfig) UploadLimits {
	return UploadLimits{MaxBytes: cfg.MaxFileSizeBytes, AllowedTypes: cfg.AllowedMIMEs}
}

// openedFile is an image read from the request. Close releases the
// underlying multipart file.
type openedFile struct {
	*models.MediaFile
	file multipart.File
}

func (o *openedFile) media() *models.MediaFile {
	if o == nil {
		return nil
	}
	return o.MediaFile
}

func (o *openedFile) Close() {
	if o != nil && o.file != nil {
		_ = o.file.Close()
	}
}

// image reads the named form file. A missing file yields nil without error
// so the service decides whether the field is required.
func (l UploadLimits) image(c *gin.Context, field string) (*openedFile, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid multipart form")
	}

	if l.MaxBytes > 0 && header.Size > l.MaxBytes {
		return nil, appErrors.Validation(fmt.Sprintf("%s exceeds the maximum size", field), []appErrors.FieldError{
			{Field: field, Message: fmt.Sprintf("must be at most %d bytes", l.MaxBytes)},
		})
	}

	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Internal(err, "failed to read upload")
	}

	detected, err := mimetype.DetectReader(file)
	if err != nil {
		_ = file.Close()
		return nil, appErrors.Internal(err, "failed to read upload")
	}
	if !l.allowed(detected) {
		_ = file.Close()
		return nil, appErrors.Validation(fmt.Sprintf("%s must be an image", field), []appErrors.FieldError{
			{Field: field, Message: fmt.Sprintf("unsupported file type %s", detected.String())},
		})
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, appErrors.Internal(err, "failed to read upload")
	}

	return &openedFile{
		MediaFile: &models.MediaFile{
			Field:       field,
			Filename:    header.Filename,
			ContentType: strings.SplitN(detected.String(), ";", 2)[0],
			Size:        header.Size,
			Content:     file,
		},
		file: file,
	}, nil
}

func (l UploadLimits) allowed(detected *mimetype.MIME) bool {
	if len(l.AllowedTypes) == 0 {
		return strings.HasPrefix(detected.String(), "image/")
	}
	for _, t := range l.AllowedTypes {
		if detected.Is(t) {
			return true
		}
	}
	return false
}
