package models

import "io"

// MediaFile is an uploaded image on its way to the media store.
type MediaFile struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}
