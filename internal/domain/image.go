package domain

import (
	"fmt"
	"strings"
)

// MaxUploadBytes caps the size of a single source upload.
const MaxUploadBytes = 10 << 20

// UploadedImage is the record produced by a successful upload. It is created
// once, never mutated, and owned by exactly one session until that session
// closes.
type UploadedImage struct {
	URL    string `json:"url"`
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
}

// UploadFile is a raw file as handed in by the presentation layer, before any
// admission checks.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// CheckUploadFile runs the admission checks that gate an upload before any
// network call: the payload must claim an image MIME type and fit the size cap.
func CheckUploadFile(file UploadFile) error {
	contentType := strings.ToLower(strings.TrimSpace(file.ContentType))
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("%w: %s", ErrUnsupportedMedia, file.ContentType)
	}
	if int64(len(file.Data)) > MaxUploadBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(file.Data), int64(MaxUploadBytes))
	}
	return nil
}
