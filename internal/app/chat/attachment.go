package chat

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"roomhub/internal/app/store"
	"roomhub/internal/pkg/errs"
	"roomhub/internal/pkg/randx"
)

const (
	// MaxAttachmentSizeMB is the maximum allowed file size in megabytes.
	MaxAttachmentSizeMB = 5

	// MaxAttachmentSize is the maximum allowed file size in bytes.
	MaxAttachmentSize = MaxAttachmentSizeMB * 1024 * 1024

	// MaxAttachmentsCount defines the maximum number of attachments allowed per message.
	MaxAttachmentsCount = 3

	// PresignedURLDuration is how long upload and download URLs stay valid.
	PresignedURLDuration = 5 * time.Minute
)

// Attachment references an object uploaded under the room's key prefix.
type Attachment = store.Attachment

// AllowedMIMETypes defines the set of permitted MIME types for file attachments.
var AllowedMIMETypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"image/gif":       {},
	"application/pdf": {},
	"text/plain":      {},
}

// ExtToMIME maps file extensions to their corresponding MIME types.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
}

// KeyPrefix is the object key prefix owned by a room.
func KeyPrefix(roomID string) string {
	return roomID + "/"
}

// NewAttachmentKey returns a fresh object key for fileName inside the room's prefix.
func NewAttachmentKey(roomID, fileName string) string {
	return fmt.Sprintf("%s%s%s", KeyPrefix(roomID), randx.RecordID(), strings.ToLower(filepath.Ext(fileName)))
}

// ValidateFileSize checks if the provided file size is within acceptable limits.
func ValidateFileSize(fileSize int64) *errs.CustomError {
	if fileSize <= 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}

	if fileSize > MaxAttachmentSize {
		return errs.NewError(errs.ErrFileSizeTooLarge)
	}

	return nil
}

// ValidateFileType checks that the MIME type is allowed and agrees with the file extension.
func ValidateFileType(fileName string, mimeType string) *errs.CustomError {
	lowerMimeType := strings.ToLower(mimeType)

	if _, ok := AllowedMIMETypes[lowerMimeType]; !ok {
		return errs.NewError(errs.ErrFileTypeInvalid)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	expectedMIME, ok := ExtToMIME[ext]
	if !ok || expectedMIME != lowerMimeType {
		return errs.NewError(errs.ErrFileTypeInvalid)
	}

	return nil
}

// ValidateAttachments checks a message's attachment list against the room it is posted to.
func ValidateAttachments(roomID string, attachments []Attachment) *errs.CustomError {
	if len(attachments) > MaxAttachmentsCount {
		return errs.NewError(errs.ErrAttachmentCountInvalid, MaxAttachmentsCount)
	}

	prefix := KeyPrefix(roomID)
	for _, a := range attachments {
		rest, ok := strings.CutPrefix(a.Key, prefix)
		if !ok || rest == "" || strings.Contains(rest, "..") {
			return errs.NewError(errs.ErrAttachmentKeyInvalid)
		}
		if err := ValidateFileType(a.Name, a.MimeType); err != nil {
			return err
		}
		if err := ValidateFileSize(a.Size); err != nil {
			return err
		}
	}
	return nil
}
