package handler

import (
	"net/http"
	"strings"

	"roomhub/internal/app/chat"
	"roomhub/internal/pkg/auth/jwt"
	"roomhub/internal/pkg/errs"
	"roomhub/internal/pkg/logx"
	"roomhub/internal/pkg/req"
	"roomhub/internal/pkg/resp"
)

// multipartOverhead is the slack allowed on top of the file itself for form boundaries and headers.
const multipartOverhead = 64 << 10

// PresignUploadInput defines the JSON input structure for generating upload URL.
type PresignUploadInput struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	FileSize int64  `json:"fileSize"`
}

// PresignUploadResponse tells the client where to PUT the file and which key to attach.
type PresignUploadResponse struct {
	PresignedURL string `json:"presignedUrl"`
	FileKey      string `json:"fileKey"`
	FileName     string `json:"fileName"`
}

// attachmentAccess checks storage, room id and participation shared by every attachment endpoint.
func attachmentAccess(deps *AppDeps, r *http.Request) (string, error) {
	if deps.Storage == nil {
		return "", errs.NewError(errs.ErrStorageDisabled)
	}

	roomID, customErr := roomIDParam(r)
	if customErr != nil {
		return "", customErr
	}

	if err := deps.Manager.RequireParticipant(r.Context(), roomID, jwt.UserID(r)); err != nil {
		return "", err
	}
	return roomID, nil
}

// HandlePresignUploadURL creates an HTTP HandlerFunc to generate a time-limited,
// pre-signed URL for file upload, scoped to a specific room.
func HandlePresignUploadURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, err := attachmentAccess(deps, r)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		var input PresignUploadInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := chat.ValidateFileSize(input.FileSize); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := chat.ValidateFileType(input.FileName, input.MimeType); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		fileKey := chat.NewAttachmentKey(roomID, input.FileName)

		url, err := deps.Storage.PresignUpload(
			r.Context(),
			fileKey,
			input.MimeType,
			input.FileSize,
			chat.PresignedURLDuration,
		)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed).WithCause(err))
			return
		}

		resp.RespondSuccess(w, r, PresignUploadResponse{
			PresignedURL: url,
			FileKey:      fileKey,
			FileName:     input.FileName,
		})
	}
}

// HandleUploadAttachment accepts a multipart "file" field and stores it through the
// server, for clients that cannot PUT to object storage directly.
func HandleUploadAttachment(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, err := attachmentAccess(deps, r)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, chat.MaxAttachmentSize+multipartOverhead)
		file, header, err := r.FormFile("file")
		if err != nil {
			logx.Warn("Attachment upload without a readable file field", "room_id", roomID, "error", err.Error())
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams).WithCause(err))
			return
		}
		defer file.Close()

		mimeType := header.Header.Get("Content-Type")

		if customErr := chat.ValidateFileSize(header.Size); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := chat.ValidateFileType(header.Filename, mimeType); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		att := chat.Attachment{
			Key:      chat.NewAttachmentKey(roomID, header.Filename),
			Name:     header.Filename,
			MimeType: mimeType,
			Size:     header.Size,
		}

		if err := deps.Storage.Upload(r.Context(), att.Key, mimeType, file); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed).WithCause(err))
			return
		}

		resp.RespondStatus(w, r, http.StatusCreated, att)
	}
}

// HandlePresignDownloadURL creates an HTTP HandlerFunc to generate a time-limited,
// pre-signed URL for file download, scoped to a specific room.
func HandlePresignDownloadURL(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, err := attachmentAccess(deps, r)
		if err != nil {
			resp.RespondError(w, r, err)
			return
		}

		fileKey := r.URL.Query().Get("k")
		if fileKey == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if !strings.HasPrefix(fileKey, chat.KeyPrefix(roomID)) || strings.Contains(fileKey, "..") {
			resp.RespondError(w, r, errs.NewError(errs.ErrAttachmentKeyInvalid))
			return
		}

		url, err := deps.Storage.PresignDownload(
			r.Context(),
			fileKey,
			chat.PresignedURLDuration,
		)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed).WithCause(err))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}
