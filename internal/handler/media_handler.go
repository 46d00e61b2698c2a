package handler

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"pairgate/internal/pkg/auth/jwt"
	"pairgate/internal/pkg/errs"
	"pairgate/internal/pkg/logx"
	"pairgate/internal/pkg/randx"
	"pairgate/internal/pkg/req"
	"pairgate/internal/pkg/resp"
)

const (
	// PresignedURLDuration is how long an issued presigned URL stays valid.
	PresignedURLDuration = 15 * time.Minute

	// MaxMediaBytes is the maximum media upload size accepted for presigning.
	MaxMediaBytes = 25 << 20
)

// allowedMimePrefixes lists the media types clients may attach to chat messages.
var allowedMimePrefixes = []string{"image/", "video/", "audio/"}

// PresignUploadInput defines the JSON input structure for generating an upload URL.
type PresignUploadInput struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

func validMediaMimeType(mimeType string) bool {
	for _, prefix := range allowedMimePrefixes {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}

// HandlePresignMediaUpload creates an HTTP HandlerFunc to generate a time-limited,
// pre-signed URL for a chat media upload. The caller must present a valid token.
func HandlePresignMediaUpload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetIdentityFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input PresignUploadInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.FileName == "" || input.FileSize <= 0 || input.FileSize > MaxMediaBytes {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if !validMediaMimeType(input.MimeType) {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnsupportedMediaType))
			return
		}

		fileExt := strings.ToLower(filepath.Ext(input.FileName))
		fileKey := randx.MediaKey(fileExt)

		url, err := deps.StorageService.PresignUpload(
			r.Context(),
			fileKey,
			input.MimeType,
			input.FileSize,
			PresignedURLDuration,
		)

		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		logx.Info("Issued media upload URL", "user_id", identity.ID, "file_key", fileKey)

		data := map[string]any{
			"presignedUrl": url,
			"fileKey":      fileKey,
			"fileName":     input.FileName,
		}
		resp.RespondSuccess(w, r, data)
	}
}

// HandlePresignMediaDownload creates an HTTP HandlerFunc to generate a time-limited,
// pre-signed URL for downloading a previously uploaded media object.
func HandlePresignMediaDownload(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetIdentityFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		fileKey := r.URL.Query().Get("k")
		if fileKey == "" || !randx.IsValidMediaKey(fileKey) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if _, err := deps.StorageService.GetObjectMetadata(r.Context(), fileKey); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		url, err := deps.StorageService.PresignDownload(r.Context(), fileKey, PresignedURLDuration)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageFailed))
			return
		}

		http.Redirect(w, r, url, http.StatusFound)
	}
}
