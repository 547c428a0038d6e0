package api

import "github.com/book-expert/pollypress/internal/validate"

// UploadRequest is the body of POST /upload.
type UploadRequest struct {
	FileName string `json:"fileName" validate:"required"`
	FileType string `json:"fileType" validate:"required"`
}

// UploadResponse carries the presigned write URL for a new input object.
type UploadResponse struct {
	UploadURL string `json:"uploadUrl"`
	FileID    string `json:"fileId"`
	FileKey   string `json:"fileKey"`
}

// DownloadResponse carries the presigned read URL for a finished audio object.
type DownloadResponse struct {
	DownloadURL string `json:"downloadUrl"`
	FileKey     string `json:"fileKey"`
	ExpiresIn   int    `json:"expiresIn"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string           `json:"error"`
	Message string           `json:"message,omitempty"`
	Details []validate.Issue `json:"details,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Message string `json:"message"`
}
