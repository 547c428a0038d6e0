package api

import (
	"net/http"
	"strings"

	"github.com/book-expert/pollypress/internal/job"
	"github.com/book-expert/pollypress/internal/validate"
	"github.com/labstack/echo/v4"
)

// upload answers POST /upload with a presigned PUT URL for a fresh input key.
func (s *Server) upload(c echo.Context) error {
	if c.Request().ContentLength == 0 {
		s.log.Warn("Upload request without body")

		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgMissingBody})
	}

	var req UploadRequest

	err := c.Bind(&req)
	if err != nil {
		s.log.Warn("Upload request with malformed JSON: %v", err)

		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgInvalidJSON})
	}

	issues := s.validateUpload(req)
	if len(issues) > 0 {
		s.log.Warn("Invalid upload request: %s", validate.Summary(issues))

		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgInvalidBody, Details: issues})
	}

	fileID := s.newID()
	fileKey := job.InputKey(fileID, req.FileName)

	uploadURL, err := s.presigner.PresignPut(
		c.Request().Context(), s.storage.InputBucket, fileKey, req.FileType, s.storage.UploadURLExpiry(),
	)
	if err != nil {
		s.log.Error("Failed to presign upload for key %s in bucket %s: %v", fileKey, s.storage.InputBucket, err)

		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgUploadFailed})
	}

	s.log.Info("Issued upload URL for %s (%s)", fileKey, req.FileType)

	return c.JSON(http.StatusOK, UploadResponse{UploadURL: uploadURL, FileID: fileID, FileKey: fileKey})
}

func (s *Server) validateUpload(req UploadRequest) []validate.Issue {
	err := s.validate.Struct(req)
	if err != nil {
		return validate.Issues(err)
	}

	err = s.validate.Var(req.FileType, "oneof="+strings.Join(s.settings.AcceptedFileTypes, " "))
	if err != nil {
		issues := validate.Issues(err)
		for i := range issues {
			issues[i].Path = fieldFileType
		}

		return issues
	}

	return nil
}

// download answers GET /download with a presigned GET URL once the audio
// for fileKey exists, and 404 while it is still being produced.
func (s *Server) download(c echo.Context) error {
	fileKey := strings.TrimSpace(c.QueryParam(queryFileKey))
	if fileKey == "" {
		s.log.Warn("Download request without fileKey")

		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msgMissingFileKey})
	}

	ctx := c.Request().Context()
	outputKey := job.DownloadKey(fileKey)

	exists, err := s.store.Exists(ctx, s.storage.OutputBucket, outputKey)
	if err != nil {
		s.log.Error("Failed to check %s in bucket %s: %v", outputKey, s.storage.OutputBucket, err)

		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgDownloadFailed})
	}

	if !exists {
		s.log.Info("Audio %s for %s not ready yet", outputKey, fileKey)

		return c.JSON(http.StatusNotFound, ErrorResponse{Error: msgFileNotReady, Message: msgFileNotReadyDetail})
	}

	expiry := s.storage.DownloadURLExpiry()

	downloadURL, err := s.presigner.PresignGet(ctx, s.storage.OutputBucket, outputKey, expiry)
	if err != nil {
		s.log.Error("Failed to presign download for %s in bucket %s: %v", outputKey, s.storage.OutputBucket, err)

		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgDownloadFailed})
	}

	return c.JSON(http.StatusOK, DownloadResponse{
		DownloadURL: downloadURL,
		FileKey:     outputKey,
		ExpiresIn:   int(expiry.Seconds()),
	})
}
