// Package client drives the pollypress upload, poll and download flow
// against the HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/pollypress/internal/api"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sethvargo/go-retry"
)

// Polling defaults.
const (
	DefaultPollInterval = 2000 * time.Millisecond
	DefaultMaxAttempts  = 30
)

const (
	apiUpload       = "/upload"
	apiDownload     = "/download"
	apiStatus       = "/status"
	headerCT        = "Content-Type"
	contentTypeJSON = "application/json"
	maxErrorBody    = 4096
)

var (
	// ErrFileNotReady is returned while the audio for a key is still being produced.
	ErrFileNotReady = errors.New("file not ready")
	// ErrProcessingTimeout is returned when the poll budget runs out.
	ErrProcessingTimeout = errors.New("audio processing is taking longer than expected, please try again later")
	// ErrRequestFailed is returned for any other non-2xx API answer.
	ErrRequestFailed = errors.New("request failed")
	// ErrUploadFailed is returned when the presigned upload is rejected by storage.
	ErrUploadFailed = errors.New("upload to storage failed")
)

// PollOptions controls PollForAudio.
type PollOptions struct {
	Interval    time.Duration
	MaxAttempts int
	// OnProgress is called before each attempt with the 1-based attempt number.
	OnProgress func(attempt, maxAttempts int)
}

// DefaultPollOptions polls every two seconds for about a minute.
func DefaultPollOptions() PollOptions {
	return PollOptions{Interval: DefaultPollInterval, MaxAttempts: DefaultMaxAttempts, OnProgress: nil}
}

// Client talks to the pollypress API and to the presigned storage URLs it hands out.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

// New creates a client for the API at baseURL.
func New(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// DetectFileType sniffs the MIME type of data without parameters such as charset.
func DetectFileType(data []byte) string {
	detected, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")

	return strings.TrimSpace(detected)
}

// Status calls GET /status and returns its message.
func (c *Client) Status(ctx context.Context) (string, error) {
	var response api.StatusResponse

	err := c.doJSON(ctx, http.MethodGet, c.baseURL+apiStatus, nil, &response)
	if err != nil {
		return "", err
	}

	return response.Message, nil
}

// RequestUpload asks the API for a presigned upload URL.
func (c *Client) RequestUpload(ctx context.Context, fileName, fileType string) (api.UploadResponse, error) {
	var response api.UploadResponse

	err := c.doJSON(ctx, http.MethodPost, c.baseURL+apiUpload,
		api.UploadRequest{FileName: fileName, FileType: fileType}, &response)
	if err != nil {
		return api.UploadResponse{}, fmt.Errorf("failed to request upload url: %w", err)
	}

	return response, nil
}

// UploadFile writes data to a presigned upload URL with the declared content type.
func (c *Client) UploadFile(ctx context.Context, uploadURL, fileType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}

	req.Header.Set(headerCT, fileType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return fmt.Errorf("%w: %s: %s", ErrUploadFailed, resp.Status, strings.TrimSpace(string(body)))
	}

	return nil
}

// RequestDownload asks the API for a presigned download URL. It returns
// ErrFileNotReady while the audio does not exist yet.
func (c *Client) RequestDownload(ctx context.Context, fileKey string) (api.DownloadResponse, error) {
	var response api.DownloadResponse

	target := c.baseURL + apiDownload + "?fileKey=" + url.QueryEscape(fileKey)

	err := c.doJSON(ctx, http.MethodGet, target, nil, &response)
	if err != nil {
		return api.DownloadResponse{}, err
	}

	return response, nil
}

// PollForAudio calls RequestDownload until the audio is ready, a terminal
// error occurs, the attempt budget runs out or ctx is cancelled.
func (c *Client) PollForAudio(ctx context.Context, fileKey string, opts PollOptions) (api.DownloadResponse, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}

	backoff := retry.WithMaxRetries(uint64(opts.MaxAttempts-1), retry.NewConstant(opts.Interval))

	var (
		response api.DownloadResponse
		attempt  int
	)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		if opts.OnProgress != nil {
			opts.OnProgress(attempt, opts.MaxAttempts)
		}

		ready, err := c.RequestDownload(ctx, fileKey)
		if errors.Is(err, ErrFileNotReady) {
			c.log.Info("Audio for %s not ready (attempt %d/%d)", fileKey, attempt, opts.MaxAttempts)

			return retry.RetryableError(err)
		}

		if err != nil {
			return err
		}

		response = ready

		return nil
	})

	switch {
	case err == nil:
		return response, nil
	case errors.Is(err, ErrFileNotReady):
		return api.DownloadResponse{}, fmt.Errorf("%w (%d attempts)", ErrProcessingTimeout, attempt)
	default:
		return api.DownloadResponse{}, fmt.Errorf("failed to poll for %s: %w", fileKey, err)
	}
}

// FetchAudio downloads the audio behind a presigned download URL.
func (c *Client) FetchAudio(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: download returned %s", ErrRequestFailed, resp.Status)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}

	return audio, nil
}

// Convert runs the whole flow for one document: request an upload URL,
// upload, then poll until the audio can be downloaded.
func (c *Client) Convert(
	ctx context.Context, fileName, fileType string, data []byte, opts PollOptions,
) (api.DownloadResponse, error) {
	upload, err := c.RequestUpload(ctx, fileName, fileType)
	if err != nil {
		return api.DownloadResponse{}, err
	}

	c.log.Info("Uploading %s as %s", fileName, upload.FileKey)

	err = c.UploadFile(ctx, upload.UploadURL, fileType, data)
	if err != nil {
		return api.DownloadResponse{}, err
	}

	return c.PollForAudio(ctx, upload.FileKey, opts)
}

func (c *Client) doJSON(ctx context.Context, method, target string, payload, out any) error {
	body := io.Reader(http.NoBody)

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}

		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set(headerCT, contentTypeJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && strings.HasPrefix(target, c.baseURL+apiDownload) {
		return ErrFileNotReady
	}

	if resp.StatusCode != http.StatusOK {
		return parseErrorResponse(resp)
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func parseErrorResponse(resp *http.Response) error {
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if readErr != nil {
		return fmt.Errorf("%w: %s", ErrRequestFailed, resp.Status)
	}

	var errorResp api.ErrorResponse

	err := json.Unmarshal(raw, &errorResp)
	if err == nil && errorResp.Error != "" {
		if len(errorResp.Details) > 0 {
			details := make([]string, 0, len(errorResp.Details))
			for _, issue := range errorResp.Details {
				details = append(details, issue.Path+": "+issue.Message)
			}

			return fmt.Errorf("%w: %s: %s (%s)", ErrRequestFailed, resp.Status, errorResp.Error, strings.Join(details, "; "))
		}

		return fmt.Errorf("%w: %s: %s", ErrRequestFailed, resp.Status, errorResp.Error)
	}

	return fmt.Errorf("%w: %s: %s", ErrRequestFailed, resp.Status, strings.TrimSpace(string(raw)))
}
