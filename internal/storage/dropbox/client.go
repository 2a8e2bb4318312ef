// Package dropbox implements the RemoteClient contract over the Dropbox
// HTTP API v2. Metadata operations go to the api endpoint, content
// transfer to the content endpoint. Every API failure is translated into
// a structured error exactly once, here.
package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Mayank-software/dropboxfs/internal/config"
	"github.com/Mayank-software/dropboxfs/pkg/errors"
	"github.com/Mayank-software/dropboxfs/pkg/types"
)

const component = "dropbox"

// Client talks to the Dropbox API v2 on behalf of one account.
type Client struct {
	httpClient  *http.Client
	token       string
	apiBase     string
	contentBase string
	logger      *slog.Logger
}

// NewClient creates a Dropbox client from configuration.
func NewClient(cfg config.DropboxConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.NewError(errors.ErrCodeTokenMissing, "dropbox access token is required").
			WithComponent(component)
	}

	apiBase := cfg.APIEndpoint
	if apiBase == "" {
		apiBase = "https://api.dropboxapi.com"
	}
	contentBase := cfg.ContentEndpoint
	if contentBase == "" {
		contentBase = "https://content.dropboxapi.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		token:       cfg.Token,
		apiBase:     strings.TrimSuffix(apiBase, "/"),
		contentBase: strings.TrimSuffix(contentBase, "/"),
		logger:      slog.Default().With("component", component),
	}, nil
}

// entryResponse is the wire form of one metadata entry.
type entryResponse struct {
	Tag            string `json:".tag"`
	Name           string `json:"name"`
	PathDisplay    string `json:"path_display"`
	Size           int64  `json:"size"`
	ServerModified string `json:"server_modified"`
	Rev            string `json:"rev"`
}

func (e *entryResponse) toMetadata() types.Metadata {
	modified := time.Time{}
	if e.ServerModified != "" {
		if t, err := time.Parse(time.RFC3339, e.ServerModified); err == nil {
			modified = t
		}
	}
	return types.Metadata{
		Path:     e.PathDisplay,
		Name:     e.Name,
		IsDir:    e.Tag == "folder",
		Size:     e.Size,
		Modified: modified,
		Rev:      e.Rev,
	}
}

// apiErrorResponse is the wire form of an API error body.
type apiErrorResponse struct {
	ErrorSummary string `json:"error_summary"`
}

// GetMetadata returns the entry at path.
func (c *Client) GetMetadata(ctx context.Context, path string) (*types.Metadata, error) {
	var entry entryResponse
	err := c.apiCall(ctx, "get_metadata", "/2/files/get_metadata",
		map[string]interface{}{"path": path}, &entry)
	if err != nil {
		return nil, err
	}
	meta := entry.toMetadata()
	return &meta, nil
}

// ListFolder returns the immediate children of a folder. The listing is a
// single call.
// TODO: drive list_folder/continue off the has_more flag for folders past
// the provider's page size.
func (c *Client) ListFolder(ctx context.Context, path string) ([]types.Metadata, error) {
	var result struct {
		Entries []entryResponse `json:"entries"`
		HasMore bool            `json:"has_more"`
	}
	err := c.apiCall(ctx, "list_folder", "/2/files/list_folder",
		map[string]interface{}{"path": path}, &result)
	if err != nil {
		return nil, err
	}

	entries := make([]types.Metadata, 0, len(result.Entries))
	for i := range result.Entries {
		entries = append(entries, result.Entries[i].toMetadata())
	}
	return entries, nil
}

// Download returns the full content and current revision of a file.
func (c *Client) Download(ctx context.Context, path string) ([]byte, string, error) {
	arg, err := json.Marshal(map[string]interface{}{"path": path})
	if err != nil {
		return nil, "", errors.NewError(errors.ErrCodeInternalError, "failed to encode download arg").
			WithComponent(component).WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.contentBase+"/2/files/download", nil)
	if err != nil {
		return nil, "", errors.NewError(errors.ErrCodeInternalError, "failed to build request").
			WithComponent(component).WithOperation("download").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Dropbox-API-Arg", string(arg))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", c.networkError("download", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", c.translateStatus(resp, "download", path)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", c.networkError("download", path, err)
	}

	var entry entryResponse
	if raw := resp.Header.Get("Dropbox-API-Result"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, "", errors.NewError(errors.ErrCodeRemoteFailure, "malformed download result header").
				WithComponent(component).WithOperation("download").WithPath(path).WithCause(err)
		}
	}

	c.logger.Debug("downloaded file", "path", path, "size", len(data), "rev", entry.Rev)
	return data, entry.Rev, nil
}

// Upload replaces the full content of a file. A non-empty rev makes the
// write conditional on the remote entry still carrying that revision; an
// empty rev adds the file and fails on any existing entry.
func (c *Client) Upload(ctx context.Context, path string, data []byte, rev string) (string, error) {
	var mode interface{}
	if rev == "" {
		mode = "add"
	} else {
		mode = map[string]string{".tag": "update", "update": rev}
	}
	arg, err := json.Marshal(map[string]interface{}{
		"path":       path,
		"mode":       mode,
		"autorename": false,
		"mute":       true,
	})
	if err != nil {
		return "", errors.NewError(errors.ErrCodeInternalError, "failed to encode upload arg").
			WithComponent(component).WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.contentBase+"/2/files/upload", bytes.NewReader(data))
	if err != nil {
		return "", errors.NewError(errors.ErrCodeInternalError, "failed to build request").
			WithComponent(component).WithOperation("upload").WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Dropbox-API-Arg", string(arg))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.networkError("upload", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.translateStatus(resp, "upload", path)
	}

	var entry entryResponse
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return "", errors.NewError(errors.ErrCodeRemoteFailure, "malformed upload response").
			WithComponent(component).WithOperation("upload").WithPath(path).WithCause(err)
	}

	c.logger.Debug("uploaded file", "path", path, "size", len(data), "rev", entry.Rev)
	return entry.Rev, nil
}

// Move relocates an entry, folders recursively.
func (c *Client) Move(ctx context.Context, src, dst string) error {
	var result json.RawMessage
	return c.apiCall(ctx, "move", "/2/files/move_v2",
		map[string]interface{}{"from_path": src, "to_path": dst}, &result)
}

// Copy duplicates an entry server-side.
func (c *Client) Copy(ctx context.Context, src, dst string) error {
	var result json.RawMessage
	return c.apiCall(ctx, "copy", "/2/files/copy_v2",
		map[string]interface{}{"from_path": src, "to_path": dst}, &result)
}

// Delete removes an entry, folders recursively.
func (c *Client) Delete(ctx context.Context, path string) error {
	var result json.RawMessage
	return c.apiCall(ctx, "delete", "/2/files/delete_v2",
		map[string]interface{}{"path": path}, &result)
}

// CreateFolder creates a folder at path.
func (c *Client) CreateFolder(ctx context.Context, path string) error {
	var result json.RawMessage
	return c.apiCall(ctx, "create_folder", "/2/files/create_folder_v2",
		map[string]interface{}{"path": path}, &result)
}

// apiCall posts a JSON body to an api-endpoint route and decodes the
// response into out.
func (c *Client) apiCall(ctx context.Context, operation, route string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "failed to encode request body").
			WithComponent(component).WithOperation(operation).WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+route, bytes.NewReader(payload))
	if err != nil {
		return errors.NewError(errors.ErrCodeInternalError, "failed to build request").
			WithComponent(component).WithOperation(operation).WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.networkError(operation, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.translateStatus(resp, operation, "")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewError(errors.ErrCodeRemoteFailure, "malformed response body").
			WithComponent(component).WithOperation(operation).WithCause(err)
	}
	return nil
}

// translateStatus maps a non-200 API response to a structured error. The
// response body is consumed.
func (c *Client) translateStatus(resp *http.Response, operation, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	summary := ""
	var apiErr apiErrorResponse
	if json.Unmarshal(body, &apiErr) == nil {
		summary = apiErr.ErrorSummary
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return errors.NewError(errors.ErrCodeAuthenticationFailed, "access token rejected").
			WithComponent(component).WithOperation(operation)
	case http.StatusConflict:
		switch {
		case strings.Contains(summary, "not_found"):
			return errors.NotFound(path).WithComponent(component).WithOperation(operation)
		case strings.Contains(summary, "conflict"):
			return errors.Conflict(path).WithComponent(component).WithOperation(operation)
		}
	case http.StatusTooManyRequests:
		return errors.NewError(errors.ErrCodeQuotaExceeded, "rate limited by the API").
			WithComponent(component).WithOperation(operation).WithPath(path)
	}

	c.logger.Warn("unexpected API response",
		"operation", operation, "status", resp.StatusCode, "summary", summary)
	return errors.NewError(errors.ErrCodeRemoteFailure,
		fmt.Sprintf("API returned status %d", resp.StatusCode)).
		WithComponent(component).WithOperation(operation).WithPath(path).
		WithContext("error_summary", summary)
}

func (c *Client) networkError(operation, path string, err error) error {
	return errors.NewError(errors.ErrCodeNetworkError, "request failed").
		WithComponent(component).WithOperation(operation).WithPath(path).WithCause(err)
}
