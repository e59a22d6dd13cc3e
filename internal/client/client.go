// Package client is the HTTP client for the relay API, shared by the
// desktop agent and the mobile correlator.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned for 404 responses where the caller distinguishes
// "absent" from "failed" (pairing, result polls).
var ErrNotFound = errors.New("client: not found")

// Client talks to one relay server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the given base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// RegisterResult is the server's answer to a desktop registration.
type RegisterResult struct {
	DesktopID   string `json:"desktopId"`
	SessionID   string `json:"sessionId"`
	PairingCode string `json:"pairingCode"`
	Degraded    bool   `json:"degraded"`
}

// Register creates a fresh desktop identity on the relay.
func (c *Client) Register(ctx context.Context) (*RegisterResult, error) {
	var out RegisterResult
	if err := c.postJSON(ctx, "/api/register", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PairResult is the session binding returned by a successful pair.
type PairResult struct {
	SessionID string `json:"sessionId"`
	DesktopID string `json:"desktopId"`
}

// Pair submits a pairing code. Returns ErrNotFound when no session holds it.
func (c *Client) Pair(ctx context.Context, code string) (*PairResult, error) {
	var out PairResult
	err := c.postJSON(ctx, "/api/pair", map[string]string{"pairingCode": code}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SessionInfo describes a desktop's session state.
type SessionInfo struct {
	SessionID       string `json:"sessionId"`
	MobileConnected bool   `json:"mobileConnected"`
	Degraded        bool   `json:"degraded"`
}

// GetSession fetches the session owned by a desktop.
func (c *Client) GetSession(ctx context.Context, desktopID string) (*SessionInfo, error) {
	var out SessionInfo
	if err := c.getJSON(ctx, "/api/sessions/"+desktopID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Command is one entry from the pending-command mailbox.
type Command struct {
	RequestID string    `json:"requestId"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

// Drain fetches all unprocessed commands for a desktop.
func (c *Client) Drain(ctx context.Context, desktopID string) ([]Command, error) {
	var out struct {
		Commands []Command `json:"commands"`
	}
	if err := c.getJSON(ctx, "/api/commands/"+desktopID, &out); err != nil {
		return nil, err
	}
	return out.Commands, nil
}

// MarkProcessed commits a command on the server. Idempotent.
func (c *Client) MarkProcessed(ctx context.Context, requestID string) error {
	return c.postJSON(ctx, "/api/commands/"+requestID+"/processed", nil, nil)
}

// UploadResult is the synchronous answer to a capture upload.
type UploadResult struct {
	PreviewDataURL string  `json:"previewDataUrl"`
	StorageID      string  `json:"storageId"`
	Analysis       string  `json:"analysis"`
	RequestID      string  `json:"requestId"`
	MessageID      string  `json:"messageId"`
	Duration       float64 `json:"duration"`
}

// UploadScreenshot sends PNG bytes to the relay.
func (c *Client) UploadScreenshot(ctx context.Context, desktopID, requestID string, data []byte) (*UploadResult, error) {
	fields := map[string]string{"desktopId": desktopID, "requestId": requestID}
	return c.upload(ctx, "/api/uploads/screenshot", "shot.png", data, fields)
}

// UploadVideo sends recorded bytes plus duration to the relay.
func (c *Client) UploadVideo(ctx context.Context, desktopID, requestID string, data []byte, mimeType string, duration float64) (*UploadResult, error) {
	fields := map[string]string{
		"desktopId": desktopID,
		"requestId": requestID,
		"mimeType":  mimeType,
		"duration":  strconv.FormatFloat(duration, 'f', -1, 64),
	}
	return c.upload(ctx, "/api/uploads/video", "recording.webm", data, fields)
}

// ChatAck is the server's answer to a sent chat message.
type ChatAck struct {
	MessageID string `json:"messageId"`
	RequestID string `json:"requestId"`
	Status    string `json:"status"`
}

// SendChat posts a user message, optionally requesting a screenshot.
func (c *Client) SendChat(ctx context.Context, sessionID, text string, requestScreenshot bool) (*ChatAck, error) {
	var out ChatAck
	body := map[string]any{
		"sessionId":         sessionID,
		"text":              text,
		"requestScreenshot": requestScreenshot,
	}
	if err := c.postJSON(ctx, "/api/chat", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Message is one chat transcript entry.
type Message struct {
	MessageID      string    `json:"messageId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	MediaType      string    `json:"mediaType"`
	MediaStorageID string    `json:"mediaStorageId"`
	MediaURL       string    `json:"mediaUrl"`
	RequestID      string    `json:"requestId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// History fetches a session's transcript, ascending by creation time.
func (c *Client) History(ctx context.Context, sessionID string) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.getJSON(ctx, "/api/chat/"+sessionID, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Result fetches the assistant message for a request. Returns ErrNotFound
// while the pipeline has not published one; polling is the expected use.
func (c *Client) Result(ctx context.Context, requestID string) (*Message, error) {
	var out Message
	if err := c.getJSON(ctx, "/api/results/"+requestID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordingAck is the server's answer to a recording control request.
type RecordingAck struct {
	Status    string `json:"status"`
	RequestID string `json:"requestId"`
}

// StartRecording enqueues a start-recording command for the session's desktop.
func (c *Client) StartRecording(ctx context.Context, sessionID string) (*RecordingAck, error) {
	var out RecordingAck
	if err := c.postJSON(ctx, "/api/recordings/start", map[string]string{"sessionId": sessionID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StopRecording enqueues a stop-recording command for the session's desktop.
func (c *Client) StopRecording(ctx context.Context, sessionID string) (*RecordingAck, error) {
	var out RecordingAck
	if err := c.postJSON(ctx, "/api/recordings/stop", map[string]string{"sessionId": sessionID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- plumbing ---

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("client: encode body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) upload(ctx context.Context, path, filename string, data []byte, fields map[string]string) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("client: build upload: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("client: build upload: %w", err)
	}
	for k, v := range fields {
		if v != "" {
			mw.WriteField(k, v)
		}
	}
	mw.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResult
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("client: %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
