// Package pipeline turns raw capture bytes into a persisted, analyzed chat
// artifact. Upload and analysis are collaborator calls that may fail or run
// slow; neither is allowed to abort the chat turn.
package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hollandm/glimpse/internal/analyze"
	"github.com/hollandm/glimpse/internal/blob"
	"github.com/hollandm/glimpse/internal/chat"
	"github.com/hollandm/glimpse/internal/command"
	"github.com/hollandm/glimpse/internal/models"
	"github.com/hollandm/glimpse/internal/session"
	"gorm.io/gorm"
)

// Default budgets for the blob-upload race. The HTTP response returns with
// whatever storage reference is available when the budget expires; the
// upload itself continues in the background.
const (
	DefaultScreenshotUploadTimeout = 500 * time.Millisecond
	DefaultVideoUploadTimeout      = time.Second
)

// Pipeline publishes captured media into a session's conversation.
type Pipeline struct {
	DB       *gorm.DB
	Blobs    blob.Store
	Analyzer analyze.Analyzer
	Log      *slog.Logger

	ScreenshotUploadTimeout time.Duration
	VideoUploadTimeout      time.Duration

	wg sync.WaitGroup
}

// Input describes one captured artifact arriving from a desktop client.
type Input struct {
	DesktopID string
	RequestID string // empty for legacy agents; resolved by recency
	Data      []byte
	MimeType  string
	Prompt    string
	MediaType string  // models.MediaScreenshot or models.MediaVideo
	Duration  float64 // seconds, video only
}

// Result is returned synchronously to the capturing client.
type Result struct {
	MessageID      string
	RequestID      string
	PreviewDataURL string
	StorageID      string // empty while the upload is still in flight
	Analysis       string
	Duration       float64
}

type uploadOutcome struct {
	storageID string
	err       error
}

// Process runs the full publish protocol for one capture: race the blob
// upload against a short budget, analyze, correlate, and append the
// assistant message. Only input validation errors are returned; collaborator
// failures degrade the result instead.
func (p *Pipeline) Process(ctx context.Context, in Input) (*Result, error) {
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("pipeline: capture data is required")
	}
	if in.MediaType != models.MediaScreenshot && in.MediaType != models.MediaVideo {
		return nil, fmt.Errorf("pipeline: unknown media type %q", in.MediaType)
	}

	sess, err := session.ByDesktopID(p.DB, in.DesktopID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolve desktop: %w", err)
	}

	// Resolve the originating command. An explicit request ID is an exact
	// join; without one, fall back to the most-recent-unprocessed
	// heuristic.
	requestID := in.RequestID
	if requestID == "" {
		kind := models.KindScreenshot
		if in.MediaType == models.MediaVideo {
			kind = models.KindStopRecording
		}
		if cmd, err := command.ClaimLatest(p.DB, in.DesktopID, kind); err != nil {
			p.log().Warn("claim latest command", "desktop", in.DesktopID, "err", err)
		} else if cmd != nil {
			requestID = cmd.RequestID
		}
	}
	// Race the upload against its budget.
	uploadCh := make(chan uploadOutcome, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Detached from the request context: the upload outlives the
		// HTTP response when it misses the budget.
		id, err := p.Blobs.Put(context.Background(), in.Data, in.MimeType)
		uploadCh <- uploadOutcome{storageID: id, err: err}
	}()

	var storageID string
	settled := false
	timer := time.NewTimer(p.uploadTimeout(in.MediaType))
	select {
	case out := <-uploadCh:
		settled = true
		if out.err != nil {
			p.log().Warn("blob upload failed", "desktop", in.DesktopID, "err", out.err)
		} else {
			storageID = out.storageID
		}
	case <-timer.C:
	}
	timer.Stop()

	// Analysis runs regardless of upload state; a failure substitutes a
	// user-visible explanation rather than dropping the turn.
	analysis, err := p.Analyzer.Analyze(ctx, in.Data, in.MimeType, in.Prompt)
	if err != nil {
		p.log().Warn("analysis failed", "desktop", in.DesktopID, "err", err)
		analysis = fmt.Sprintf("The capture was received, but analysis failed: %v", err)
	}

	// The correlation target is the latest open user turn; the assistant
	// message lands in the same session either way, tagged with the
	// request for exact result lookup. A capture with no open turn at all
	// is worth flagging, since recency attribution has nothing to bind to.
	if open, err := chat.LatestUnanswered(p.DB, sess.ID); err != nil {
		p.log().Warn("find open turn", "session", sess.ID, "err", err)
	} else if open == nil && in.RequestID == "" {
		p.log().Warn("capture arrived with no open user turn", "session", sess.ID)
	}

	msg, err := chat.Append(p.DB, sess.ID, models.RoleAssistant, analysis, chat.AppendOpts{
		MediaType:      in.MediaType,
		MediaStorageID: storageID,
		RequestID:      requestID,
	})
	if err != nil {
		// The command stays pending: the desktop's next drain re-offers
		// it and the retry publishes the turn.
		return nil, fmt.Errorf("pipeline: publish: %w", err)
	}

	// Committed only now that the result is durably published.
	if requestID != "" {
		if err := command.MarkProcessed(p.DB, requestID); err != nil {
			p.log().Warn("mark processed", "request", requestID, "err", err)
		}
	}

	// Late upload: fill in the storage reference once it lands.
	if !settled {
		msgID := msg.ID
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			out := <-uploadCh
			if out.err != nil {
				p.log().Warn("background upload failed", "message", msgID, "err", out.err)
				return
			}
			if err := chat.SetStorageID(p.DB, msgID, out.storageID); err != nil {
				p.log().Warn("attach late storage id", "message", msgID, "err", err)
			}
		}()
	}

	return &Result{
		MessageID:      msg.ID,
		RequestID:      requestID,
		PreviewDataURL: previewDataURL(in.Data, in.MimeType),
		StorageID:      storageID,
		Analysis:       analysis,
		Duration:       in.Duration,
	}, nil
}

// Wait blocks until all background uploads have completed. Used by tests
// and graceful shutdown.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) uploadTimeout(mediaType string) time.Duration {
	if mediaType == models.MediaVideo {
		if p.VideoUploadTimeout > 0 {
			return p.VideoUploadTimeout
		}
		return DefaultVideoUploadTimeout
	}
	if p.ScreenshotUploadTimeout > 0 {
		return p.ScreenshotUploadTimeout
	}
	return DefaultScreenshotUploadTimeout
}

func (p *Pipeline) log() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

// previewDataURL encodes capture bytes for the synchronous HTTP response.
// It is never written to durable chat storage.
func previewDataURL(data []byte, mimeType string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}
