package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hollandm/glimpse/internal/client"
	"github.com/hollandm/glimpse/internal/models"
)

// DefaultPollInterval is the mailbox poll interval when none is configured.
const DefaultPollInterval = 2 * time.Second

// RelayAPI is the slice of the relay client the poller needs.
type RelayAPI interface {
	Drain(ctx context.Context, desktopID string) ([]client.Command, error)
	MarkProcessed(ctx context.Context, requestID string) error
	UploadScreenshot(ctx context.Context, desktopID, requestID string, data []byte) (*client.UploadResult, error)
	UploadVideo(ctx context.Context, desktopID, requestID string, data []byte, mimeType string, duration float64) (*client.UploadResult, error)
}

// Poller drains the desktop's command mailbox on a fixed interval and
// executes each command. One tick's work completes before the next tick
// fires; there is never more than one capture in flight.
type Poller struct {
	Relay     RelayAPI
	DesktopID string
	Capturer  FrameCapturer
	Recorder  Recorder
	Interval  time.Duration
	Log       *slog.Logger

	// seen debounces commands within this process's lifetime so a drain
	// result straddling two ticks cannot double-fire. Only successful
	// executions are recorded; a failed capture stays eligible for the
	// retry-by-revisit on the next tick. The server-side processed flag
	// remains the cross-process source of truth.
	seen map[string]bool

	recording bool

	// pendingVideo holds a finalized recording whose upload failed, so
	// the stop command's retry-by-revisit can resend it instead of
	// hitting the stopped recorder again.
	pendingVideo         []byte
	pendingVideoDuration float64
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if p.Relay == nil {
		return fmt.Errorf("agent: relay client is required")
	}
	if p.DesktopID == "" {
		return fmt.Errorf("agent: desktopID is required")
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick drains the mailbox once and dispatches every eligible command.
func (p *Poller) Tick(ctx context.Context) {
	cmds, err := p.Relay.Drain(ctx, p.DesktopID)
	if err != nil {
		p.log().Warn("drain failed", "err", err)
		return
	}

	for _, cmd := range cmds {
		if p.seen[cmd.RequestID] {
			continue
		}
		if err := p.dispatch(ctx, cmd); err != nil {
			// Not marked processed: the next tick re-offers it.
			p.log().Warn("command failed", "request", cmd.RequestID, "kind", cmd.Kind, "err", err)
			continue
		}
		if p.seen == nil {
			p.seen = make(map[string]bool)
		}
		p.seen[cmd.RequestID] = true
	}
}

func (p *Poller) dispatch(ctx context.Context, cmd client.Command) error {
	switch models.CommandKind(cmd.Kind) {
	case models.KindScreenshot:
		return p.screenshot(ctx, cmd.RequestID)
	case models.KindStartRecording:
		return p.startRecording(ctx, cmd.RequestID)
	case models.KindStopRecording:
		return p.stopRecording(ctx, cmd.RequestID)
	default:
		// Unknown kinds are committed so the mailbox does not re-offer
		// them to a client that will never understand them.
		p.log().Warn("unknown command kind", "kind", cmd.Kind)
		return p.Relay.MarkProcessed(ctx, cmd.RequestID)
	}
}

func (p *Poller) screenshot(ctx context.Context, requestID string) error {
	data, err := p.Capturer.CaptureFrame(ctx)
	if err != nil {
		return fmt.Errorf("agent: capture frame: %w", err)
	}
	if _, err := p.Relay.UploadScreenshot(ctx, p.DesktopID, requestID, data); err != nil {
		return fmt.Errorf("agent: upload screenshot: %w", err)
	}
	// Committed only after the artifact reached the relay.
	if err := p.Relay.MarkProcessed(ctx, requestID); err != nil {
		return fmt.Errorf("agent: mark processed: %w", err)
	}
	return nil
}

func (p *Poller) startRecording(ctx context.Context, requestID string) error {
	if p.recording {
		// Double-start guard: the redundant trigger is committed so it
		// stops re-appearing, but no second recording begins.
		p.log().Warn("start-recording while already recording", "request", requestID)
		return p.Relay.MarkProcessed(ctx, requestID)
	}
	if err := p.Recorder.Start(ctx); err != nil {
		return fmt.Errorf("agent: start recording: %w", err)
	}
	p.recording = true
	if err := p.Relay.MarkProcessed(ctx, requestID); err != nil {
		return fmt.Errorf("agent: mark processed: %w", err)
	}
	return nil
}

func (p *Poller) stopRecording(ctx context.Context, requestID string) error {
	data := p.pendingVideo
	duration := p.pendingVideoDuration

	if data == nil {
		if !p.recording {
			p.log().Warn("stop-recording with no recording in progress", "request", requestID)
			return p.Relay.MarkProcessed(ctx, requestID)
		}
		var err error
		data, duration, err = p.Recorder.Stop(ctx)
		if err != nil {
			return fmt.Errorf("agent: stop recording: %w", err)
		}
		p.recording = false
	}

	if _, err := p.Relay.UploadVideo(ctx, p.DesktopID, requestID, data, "video/webm", duration); err != nil {
		// The recorder is already stopped; keep the bytes so the retry
		// resends them instead of stopping again.
		p.pendingVideo = data
		p.pendingVideoDuration = duration
		return fmt.Errorf("agent: upload video: %w", err)
	}
	p.pendingVideo = nil
	p.pendingVideoDuration = 0
	if err := p.Relay.MarkProcessed(ctx, requestID); err != nil {
		return fmt.Errorf("agent: mark processed: %w", err)
	}
	return nil
}

func (p *Poller) log() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}
