// Package mobile gives a phone-side caller a synchronous-feeling API over
// the relay's asynchronous command pipeline: issue a command, then poll the
// request-scoped result endpoint until the assistant's answer appears.
package mobile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hollandm/glimpse/internal/client"
)

// RelayAPI is the slice of the relay client the correlator needs.
type RelayAPI interface {
	SendChat(ctx context.Context, sessionID, text string, requestScreenshot bool) (*client.ChatAck, error)
	Result(ctx context.Context, requestID string) (*client.Message, error)
	StartRecording(ctx context.Context, sessionID string) (*client.RecordingAck, error)
	StopRecording(ctx context.Context, sessionID string) (*client.RecordingAck, error)
}

const (
	// DefaultPollInterval is the gap between result polls.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultScreenshotAttempts bounds the screenshot result poll
	// (~20s at the default interval).
	DefaultScreenshotAttempts = 40

	// DefaultVideoAttempts bounds the video result poll. Recordings
	// take longer: the desktop recorder must flush buffered chunks
	// before any bytes exist to upload (~60s at the default interval).
	DefaultVideoAttempts = 120
)

// Correlator pairs outgoing commands with the chat messages the pipeline
// eventually publishes for them.
type Correlator struct {
	Relay     RelayAPI
	SessionID string

	// PollInterval and the attempt budgets fall back to the defaults
	// when zero.
	PollInterval       time.Duration
	ScreenshotAttempts int
	VideoAttempts      int

	Log *slog.Logger
}

// RequestScreenshot sends a user message that triggers a screenshot on the
// paired desktop, then waits for the assistant's analysis. A nil message
// with a nil error means the attempt budget ran out: the user message was
// still delivered, just without media, and the caller proceeds without it.
func (c *Correlator) RequestScreenshot(ctx context.Context, text string) (*client.Message, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	ack, err := c.Relay.SendChat(ctx, c.SessionID, text, true)
	if err != nil {
		return nil, fmt.Errorf("mobile: send chat: %w", err)
	}
	if ack.RequestID == "" {
		// The server could not enqueue a command (e.g. desktop never
		// registered); the message stands alone.
		return nil, nil
	}
	return c.await(ctx, ack.RequestID, c.screenshotAttempts())
}

// Send posts a plain chat message with no capture attached.
func (c *Correlator) Send(ctx context.Context, text string) (*client.ChatAck, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	ack, err := c.Relay.SendChat(ctx, c.SessionID, text, false)
	if err != nil {
		return nil, fmt.Errorf("mobile: send chat: %w", err)
	}
	return ack, nil
}

// StartRecording asks the paired desktop to begin a screen recording. The
// command is fire-and-forget; the result arrives on the stop leg.
func (c *Correlator) StartRecording(ctx context.Context) error {
	if err := c.validate(); err != nil {
		return err
	}
	if _, err := c.Relay.StartRecording(ctx, c.SessionID); err != nil {
		return fmt.Errorf("mobile: start recording: %w", err)
	}
	return nil
}

// StopRecording asks the desktop to finalize the recording and waits for
// the assistant's analysis of the uploaded video. The result message only
// exists once the desktop has stopped its recorder, flushed the buffered
// chunks and uploaded them, so a published result doubles as the
// recording-stopped confirmation. A nil message with a nil error means the
// attempt budget ran out.
func (c *Correlator) StopRecording(ctx context.Context) (*client.Message, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	ack, err := c.Relay.StopRecording(ctx, c.SessionID)
	if err != nil {
		return nil, fmt.Errorf("mobile: stop recording: %w", err)
	}
	if ack.RequestID == "" {
		return nil, nil
	}
	return c.await(ctx, ack.RequestID, c.videoAttempts())
}

// AwaitResult polls the result endpoint for an arbitrary request until it
// resolves or the attempt budget runs out.
func (c *Correlator) AwaitResult(ctx context.Context, requestID string, attempts int) (*client.Message, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	if attempts <= 0 {
		attempts = c.screenshotAttempts()
	}
	return c.await(ctx, requestID, attempts)
}

// await polls until the pipeline publishes a result for requestID. A 404
// is the expected in-flight state, not an error. Exhausting the budget is
// a silent fallback: (nil, nil).
func (c *Correlator) await(ctx context.Context, requestID string, attempts int) (*client.Message, error) {
	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	for i := 0; i < attempts; i++ {
		msg, err := c.Relay.Result(ctx, requestID)
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, client.ErrNotFound) {
			return nil, fmt.Errorf("mobile: poll result: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}

	c.log().Warn("result poll exhausted", "request", requestID, "attempts", attempts)
	return nil, nil
}

func (c *Correlator) validate() error {
	if c.Relay == nil {
		return fmt.Errorf("mobile: relay client is required")
	}
	if c.SessionID == "" {
		return fmt.Errorf("mobile: sessionID is required")
	}
	return nil
}

func (c *Correlator) screenshotAttempts() int {
	if c.ScreenshotAttempts > 0 {
		return c.ScreenshotAttempts
	}
	return DefaultScreenshotAttempts
}

func (c *Correlator) videoAttempts() int {
	if c.VideoAttempts > 0 {
		return c.VideoAttempts
	}
	return DefaultVideoAttempts
}

func (c *Correlator) log() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}
