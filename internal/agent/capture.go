// Package agent runs on the desktop: it polls the relay's command mailbox
// and executes capture commands against the local screen.
package agent

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"sync"
	"time"
)

// FrameCapturer grabs a single PNG frame of the screen.
type FrameCapturer interface {
	CaptureFrame(ctx context.Context) ([]byte, error)
}

// Recorder captures a screen recording between Start and Stop. Stop flushes
// any buffered chunks and returns the finalized byte stream plus the
// recording duration in seconds.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) ([]byte, float64, error)
}

// ExecCapturer shells out to an external command that writes a PNG frame to
// stdout (e.g. "screencapture -x -t png -" on macOS, "grim -" on wlroots).
type ExecCapturer struct {
	Command string
}

// CaptureFrame runs the configured command and returns its stdout.
func (e *ExecCapturer) CaptureFrame(ctx context.Context) ([]byte, error) {
	if e.Command == "" {
		return nil, fmt.Errorf("agent: capture command is empty")
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", e.Command)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("agent: capture command: %w", err)
	}
	if out.Len() == 0 {
		return nil, fmt.Errorf("agent: capture command produced no output")
	}
	return out.Bytes(), nil
}

// StubCapturer produces a blank PNG frame. Used when no platform capture
// command is configured; keeps the relay protocol exercisable end to end.
type StubCapturer struct{}

// CaptureFrame encodes a single gray pixel.
func (StubCapturer) CaptureFrame(ctx context.Context) ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("agent: encode stub frame: %w", err)
	}
	return buf.Bytes(), nil
}

// StubRecorder simulates a platform recorder with proper double-start and
// double-stop guards.
type StubRecorder struct {
	mu        sync.Mutex
	running   bool
	startedAt time.Time
}

// Start begins a recording. Starting twice is an error.
func (r *StubRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("agent: recording already in progress")
	}
	r.running = true
	r.startedAt = time.Now()
	return nil
}

// Stop finalizes the recording. Stopping without a start is an error.
func (r *StubRecorder) Stop(ctx context.Context) ([]byte, float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil, 0, fmt.Errorf("agent: no recording in progress")
	}
	r.running = false
	duration := time.Since(r.startedAt).Seconds()
	return []byte("stub-recording"), duration, nil
}
