// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/parley-tui/internal/model"
)

// MaxRecording caps a single voice capture.
const MaxRecording = 60 * time.Second

// ErrNoRecorder is returned when no capture command is configured.
var ErrNoRecorder = errors.New("media: no recorder configured")

// Clip is a finished voice capture.
type Clip struct {
	Data     []byte
	MIME     string
	Duration time.Duration
}

// Attachment encodes the clip as a voice attachment.
func (c *Clip) Attachment() *model.Attachment {
	return &model.Attachment{Kind: model.AttachmentVoice, Data: EncodeDataURL(c.MIME, c.Data)}
}

// Recorder captures audio in the background. Stopping early is done by
// cancelling ctx; done receives the clip, or nil if nothing was captured.
type Recorder interface {
	Record(ctx context.Context, max time.Duration, done func(*Clip))
}

// ExecRecorder records by running an external capture program. Args may
// contain {seconds} and {output}, replaced with the duration cap and the
// temporary output path.
type ExecRecorder struct {
	Command string
	Args    []string
	Format  string
	Log     zerolog.Logger
}

// DefaultExecRecorder uses ffmpeg's PulseAudio input.
func DefaultExecRecorder() *ExecRecorder {
	return &ExecRecorder{
		Command: "ffmpeg",
		Args:    []string{"-hide_banner", "-loglevel", "error", "-y", "-f", "pulse", "-i", "default", "-t", "{seconds}", "{output}"},
		Format:  "wav",
		Log:     zerolog.Nop(),
	}
}

// Record starts the capture and returns immediately.
func (r *ExecRecorder) Record(ctx context.Context, max time.Duration, done func(*Clip)) {
	go func() {
		clip, err := r.capture(ctx, max)
		if err != nil {
			r.Log.Warn().Err(err).Msg("voice capture failed")
			done(nil)
			return
		}
		done(clip)
	}()
}

func (r *ExecRecorder) capture(ctx context.Context, max time.Duration) (*Clip, error) {
	if r.Command == "" {
		return nil, ErrNoRecorder
	}
	if max <= 0 || max > MaxRecording {
		max = MaxRecording
	}
	format := r.Format
	if format == "" {
		format = "wav"
	}

	dir, err := os.MkdirTemp("", "parley-voice-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "clip."+format)

	args := make([]string, len(r.Args))
	repl := strings.NewReplacer("{seconds}", strconv.Itoa(int(max/time.Second)), "{output}", out)
	for i, a := range r.Args {
		args[i] = repl.Replace(a)
	}

	// Cancelling ctx interrupts the capture instead of killing it.
	runCtx, cancel := context.WithTimeout(context.Background(), max+5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(runCtx, r.Command, args...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 3 * time.Second

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", r.Command, err)
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	data, err := os.ReadFile(out)
	if err != nil || len(data) == 0 {
		if waitErr != nil {
			return nil, fmt.Errorf("%s: %w", r.Command, waitErr)
		}
		return nil, fmt.Errorf("%s produced no audio", r.Command)
	}
	if elapsed > max {
		elapsed = max
	}
	return &Clip{Data: data, MIME: DetectMIME(out, data), Duration: elapsed}, nil
}
