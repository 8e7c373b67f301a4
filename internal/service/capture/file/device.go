// Package file provides a capture device that records by copying a source clip
// into a session-owned file. It stands in for a microphone on headless hosts
// and in demos.
package file

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"heart-sound-session-service/internal/apperr"
	"heart-sound-session-service/internal/service/capture"
)

// Config holds file device configuration.
type Config struct {
	SourcePath string // clip replayed as the recording
	SpoolDir   string // where recordings are written; os.TempDir() when empty
}

// Device implements capture.Device on top of the filesystem.
type Device struct {
	cfg    Config
	logger zerolog.Logger

	mu        sync.Mutex
	granted   bool
	src       *os.File
	dst       *os.File
	startedAt time.Time
}

// New creates a file-backed capture device.
func New(cfg Config, logger zerolog.Logger) *Device {
	if cfg.SpoolDir == "" {
		cfg.SpoolDir = os.TempDir()
	}
	return &Device{
		cfg:    cfg,
		logger: logger.With().Str("component", "capture.file").Logger(),
	}
}

// RequestPermission grants access when the source clip is a readable file.
func (d *Device) RequestPermission(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, err := os.Stat(d.cfg.SourcePath)
	if err != nil || info.IsDir() {
		d.granted = false
		d.logger.Warn().Err(err).Str("source", d.cfg.SourcePath).Msg("Capture source not readable")
		return false, nil
	}
	d.granted = true
	return true, nil
}

// Start opens the source clip and a fresh spool file.
func (d *Device) Start(ctx context.Context) error {
	const op = "capture.file.Start"

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.granted {
		return apperr.E(apperr.CodeCaptureUnavailable, op, "microphone permission not granted", nil)
	}
	if d.src != nil {
		return apperr.E(apperr.CodeCaptureUnavailable, op, "device busy", nil)
	}

	src, err := os.Open(d.cfg.SourcePath)
	if err != nil {
		return apperr.E(apperr.CodeCaptureUnavailable, op, "cannot open capture source", err)
	}
	if err := os.MkdirAll(d.cfg.SpoolDir, 0o755); err != nil {
		src.Close()
		return apperr.E(apperr.CodeCaptureUnavailable, op, "cannot create spool directory", err)
	}
	dst, err := os.CreateTemp(d.cfg.SpoolDir, "heart_sound-*"+filepath.Ext(d.cfg.SourcePath))
	if err != nil {
		src.Close()
		return apperr.E(apperr.CodeCaptureUnavailable, op, "cannot create recording file", err)
	}

	d.src = src
	d.dst = dst
	d.startedAt = time.Now()

	d.logger.Debug().Str("recording", dst.Name()).Msg("Recording started")
	return nil
}

// Elapsed returns the duration of the active recording, or zero.
func (d *Device) Elapsed() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.src == nil {
		return 0
	}
	return time.Since(d.startedAt)
}

// Stop finalizes the recording. Both files are closed on every path.
func (d *Device) Stop() (capture.AudioRef, error) {
	const op = "capture.file.Stop"

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.src == nil {
		return capture.AudioRef{}, apperr.E(apperr.CodeCaptureStop, op, "no active recording", nil)
	}

	src, dst := d.src, d.dst
	d.src, d.dst = nil, nil

	_, copyErr := io.Copy(dst, src)
	src.Close()
	closeErr := dst.Close()

	if copyErr != nil || closeErr != nil {
		os.Remove(dst.Name())
		err := copyErr
		if err == nil {
			err = closeErr
		}
		return capture.AudioRef{}, apperr.E(apperr.CodeCaptureStop, op, "failed to finalize recording", err)
	}

	info, err := os.Stat(dst.Name())
	if err != nil {
		return capture.AudioRef{}, apperr.E(apperr.CodeCaptureStop, op, "recording vanished", err)
	}

	ref := capture.AudioRef{
		URI:       "file://" + dst.Name(),
		SizeBytes: info.Size(),
		MimeType:  mimeTypeFor(d.cfg.SourcePath),
	}
	d.logger.Debug().
		Str("uri", ref.URI).
		Int64("sizeBytes", ref.SizeBytes).
		Msg("Recording stopped")
	return ref, nil
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".aac":
		return "audio/aac"
	case ".mp3":
		return "audio/mpeg"
	default:
		return capture.DefaultMimeType
	}
}

// Discard removes a recording from the spool directory. References outside
// the spool directory are refused so a caller cannot delete arbitrary files.
func (d *Device) Discard(ref capture.AudioRef) error {
	const op = "capture.file.Discard"

	path := filepath.Clean(strings.TrimPrefix(ref.URI, "file://"))
	spool, err := filepath.Abs(d.cfg.SpoolDir)
	if err != nil {
		return apperr.E(apperr.CodeCaptureStop, op, "cannot resolve spool directory", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil || filepath.Dir(abs) != spool {
		return apperr.E(apperr.CodeCaptureStop, op, "recording is not in the spool directory", err)
	}

	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.E(apperr.CodeCaptureStop, op, "failed to remove recording", err)
	}
	d.logger.Debug().Str("uri", ref.URI).Msg("Recording discarded")
	return nil
}

var _ capture.Device = (*Device)(nil)
