// Package mock provides a scriptable capture device for tests and demos.
package mock

import (
	"context"
	"sync"
	"time"

	"heart-sound-session-service/internal/apperr"
	"heart-sound-session-service/internal/service/capture"
)

// Device implements capture.Device with scripted behaviour and call counters.
type Device struct {
	mu sync.Mutex

	// Deny makes RequestPermission return false.
	Deny bool
	// StartErr, when set, is returned by Start.
	StartErr error
	// StopErr, when set, is returned by Stop after releasing the recording.
	StopErr error
	// Ref is returned by a successful Stop.
	Ref capture.AudioRef

	granted    bool
	active     bool
	startedAt  time.Time
	startCalls   int
	stopCalls    int
	discardCalls int
}

// New creates a mock device that grants permission and returns a small m4a reference.
func New() *Device {
	return &Device{
		Ref: capture.AudioRef{
			URI:       "file:///tmp/heart_sound.m4a",
			SizeBytes: 48_000,
			MimeType:  capture.DefaultMimeType,
		},
	}
}

func (d *Device) RequestPermission(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.granted = !d.Deny
	return d.granted, nil
}

func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startCalls++

	if d.StartErr != nil {
		return d.StartErr
	}
	if !d.granted {
		return apperr.E(apperr.CodeCaptureUnavailable, "mock.Start", "microphone permission not granted", nil)
	}
	if d.active {
		return apperr.E(apperr.CodeCaptureUnavailable, "mock.Start", "device busy", nil)
	}
	d.active = true
	d.startedAt = time.Now()
	return nil
}

func (d *Device) Elapsed() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return 0
	}
	return time.Since(d.startedAt)
}

func (d *Device) Stop() (capture.AudioRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopCalls++

	if !d.active {
		return capture.AudioRef{}, apperr.E(apperr.CodeCaptureStop, "mock.Stop", "no active recording", nil)
	}
	d.active = false
	if d.StopErr != nil {
		return capture.AudioRef{}, d.StopErr
	}
	return d.Ref, nil
}

func (d *Device) Discard(ref capture.AudioRef) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.discardCalls++
	return nil
}

// Active reports whether a recording is in progress.
func (d *Device) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// StartCalls returns how many times Start was called.
func (d *Device) StartCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startCalls
}

// StopCalls returns how many times Stop was called.
func (d *Device) StopCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopCalls
}

// DiscardCalls returns how many times Discard was called.
func (d *Device) DiscardCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.discardCalls
}

var _ capture.Device = (*Device)(nil)
