// Package capture defines the contract for audio capture devices used by a
// guided recording session.
package capture

import (
	"context"
	"time"
)

// DefaultMimeType is the content type of captured heart-sound audio.
const DefaultMimeType = "audio/mp4"

// AudioRef points at a finished recording.
type AudioRef struct {
	URI       string `json:"uri"`
	SizeBytes int64  `json:"sizeBytes"`
	MimeType  string `json:"mimeType"`
}

// Device is a microphone-like recorder. At most one recording is active at a time.
type Device interface {
	// RequestPermission asks for access to the device.
	RequestPermission(ctx context.Context) (bool, error)

	// Start begins a recording. Fails with CAPTURE_UNAVAILABLE when permission
	// is not granted or the device is busy.
	Start(ctx context.Context) error

	// Elapsed returns how long the active recording has been running, or zero
	// when idle.
	Elapsed() time.Duration

	// Stop ends the active recording and returns its reference. Fails with
	// CAPTURE_STOP_ERROR when nothing is recording. Underlying resources are
	// released on every path.
	Stop() (AudioRef, error)

	// Discard deletes a finished recording once its consumer is done with it.
	// Discarding a reference that is already gone is not an error.
	Discard(ref AudioRef) error
}
