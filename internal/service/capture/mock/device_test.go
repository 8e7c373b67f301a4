package mock

import (
	"context"
	"errors"
	"testing"

	"heart-sound-session-service/internal/apperr"
)

func TestDevice_HappyPath(t *testing.T) {
	d := New()
	d.RequestPermission(context.Background())

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !d.Active() {
		t.Error("expected device to be active")
	}

	ref, err := d.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if ref.SizeBytes == 0 {
		t.Error("expected non-empty reference")
	}
	if d.Active() {
		t.Error("expected device to be released")
	}
	if d.StartCalls() != 1 || d.StopCalls() != 1 {
		t.Errorf("expected 1/1 calls, got %d/%d", d.StartCalls(), d.StopCalls())
	}

	if err := d.Discard(ref); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if d.DiscardCalls() != 1 {
		t.Errorf("expected 1 discard call, got %d", d.DiscardCalls())
	}
}

func TestDevice_Denied(t *testing.T) {
	d := New()
	d.Deny = true

	granted, _ := d.RequestPermission(context.Background())
	if granted {
		t.Fatal("expected denial")
	}
	if err := d.Start(context.Background()); !apperr.IsCode(err, apperr.CodeCaptureUnavailable) {
		t.Errorf("expected CAPTURE_UNAVAILABLE, got %v", err)
	}
}

func TestDevice_StopErrorStillReleases(t *testing.T) {
	d := New()
	d.StopErr = errors.New("encoder failed")
	d.RequestPermission(context.Background())
	d.Start(context.Background())

	if _, err := d.Stop(); err == nil {
		t.Fatal("expected stop error")
	}
	if d.Active() {
		t.Error("expected device to be released after failed stop")
	}
}

func TestDevice_StopWithoutStart(t *testing.T) {
	d := New()
	if _, err := d.Stop(); !apperr.IsCode(err, apperr.CodeCaptureStop) {
		t.Errorf("expected CAPTURE_STOP_ERROR, got %v", err)
	}
}
