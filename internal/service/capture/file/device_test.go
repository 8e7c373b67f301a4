package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"heart-sound-session-service/internal/apperr"
	"heart-sound-session-service/internal/service/capture"
)

func writeClip(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	return path
}

func TestDevice_RecordCycle(t *testing.T) {
	clip := writeClip(t, "clip.m4a", []byte("heartbeat-bytes"))
	spool := t.TempDir()
	d := New(Config{SourcePath: clip, SpoolDir: spool}, zerolog.Nop())

	granted, err := d.RequestPermission(context.Background())
	if err != nil || !granted {
		t.Fatalf("expected permission, got %v (%v)", granted, err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if d.Elapsed() < 0 {
		t.Error("expected non-negative elapsed time")
	}

	ref, err := d.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if ref.SizeBytes != int64(len("heartbeat-bytes")) {
		t.Errorf("expected size %d, got %d", len("heartbeat-bytes"), ref.SizeBytes)
	}
	if ref.MimeType != "audio/mp4" {
		t.Errorf("expected audio/mp4, got %s", ref.MimeType)
	}
	if !strings.HasPrefix(ref.URI, "file://"+spool) {
		t.Errorf("expected recording in spool dir, got %s", ref.URI)
	}
	if d.Elapsed() != 0 {
		t.Error("expected zero elapsed after stop")
	}
}

func TestDevice_StartWithoutPermission(t *testing.T) {
	d := New(Config{SourcePath: filepath.Join(t.TempDir(), "missing.m4a")}, zerolog.Nop())

	granted, _ := d.RequestPermission(context.Background())
	if granted {
		t.Fatal("expected permission to be denied for missing source")
	}

	err := d.Start(context.Background())
	if !apperr.IsCode(err, apperr.CodeCaptureUnavailable) {
		t.Errorf("expected CAPTURE_UNAVAILABLE, got %v", err)
	}
}

func TestDevice_StartWhileBusy(t *testing.T) {
	clip := writeClip(t, "clip.wav", []byte("x"))
	d := New(Config{SourcePath: clip, SpoolDir: t.TempDir()}, zerolog.Nop())
	d.RequestPermission(context.Background())

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer d.Stop()

	if err := d.Start(context.Background()); !apperr.IsCode(err, apperr.CodeCaptureUnavailable) {
		t.Errorf("expected busy device to fail with CAPTURE_UNAVAILABLE, got %v", err)
	}
}

func TestDevice_StopWithoutRecording(t *testing.T) {
	d := New(Config{SourcePath: "unused"}, zerolog.Nop())

	_, err := d.Stop()
	if !apperr.IsCode(err, apperr.CodeCaptureStop) {
		t.Errorf("expected CAPTURE_STOP_ERROR, got %v", err)
	}
}

func TestDevice_CanRecordAgainAfterStop(t *testing.T) {
	clip := writeClip(t, "clip.wav", []byte("abc"))
	d := New(Config{SourcePath: clip, SpoolDir: t.TempDir()}, zerolog.Nop())
	d.RequestPermission(context.Background())

	for i := 0; i < 2; i++ {
		if err := d.Start(context.Background()); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		ref, err := d.Stop()
		if err != nil {
			t.Fatalf("stop %d: %v", i, err)
		}
		if ref.MimeType != "audio/wav" {
			t.Errorf("expected audio/wav, got %s", ref.MimeType)
		}
	}
}

func TestMimeTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.m4a": "audio/mp4",
		"a.MP4": "audio/mp4",
		"a.wav": "audio/wav",
		"a.aac": "audio/aac",
		"a.mp3": "audio/mpeg",
		"a.raw": "audio/mp4",
		"noext": "audio/mp4",
	}
	for in, want := range tests {
		if got := mimeTypeFor(in); got != want {
			t.Errorf("mimeTypeFor(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestDevice_Discard(t *testing.T) {
	clip := writeClip(t, "clip.wav", []byte("lub-dub"))
	spool := t.TempDir()
	d := New(Config{SourcePath: clip, SpoolDir: spool}, zerolog.Nop())
	d.RequestPermission(context.Background())
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	ref, err := d.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}

	if err := d.Discard(ref); err != nil {
		t.Fatalf("discard: %v", err)
	}
	entries, _ := os.ReadDir(spool)
	if len(entries) != 0 {
		t.Errorf("expected empty spool dir, found %d files", len(entries))
	}

	if err := d.Discard(ref); err != nil {
		t.Errorf("discarding a removed recording should succeed, got %v", err)
	}
}

func TestDevice_DiscardOutsideSpool(t *testing.T) {
	clip := writeClip(t, "clip.wav", []byte("lub-dub"))
	d := New(Config{SourcePath: clip, SpoolDir: t.TempDir()}, zerolog.Nop())

	err := d.Discard(capture.AudioRef{URI: "file://" + clip})
	if !apperr.IsCode(err, apperr.CodeCaptureStop) {
		t.Errorf("expected CAPTURE_STOP_ERROR, got %v", err)
	}
	if _, err := os.Stat(clip); err != nil {
		t.Errorf("source clip should be untouched: %v", err)
	}
}
