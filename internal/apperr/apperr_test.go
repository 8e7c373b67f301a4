package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_Message(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"op message err", E(CodeEmptyAudio, "analysis.Submit", "audio is empty", base), "analysis.Submit: audio is empty: boom"},
		{"op message", E(CodeEmptyAudio, "analysis.Submit", "audio is empty", nil), "analysis.Submit: audio is empty"},
		{"op err", E(CodeEmptyAudio, "analysis.Submit", "", base), "analysis.Submit: boom"},
		{"message err", E(CodeEmptyAudio, "", "audio is empty", base), "audio is empty: boom"},
		{"message only", E(CodeEmptyAudio, "", "audio is empty", nil), "audio is empty"},
		{"err only", E(CodeEmptyAudio, "", "", base), "boom"},
		{"code only", E(CodeEmptyAudio, "", "", nil), "EMPTY_AUDIO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsCode_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("session: %w", E(CodeAnalysisTimeout, "analysis.Submit", "timed out", nil))

	if !IsCode(err, CodeAnalysisTimeout) {
		t.Error("expected IsCode to find wrapped code")
	}
	if IsCode(err, CodeEmptyAudio) {
		t.Error("expected IsCode to reject other codes")
	}
	if IsCode(errors.New("plain"), CodeAnalysisTimeout) {
		t.Error("expected IsCode to be false for plain errors")
	}
}

func TestCodeOf_And_MessageOf(t *testing.T) {
	err := E(CodeAnalysisRequestFailed, "analysis.Submit", "audio_file: field required", nil)

	if CodeOf(err) != CodeAnalysisRequestFailed {
		t.Errorf("expected ANALYSIS_REQUEST_FAILED, got %s", CodeOf(err))
	}
	if MessageOf(err) != "audio_file: field required" {
		t.Errorf("unexpected message %q", MessageOf(err))
	}
	if CodeOf(errors.New("plain")) != CodeInternal {
		t.Error("expected plain errors to map to INTERNAL")
	}
	if MessageOf(errors.New("plain")) != "plain" {
		t.Error("expected plain error text")
	}
	if MessageOf(nil) != "" {
		t.Error("expected empty message for nil")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeSessionActive, http.StatusConflict},
		{CodeInvalidState, http.StatusConflict},
		{CodeNoSession, http.StatusNotFound},
		{CodeNotFound, http.StatusNotFound},
		{CodeAudioTooLarge, http.StatusUnprocessableEntity},
		{CodeBackendUnavailable, http.StatusServiceUnavailable},
		{CodeAnalysisTimeout, http.StatusGatewayTimeout},
		{CodeAnalysisRequestFailed, http.StatusBadGateway},
		{CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := HTTPStatus(E(tt.code, "", "", nil)); got != tt.want {
				t.Errorf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
