// Package analysis implements the client for the remote heart-sound
// classification service: a liveness check followed by a bounded, cancellable
// multipart upload.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"heart-sound-session-service/internal/apperr"
	"heart-sound-session-service/internal/observability/metrics"
	"heart-sound-session-service/internal/service/capture"
)

// Upload form field names and fixed part headers.
const (
	FieldAudio    = "audio_file"
	FieldMetadata = "metadata"
	AudioFilename = "heart_sound.m4a"
	AudioMimeType = "audio/mp4"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// BreakerConfig holds circuit breaker settings for the upload path.
type BreakerConfig struct {
	MaxRequests  uint32        // trial requests allowed while half-open
	Interval     time.Duration // closed-state counter reset period
	Timeout      time.Duration // open-state duration before probing
	MinRequests  uint32        // requests seen before the ratio is considered
	FailureRatio float64       // trip when failures/requests reaches this
}

// Config holds AnalysisClient configuration.
type Config struct {
	BaseURL        string
	HealthPath     string
	AnalyzePath    string
	HealthTimeout  time.Duration
	RequestTimeout time.Duration
	MaxAudioBytes  int64 // uploads above this are rejected
	MinAudioBytes  int64 // uploads below this are sent with a warning
	Device         string
	Platform       string
	RecordingType  string
	Breaker        BreakerConfig
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:8000",
		HealthPath:     "/health",
		AnalyzePath:    "/analyze_heart_sound",
		HealthTimeout:  5 * time.Second,
		RequestTimeout: 30 * time.Second,
		MaxAudioBytes:  10 * 1024 * 1024,
		MinAudioBytes:  1024,
		Device:         "digital_stethoscope",
		Platform:       runtime.GOOS,
		RecordingType:  "heart_sound",
		Breaker: BreakerConfig{
			MaxRequests:  1,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			MinRequests:  3,
			FailureRatio: 0.6,
		},
	}
}

// Metadata is the JSON blob sent alongside the audio.
type Metadata struct {
	Device        string `json:"device"`
	RecordingType string `json:"recording_type"`
	Timestamp     string `json:"timestamp"`
	Platform      string `json:"platform"`
	FileSize      int64  `json:"file_size"`
	MimeType      string `json:"mime_type"`
}

// Client talks to the classification service.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a Client. Timeouts are enforced per call through contexts, so the
// underlying http.Client carries none.
func New(cfg Config, logger zerolog.Logger, m *metrics.Metrics) *Client {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{},
		logger:  logger.With().Str("component", "analysis").Logger(),
		metrics: m,
		now:     time.Now,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "analysis-backend",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.Breaker.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.Breaker.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			c.metrics.RecordBreakerState(int(to))
		},
	})
	return c
}

// CheckHealth reports whether the service is live. It never returns an error:
// network failures, timeouts and non-2xx responses all read as unhealthy.
func (c *Client) CheckHealth(ctx context.Context) bool {
	healthy := c.checkHealth(ctx)
	c.metrics.RecordHealthCheck(healthy)
	return healthy
}

func (c *Client) checkHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(c.cfg.HealthPath), nil)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to build health request")
		return false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Backend health check failed")
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("Backend health check returned non-2xx")
		return false
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		c.logger.Warn().Err(err).Msg("Backend health body unreadable")
		return false
	}
	return body.Status == "healthy"
}

// uploadOutcome carries results that must not count against the breaker.
type uploadOutcome struct {
	raw RawResponse
	err error
}

// Submit validates the recording, checks backend liveness and uploads the
// audio with its metadata. A 200 with an unparsable body returns an empty
// RawResponse together with a MALFORMED_RESPONSE error.
func (c *Client) Submit(ctx context.Context, ref capture.AudioRef) (RawResponse, error) {
	const op = "analysis.Submit"
	start := c.now()

	raw, err := c.submit(ctx, ref)

	outcome := "success"
	if err != nil {
		outcome = strings.ToLower(string(apperr.CodeOf(err)))
	}
	c.metrics.RecordAnalysis(outcome, c.now().Sub(start).Seconds())

	if err != nil {
		c.logger.Error().Err(err).Str("op", op).Str("uri", ref.URI).Msg("Analysis submission failed")
	}
	return raw, err
}

func (c *Client) submit(ctx context.Context, ref capture.AudioRef) (RawResponse, error) {
	const op = "analysis.Submit"

	if err := c.validate(ref.SizeBytes, false); err != nil {
		return nil, err
	}

	if !c.CheckHealth(ctx) {
		return nil, apperr.E(apperr.CodeBackendUnavailable, op, "analysis service is not available", nil)
	}

	audio, err := readAudio(ref.URI, c.cfg.MaxAudioBytes)
	if err != nil {
		return nil, apperr.E(apperr.CodeAnalysisRequestFailed, op, "cannot read recording", err)
	}
	if err := c.validate(int64(len(audio)), true); err != nil {
		return nil, err
	}

	meta := Metadata{
		Device:        c.cfg.Device,
		RecordingType: c.cfg.RecordingType,
		Timestamp:     c.now().UTC().Format(time.RFC3339),
		Platform:      c.cfg.Platform,
		FileSize:      int64(len(audio)),
		MimeType:      ref.MimeType,
	}
	if meta.MimeType == "" {
		meta.MimeType = AudioMimeType
	}

	body, contentType, err := buildForm(audio, meta)
	if err != nil {
		return nil, apperr.E(apperr.CodeAnalysisRequestFailed, op, "cannot build upload", err)
	}
	c.metrics.RecordUpload(int64(len(audio)))

	out, err := c.breaker.Execute(func() (interface{}, error) {
		raw, fault, err := c.upload(ctx, body, contentType)
		if fault {
			return nil, err
		}
		return uploadOutcome{raw: raw, err: err}, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apperr.E(apperr.CodeBackendUnavailable, op, "analysis service is failing, try again later", err)
	}
	if err != nil {
		return nil, err
	}
	res := out.(uploadOutcome)
	return res.raw, res.err
}

// validate applies the pre-flight size rules. Small payloads only log when warn is set.
func (c *Client) validate(size int64, warn bool) error {
	const op = "analysis.Submit"
	switch {
	case size <= 0:
		return apperr.E(apperr.CodeEmptyAudio, op, "recording is empty", nil)
	case c.cfg.MaxAudioBytes > 0 && size > c.cfg.MaxAudioBytes:
		return apperr.E(apperr.CodeAudioTooLarge, op,
			fmt.Sprintf("recording is %d bytes, limit is %d", size, c.cfg.MaxAudioBytes), nil)
	case warn && size < c.cfg.MinAudioBytes:
		c.logger.Warn().
			Int64("sizeBytes", size).
			Int64("minBytes", c.cfg.MinAudioBytes).
			Msg("Recording is unusually small, uploading anyway")
	}
	return nil
}

// upload performs the POST. fault reports whether the failure should count
// against the backend's circuit breaker.
func (c *Client) upload(ctx context.Context, body []byte, contentType string) (raw RawResponse, fault bool, err error) {
	const op = "analysis.Submit"

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.url(c.cfg.AnalyzePath), bytes.NewReader(body))
	if err != nil {
		return nil, false, apperr.E(apperr.CodeAnalysisRequestFailed, op, "cannot build request", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		fault, err := c.transportError(ctx, reqCtx, err)
		return nil, fault, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		fault, err := c.transportError(ctx, reqCtx, err)
		return nil, fault, err
	}

	if resp.StatusCode != http.StatusOK {
		msg := ClassifyError(payload, resp.StatusCode)
		return nil, resp.StatusCode >= 500,
			apperr.E(apperr.CodeAnalysisRequestFailed, op, msg, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	raw, err = ParseRawResponse(payload)
	if err != nil {
		c.logger.Warn().Err(err).Int("bodyBytes", len(payload)).Msg("Analysis response unparsable, using defaults")
		return RawResponse{}, false, apperr.E(apperr.CodeMalformedResponse, op, "analysis response could not be parsed", err)
	}
	return raw, false, nil
}

// transportError classifies a failed round trip. A fired request deadline is
// a timeout; a cancelled parent is passed through and does not count as a fault.
func (c *Client) transportError(parent, reqCtx context.Context, err error) (bool, error) {
	const op = "analysis.Submit"
	if parent.Err() != nil {
		return false, fmt.Errorf("%s: %w", op, parent.Err())
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return true, apperr.E(apperr.CodeAnalysisTimeout, op,
			fmt.Sprintf("analysis did not complete within %s", c.cfg.RequestTimeout), err)
	}
	return true, apperr.E(apperr.CodeAnalysisRequestFailed, op, "network error", err)
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

// buildForm renders the multipart body.
func buildForm(audio []byte, meta Metadata) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldAudio, AudioFilename))
	h.Set("Content-Type", AudioMimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", err
	}
	if err := w.WriteField(FieldMetadata, string(metaJSON)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// readAudio loads a recording referenced by a file:// URI or a plain path.
// At most limit+1 bytes are read so oversize files are still detected.
func readAudio(uri string, limit int64) ([]byte, error) {
	path := strings.TrimPrefix(uri, "file://")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if limit <= 0 {
		return io.ReadAll(f)
	}
	return io.ReadAll(io.LimitReader(f, limit+1))
}
