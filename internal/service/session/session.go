package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"heart-sound-session-service/internal/apperr"
	"heart-sound-session-service/internal/models"
	"heart-sound-session-service/internal/observability/metrics"
	"heart-sound-session-service/internal/service/capture"
	"heart-sound-session-service/internal/service/normalize"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("session is closed")

// Snapshot is a point-in-time copy of session state.
type Snapshot struct {
	ID             string            `json:"id"`
	Step           Step              `json:"step"`
	Instruction    Instruction       `json:"instruction"`
	StepSeconds    float64           `json:"stepSeconds"`
	ElapsedSeconds int               `json:"elapsedSeconds"`
	Paused         bool              `json:"paused"`
	Closed         bool              `json:"closed"`
	Outcome        Outcome           `json:"outcome"`
	ErrorCode      string            `json:"errorCode,omitempty"`
	Error          string            `json:"error,omitempty"`
	Warning        string            `json:"warning,omitempty"`
	Audio          *capture.AudioRef `json:"audio,omitempty"`
	Result         *normalize.Result `json:"result,omitempty"`
	StartedAt      time.Time         `json:"startedAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Session is one run of the guided procedure.
//
// Step order is fixed:
//
//	welcome → device_check → positioning → listening → recording → analyzing → results → complete
//
// Rules:
//   - Each step advances after its instruction duration; analyzing advances when
//     the analysis returns.
//   - Entering recording starts the device and a counter tick; a hard ceiling
//     forces the move to analyzing.
//   - Entering analyzing stops the device and submits exactly once.
//   - Capture failures and analysis failures pause the session; the caller
//     retries or closes it.
//   - The recording is discarded once analysis has consumed it, or on close.
//   - Close releases the device and cancels every timer and in-flight request.
//     Nothing that completes afterwards touches session state.
type Session struct {
	mu sync.Mutex

	id       string
	cfg      Config
	device   capture.Device
	analyzer Analyzer
	sinks    []ReportSink
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	notify   func(Snapshot)

	ctx    context.Context
	cancel context.CancelFunc

	step      Step
	elapsed   int
	paused    bool
	closed    bool
	recording bool
	attempt   int
	outcome   Outcome
	err       error
	warning   string
	audio     *capture.AudioRef
	discarded bool
	result    *normalize.Result

	pending  []Snapshot
	flushing bool

	stepTimer    *time.Timer
	ceilingTimer *time.Timer
	tickStop     chan struct{}

	startedAt time.Time
	updatedAt time.Time
}

func newSession(cfg Config, device capture.Device, analyzer Analyzer, sinks []ReportSink,
	logger zerolog.Logger, m *metrics.Metrics, notify func(Snapshot)) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	now := time.Now().UTC()
	return &Session{
		id:        id,
		cfg:       cfg,
		device:    device,
		analyzer:  analyzer,
		sinks:     sinks,
		logger:    logger.With().Str("sessionId", id).Logger(),
		metrics:   m,
		notify:    notify,
		ctx:       ctx,
		cancel:    cancel,
		step:      StepWelcome,
		outcome:   OutcomeInProgress,
		startedAt: now,
		updatedAt: now,
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// IsClosed returns true once the session reached complete or was closed.
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// start enters the initial step.
func (s *Session) start() {
	s.mu.Lock()
	s.enterLocked(StepWelcome)
	s.emitLocked()
	s.mu.Unlock()
	s.flush()
}

// advanceFrom moves to the step after from. It is a no-op unless the session is
// still live, unpaused and in from, so late or duplicate timer firings are harmless.
func (s *Session) advanceFrom(from Step) {
	s.mu.Lock()
	if s.closed || s.paused || s.step != from {
		s.mu.Unlock()
		return
	}
	next, ok := from.Next()
	if !ok {
		s.mu.Unlock()
		return
	}
	s.enterLocked(next)
	s.emitLocked()
	s.mu.Unlock()
	s.flush()
}

// enterLocked runs the entry action of step.
func (s *Session) enterLocked(step Step) {
	s.stopTimerLocked()
	s.step = step
	s.updatedAt = time.Now().UTC()
	s.metrics.RecordStep(step.String())
	s.logger.Info().Str("step", step.String()).Msg("Entered step")

	switch step {
	case StepRecording:
		s.startRecordingLocked()
	case StepAnalyzing:
		s.beginAnalysisLocked()
	case StepComplete:
		if s.outcome == OutcomeInProgress {
			s.outcome = OutcomeCompleted
		}
		s.closeLocked()
	default:
		s.scheduleLocked(step)
	}
}

// scheduleLocked arms the step timer from the step's instruction.
func (s *Session) scheduleLocked(step Step) {
	d := s.cfg.Instructions[step].Duration
	if d <= 0 || s.paused {
		return
	}
	s.stepTimer = time.AfterFunc(d, func() { s.advanceFrom(step) })
}

func (s *Session) stopTimerLocked() {
	if s.stepTimer != nil {
		s.stepTimer.Stop()
		s.stepTimer = nil
	}
}

// startRecordingLocked acquires the device. Device calls are made under the
// session lock; they must not call back into the session.
func (s *Session) startRecordingLocked() {
	const op = "session.startRecording"

	granted, err := s.device.RequestPermission(s.ctx)
	if err != nil {
		s.captureFailedLocked(apperr.E(apperr.CodeCaptureUnavailable, op, "microphone permission request failed", err))
		return
	}
	if !granted {
		s.captureFailedLocked(apperr.E(apperr.CodeCaptureUnavailable, op, "microphone permission denied", nil))
		return
	}
	if err := s.device.Start(s.ctx); err != nil {
		if !apperr.IsCode(err, apperr.CodeCaptureUnavailable) {
			err = apperr.E(apperr.CodeCaptureUnavailable, op, "microphone unavailable", err)
		}
		s.captureFailedLocked(err)
		return
	}

	s.recording = true
	s.elapsed = 0

	if s.cfg.TickInterval > 0 {
		stop := make(chan struct{})
		s.tickStop = stop
		go s.tickLoop(time.NewTicker(s.cfg.TickInterval), stop)
	}
	if s.cfg.MaxRecording > 0 {
		s.ceilingTimer = time.AfterFunc(s.cfg.MaxRecording, func() {
			s.logger.Info().Msg("Recording ceiling reached")
			s.advanceFrom(StepRecording)
		})
	}
	s.scheduleLocked(StepRecording)
}

func (s *Session) tickLoop(t *time.Ticker, stop <-chan struct{}) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if !s.tick() {
				return
			}
		}
	}
}

// tick bumps the elapsed counter. It returns false once ticking should end.
func (s *Session) tick() bool {
	s.mu.Lock()
	if s.closed || !s.recording || s.step != StepRecording {
		s.mu.Unlock()
		return false
	}
	limit := s.cfg.maxTicks()
	if limit == 0 || s.elapsed < limit {
		s.elapsed++
	}
	reached := limit > 0 && s.elapsed >= limit
	s.emitLocked()
	s.mu.Unlock()

	s.flush()
	if reached {
		s.advanceFrom(StepRecording)
		return false
	}
	return true
}

// stopRecordingLocked stops the tick and ceiling and releases the device.
func (s *Session) stopRecordingLocked() (capture.AudioRef, error) {
	s.stopTickLocked()
	if !s.recording {
		return capture.AudioRef{}, apperr.E(apperr.CodeCaptureStop, "session.stopRecording", "no active recording", nil)
	}
	s.recording = false
	recorded := s.device.Elapsed()
	s.metrics.RecordRecording(recorded.Seconds())
	s.logger.Debug().Dur("recorded", recorded).Msg("Stopping capture")
	return s.device.Stop()
}

func (s *Session) stopTickLocked() {
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop = nil
	}
	if s.ceilingTimer != nil {
		s.ceilingTimer.Stop()
		s.ceilingTimer = nil
	}
}

func (s *Session) captureFailedLocked(err error) {
	s.paused = true
	s.outcome = OutcomeCaptureError
	s.err = err
	s.metrics.RecordCaptureError(string(apperr.CodeOf(err)))
	s.logger.Error().Err(err).Str("step", s.step.String()).Msg("Capture failed, session paused")
}

// beginAnalysisLocked stops capture and submits the recording once.
func (s *Session) beginAnalysisLocked() {
	ref, err := s.stopRecordingLocked()
	if err != nil {
		if !apperr.IsCode(err, apperr.CodeCaptureStop) {
			err = apperr.E(apperr.CodeCaptureStop, "session.stopRecording", "failed to finish recording", err)
		}
		s.captureFailedLocked(err)
		return
	}
	s.audio = &ref
	s.discarded = false
	s.attempt++

	s.logger.Info().
		Str("uri", ref.URI).
		Int64("sizeBytes", ref.SizeBytes).
		Int("elapsedSeconds", s.elapsed).
		Msg("Recording captured, submitting for analysis")

	go s.runAnalysis(s.ctx, s.attempt, ref)
}

func (s *Session) runAnalysis(ctx context.Context, attempt int, ref capture.AudioRef) {
	raw, err := s.analyzer.Submit(ctx, ref)

	s.mu.Lock()
	if s.attempt == attempt {
		s.discardAudioLocked()
	} else {
		s.discardLocked(ref)
	}
	if ctx.Err() != nil || s.closed || s.step != StepAnalyzing || s.attempt != attempt {
		s.mu.Unlock()
		s.logger.Warn().Err(err).Msg("Discarding analysis result for closed session")
		return
	}

	switch {
	case err == nil:
		s.setResultLocked(normalize.Normalize(raw))
	case apperr.IsCode(err, apperr.CodeMalformedResponse):
		s.warning = apperr.MessageOf(err)
		s.setResultLocked(normalize.Normalize(raw))
	default:
		s.paused = true
		s.outcome = OutcomeAnalysisFailed
		s.err = err
		s.logger.Error().Err(err).Str("code", string(apperr.CodeOf(err))).Msg("Analysis failed")
	}

	s.enterLocked(StepResults)
	s.emitLocked()
	s.mu.Unlock()
	s.flush()
}

func (s *Session) setResultLocked(res normalize.Result) {
	s.result = &res
	s.metrics.RecordRiskLevel(res.MedicalAnalysis.RiskLevel.String())
	s.logger.Info().
		Str("prediction", res.Classification.Prediction).
		Float64("confidence", res.Classification.Confidence).
		Str("riskLevel", res.MedicalAnalysis.RiskLevel.String()).
		Str("urgency", res.MedicalAnalysis.Urgency.String()).
		Msg("Analysis result ready")
}

// RetryCapture re-enters recording after a capture failure.
func (s *Session) RetryCapture() (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, apperr.E(apperr.CodeInvalidState, "session.RetryCapture", "session is closed", ErrSessionClosed)
	}
	if !s.paused || s.outcome != OutcomeCaptureError {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, apperr.E(apperr.CodeInvalidState, "session.RetryCapture", "session is not waiting on a capture retry", nil)
	}

	s.paused = false
	s.outcome = OutcomeInProgress
	s.err = nil
	s.logger.Info().Msg("Retrying capture")
	s.enterLocked(StepRecording)
	snap := s.snapshotLocked()
	s.emitLocked()
	s.mu.Unlock()

	s.flush()
	return snap, nil
}

// Close ends the session from any step. It is idempotent. A failure outcome
// already recorded is kept; otherwise the session is marked cancelled.
func (s *Session) Close() Snapshot {
	s.mu.Lock()
	if s.closed {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	if s.outcome == OutcomeInProgress {
		s.outcome = OutcomeCancelled
	}
	s.closeLocked()
	snap := s.snapshotLocked()
	s.emitLocked()
	s.mu.Unlock()

	s.logger.Info().Str("outcome", string(snap.Outcome)).Msg("Session closed")
	s.flush()
	return snap
}

// closeLocked cancels all pending work and releases the device.
func (s *Session) closeLocked() {
	s.stopTimerLocked()
	if s.recording {
		ref, err := s.stopRecordingLocked()
		if err != nil {
			s.logger.Warn().Err(err).Msg("Device stop failed during close")
		} else {
			s.discardLocked(ref)
		}
	}
	s.discardAudioLocked()
	s.stopTickLocked()
	s.cancel()
	s.closed = true
	s.updatedAt = time.Now().UTC()
}

// discardAudioLocked releases the submitted recording once. The reference stays
// on the snapshot for the report.
func (s *Session) discardAudioLocked() {
	if s.audio == nil || s.discarded {
		return
	}
	s.discarded = true
	s.discardLocked(*s.audio)
}

func (s *Session) discardLocked(ref capture.AudioRef) {
	if err := s.device.Discard(ref); err != nil {
		s.logger.Warn().Err(err).Str("uri", ref.URI).Msg("Failed to discard recording")
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:             s.id,
		Step:           s.step,
		Instruction:    s.cfg.Instructions[s.step],
		StepSeconds:    s.cfg.Instructions[s.step].Duration.Seconds(),
		ElapsedSeconds: s.elapsed,
		Paused:         s.paused,
		Closed:         s.closed,
		Outcome:        s.outcome,
		Warning:        s.warning,
		Audio:          s.audio,
		Result:         s.result,
		StartedAt:      s.startedAt,
		UpdatedAt:      s.updatedAt,
	}
	if s.err != nil {
		snap.ErrorCode = string(apperr.CodeOf(s.err))
		snap.Error = apperr.MessageOf(s.err)
	}
	return snap
}

// emitLocked queues the current state for the listener.
func (s *Session) emitLocked() {
	s.pending = append(s.pending, s.snapshotLocked())
}

// flush drains queued snapshots outside the lock. Only one goroutine drains at
// a time so the listener observes states in the order they were reached.
func (s *Session) flush() {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	for len(s.pending) > 0 {
		batch := s.pending
		s.pending = nil
		s.mu.Unlock()
		for _, snap := range batch {
			s.publish(snap)
		}
		s.mu.Lock()
	}
	s.flushing = false
	s.mu.Unlock()
}

// publish notifies the listener and, for the closing snapshot, delivers the
// session report.
func (s *Session) publish(snap Snapshot) {
	if s.notify != nil {
		s.notify(snap)
	}
	if snap.Closed {
		s.metrics.RecordSessionEnd(string(snap.Outcome))
		s.deliver(Report(snap))
	}
}

func (s *Session) deliver(report models.SessionReport) {
	for _, sink := range s.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ReportTimeout)
		if err := sink.Deliver(ctx, report); err != nil {
			s.logger.Error().Err(err).Msg("Failed to deliver session report")
		}
		cancel()
	}
}

// Report converts a closed session snapshot into its event payload.
func Report(snap Snapshot) models.SessionReport {
	outcome := string(snap.Outcome)
	return models.SessionReport{
		EventType:        models.EventTypeFor(outcome),
		SessionID:        snap.ID,
		Outcome:          outcome,
		LastStep:         snap.Step.String(),
		ErrorCode:        snap.ErrorCode,
		ErrorMessage:     snap.Error,
		RecordingSeconds: snap.ElapsedSeconds,
		Audio:            snap.Audio,
		Result:           snap.Result,
		StartedAt:        snap.StartedAt.UnixMilli(),
		FinishedAt:       snap.UpdatedAt.UnixMilli(),
	}
}
