package session

import (
	"sync"

	"github.com/rs/zerolog"

	"heart-sound-session-service/internal/apperr"
	"heart-sound-session-service/internal/observability/metrics"
	"heart-sound-session-service/internal/service/capture"
)

// Manager owns the single capture device and allows at most one active
// session on it at a time.
type Manager struct {
	cfg      Config
	device   capture.Device
	analyzer Analyzer
	sinks    []ReportSink
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	current *Session

	lmu      sync.RWMutex
	listener func(Snapshot)
}

// NewManager creates a session manager. A nil metrics uses the default registry.
func NewManager(cfg Config, device capture.Device, analyzer Analyzer, logger zerolog.Logger, m *metrics.Metrics, sinks ...ReportSink) *Manager {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Manager{
		cfg:      cfg,
		device:   device,
		analyzer: analyzer,
		sinks:    sinks,
		logger:   logger,
		metrics:  m,
	}
}

// SetListener registers a callback for every state change of every session.
func (m *Manager) SetListener(fn func(Snapshot)) {
	m.lmu.Lock()
	m.listener = fn
	m.lmu.Unlock()
}

func (m *Manager) notify(snap Snapshot) {
	m.lmu.RLock()
	fn := m.listener
	m.lmu.RUnlock()
	if fn != nil {
		fn(snap)
	}
}

// Open starts a new session at the welcome step. The listener is invoked
// without the manager lock held, so it may call back into the manager.
func (m *Manager) Open() (*Session, error) {
	m.mu.Lock()
	if m.current != nil && !m.current.IsClosed() {
		m.mu.Unlock()
		return nil, apperr.E(apperr.CodeSessionActive, "session.Open", "a session is already active", nil)
	}
	s := newSession(m.cfg, m.device, m.analyzer, m.sinks, m.logger, m.metrics, m.notify)
	m.current = s
	m.mu.Unlock()

	m.metrics.RecordSessionStart()
	s.logger.Info().Msg("Session opened")
	s.start()
	return s, nil
}

// Current returns the most recent session, closed or not.
func (m *Manager) Current() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, apperr.E(apperr.CodeNoSession, "session.Current", "no session has been started", nil)
	}
	return m.current, nil
}

// Cancel closes the current session.
func (m *Manager) Cancel() (Snapshot, error) {
	s, err := m.Current()
	if err != nil {
		return Snapshot{}, err
	}
	return s.Close(), nil
}

// Retry re-enters recording on a session paused by a capture failure.
func (m *Manager) Retry() (Snapshot, error) {
	s, err := m.Current()
	if err != nil {
		return Snapshot{}, err
	}
	return s.RetryCapture()
}

// Shutdown closes any live session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s != nil && !s.IsClosed() {
		s.logger.Info().Msg("Closing session on shutdown")
		s.Close()
	}
}
