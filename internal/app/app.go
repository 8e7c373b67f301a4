package app

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"heart-sound-session-service/internal/config"
	"heart-sound-session-service/internal/events"
	"heart-sound-session-service/internal/observability/logging"
	"heart-sound-session-service/internal/observability/metrics"
	"heart-sound-session-service/internal/service/analysis"
	"heart-sound-session-service/internal/service/capture"
	"heart-sound-session-service/internal/service/capture/file"
	"heart-sound-session-service/internal/service/capture/mock"
	"heart-sound-session-service/internal/service/session"
	"heart-sound-session-service/internal/store"
)

// gRPC health service names.
const (
	HealthSession     = "heart.sound.Session"
	HealthBackend     = "heart.sound.AnalysisBackend"
	HealthReportCache = "heart.sound.ReportCache"
)

const cachePingTimeout = 2 * time.Second

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Sessions  *session.Manager
	Analysis  *analysis.Client
	Publisher *events.Publisher
	Reports   *store.ReportCache
	Health    *health.Server
	Metrics   *metrics.Metrics

	backendUp  atomic.Bool
	cacheUp    atomic.Bool
	healthStop context.CancelFunc
	healthDone sync.WaitGroup
}

// New constructs the Application and wires its components from cfg.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg:     cfg,
		Health:  health.NewServer(),
		Metrics: metrics.DefaultMetrics,
	}
	a.setupLogger()

	a.Analysis = analysis.New(analysisConfig(cfg.Backend), logging.WithComponent("analysis"), a.Metrics)
	a.Publisher = events.New(&events.Config{
		Enabled:   cfg.Kafka.Enabled,
		Brokers:   cfg.Kafka.Brokers,
		Topic:     cfg.Kafka.Topic,
		Principal: cfg.Kafka.Principal,
	})
	a.Reports = store.NewReportCache(store.Config{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
		TTL:       cfg.Redis.TTL,
	}, logging.WithComponent("store"), a.Metrics)

	a.Sessions = session.NewManager(
		sessionConfig(cfg.Session),
		a.newDevice(),
		a.Analysis,
		logging.WithComponent("session"),
		a.Metrics,
		a.Reports,
		a.Publisher,
	)
	a.Sessions.SetListener(func(s session.Snapshot) {
		if s.Closed {
			l := logging.WithSession(s.ID)
			l.Info().
				Str("lastStep", s.Step.String()).
				Str("outcome", string(s.Outcome)).
				Str("errorCode", s.ErrorCode).
				Msg("Session finished")
			return
		}
		l := logging.WithStep(s.ID, s.Step.String())
		l.Debug().
			Int("elapsedSeconds", s.ElapsedSeconds).
			Bool("paused", s.Paused).
			Str("outcome", string(s.Outcome)).
			Msg("Session state changed")
	})

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().
		Str("captureDriver", cfg.Capture.Driver).
		Str("backend", cfg.Backend.BaseURL).
		Bool("kafka", cfg.Kafka.Enabled).
		Bool("reportCache", a.Reports.Enabled()).
		Msg("Heart sound session service application created")
	return a
}

func analysisConfig(b config.BackendConfig) analysis.Config {
	c := analysis.DefaultConfig()
	c.BaseURL = b.BaseURL
	c.HealthPath = b.HealthPath
	c.AnalyzePath = b.AnalyzePath
	c.HealthTimeout = b.HealthTimeout
	c.RequestTimeout = b.RequestTimeout
	c.MaxAudioBytes = b.MaxAudioBytes
	c.MinAudioBytes = b.MinAudioBytes
	c.Device = b.Device
	c.RecordingType = b.RecordingType
	return c
}

func sessionConfig(s config.SessionConfig) session.Config {
	c := session.DefaultConfig()
	c.TickInterval = s.TickInterval
	c.MaxRecording = s.MaxRecording
	c.ReportTimeout = s.ReportTimeout
	return c
}

func (a *Application) newDevice() capture.Device {
	switch a.Cfg.Capture.Driver {
	case "mock":
		a.Logger.Warn().Msg("Using mock capture device")
		return mock.New()
	default:
		return file.New(file.Config{
			SourcePath: a.Cfg.Capture.SourcePath,
			SpoolDir:   a.Cfg.Capture.SpoolDir,
		}, logging.WithComponent("capture"))
	}
}

// setupLogger builds the application logger on top of the global one.
func (a *Application) setupLogger() {
	a.Logger = logging.Logger().With().
		Str("service", a.Cfg.Service.Name).
		Str("component", "application").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", os.Getenv("ENV")).
		Msg("Logger setup completed")
}

// Start marks the session service as serving and starts the periodic health check.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	a.StartupTime = time.Now().UTC()
	a.Health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	a.Health.SetServingStatus(HealthSession, grpc_health_v1.HealthCheckResponse_SERVING)

	ctx, cancel := context.WithCancel(context.Background())
	a.healthStop = cancel
	a.refreshHealth(ctx)
	a.healthDone.Add(1)
	go a.healthLoop(ctx, a.Cfg.Backend.HealthInterval)

	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Heart sound session service starting")

	return nil
}

func (a *Application) healthLoop(ctx context.Context, every time.Duration) {
	defer a.healthDone.Done()
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.refreshHealth(ctx)
		}
	}
}

// refreshHealth checks the analysis backend and the report cache and publishes
// both to gRPC health. Readiness follows the backend only; the cache is optional.
func (a *Application) refreshHealth(ctx context.Context) bool {
	up := a.Analysis.CheckHealth(ctx)
	if prev := a.backendUp.Swap(up); prev != up {
		a.Logger.Info().Bool("healthy", up).Msg("Analysis backend health changed")
	}
	a.Health.SetServingStatus(HealthBackend, servingStatus(up))

	if a.Reports.Enabled() {
		a.checkReportCache(ctx)
	}
	return up
}

func (a *Application) checkReportCache(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, cachePingTimeout)
	defer cancel()

	err := a.Reports.Ping(ctx)
	up := err == nil
	prev := a.cacheUp.Swap(up)
	switch {
	case !up:
		a.Logger.Warn().Err(err).Msg("Report cache unreachable")
	case !prev:
		a.Logger.Info().Msg("Report cache reachable")
	}
	a.Health.SetServingStatus(HealthReportCache, servingStatus(up))
}

func servingStatus(up bool) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if up {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}

// CheckBackend runs an on-demand health check.
func (a *Application) CheckBackend(ctx context.Context) bool {
	return a.refreshHealth(ctx)
}


// BackendReady reports the result of the last backend health check.
func (a *Application) BackendReady() bool {
	return a.backendUp.Load()
}

// Shutdown closes any live session and releases external clients.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	shutdownLogger.Info().Msg("Heart sound session service shutting down")

	a.Health.Shutdown()
	if a.healthStop != nil {
		a.healthStop()
		a.healthDone.Wait()
	}
	a.Sessions.Shutdown()
	if err := a.Publisher.Close(); err != nil {
		shutdownLogger.Error().Err(err).Msg("Failed to close publisher")
	}
	if err := a.Reports.Close(); err != nil {
		shutdownLogger.Error().Err(err).Msg("Failed to close report cache")
	}
}
