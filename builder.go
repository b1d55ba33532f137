package ownid

import (
	"errors"
	"log/slog"

	"github.com/ownid/ownid-go/internal/audit"
	"github.com/ownid/ownid-go/internal/logger"
)

// Builder assembles a [Client]. A Builder can be used for exactly one Build.
type Builder struct {
	config Config

	sdk       SDK
	backend   Backend
	presenter Presenter
	auditSink AuditSink
	log       *slog.Logger
	onCancel  func(error)

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSDK sets the SDK the client launches flows through. Required.
func (b *Builder) WithSDK(sdk SDK) *Builder {
	b.sdk = sdk
	return b
}

// WithBackend sets the authentication backend. Required.
func (b *Builder) WithBackend(backend Backend) *Builder {
	b.backend = backend
	return b
}

// WithPresenter sets the host UI surface. Defaults to [NoOpPresenter].
func (b *Builder) WithPresenter(p Presenter) *Builder {
	b.presenter = p
	return b
}

// WithAuditSink sets the sink audit events are delivered to when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger overrides the logger built from Config.Logging.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.log = l
	return b
}

// WithCancelHandler registers fn to receive re-raised cancellations.
func (b *Builder) WithCancelHandler(fn func(error)) *Builder {
	b.onCancel = fn
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the dispatch latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.sdk == nil {
		return nil, errors.New("sdk required")
	}
	if b.backend == nil {
		return nil, errors.New("backend required")
	}

	log := b.log
	if log == nil {
		log = logger.New(logger.Config{
			Level:  logger.Level(cfg.Logging.Level),
			Format: logger.Format(cfg.Logging.Format),
		})
	}
	log = log.With("component", "ownid")

	presenter := b.presenter
	if presenter == nil {
		presenter = NoOpPresenter{}
	}

	metrics := NewMetrics(cfg.Metrics)
	auditDispatcher := audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	client := &Client{
		cfg: cfg,
		sdk: b.sdk,
		dispatcher: &Dispatcher{
			backend: b.backend,
			metrics: metrics,
			audit:   auditDispatcher,
			log:     log,
		},
		presenter: presenter,
		onCancel:  b.onCancel,
		audit:     auditDispatcher,
		metrics:   metrics,
		log:       log,
		state:     StateInitial,
		identity:  Identity{DisplayName: cfg.Flow.DisplayName},
	}

	b.built = true
	return client, nil
}
