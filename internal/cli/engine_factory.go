package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/internal/config"
	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/adapters/file"
	"github.com/aretw0/triage/pkg/adapters/inference"
	"github.com/aretw0/triage/pkg/adapters/memory"
	"github.com/aretw0/triage/pkg/adapters/process"
	"github.com/aretw0/triage/pkg/adapters/redis"
	"github.com/aretw0/triage/pkg/adapters/sqlite"
	"github.com/aretw0/triage/pkg/observability"
	"github.com/aretw0/triage/pkg/persistence/middleware"
	"github.com/aretw0/triage/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
)

// Bundle is an engine plus the resources it owns.
type Bundle struct {
	Engine  *triage.Engine
	Metrics *observability.Metrics
	Logger  *slog.Logger

	closers []func() error
}

// Close releases databases, log files and connections in reverse order.
func (b *Bundle) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// BuildOptions tweak a Bundle beyond what the configuration expresses.
type BuildOptions struct {
	// ExtraSinks receive audit records alongside the configured backend.
	ExtraSinks []ports.AuditSink
	// Reviewer answers low-confidence reviews, e.g. an interactive terminal prompt.
	Reviewer ports.Reviewer
	// Registry collects metrics. Nil uses a private registry.
	Registry *prometheus.Registry
}

// NewLogger builds the application logger from the logging section.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(level, cfg.Format), nil
}

// NewBundle wires every adapter selected by cfg into a triage engine.
func NewBundle(ctx context.Context, cfg config.Config, logger *slog.Logger, opts BuildOptions) (_ *Bundle, err error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	b := &Bundle{Logger: logger}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	engineOpts := []triage.Option{
		triage.WithLogger(logger),
		triage.WithThresholds(cfg.Policy),
		triage.WithRetries(cfg.Retries),
		triage.WithFusionAttempts(cfg.Fusion.Attempts),
	}

	var client *backend.Client
	if cfg.UsesRedis() {
		client = redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		b.closers = append(b.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
	}

	resolver, err := openRecords(ctx, cfg.Records, logger)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, resolver.Close)
	engineOpts = append(engineOpts, triage.WithRecordResolver(resolver))

	predictorOpts, err := predictors(cfg.Predictors, logger)
	if err != nil {
		return nil, err
	}
	engineOpts = append(engineOpts, predictorOpts...)

	sink, err := auditSink(cfg, client, logger, b)
	if err != nil {
		return nil, err
	}
	if len(opts.ExtraSinks) > 0 {
		sink = append(ports.MultiAuditSink{sink}, opts.ExtraSinks...)
	}
	engineOpts = append(engineOpts, triage.WithAuditSink(sink))

	store, err := checkpointStore(cfg.Checkpoint, cfg.Redis, client)
	if err != nil {
		return nil, err
	}
	engineOpts = append(engineOpts, triage.WithCheckpointStore(store))

	if cfg.Lock.Enabled {
		var locker ports.DistributedLocker = memory.NewLocker()
		if cfg.Lock.Backend == config.BackendRedis {
			locker = redis.NewLocker(client, cfg.Redis.Prefix)
		}
		engineOpts = append(engineOpts, triage.WithLocker(locker, cfg.Lock.TTL))
	}
	if opts.Reviewer != nil {
		engineOpts = append(engineOpts, triage.WithReviewer(opts.Reviewer))
	}

	metrics, err := observability.NewMetrics(opts.Registry)
	if err != nil {
		return nil, err
	}
	b.Metrics = metrics
	engineOpts = append(engineOpts, triage.WithLifecycleHooks(observability.Combine(
		metrics.Hooks(),
		observability.LoggingHooks(logger),
	)))

	b.Engine, err = triage.New(engineOpts...)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// openRecords opens the visit database. An empty path serves the seeded sample visits from memory.
func openRecords(ctx context.Context, cfg config.RecordsConfig, logger *slog.Logger) (*sqlite.Resolver, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	r, err := sqlite.Open(path, sqlite.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open records %s: %w", path, err)
	}
	if cfg.Path == "" {
		if err := r.Seed(ctx, sqlite.SampleVisits); err != nil {
			_ = r.Close()
			return nil, err
		}
	}
	return r, nil
}

func predictors(cfg config.PredictorsConfig, logger *slog.Logger) ([]triage.Option, error) {
	switch cfg.Mode {
	case config.PredictorsHTTP:
		opts := []inference.Option{inference.WithHTTPClient(&http.Client{Timeout: cfg.Timeout})}
		if cfg.Token != "" {
			opts = append(opts, inference.WithBearerToken(cfg.Token))
		}
		c := inference.NewClient(cfg.BaseURL, opts...)
		return []triage.Option{
			triage.WithStructuredPredictor(inference.NewStructuredPredictor(c)),
			triage.WithTextPredictor(inference.NewTextPredictor(c)),
			triage.WithFusionGenerator(inference.NewFusionGenerator(c)),
		}, nil

	case config.PredictorsProcess:
		tools, err := process.LoadTools(cfg.ToolsFile)
		if err != nil {
			return nil, err
		}
		runner := process.NewRunner(process.WithRegistry(tools))
		var opts []triage.Option
		if runner.Has(process.ToolStructured) {
			opts = append(opts, triage.WithStructuredPredictor(process.NewStructuredPredictor(runner)))
		}
		if runner.Has(process.ToolText) {
			opts = append(opts, triage.WithTextPredictor(process.NewTextPredictor(runner)))
		}
		if runner.Has(process.ToolFusion) {
			opts = append(opts, triage.WithFusionGenerator(process.NewFusionGenerator(runner)))
		}
		if len(opts) < 3 {
			logger.Warn("some predictor tools are not registered; their nodes will use safe defaults", "tools_file", cfg.ToolsFile)
		}
		return opts, nil

	default:
		logger.Warn("no predictors configured; model nodes will use safe defaults")
		return nil, nil
	}
}

func auditSink(cfg config.Config, client *backend.Client, logger *slog.Logger, b *Bundle) (ports.AuditSink, error) {
	switch cfg.Audit.Backend {
	case config.BackendFile:
		log, err := file.OpenAuditLog(cfg.Audit.Dir, file.WithAuditLogger(logger))
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, log.Close)
		return log, nil
	case config.BackendRedis:
		opts := []redis.AuditOption{
			redis.WithStreams(cfg.Redis.Prefix+"trace", cfg.Redis.Prefix+"errors"),
			redis.WithAuditLogger(logger),
		}
		if cfg.Audit.MaxLen > 0 {
			opts = append(opts, redis.WithMaxLen(cfg.Audit.MaxLen))
		}
		return redis.NewAuditStream(client, opts...), nil
	default:
		return memory.NewAuditLog(), nil
	}
}

func checkpointStore(cfg config.CheckpointConfig, rcfg config.RedisConfig, client *backend.Client) (ports.CheckpointStore, error) {
	var store ports.CheckpointStore
	switch cfg.Backend {
	case config.BackendFile:
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create checkpoint dir: %w", err)
		}
		store = file.NewStore(cfg.Dir)
	case config.BackendRedis:
		store = redis.NewFromClient(client, redis.WithPrefix(rcfg.Prefix+"checkpoint:"), redis.WithTTL(cfg.TTL))
	default:
		store = memory.NewStore()
	}

	var mws []middleware.Middleware
	if cfg.MaskPII {
		mws = append(mws, middleware.NewPIIMiddleware(middleware.DefaultPIIPatterns))
	}
	if cfg.EncryptionKey != "" {
		key, err := middleware.ParseKey(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(store, mws...), nil
}
