package sessionkit

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/verinews/sessionkit/record"
)

// Builder assembles a [SessionStore]. Every store is an explicit instance
// wired through the builder; there are no package-level singletons.
//
// Builders are single-use: Build can succeed at most once.
type Builder struct {
	config Config

	records     record.Store
	redisClient redis.UniversalClient
	recordDir   string
	gateway     Gateway
	auditSink   AuditSink
	logger      zerolog.Logger
	httpClient  *http.Client

	built bool
}

// New starts a builder from [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRecordStore sets the persisted session record store shared by all
// tabs of one installation. Required unless a custom gateway is supplied
// together with it.
func (b *Builder) WithRecordStore(s record.Store) *Builder {
	b.records = s
	return b
}

// WithRedisRecords stores the session record in Redis under the configured
// Storage.Key. Ignored when an explicit record store is supplied.
func (b *Builder) WithRedisRecords(client redis.UniversalClient) *Builder {
	b.redisClient = client
	return b
}

// WithFileRecords stores the session record as a file under dir, named by
// the configured Storage.Key. Ignored when an explicit record store is
// supplied.
func (b *Builder) WithFileRecords(dir string) *Builder {
	b.recordDir = dir
	return b
}

// WithGateway substitutes a custom [Gateway]. When unset, Build constructs
// an [HTTPGateway] from Backend config and the record store.
func (b *Builder) WithGateway(g Gateway) *Builder {
	b.gateway = g
	return b
}

// WithAuditSink sets the audit event consumer. Ignored while
// Audit.Enabled is false.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. Default is [zerolog.Nop].
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.logger = log
	return b
}

// WithHTTPClient overrides the HTTP client used by the built-in gateway.
// The Backend.Timeout setting is ignored when a client is supplied.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithMetricsEnabled toggles metric collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the gateway latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the collaborators, and returns
// the store. The store is inert until [SessionStore.Start] runs.
func (b *Builder) Build() (*SessionStore, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	records := b.records
	ownsRecords := false
	switch {
	case records != nil:
	case b.redisClient != nil:
		records = record.NewRedis(b.redisClient, cfg.Storage.Key)
		ownsRecords = true
	case b.recordDir != "":
		fileStore, err := record.NewFile(filepath.Join(b.recordDir, cfg.Storage.Key))
		if err != nil {
			return nil, err
		}
		records = fileStore
		ownsRecords = true
	default:
		return nil, errors.New("record store required")
	}

	gateway := b.gateway
	if gateway == nil {
		opts := []GatewayOption{WithGatewayLogger(b.logger)}
		if b.httpClient != nil {
			opts = append(opts, WithGatewayHTTPClient(b.httpClient))
		}
		g, err := NewHTTPGateway(cfg.Backend, records, opts...)
		if err != nil {
			return nil, err
		}
		gateway = g
	}

	store := &SessionStore{
		cfg:         cfg,
		gateway:     gateway,
		records:     records,
		ownsRecords: ownsRecords,
		log:         b.logger.With().Str("component", "sessionkit").Logger(),
		audit:       newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:     NewMetrics(cfg.Metrics),
		loading:     true,
		subs:        make(map[int]func(Snapshot)),
	}

	b.built = true

	return store, nil
}
