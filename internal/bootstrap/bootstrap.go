package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/invoicestack/invoice-processor/internal/config"
	"github.com/invoicestack/invoice-processor/internal/core/domain"
	"github.com/invoicestack/invoice-processor/internal/core/ports"
	"github.com/invoicestack/invoice-processor/internal/core/usecase"
	natsevents "github.com/invoicestack/invoice-processor/internal/infrastructure/events/nats"
	"github.com/invoicestack/invoice-processor/internal/infrastructure/llm/openai"
	"github.com/invoicestack/invoice-processor/internal/infrastructure/llm/stub"
	"github.com/invoicestack/invoice-processor/internal/infrastructure/mail/imap"
	"github.com/invoicestack/invoice-processor/internal/infrastructure/repository/postgres"
	"github.com/invoicestack/invoice-processor/internal/infrastructure/resilience"
	"github.com/invoicestack/invoice-processor/internal/infrastructure/storage/localfs"
	"github.com/invoicestack/invoice-processor/internal/infrastructure/storage/s3"
	"github.com/invoicestack/invoice-processor/internal/observability/logging"
	"github.com/invoicestack/invoice-processor/internal/observability/metrics"
)

// App holds every wired collaborator. Both binaries build one and pick the
// pieces they need.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Stacks      ports.StackRepository
	Documents   ports.DocumentRepository
	Extractions ports.ExtractionRepository
	Endpoints   ports.EndpointRepository
	Blobs       ports.BlobStore

	ProcessUC *usecase.ProcessDocumentUseCase
	CreateUC  *usecase.CreateStackUseCase
	ImportUC  *usecase.ImportEmailsUseCase
	QueryUC   *usecase.StackQueryUseCase
	AdminUC   *usecase.EndpointAdminUseCase

	HTTPMetrics     *metrics.HTTPServerMetrics
	PipelineMetrics *metrics.PipelineMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.New(service, cfg.LogLevel, cfg.LogFormat)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	stacks := postgres.NewStackRepository(db)
	documents := postgres.NewDocumentRepository(db)
	extractions := postgres.NewExtractionRepository(db)
	endpoints := postgres.NewEndpointRepository(db)
	txManager := postgres.NewTxManager(db)

	if err := seedEndpoints(ctx, cfg, endpoints, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed endpoints: %w", err)
	}

	var blobs ports.BlobStore
	switch cfg.StorageBackend {
	case "localfs":
		store, err := localfs.New(cfg.StoragePath)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		blobs = store
	default:
		blobs = s3.NewStore(endpoints, logger)
	}

	var extractor ports.InvoiceExtractor
	switch cfg.LLMProvider {
	case "stub":
		extractor = stub.NewExtractor()
	default:
		client := openai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
		executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)
		extractor = openai.NewExtractor(client, blobs, executor, logger)
	}

	var publisher ports.EventPublisher
	var closePublisher func()
	if cfg.NATSEnabled {
		natsPublisher, err := natsevents.NewPublisher(cfg.NATSURL, cfg.NATSSubject, logger, natsevents.Options{})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		publisher = natsPublisher
		closePublisher = natsPublisher.Close
	}

	pipelineMetrics := metrics.NewPipelineMetrics(service)
	httpMetrics := metrics.NewHTTPServerMetrics(service)

	processUC := usecase.NewProcessDocumentUseCase(
		stacks, documents, extractions, extractor, txManager,
		publisher, pipelineMetrics, logger, cfg.ExtractTimeout(),
	)
	createUC := usecase.NewCreateStackUseCase(
		stacks, documents, blobs, processUC, txManager, logger, cfg.BlobTimeout(),
	)
	mailProvider := imap.NewProvider(endpoints, logger)
	importUC := usecase.NewImportEmailsUseCase(
		mailProvider, createUC, pipelineMetrics, logger, cfg.MailTimeout(),
	)
	queryUC := usecase.NewStackQueryUseCase(stacks, documents, extractions)
	adminUC := usecase.NewEndpointAdminUseCase(endpoints)

	return &App{
		Config: cfg,
		Logger: logger,

		Stacks:      stacks,
		Documents:   documents,
		Extractions: extractions,
		Endpoints:   endpoints,
		Blobs:       blobs,

		ProcessUC: processUC,
		CreateUC:  createUC,
		ImportUC:  importUC,
		QueryUC:   queryUC,
		AdminUC:   adminUC,

		HTTPMetrics:     httpMetrics,
		PipelineMetrics: pipelineMetrics,

		closeFn: func() {
			if closePublisher != nil {
				closePublisher()
			}
			_ = db.Close()
		},
	}, nil
}

// MetricsHandler serves both the HTTP server metrics and the pipeline
// metrics from one endpoint.
func (a *App) MetricsHandler() http.Handler {
	return metrics.CombinedHandler(a.HTTPMetrics.Gatherer(), a.PipelineMetrics.Gatherer())
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// seedEndpoints applies the configured seed file once, on an empty
// integration_endpoints table. Later edits go through the admin API.
func seedEndpoints(ctx context.Context, cfg config.Config, endpoints ports.EndpointRepository, logger *slog.Logger) error {
	seed, err := config.LoadEndpointSeed(cfg.EndpointSeedFile)
	if err != nil {
		return err
	}
	if len(seed.Endpoints) == 0 {
		return nil
	}

	existing, err := endpoints.List(ctx)
	if err != nil {
		return fmt.Errorf("list endpoints: %w", err)
	}
	if len(existing) > 0 {
		logger.Info("endpoint seed skipped, table is not empty", "existing", len(existing))
		return nil
	}

	for _, entry := range seed.Endpoints {
		endpoint := domain.NewIntegrationEndpoint(entry.Name, domain.EndpointType(entry.Type), entry.Settings)
		if err := endpoints.Upsert(ctx, endpoint); err != nil {
			return fmt.Errorf("seed endpoint %q: %w", entry.Name, err)
		}
		logger.Info("seeded integration endpoint", "name", entry.Name, "type", entry.Type)
	}
	return nil
}
