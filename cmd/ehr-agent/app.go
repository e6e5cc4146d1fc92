package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/ehr-agent/internal/config"
	"github.com/ehr/ehr-agent/internal/domain/consultation"
	"github.com/ehr/ehr-agent/internal/domain/drugcheck"
	"github.com/ehr/ehr-agent/internal/domain/examination"
	"github.com/ehr/ehr-agent/internal/domain/report"
	"github.com/ehr/ehr-agent/internal/domain/soap"
	"github.com/ehr/ehr-agent/internal/platform/ai"
	"github.com/ehr/ehr-agent/internal/platform/blobstore"
	"github.com/ehr/ehr-agent/internal/platform/db"
	"github.com/ehr/ehr-agent/internal/platform/speech"
	"github.com/ehr/ehr-agent/internal/platform/telemetry"
)

// app holds every long-lived component. It is built once at start-up.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool

	composer    *soap.Composer
	advisor     *examination.Advisor
	screener    *drugcheck.Screener
	reports     *report.Service
	orch        *consultation.Orchestrator
	transcriber speech.Transcriber
	metrics     *telemetry.Provider
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// buildStorage opens the report store and, when DATABASE_URL is set, the
// Postgres index.
func buildStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	var store blobstore.Store
	switch cfg.ReportStore {
	case config.StoreMinIO:
		client, err := blobstore.NewMinIOClient(blobstore.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			Region:    cfg.MinIORegion,
		})
		if err != nil {
			return nil, err
		}
		ms := blobstore.NewMinIOStore(client, cfg.MinIOBucket)
		if err := ms.EnsureBucket(ctx, cfg.MinIORegion); err != nil {
			return nil, err
		}
		store = ms
		logger.Info().Str("endpoint", cfg.MinIOEndpoint).Str("bucket", cfg.MinIOBucket).Msg("reports stored in object storage")
	default:
		store = blobstore.NewFileStore(cfg.OutputDir)
		logger.Info().Str("dir", cfg.OutputDir).Msg("reports stored on local disk")
	}

	var index report.Index
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.pool = pool
		index = report.NewIndexPG(pool)
		logger.Info().Msg("connected to database")
	}

	a.reports = report.NewService(store, index, logger)
	return a, nil
}

// buildApp wires storage and every AI-backed component. The configuration
// must already be validated.
func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	provider, err := ai.NewOpenAIProvider(ai.OpenAIConfig{
		APIKey:  cfg.AIAPIKey,
		BaseURL: cfg.AIBaseURL,
		Model:   cfg.AIModel,
		Timeout: cfg.AITimeout,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.metrics = telemetry.NewProvider("ehr-agent", version)
	gw := ai.NewGateway(provider, logger).WithObserver(a.metrics)

	a.composer = soap.NewComposer(gw)
	a.advisor = examination.NewAdvisor(gw)
	a.screener = drugcheck.NewScreener(gw)
	a.orch = consultation.NewOrchestrator(a.composer, a.advisor, a.screener, a.reports, logger)

	sttClient := ai.NewOpenAIClient(ai.OpenAIConfig{
		APIKey:  cfg.STTAPIKey,
		BaseURL: cfg.STTBaseURL,
		Timeout: cfg.AITimeout,
	})
	a.transcriber = speech.NewWhisperTranscriber(sttClient, cfg.STTModel, cfg.STTLanguage)

	logger.Info().Str("model", provider.Model()).Msg("AI components initialized")
	return a, nil
}
