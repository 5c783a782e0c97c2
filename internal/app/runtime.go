package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"commentreview/internal/batch"
	"commentreview/internal/cluster"
	"commentreview/internal/config"
	"commentreview/internal/domain"
	"commentreview/internal/httpx"
	"commentreview/internal/integrations/llm"
	slackbot "commentreview/internal/integrations/slack"
	"commentreview/internal/logger"
	"commentreview/internal/metrics"
	"commentreview/internal/prompts"
	"commentreview/internal/review"
	"commentreview/internal/storage/sqlite"

	"github.com/google/uuid"
)

// runtime is everything a command needs, built once per invocation.
type runtime struct {
	cfg      config.Config
	log      *logger.Logger
	db       *sql.DB
	gateway  *llm.Gateway
	prompts  *prompts.Store
	metrics  *metrics.Recorder
	notifier *slackbot.Notifier
	now      func() time.Time
}

func newRuntime() (*runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	httpTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Info("config loaded",
		"provider", cfg.LLMProvider,
		"max_workers", cfg.MaxWorkers,
		"llm_max_attempts", cfg.LLMMaxAttempts,
		"external_http_timeout", httpTimeout.String(),
		"db_path", cfg.DBPath,
		"response_cache", cfg.ResponseCacheEnabled,
	)

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	store, err := prompts.Load(cfg.PromptsDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	rec := metrics.New()
	rt := &runtime{
		cfg:     cfg,
		log:     log,
		db:      db,
		prompts: store,
		metrics: rec,
		now:     time.Now,
	}
	embedder := &llm.AzureEmbedder{AzureConfig: llm.AzureConfig{
		Endpoint:   cfg.AzureEndpoint,
		APIKey:     cfg.AzureAPIKey,
		APIVersion: cfg.AzureAPIVersion,
		Deployment: cfg.AzureEmbeddingDeployment,
	}}
	rt.gateway = &llm.Gateway{
		Completer:          rt.completer(),
		Embedder:           embedder,
		Retry:              httpx.Backoff{MaxAttempts: cfg.LLMMaxAttempts, MaxWait: cfg.LLMMaxBackoff()},
		Log:                log,
		Metrics:            rec,
		EmbeddingBatchSize: cfg.EmbeddingBatchSize,
	}
	if cfg.SlackConfigured() {
		rt.notifier = slackbot.NewNotifier(cfg.SlackBotToken, cfg.SlackChannelID)
	}
	return rt, nil
}

func (rt *runtime) completer() llm.Completer {
	cfg := rt.cfg
	var c llm.Completer
	var namespace string
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		c = llm.NewAnthropicCompleter(llm.AnthropicOptions{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.AnthropicModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		})
		namespace = cfg.LLMProvider + "/" + cfg.AnthropicModel
	default:
		c = &llm.AzureCompleter{
			AzureConfig: llm.AzureConfig{
				Endpoint:   cfg.AzureEndpoint,
				APIKey:     cfg.AzureAPIKey,
				APIVersion: cfg.AzureAPIVersion,
				Deployment: cfg.AzureChatDeployment,
			},
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
		}
		namespace = cfg.LLMProvider + "/" + cfg.AzureChatDeployment
	}
	if !cfg.ResponseCacheEnabled {
		return c
	}
	return &llm.CachingCompleter{
		Next:      c,
		Store:     sqlite.ResponseCache{DB: rt.db},
		Namespace: namespace,
		Log:       rt.log,
	}
}

func (rt *runtime) close() {
	if err := rt.metrics.WriteTextfile(rt.cfg.MetricsTextfile); err != nil {
		rt.log.Warn("failed to write metrics textfile", "path", rt.cfg.MetricsTextfile, "error", err)
	}
	rt.db.Close()
	rt.log.Sync()
}

type processOptions struct {
	input, output string
	textColumn    string
	workers       int
	fingerprint   string
}

func (rt *runtime) process(ctx context.Context, opts processOptions) (batch.Result, error) {
	rows, err := review.NewRowProcessor(rt.gateway, rt.prompts)
	if err != nil {
		return batch.Result{}, err
	}
	workers := opts.workers
	if workers <= 0 {
		workers = rt.cfg.MaxWorkers
	}
	textColumn := opts.textColumn
	if textColumn == "" {
		textColumn = rt.cfg.TextColumn
	}
	orch := &batch.Orchestrator{
		Rows:       rows,
		MaxWorkers: workers,
		Log:        rt.log,
		Metrics:    rt.metrics,
		Now:        rt.now,
	}

	run := rt.startRun(domain.RunKindProcess, opts.input, opts.fingerprint)
	res, err := orch.ProcessTable(ctx, opts.input, opts.output, textColumn)
	run.Output = res.OutputPath
	run.Rows = res.Rows
	run.FailedRows = res.FailedRows
	rt.finishRun(ctx, run, err)
	return res, err
}

func (rt *runtime) cluster(ctx context.Context, input, output, themesColumn string, minClusterSize int) (cluster.Result, error) {
	c := &cluster.Clusterer{Embedder: rt.gateway, Log: rt.log}

	run := rt.startRun(domain.RunKindCluster, input, "")
	res, err := c.ClusterThemes(ctx, input, output, themesColumn, minClusterSize)
	run.Output = res.OutputPath
	run.Rows = res.Clusters
	rt.finishRun(ctx, run, err)
	return res, err
}

func (rt *runtime) startRun(kind, input, fingerprint string) domain.Run {
	run := domain.Run{
		ID:          uuid.NewString(),
		Kind:        kind,
		Input:       input,
		Fingerprint: fingerprint,
		Status:      domain.RunStatusRunning,
		StartedAt:   rt.now(),
	}
	if err := sqlite.InsertRun(rt.db, run); err != nil {
		rt.log.Warn("failed to record run start", "run_id", run.ID, "error", err)
	}
	return run
}

// finishRun stores the outcome and posts the Slack summary. Neither failure
// affects the command result.
func (rt *runtime) finishRun(ctx context.Context, run domain.Run, runErr error) {
	run.FinishedAt = rt.now()
	run.Status = domain.RunStatusCompleted
	if runErr != nil {
		run.Status = domain.RunStatusFailed
		run.Error = runErr.Error()
	}
	if err := sqlite.FinishRun(rt.db, run); err != nil {
		rt.log.Warn("failed to record run finish", "run_id", run.ID, "error", err)
	}
	if err := rt.notifier.NotifyRun(context.WithoutCancel(ctx), run); err != nil {
		rt.log.Warn("slack notification failed", "run_id", run.ID, "error", err)
	}
}
