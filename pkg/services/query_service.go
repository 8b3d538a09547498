package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bitebase/intelligence-engine/pkg/apperrors"
	"github.com/bitebase/intelligence-engine/pkg/cache"
	"github.com/bitebase/intelligence-engine/pkg/config"
	"github.com/bitebase/intelligence-engine/pkg/logging"
	"github.com/bitebase/intelligence-engine/pkg/metrics"
	"github.com/bitebase/intelligence-engine/pkg/models"
	"github.com/bitebase/intelligence-engine/pkg/nlq"
	"github.com/bitebase/intelligence-engine/pkg/repositories"
)

// neutralSignal stands in for a confidence component with no evidence either
// way: unknown pattern history, unreachable schema catalog, a query that never
// produced SQL. Keeping it at the midpoint stops absent signals from either
// sinking or inflating the overall score.
const neutralSignal = 0.5

// SQLExecutor runs generated SQL against the analytics warehouse.
type SQLExecutor interface {
	Execute(ctx context.Context, sqlQuery string) (*models.QueryResult, error)
}

// SchemaCatalog answers which fraction of referenced tables exist in the
// warehouse schema.
type SchemaCatalog interface {
	Availability(ctx context.Context, tables []string) (float64, error)
}

// QueryService runs the natural-language query pipeline end to end.
type QueryService interface {
	// Process answers one natural-language question. With Execute set the
	// generated SQL also runs against the warehouse; otherwise the query is
	// validated only. Pipeline failures come back inside the response with
	// Success=false, never as a Go error; a non-nil error means the request
	// itself was unusable.
	Process(ctx context.Context, req *ProcessRequest) (*models.NLQueryResponse, error)

	// Suggestions returns ranked example queries for the frontend prompt,
	// most-used patterns first.
	Suggestions(ctx context.Context, limit int) ([]models.QuerySuggestion, error)

	// Metrics aggregates history, pattern, and cache statistics into the
	// domain metrics document.
	Metrics(ctx context.Context) (*models.EngineMetrics, error)
}

// ProcessRequest carries one query through the pipeline.
type ProcessRequest struct {
	Query   string
	Context models.QueryContext

	// Execute runs the generated SQL; false validates only.
	Execute bool

	// TimeoutSeconds overrides the configured execution timeout for this
	// request. Values above the configured ceiling are capped, zero means
	// use the default.
	TimeoutSeconds int
}

type queryService struct {
	templates  *nlq.TemplateSet
	gazetteer  *nlq.Gazetteer
	classifier *nlq.Classifier
	generator  *nlq.Generator
	scorer     *nlq.Scorer

	store     cache.Store
	cacheName string

	history  repositories.HistoryRepository
	patterns repositories.PatternRepository

	executor SQLExecutor
	catalog  SchemaCatalog

	nlqCfg config.NLQConfig
	logger *zap.Logger
}

// NewQueryService wires the pipeline stages together. cacheName labels cache
// metrics with the backend in use ("memory" or "redis").
func NewQueryService(
	templates *nlq.TemplateSet,
	gazetteer *nlq.Gazetteer,
	scorer *nlq.Scorer,
	store cache.Store,
	cacheName string,
	history repositories.HistoryRepository,
	patterns repositories.PatternRepository,
	executor SQLExecutor,
	catalog SchemaCatalog,
	nlqCfg config.NLQConfig,
	logger *zap.Logger,
) QueryService {
	return &queryService{
		templates:  templates,
		gazetteer:  gazetteer,
		classifier: nlq.NewClassifier(templates, nlqCfg.IntentThreshold, nlqCfg.EntityFloor),
		generator:  nlq.NewGenerator(),
		scorer:     scorer,
		store:      store,
		cacheName:  cacheName,
		history:    history,
		patterns:   patterns,
		executor:   executor,
		catalog:    catalog,
		nlqCfg:     nlqCfg,
		logger:     logger.Named("query-service"),
	}
}

var _ QueryService = (*queryService)(nil)

func (s *queryService) Process(ctx context.Context, req *ProcessRequest) (*models.NLQueryResponse, error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query text is required")
	}
	if req.Context.Now.IsZero() {
		req.Context.Now = time.Now()
	}

	start := time.Now()
	mode := "validate"
	if req.Execute {
		mode = "process"
	}
	defer func() {
		metrics.QueryDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	normalized := nlq.NormalizeQuery(req.Query)
	key := cache.Key(normalized, req.Context.Fingerprint())

	entry, err := s.store.Get(ctx, key)
	if err != nil {
		// Fail-open: a broken cache only costs pipeline work.
		s.logger.Warn("cache lookup failed", zap.Error(err))
		entry = nil
	}
	if entry != nil {
		metrics.CacheHits.WithLabelValues(s.cacheName).Inc()
		return s.respondFromCache(ctx, req, entry, start), nil
	}
	metrics.CacheMisses.WithLabelValues(s.cacheName).Inc()

	return s.runPipeline(ctx, req, normalized, key, start), nil
}

// respondFromCache answers from a cached pipeline outcome: extraction,
// classification, and generation are skipped, execution still happens fresh
// when requested. SQL and chart suggestions come back byte-identical to the
// run that populated the entry.
func (s *queryService) respondFromCache(ctx context.Context, req *ProcessRequest, entry *cache.Entry, start time.Time) *models.NLQueryResponse {
	resp := &models.NLQueryResponse{
		QueryID:        uuid.New(),
		ProcessedQuery: entry.ProcessedQuery,
		GeneratedSQL:   entry.GeneratedSQL,
		Confidence:     entry.ProcessedQuery.Confidence,
		Suggestions:    entry.Suggestions,
		Cached:         true,
		Success:        true,
	}

	if req.Execute {
		s.execute(ctx, req, resp)
	}

	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	s.record(ctx, req, resp)

	intent := entry.ProcessedQuery.Intent
	metrics.QueryTotal.WithLabelValues(string(intent.Category), statusLabel(resp)).Inc()

	s.logger.Debug("answered from cache",
		zap.String("query", logging.SanitizeQuestion(req.Query)),
		zap.String("intent", intent.SpecificIntent))

	return resp
}

// runPipeline is the cache-miss path: extract, classify, generate, score,
// optionally execute, suggest charts, record, cache.
func (s *queryService) runPipeline(ctx context.Context, req *ProcessRequest, normalized, key string, start time.Time) *models.NLQueryResponse {
	extractor := nlq.NewExtractor(s.gazetteer.ForContext(req.Context.Locations))
	entities := extractor.Extract(normalized, req.Context)
	intent := s.classifier.Classify(normalized, entities)
	entityConf := nlq.EntityMeanConfidence(entities)

	resp := &models.NLQueryResponse{
		QueryID: uuid.New(),
		ProcessedQuery: models.ProcessedQuery{
			Raw:        req.Query,
			Normalized: normalized,
			Entities:   entities,
			Intent:     intent,
		},
	}

	if intent.IsUnknown() {
		score := s.scorer.Score(intent.Confidence, entityConf, 0, neutralSignal, neutralSignal)
		resp.ProcessedQuery.Confidence = score
		resp.Confidence = score
		resp.Errors = append(resp.Errors, "could not match the question to a known analytics intent")
		resp.ProcessingTimeMs = time.Since(start).Milliseconds()
		s.record(ctx, req, resp)

		metrics.QueryTotal.WithLabelValues(string(models.IntentUnknown), "unclassified").Inc()
		metrics.ConfidenceScore.Observe(score.Overall)

		s.logger.Info("query did not classify",
			zap.String("query", logging.SanitizeQuestion(req.Query)),
			zap.Float64("confidence", intent.Confidence))
		return resp
	}

	tmpl, ok := s.templates.ByIntent(intent.SpecificIntent)
	if !ok {
		// The classifier only emits intents from the catalog, so this is a
		// catalog/classifier disagreement, not a user problem.
		resp.Errors = append(resp.Errors, fmt.Sprintf("no template for intent %s", intent.SpecificIntent))
		resp.Confidence = s.scorer.Score(intent.Confidence, entityConf, 0, neutralSignal, neutralSignal)
		resp.ProcessedQuery.Confidence = resp.Confidence
		resp.ProcessingTimeMs = time.Since(start).Milliseconds()
		s.record(ctx, req, resp)
		metrics.QueryTotal.WithLabelValues(string(intent.Category), "error").Inc()
		s.logger.Error("classified intent has no template", zap.String("intent", intent.SpecificIntent))
		return resp
	}

	gen := s.generator.Generate(tmpl, entities, req.Context.Now)

	availability := s.availability(ctx, gen)
	historical := s.historicalSuccess(ctx, intent.SpecificIntent)

	sqlConf := gen.Confidence
	if gen.Failed() {
		sqlConf = 0
	}
	score := s.scorer.Score(intent.Confidence, entityConf, sqlConf, availability, historical)
	resp.ProcessedQuery.Confidence = score
	resp.Confidence = score
	resp.GeneratedSQL = gen.SQL

	if gen.Failed() {
		resp.Errors = append(resp.Errors, gen.Errors...)
	} else {
		resp.Success = true
		if req.Execute {
			s.execute(ctx, req, resp)
		}

		shape := tmpl.Shape()
		if resp.Result != nil {
			shape = models.ResultShape{RowCount: resp.Result.RowCount, Columns: resp.Result.Columns}
		}
		resp.Suggestions = nlq.SuggestCharts(intent.Category, shape)
	}

	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	s.record(ctx, req, resp)

	if !gen.Failed() {
		s.cacheOutcome(ctx, key, resp)
	}

	metrics.QueryTotal.WithLabelValues(string(intent.Category), statusLabel(resp)).Inc()
	metrics.ConfidenceScore.Observe(score.Overall)

	s.logger.Info("processed query",
		zap.String("query", logging.SanitizeQuestion(req.Query)),
		zap.String("intent", intent.SpecificIntent),
		zap.Float64("confidence", score.Overall),
		zap.Bool("success", resp.Success),
		zap.Bool("executed", resp.Result != nil))

	return resp
}

// execute runs the generated SQL with the per-request timeout. Failures mark
// the response unsuccessful but never propagate: execution errors are part of
// the recorded outcome.
func (s *queryService) execute(ctx context.Context, req *ProcessRequest, resp *models.NLQueryResponse) {
	timeout := s.execTimeout(req.TimeoutSeconds)
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	execStart := time.Now()
	result, err := s.executor.Execute(execCtx, resp.GeneratedSQL)
	if err != nil {
		resp.Success = false
		if execCtx.Err() == context.DeadlineExceeded {
			resp.Errors = append(resp.Errors, fmt.Sprintf("query execution timed out after %s", timeout))
		} else {
			resp.Errors = append(resp.Errors, fmt.Sprintf("query execution failed: %s", logging.SanitizeError(err)))
		}
		metrics.ExecutionDuration.WithLabelValues("error").Observe(time.Since(execStart).Seconds())
		s.logger.Warn("warehouse execution failed",
			zap.String("sql", logging.SanitizeSQL(resp.GeneratedSQL)),
			zap.Error(err))
		return
	}

	resp.Result = result
	metrics.ExecutionDuration.WithLabelValues("ok").Observe(float64(result.ExecutionTimeMs) / 1000)
	metrics.ResultRows.Observe(float64(result.RowCount))
}

// execTimeout resolves the effective execution timeout: request override
// capped at the configured ceiling, config default when unset.
func (s *queryService) execTimeout(overrideSeconds int) time.Duration {
	if overrideSeconds <= 0 {
		return s.nlqCfg.ExecTimeout()
	}
	timeout := time.Duration(overrideSeconds) * time.Second
	if max := s.nlqCfg.ExecTimeoutMax(); timeout > max {
		return max
	}
	return timeout
}

// availability asks the schema catalog what fraction of the referenced tables
// exist. A catalog failure degrades to the neutral signal rather than failing
// the query.
func (s *queryService) availability(ctx context.Context, gen nlq.GenerationResult) float64 {
	if gen.Failed() {
		return neutralSignal
	}
	avail, err := s.catalog.Availability(ctx, gen.Tables)
	if err != nil {
		s.logger.Warn("schema catalog unavailable", zap.Error(err))
		return neutralSignal
	}
	return avail
}

// historicalSuccess reads the pattern's observed success rate. Unknown or
// never-used patterns score neutral: no history is not bad history.
func (s *queryService) historicalSuccess(ctx context.Context, specificIntent string) float64 {
	pattern, err := s.patterns.Get(ctx, specificIntent)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("pattern lookup failed", zap.String("intent", specificIntent), zap.Error(err))
		}
		return neutralSignal
	}
	if pattern.UsageCount == 0 {
		return neutralSignal
	}
	return pattern.SuccessRate()
}

// record persists the history entry and folds the usage into the owning
// pattern. Both writes are fail-soft: the caller still gets its computed
// result, with a degraded-durability warning when history could not be saved.
func (s *queryService) record(ctx context.Context, req *ProcessRequest, resp *models.NLQueryResponse) {
	entry := &models.QueryHistoryEntry{
		ID:              resp.QueryID,
		UserID:          req.Context.UserID,
		RestaurantID:    req.Context.RestaurantID,
		RawQuery:        resp.ProcessedQuery.Raw,
		NormalizedQuery: resp.ProcessedQuery.Normalized,
		IntentCategory:  string(resp.ProcessedQuery.Intent.Category),
		SpecificIntent:  resp.ProcessedQuery.Intent.SpecificIntent,
		GeneratedSQL:    resp.GeneratedSQL,
		Success:         resp.Success,
		Cached:          resp.Cached,
		Confidence:      resp.Confidence.Overall,
		ProcessingMs:    resp.ProcessingTimeMs,
	}
	if len(resp.Errors) > 0 {
		msg := strings.Join(resp.Errors, "; ")
		entry.ErrorMessage = &msg
	}
	if resp.Result != nil {
		execMs := resp.Result.ExecutionTimeMs
		rowCount := resp.Result.RowCount
		entry.ExecutionMs = &execMs
		entry.RowCount = &rowCount
	}

	if err := s.history.Create(ctx, entry); err != nil {
		metrics.HistoryWriteFailures.Inc()
		resp.Errors = append(resp.Errors, "warning: result not durably recorded in query history")
		s.logger.Error("failed to record query history", zap.Error(err))
	}

	category := models.IntentCategory(entry.IntentCategory)
	if !category.Valid() {
		// Unknown-intent queries carry no pattern to update.
		return
	}

	usage := &models.PatternUsage{
		SpecificIntent: entry.SpecificIntent,
		Category:       entry.IntentCategory,
		Success:        resp.Success,
		Executed:       resp.Result != nil,
		Confidence:     resp.Confidence.Overall,
		UsedAt:         time.Now().UTC(),
	}
	if resp.Result != nil {
		usage.ExecutionMs = resp.Result.ExecutionTimeMs
	}
	if err := s.patterns.RecordUsage(ctx, usage); err != nil {
		s.logger.Warn("failed to record pattern usage",
			zap.String("intent", entry.SpecificIntent),
			zap.Error(err))
	}
}

// cacheOutcome stores the pipeline outputs for reuse. Fail-open.
func (s *queryService) cacheOutcome(ctx context.Context, key string, resp *models.NLQueryResponse) {
	now := time.Now().UTC()
	entry := cache.Entry{
		ProcessedQuery: resp.ProcessedQuery,
		GeneratedSQL:   resp.GeneratedSQL,
		Suggestions:    resp.Suggestions,
		CreatedAt:      now,
		LastAccessed:   now,
	}
	if err := s.store.Set(ctx, key, entry); err != nil {
		s.logger.Warn("cache write failed", zap.Error(err))
	}
}

func (s *queryService) Suggestions(ctx context.Context, limit int) ([]models.QuerySuggestion, error) {
	if limit <= 0 {
		limit = s.nlqCfg.SuggestionLimit
	}

	patterns, err := s.patterns.Top(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load top patterns: %w", err)
	}

	suggestions := make([]models.QuerySuggestion, 0, limit)
	seen := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		tmpl, ok := s.templates.ByIntent(p.SpecificIntent)
		if !ok || len(tmpl.Examples) == 0 {
			continue
		}
		suggestions = append(suggestions, models.QuerySuggestion{
			Text:           tmpl.Examples[0],
			Category:       p.Category,
			SpecificIntent: p.SpecificIntent,
			UsageCount:     p.UsageCount,
			SuccessRate:    p.SuccessRate(),
		})
		seen[p.SpecificIntent] = true
	}

	// Pad with never-used templates, catalog order, so a fresh install still
	// offers example questions.
	if len(suggestions) < limit {
		for _, tmpl := range s.templates.All() {
			if len(suggestions) >= limit {
				break
			}
			if seen[tmpl.SpecificIntent] || len(tmpl.Examples) == 0 {
				continue
			}
			suggestions = append(suggestions, models.QuerySuggestion{
				Text:           tmpl.Examples[0],
				Category:       tmpl.Category,
				SpecificIntent: tmpl.SpecificIntent,
			})
		}
	}

	return suggestions, nil
}

func (s *queryService) Metrics(ctx context.Context) (*models.EngineMetrics, error) {
	stats, err := s.history.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load history stats: %w", err)
	}

	top, err := s.patterns.Top(ctx, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to load top patterns: %w", err)
	}

	summaries := make([]models.PatternSummary, 0, len(top))
	for _, p := range top {
		summaries = append(summaries, models.PatternSummary{
			SpecificIntent: p.SpecificIntent,
			Category:       p.Category,
			UsageCount:     p.UsageCount,
			SuccessRate:    p.SuccessRate(),
			AvgConfidence:  p.AvgConfidence(),
			AvgExecutionMs: p.AvgExecutionMs(),
		})
	}

	return &models.EngineMetrics{
		TotalQueries:    stats.TotalQueries,
		SuccessRate:     stats.SuccessRate(),
		AvgConfidence:   stats.AvgConfidence,
		AvgProcessingMs: stats.AvgProcessingMs,
		AvgExecutionMs:  stats.AvgExecutionMs,
		CacheHitRate:    s.store.Stats().HitRate(),
		TopPatterns:     summaries,
	}, nil
}

// statusLabel buckets a response for the query counter.
func statusLabel(resp *models.NLQueryResponse) string {
	if resp.Success {
		return "ok"
	}
	return "failed"
}
