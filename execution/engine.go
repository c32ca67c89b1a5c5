package execution

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/docxfer/bonification"
	"github.com/forbearing/docxfer/config"
	"github.com/forbearing/docxfer/consecutive"
	"github.com/forbearing/docxfer/facade"
	"github.com/forbearing/docxfer/logger"
	"github.com/forbearing/docxfer/mapping"
	"github.com/forbearing/docxfer/metrics"
	"github.com/forbearing/docxfer/tracker"
	"github.com/forbearing/docxfer/types"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// Engine is the Execution Engine (component F, spec.md §4.1): the
// orchestrator running the per-document state machine over a loaded
// Mapping, using the Facade, Consecutive Service, Bonification Processor,
// Mapping Evaluator, and Task Tracker.
type Engine struct {
	repo        mapping.Repository
	facade      facade.Facade
	consecutive consecutive.Service
	tracker     *tracker.Tracker
	audit       *AuditWriter
	pool        *ants.Pool

	watchdogTimeout time.Duration
	connectRetries  int
	connectBackoff  time.Duration
}

// New builds an Engine from its collaborators. The watchdog timeout comes
// from config.App.Server.WatchdogTimeout, falling back to 120s when that is
// <= 0. The returned Engine gates
// concurrently-running ProcessDocuments calls through an ants.Pool sized
// from config.App.Server.MaxConcurrentExecutions (spec.md §5 "concurrency
// model"); a single call blocks as normal, but a second concurrent call
// queues once the pool is saturated instead of running unbounded.
func New(repo mapping.Repository, f facade.Facade, svc consecutive.Service, trk *tracker.Tracker, audit *AuditWriter) (*Engine, error) {
	wd := config.App.Server.WatchdogTimeout
	if wd <= 0 {
		wd = 120 * time.Second
	}
	retries := config.App.Server.ConnectRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := config.App.Server.ConnectBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	maxConcurrent := config.App.Server.MaxConcurrentExecutions
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	pool, err := ants.NewPool(maxConcurrent)
	if err != nil {
		return nil, errors.Wrap(err, "execution: failed to create execution pool")
	}
	return &Engine{
		repo: repo, facade: f, consecutive: svc, tracker: trk, audit: audit, pool: pool,
		watchdogTimeout: wd, connectRetries: retries, connectBackoff: backoff,
	}, nil
}

// Close releases the execution pool's workers. Call during shutdown.
func (e *Engine) Close() {
	e.pool.Release()
}

// CancelExecution requests cooperative cancellation of a running execution,
// spec.md §5 "Task Tracker... supports cancellation". Returns false if
// executionID is not currently running.
func (e *Engine) CancelExecution(executionID string) bool {
	return e.tracker.Cancel(executionID)
}

// ProcessDocuments runs spec.md §4.1's full per-execution algorithm over
// documentIDs using mappingID's Mapping. The run is submitted to the
// Engine's execution pool and this call blocks until it completes, so
// bounded concurrency is transparent to the caller.
func (e *Engine) ProcessDocuments(ctx context.Context, mappingID string, documentIDs []string) (*Result, error) {
	var result *Result
	var runErr error
	var wg sync.WaitGroup
	wg.Add(1)
	if err := e.pool.Submit(func() {
		defer wg.Done()
		result, runErr = e.runDocuments(ctx, mappingID, documentIDs)
	}); err != nil {
		return nil, errors.Wrap(err, "execution: submit to execution pool")
	}
	wg.Wait()
	return result, runErr
}

// runDocuments is ProcessDocuments' body, run inside the execution pool.
func (e *Engine) runDocuments(ctx context.Context, mappingID string, documentIDs []string) (*Result, error) {
	m, err := e.repo.FindMapping(ctx, mappingID)
	if err != nil {
		return nil, errors.Wrapf(err, "execution: load mapping %q", mappingID)
	}
	mainTables := m.MainTableConfigs()
	if len(mainTables) == 0 {
		return nil, errors.WithStack(types.ErrMissingTableConfigs)
	}

	executionID := uuid.NewString()
	rec := &Record{
		ID: executionID, MappingID: mappingID, StartTime: time.Now(),
		Status: types.StatusRunning, TotalRecords: len(documentIDs),
	}
	e.createExecutionRecord(rec)

	sourceConn, err := e.acquireWithRetry(ctx, m.SourceServer)
	if err != nil {
		return nil, errors.Wrap(err, "execution: acquire source connection")
	}
	defer e.facade.ReleaseConnection(sourceConn)

	targetConn, err := e.acquireWithRetry(ctx, m.TargetServer)
	if err != nil {
		return nil, errors.Wrap(err, "execution: acquire target connection")
	}
	defer e.facade.ReleaseConnection(targetConn)

	execCtx := e.tracker.Register(ctx, executionID, mappingID, len(documentIDs))
	defer e.tracker.Deregister(executionID)

	watchdogCtx, cancelWatchdog := context.WithTimeout(execCtx, e.watchdogTimeout)
	defer cancelWatchdog()

	result := &Result{ExecutionID: executionID, ByType: map[string]int{}}
	combinedStats := bonificationStatsAccumulator{}
	var successfulIDs []string
	var failedAny bool

	for i, docID := range documentIDs {
		select {
		case <-watchdogCtx.Done():
			result.Status = types.StatusCancelled
			logger.Engine.Warnw("execution cancelled or watchdog expired", "executionId", executionID, "processed", result.Processed)
			goto finalize
		default:
		}

		outcome, consecutiveID := e.processOneDocument(watchdogCtx, m, sourceConn, targetConn, docID)
		result.Details = append(result.Details, outcome.detail)
		combinedStats.merge(outcome.bonificationStats)
		if len(consecutiveID) > 0 {
			result.ConsecutivesUsed = append(result.ConsecutivesUsed, consecutiveID)
		}

		switch outcome.detail.Status {
		case types.StatusSkipped:
			result.Skipped++
		case types.StatusFailed:
			result.Failed++
			failedAny = true
		default:
			result.Processed++
			successfulIDs = append(successfulIDs, docID)
			if m.MarkProcessed.Strategy == types.MarkIndividual {
				e.markOne(watchdogCtx, sourceConn, mainTables[0], m.MarkProcessed, docID, result)
			}
		}
		docType := outcome.detail.DocumentType
		if len(docType) == 0 {
			docType = "unknown"
		}
		result.ByType[docType]++

		if (i+1)%10 == 0 {
			e.tracker.UpdateProgress(executionID, result.Processed, result.Failed, result.Skipped)
			logger.Engine.Infow("execution progress", "executionId", executionID, "processed", result.Processed, "failed", result.Failed, "skipped", result.Skipped)
		}
	}

	if m.MarkProcessed.Strategy == types.MarkBatch {
		e.applyMarking(watchdogCtx, sourceConn, m, mainTables[0], result, successfulIDs, failedAny)
	}

finalize:
	if result.Status != types.StatusCancelled {
		switch {
		case result.Failed > 0 && result.Processed == 0:
			result.Status = types.StatusFailed
		case result.Failed > 0:
			result.Status = types.StatusPartial
		default:
			result.Status = types.StatusCompleted
		}
	}
	stats := combinedStats.stats()
	result.BonificationStats = &stats

	rec.EndTime = time.Now()
	rec.Status = result.Status
	rec.SuccessfulRecords = result.Processed
	rec.FailedRecords = result.Failed
	rec.SkippedRecords = result.Skipped
	for _, d := range result.Details {
		rec.Details = append(rec.Details, d)
	}
	e.persistFinal(ctx, rec)

	metrics.ExecutionsTotal.WithLabelValues(mappingID, string(result.Status)).Inc()
	metrics.ExecutionDocumentsProcessed.WithLabelValues(mappingID, "processed").Add(float64(result.Processed))
	metrics.ExecutionDocumentsProcessed.WithLabelValues(mappingID, "failed").Add(float64(result.Failed))
	metrics.ExecutionDocumentsProcessed.WithLabelValues(mappingID, "skipped").Add(float64(result.Skipped))

	return result, nil
}

// processOneDocument assigns one consecutive value (if enabled), runs the
// per-table processing, and resolves the assignment according to the
// outcome (spec.md §4.1 step 6). Centralized mode (consecutiveConfig.enabled
// ∧ useCentralizedService, step 3) reserves through the Consecutive Service
// and commits/cancels the reservation; local mode (step 6.3) advances
// mapping.ConsecutiveConfig.LastValue in process before the insert attempt
// (a failed document leaves a gap, the value is never reused) and persists
// the new high-water mark through mapping.Repository.UpdateLastConsecutive
// only on success, never touching the centralized service.
func (e *Engine) processOneDocument(ctx context.Context, m *mapping.Mapping, sourceConn, targetConn *facade.Conn, docID string) (documentOutcome, string) {
	centralized := m.ConsecutiveConfig.Enabled && m.ConsecutiveConfig.UseCentralizedService
	local := m.ConsecutiveConfig.Enabled && !m.ConsecutiveConfig.UseCentralizedService

	var formatted, reservationID string
	var localNext int64

	switch {
	case centralized:
		res, err := e.consecutive.Reserve(ctx, m.ConsecutiveConfig.ConsecutiveName, 1, "", docID)
		if err != nil {
			return documentOutcome{detail: failDetail(docID, errors.Wrap(err, "reserve consecutive value"))}, ""
		}
		reservationID = res.ReservationID
		if len(res.Values) > 0 {
			formatted = res.Values[0].Formatted
		}
	case local:
		localNext = m.ConsecutiveConfig.LastValue + m.ConsecutiveConfig.Increment
		m.ConsecutiveConfig.LastValue = localNext
		formatted = consecutive.FormatTemplate(m.ConsecutiveConfig.Pattern, localNext, m.ConsecutiveConfig.Prefix, time.Now())
	}

	outcome := e.processTables(ctx, m, sourceConn, targetConn, docID, m.MainTableConfigs(), formatted)

	switch {
	case centralized:
		if outcome.detail.Success {
			if err := e.consecutive.Commit(ctx, m.ConsecutiveConfig.ConsecutiveName, reservationID); err != nil {
				logger.Engine.Errorw("commit consecutive reservation failed", "executionId", docID, "error", err)
			}
		} else {
			if err := e.consecutive.Cancel(ctx, m.ConsecutiveConfig.ConsecutiveName, reservationID); err != nil {
				logger.Engine.Errorw("cancel consecutive reservation failed", "executionId", docID, "error", err)
			}
		}
	case local:
		if outcome.detail.Success {
			if err := e.repo.UpdateLastConsecutive(ctx, m.ID, localNext); err != nil {
				logger.Engine.Errorw("update local consecutive failed", "executionId", docID, "error", err)
			}
		}
	}

	return outcome, formatted
}

// markOne marks a single document's header row processed immediately,
// spec.md §4.1 step 6.5 "individual: after each success, update the
// source's markProcessedField for that id".
func (e *Engine) markOne(ctx context.Context, sourceConn *facade.Conn, headerTable mapping.TableConfig, mc mapping.MarkProcessedConfig, docID string, result *Result) {
	if len(mc.Field) == 0 {
		return
	}
	q, params := markQuery(headerTable, mc, []string{docID}, mc.ProcessedValue)
	if _, err := e.facade.Exec(ctx, sourceConn, q, params); err != nil {
		logger.Engine.Errorw("mark processed (individual) failed", "documentId", docID, "error", err)
		return
	}
	result.Marking.Strategy = types.MarkIndividual
	result.Marking.MarkedIDs = append(result.Marking.MarkedIDs, docID)
}

// applyMarking runs spec.md §4.1 step 7's batch marker update plus, if
// configured, step 8's scoped rollback of just the ids this execution
// marked (spec.md §9 Open Question 3 — never the whole table's matching
// rows).
func (e *Engine) applyMarking(ctx context.Context, sourceConn *facade.Conn, m *mapping.Mapping, headerTable mapping.TableConfig, result *Result, successfulIDs []string, failedAny bool) {
	mc := m.MarkProcessed
	if len(mc.Field) == 0 || len(successfulIDs) == 0 {
		return
	}

	q, params := markQuery(headerTable, mc, successfulIDs, mc.ProcessedValue)
	if _, err := e.facade.Exec(ctx, sourceConn, q, params); err != nil {
		logger.Engine.Errorw("mark processed failed", "error", err)
		return
	}
	result.Marking.Strategy = mc.Strategy
	result.Marking.MarkedIDs = successfulIDs

	// Rollback is scoped to only the ids this execution just marked, not
	// every previously-processed row (spec.md §9 Open Question 3).
	if mc.AllowRollback && mc.Strategy == types.MarkBatch && failedAny {
		result.Marking.RollbackAttempted = true
		rq, rparams := markQuery(headerTable, mc, successfulIDs, mc.UnprocessedValue)
		if _, err := e.facade.Exec(ctx, sourceConn, rq, rparams); err != nil {
			result.Marking.RollbackError = err.Error()
			logger.Engine.Errorw("rollback of marked ids failed", "error", err)
			return
		}
		result.Marking.RolledBackIDs = successfulIDs
	}
}

func (e *Engine) acquireWithRetry(ctx context.Context, serverKey string) (*facade.Conn, error) {
	var lastErr error
	for attempt := 0; attempt <= e.connectRetries; attempt++ {
		conn, err := e.facade.GetConnection(ctx, serverKey)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if attempt < e.connectRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.connectBackoff):
			}
		}
	}
	return nil, lastErr
}

func (e *Engine) createExecutionRecord(rec *Record) {
	if e.audit != nil {
		e.audit.Enqueue(rec)
	}
}

func (e *Engine) persistFinal(ctx context.Context, rec *Record) {
	if e.audit != nil {
		e.audit.Enqueue(rec)
	}
}

// bonificationStatsAccumulator merges per-document bonification.Stats
// across a whole execution.
type bonificationStatsAccumulator struct {
	totalBonifications int
	totalPromotions    int
	processedDetails   int
	byType             map[string]int
}

func (a *bonificationStatsAccumulator) merge(s bonification.Stats) {
	a.totalBonifications += s.TotalBonifications
	a.totalPromotions += s.TotalPromotions
	a.processedDetails += s.ProcessedDetails
	if a.byType == nil {
		a.byType = map[string]int{}
	}
	for k, v := range s.BonificationTypes {
		a.byType[k] += v
	}
}

func (a *bonificationStatsAccumulator) stats() bonification.Stats {
	return bonification.Stats{
		TotalBonifications: a.totalBonifications,
		TotalPromotions:    a.totalPromotions,
		ProcessedDetails:   a.processedDetails,
		BonificationTypes:  a.byType,
	}
}

