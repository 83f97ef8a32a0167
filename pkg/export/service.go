package export

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/reportstack/export-worker/pkg/common/logger"
	"github.com/reportstack/export-worker/pkg/observability/metrics"
	"gorm.io/datatypes"
)

// Service owns the per-request state machine. It drives the leaf
// capabilities strictly in sequence for one request, applies the retry
// policy to transient step failures, and decides the terminal status.
// Distinct requests are processed concurrently; the status upsert is the
// only cross-delivery synchronization point.
type Service struct {
	statuses   StatusStore
	source     DataSource
	renderer   Renderer
	store      ArtifactStore
	notifier   Notifier
	dedup      *DedupCache
	retry      RetryPolicy
	timeout    time.Duration
	notifyBase string
}

func NewService(
	statuses StatusStore,
	source DataSource,
	renderer Renderer,
	store ArtifactStore,
	notifier Notifier,
	dedup *DedupCache,
	retry RetryPolicy,
	timeout time.Duration,
	notifyBase string,
) *Service {
	return &Service{
		statuses:   statuses,
		source:     source,
		renderer:   renderer,
		store:      store,
		notifier:   notifier,
		dedup:      dedup,
		retry:      retry,
		timeout:    timeout,
		notifyBase: notifyBase,
	}
}

// Process takes one request from received to a terminal outcome. It never
// returns an error: every failure ends in a durable FAILED status and an
// Outcome describing it, so the intake loop can always acknowledge the
// message afterwards.
func (s *Service) Process(ctx context.Context, req *ExportRequest) Outcome {
	start := time.Now()
	metrics.InFlight.Inc()
	defer func() {
		metrics.InFlight.Dec()
		metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	id := req.RequestID.String()
	log := logger.WithField("request_id", id)

	// Idempotent short-circuit: a request already fully handled is a no-op
	// under redelivery. The cache is a fast path only; the status store
	// decides.
	if s.dedup.SeenDone(ctx, id) {
		log.Info("duplicate delivery detected in cache, skipping")
		return s.skip(req)
	}

	var existing *StatusRecord
	err := s.retry.Do(ctx, func() error {
		rec, err := s.statuses.Get(ctx, id)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		existing = rec
		return nil
	}, s.logRetry(id, "status lookup"))
	if err != nil {
		return s.fail(ctx, req, err)
	}
	if existing != nil && existing.State == StateDone {
		log.Info("request already done, skipping redelivery")
		s.dedup.MarkDone(ctx, id)
		return s.skip(req)
	}

	rec := &StatusRecord{
		RequestID: id,
		State:     StateReceived,
		Params:    paramsMap(req),
	}
	if existing != nil {
		rec.AttemptCount = existing.AttemptCount
		rec.CreatedAt = existing.CreatedAt
	}
	if err := s.retry.Do(ctx, func() error {
		return s.statuses.Upsert(ctx, rec)
	}, s.logRetry(id, "initial upsert")); err != nil {
		return s.fail(ctx, req, err)
	}
	metrics.StateTransitions.WithLabelValues(StateReceived).Inc()

	// RECEIVED -> FETCHING
	if err := s.transition(ctx, id, StateFetching); err != nil {
		return s.fail(ctx, req, err)
	}
	var rows []ProductRow
	if err := s.step(ctx, id, func(ctx context.Context) error {
		fetched, err := s.source.Fetch(ctx, req.Params)
		if err != nil {
			return classify(KindFetch, err)
		}
		rows = fetched
		return nil
	}); err != nil {
		return s.fail(ctx, req, err)
	}
	log.WithField("rows", len(rows)).Info("fetched report rows")

	// FETCHING -> RENDERING
	if err := s.transition(ctx, id, StateRendering); err != nil {
		return s.fail(ctx, req, err)
	}
	var artifact []byte
	if err := s.step(ctx, id, func(context.Context) error {
		rendered, err := s.renderer.Render(rows)
		if err != nil {
			return classify(KindRender, err)
		}
		artifact = rendered
		return nil
	}); err != nil {
		return s.fail(ctx, req, err)
	}

	// RENDERING -> STORING
	if err := s.transition(ctx, id, StateStoring); err != nil {
		return s.fail(ctx, req, err)
	}
	var reference string
	if err := s.step(ctx, id, func(ctx context.Context) error {
		stored, err := s.store.Store(ctx, ArtifactFileName(req), artifact)
		if err != nil {
			return classify(KindStore, err)
		}
		reference = stored
		return nil
	}); err != nil {
		return s.fail(ctx, req, err)
	}
	log.WithField("artifact", reference).Info("artifact stored")

	// STORING -> UPDATING_STATUS: persist the tentative DONE. If this write
	// cannot eventually land the request is FAILED even though the artifact
	// exists; that inconsistency is logged for operator follow-up, the
	// artifact is not rolled back.
	metrics.StateTransitions.WithLabelValues(StateUpdatingStatus).Inc()
	rec.State = StateDone
	rec.ArtifactReference = reference
	rec.ErrorDetail = ""
	if err := s.step(ctx, id, func(ctx context.Context) error {
		return s.statuses.Upsert(ctx, rec)
	}); err != nil {
		log.WithError(err).WithField("artifact", reference).
			Error("artifact stored but status write failed, record and artifact are inconsistent")
		return s.fail(ctx, req, err)
	}

	// UPDATING_STATUS -> NOTIFYING. The DONE status is already durable;
	// notification failure is never allowed to revert it.
	metrics.StateTransitions.WithLabelValues(StateNotifying).Inc()
	outcome := Outcome{
		RequestID:         req.RequestID,
		State:             StateDone,
		ArtifactReference: reference,
		FileURL:           PublicFileURL(s.notifyBase, reference),
	}
	postCtx := context.WithoutCancel(ctx)
	if err := s.step(ctx, id, func(ctx context.Context) error {
		return s.notifier.Notify(ctx, outcome)
	}); err != nil {
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
		metrics.Errors.WithLabelValues(string(KindNotify), strconv.FormatBool(IsTransient(err))).Inc()
		log.WithError(err).Error("outcome notification failed, export itself is complete")
		if dbErr := s.statuses.SetNotificationSent(postCtx, id, false); dbErr != nil {
			log.WithError(dbErr).Warn("failed to record notification_sent=false")
		}
	} else {
		metrics.NotificationsSent.WithLabelValues("sent").Inc()
		if dbErr := s.statuses.SetNotificationSent(postCtx, id, true); dbErr != nil {
			log.WithError(dbErr).Warn("failed to record notification_sent=true")
		}
	}

	s.dedup.MarkDone(postCtx, id)
	metrics.StateTransitions.WithLabelValues(StateDone).Inc()
	log.WithField("duration", time.Since(start).String()).Info("export request done")
	return outcome
}

// transition persists entry into a non-terminal state.
func (s *Service) transition(ctx context.Context, id, state string) error {
	metrics.StateTransitions.WithLabelValues(state).Inc()
	return s.retry.Do(ctx, func() error {
		return s.statuses.SetState(ctx, id, state)
	}, s.logRetry(id, "state transition"))
}

// step executes one pipeline stage under the retry policy. Every attempt,
// including the first, records its attempt number on the status record, so
// after a run the record reflects how many tries the worst step needed.
func (s *Service) step(ctx context.Context, id string, fn func(context.Context) error) error {
	attempt := 0
	return s.retry.Do(ctx, func() error {
		attempt++
		if err := s.statuses.RecordAttempt(ctx, id, attempt); err != nil {
			logger.WithField("request_id", id).WithError(err).Warn("failed to record attempt count")
		}
		return fn(ctx)
	}, s.logRetry(id, "step"))
}

func (s *Service) logRetry(id, what string) func(int, error) {
	return func(attempt int, err error) {
		logger.WithFields(map[string]interface{}{
			"request_id": id,
			"attempt":    attempt,
		}).WithError(err).Warnf("%s failed, retrying", what)
	}
}

func (s *Service) skip(req *ExportRequest) Outcome {
	metrics.StateTransitions.WithLabelValues(StateSkippedDuplicate).Inc()
	return Outcome{RequestID: req.RequestID, State: StateSkippedDuplicate}
}

// fail records the terminal FAILED status and surfaces the outcome through
// the notification path when it is reachable. The terminal write uses a
// detached context so a request that failed by timeout can still be marked.
func (s *Service) fail(ctx context.Context, req *ExportRequest, cause error) Outcome {
	id := req.RequestID.String()
	kind := KindOf(cause, KindFetch)
	metrics.Errors.WithLabelValues(string(kind), strconv.FormatBool(IsTransient(cause))).Inc()
	metrics.StateTransitions.WithLabelValues(StateFailed).Inc()

	detail := fmt.Sprintf("%s: %v", kind, cause)
	log := logger.WithFields(map[string]interface{}{"request_id": id, "kind": string(kind)})
	log.WithError(cause).Error("export request failed")

	postCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	rec := &StatusRecord{
		RequestID:   id,
		State:       StateFailed,
		ErrorDetail: detail,
		Params:      paramsMap(req),
	}
	if current, err := s.statuses.Get(postCtx, id); err == nil {
		rec.AttemptCount = current.AttemptCount
		rec.CreatedAt = current.CreatedAt
		rec.ArtifactReference = current.ArtifactReference
	}
	if err := s.retry.Do(postCtx, func() error {
		return s.statuses.Upsert(postCtx, rec)
	}, s.logRetry(id, "terminal status write")); err != nil {
		log.WithError(err).Error("could not persist FAILED status, record is inconsistent")
	}

	outcome := Outcome{RequestID: req.RequestID, State: StateFailed, ErrorDetail: detail}
	if err := s.notifier.Notify(postCtx, outcome); err != nil {
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
		log.WithError(err).Warn("failure notification could not be delivered")
		if dbErr := s.statuses.SetNotificationSent(postCtx, id, false); dbErr != nil {
			log.WithError(dbErr).Warn("failed to record notification_sent=false")
		}
	} else {
		metrics.NotificationsSent.WithLabelValues("sent").Inc()
		if dbErr := s.statuses.SetNotificationSent(postCtx, id, true); dbErr != nil {
			log.WithError(dbErr).Warn("failed to record notification_sent=true")
		}
	}
	return outcome
}

func paramsMap(req *ExportRequest) datatypes.JSONMap {
	m := datatypes.JSONMap{
		"dataset":    req.Dataset,
		"start_date": req.Params.StartDate.UTC().Format(time.RFC3339),
		"end_date":   req.Params.EndDate.UTC().Format(time.RFC3339),
	}
	if req.Params.Category != "" {
		m["category"] = req.Params.Category
	}
	if req.OutputHint != "" {
		m["output_hint"] = req.OutputHint
	}
	return m
}
