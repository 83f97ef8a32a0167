package export

import (
	"context"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/reportstack/export-worker/pkg/common/logger"
	"github.com/reportstack/export-worker/pkg/observability/metrics"
)

// MessageStream is the narrow contract the intake loop needs from the
// at-least-once stream transport.
type MessageStream interface {
	Fetch(ctx context.Context) (kafkago.Message, error)
	Commit(ctx context.Context, msg kafkago.Message) error
}

// DeadLetter receives messages that can never be processed.
type DeadLetter interface {
	Publish(ctx context.Context, original kafkago.Message, reason string) error
}

// Processor takes a decoded request to a terminal outcome.
type Processor interface {
	Process(ctx context.Context, req *ExportRequest) Outcome
}

// Intake pulls messages from the stream, decodes them and dispatches each to
// the processor with bounded concurrency. Offsets are committed only after a
// terminal outcome, or immediately for malformed payloads that can never
// succeed. A crash before commit causes redelivery, which is safe because
// processing is idempotent by request id.
type Intake struct {
	stream MessageStream
	dlq    DeadLetter // optional
	proc   Processor
	slots  chan struct{}
	wg     sync.WaitGroup
}

func NewIntake(stream MessageStream, dlq DeadLetter, proc Processor, workers int) *Intake {
	return &Intake{
		stream: stream,
		dlq:    dlq,
		proc:   proc,
		slots:  make(chan struct{}, workers),
	}
}

// Run blocks until ctx is cancelled. Cancellation stops fetching new
// messages; requests already dispatched run to completion on a detached
// context before Run returns.
func (in *Intake) Run(ctx context.Context) error {
	defer in.wg.Wait()

	for {
		msg, err := in.stream.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Log.Info("intake loop stopping, draining in-flight requests")
				return ctx.Err()
			}
			logger.Log.WithError(err).Error("failed to fetch message from stream")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		metrics.RequestsReceived.Inc()

		req, err := DecodeRequest(msg.Value)
		if err != nil {
			in.rejectMalformed(ctx, msg, err)
			continue
		}

		// Bounded worker pool: dispatch start preserves per-partition fetch
		// order, completion order does not.
		select {
		case in.slots <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		in.wg.Add(1)
		go func(msg kafkago.Message, req *ExportRequest) {
			defer func() {
				<-in.slots
				in.wg.Done()
			}()

			// In-flight requests finish their current step during shutdown
			// instead of aborting mid-write; the per-request timeout inside
			// Process still bounds them.
			procCtx := context.WithoutCancel(ctx)
			outcome := in.proc.Process(procCtx, req)

			if err := in.stream.Commit(procCtx, msg); err != nil {
				logger.WithFields(map[string]interface{}{
					"request_id": req.RequestID.String(),
					"state":      outcome.State,
				}).WithError(err).Error("failed to commit offset, message will be redelivered")
				return
			}
			logger.WithFields(map[string]interface{}{
				"request_id": req.RequestID.String(),
				"state":      outcome.State,
			}).Debug("offset committed")
		}(msg, req)
	}
}

// rejectMalformed handles payloads that can never decode: they are counted,
// forwarded to the dead-letter topic when one is configured, and committed
// right away since retrying a malformed message cannot succeed.
func (in *Intake) rejectMalformed(ctx context.Context, msg kafkago.Message, cause error) {
	metrics.Errors.WithLabelValues(string(KindDecode), "false").Inc()
	logger.WithFields(map[string]interface{}{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	}).WithError(cause).Error("malformed export request, skipping")

	if in.dlq != nil {
		if err := in.dlq.Publish(ctx, msg, cause.Error()); err != nil {
			logger.Log.WithError(err).Error("failed to publish malformed message to dead-letter topic")
		}
	}

	if err := in.stream.Commit(ctx, msg); err != nil {
		logger.Log.WithError(err).Error("failed to commit malformed message offset")
	}
}
