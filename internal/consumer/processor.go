package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/afikmenashe/alert-engine/internal/alerterr"
	"github.com/afikmenashe/alert-engine/internal/events"
)

// MessageReader reads classified events from a message queue.
type MessageReader interface {
	ReadMessage(ctx context.Context) (*events.Classified, *kafka.Message, error)
	CommitMessage(ctx context.Context, msg *kafka.Message) error
}

// Ingester evaluates one event.
type Ingester interface {
	Ingest(ctx context.Context, report events.Report, article events.Article) ([]string, error)
}

// readRetryDelay is the pause after a failed read, so an unreachable broker
// is not polled in a tight loop.
const readRetryDelay = time.Second

// Processor feeds consumed events into the engine.
type Processor struct {
	reader     MessageReader
	ingester   Ingester
	retryDelay time.Duration
}

// NewProcessor creates a processor.
func NewProcessor(reader MessageReader, ingester Ingester) *Processor {
	return &Processor{reader: reader, ingester: ingester, retryDelay: readRetryDelay}
}

// Run consumes until ctx is cancelled or the engine stops accepting events.
// An offset is committed only after its event was ingested, or when the
// message cannot be decoded and would never succeed.
func (p *Processor) Run(ctx context.Context) error {
	slog.Info("Starting event consumption loop")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Event consumption loop stopped")
			return nil
		default:
		}

		event, msg, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if msg == nil {
				slog.Error("Failed to read event", "error", err)
				if !p.wait(ctx) {
					return nil
				}
				continue
			}
			slog.Warn("Skipping malformed event",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			p.commit(ctx, msg)
			continue
		}

		ids, err := p.ingester.Ingest(ctx, event.Report, event.Article)
		if err != nil {
			if errors.Is(err, alerterr.ErrQueueClosed) {
				slog.Info("Engine stopped accepting events, leaving offset uncommitted", "offset", msg.Offset)
				return nil
			}
			slog.Error("Failed to ingest event", "url", event.Article.URL, "error", err)
			continue
		}

		slog.Debug("Ingested event",
			"url", event.Article.URL,
			"notifications", len(ids),
			"offset", msg.Offset,
		)
		p.commit(ctx, msg)
	}
}

// wait pauses for the retry delay. It returns false if ctx ended first.
func (p *Processor) wait(ctx context.Context) bool {
	timer := time.NewTimer(p.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (p *Processor) commit(ctx context.Context, msg *kafka.Message) {
	if err := p.reader.CommitMessage(ctx, msg); err != nil {
		slog.Error("Failed to commit offset",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
	}
}
