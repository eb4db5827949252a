package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/florinhegedus/rag-system-romanian-laws/engine/domain"
	"github.com/florinhegedus/rag-system-romanian-laws/pkg/natsutil"
)

const (
	IngestSubject = "lexrag.ingest"
	DLQSubject    = "lexrag.ingest.dlq"
	DoneSubject   = "lexrag.ingest.done"
	QueueGroup    = "lexrag-ingest"
	MaxRetries    = 3
)

// Ingester runs one ingestion request. *Pipeline implements it.
type Ingester interface {
	Ingest(ctx context.Context, req Request) (Summary, error)
}

// DeadLetter is published on DLQSubject for requests that will not be retried.
type DeadLetter struct {
	Request Request `json:"request"`
	Error   string  `json:"error"`
	Retries int     `json:"retries"`
}

// ConsumerOptions tunes StartConsumer.
type ConsumerOptions struct {
	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Enqueue publishes req for a worker to pick up.
func Enqueue(ctx context.Context, nc natsutil.Publisher, req Request) error {
	return natsutil.Publish(ctx, nc, IngestSubject, req)
}

// permanent reports errors that a redelivery cannot fix.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrConfiguration) || errors.Is(err, domain.ErrNotFound)
}

// retryable reports whether a failed req may go back on the queue. A reset
// request is never replayed: it would run after requests queued behind it and
// drop the points they wrote.
func retryable(req Request, err error, retries int) bool {
	return retries < MaxRetries && !req.Reset && !permanent(err)
}

// StartConsumer subscribes to IngestSubject in QueueGroup. Failed runs are
// redelivered with an incremented retry header; after MaxRetries, on a
// permanent error, or for a reset request, the request goes to DLQSubject.
// Successful summaries are published on DoneSubject.
func StartConsumer(nc *nats.Conn, ing Ingester, opts ConsumerOptions) (*nats.Subscription, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return natsutil.QueueSubscribe(nc, IngestSubject, QueueGroup, func(ctx context.Context, msg *nats.Msg, req Request) {
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		sum, err := ing.Ingest(ctx, req)
		if err == nil {
			if err := natsutil.Publish(ctx, nc, DoneSubject, sum); err != nil {
				log.Error("ingest consumer: publish summary", "source", req.Source, "err", err)
			}
			return
		}

		retries := natsutil.RetryCount(msg) + 1
		log.Error("ingest consumer: run failed", "source", req.Source, "retries", retries, "err", err)
		if retryable(req, err, retries) {
			if rerr := natsutil.Redeliver(nc, msg, retries); rerr != nil {
				log.Error("ingest consumer: redeliver", "source", req.Source, "err", rerr)
			}
			return
		}
		dl := DeadLetter{Request: req, Error: err.Error(), Retries: retries}
		if perr := natsutil.Publish(ctx, nc, DLQSubject, dl); perr != nil {
			log.Error("ingest consumer: dead letter", "source", req.Source, "err", perr)
		}
	})
}
