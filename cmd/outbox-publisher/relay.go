package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/0111v/projeto-faculdade/pkg/config"
	"github.com/0111v/projeto-faculdade/pkg/db/models"
	"github.com/0111v/projeto-faculdade/pkg/enums"
	"github.com/0111v/projeto-faculdade/pkg/logger"
	"github.com/0111v/projeto-faculdade/pkg/metrics"
	"github.com/0111v/projeto-faculdade/pkg/outbox"
	"github.com/0111v/projeto-faculdade/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPoll        = 500 * time.Millisecond
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxPollBackoff     = 10 * time.Second
	pollJitter         = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type eventStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// RelayParams wire the outbox relay. Publishers is optional and defaults to
// one Pub/Sub publisher per topic.
type RelayParams struct {
	Outbox      config.OutboxConfig
	Logger      *logger.Logger
	DB          txRunner
	PubSub      topicSource
	Events      eventStore
	DeadLetters deadLetterStore
	Resolver    eventResolver
	Publishers  func(topic string) publisher
	Metrics     *metrics.OutboxMetrics
}

// Relay moves committed outbox rows onto their Pub/Sub topics.
type Relay struct {
	logg        *logger.Logger
	db          txRunner
	pubsub      topicSource
	events      eventStore
	deadLetters deadLetterStore
	resolver    eventResolver
	newPub      func(topic string) publisher
	metrics     *metrics.OutboxMetrics

	topics      map[string]publisher
	batchSize   int
	maxAttempts int
	poll        time.Duration
	rnd         *rand.Rand
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLettered
)

// drainStats counts what happened to each row of one batch.
type drainStats struct {
	fetched      int
	published    int
	retried      int
	deadLettered int
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Events == nil:
		return nil, errors.New("outbox repository is required")
	case params.DeadLetters == nil:
		return nil, errors.New("dlq repository is required")
	case params.Resolver == nil:
		return nil, errors.New("event routes are required")
	}

	r := &Relay{
		logg:        params.Logger,
		db:          params.DB,
		pubsub:      params.PubSub,
		events:      params.Events,
		deadLetters: params.DeadLetters,
		resolver:    params.Resolver,
		newPub:      params.Publishers,
		metrics:     params.Metrics,
		topics:      map[string]publisher{},
		batchSize:   positiveOr(params.Outbox.BatchSize, defaultBatchSize),
		maxAttempts: positiveOr(params.Outbox.MaxAttempts, defaultMaxAttempts),
		poll:        defaultPoll,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if params.Outbox.PollIntervalMS > 0 {
		r.poll = time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond
	}
	if r.newPub == nil {
		r.newPub = r.gcpPublisher
	}
	return r, nil
}

// Run drains batches until ctx ends. An empty batch waits one poll interval;
// a failing batch backs off exponentially up to maxPollBackoff.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := r.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}
	defer r.stopPublishers()

	wait := r.poll
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox.relay_stopped")
			return err
		}

		stats, err := r.drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.batch_failed", err)
			wait = min(wait*2, maxPollBackoff)
		case stats.fetched > 0:
			wait = r.poll
			r.logBatch(ctx, stats)
			continue
		default:
			wait = r.poll
		}

		if err := r.pause(ctx, wait); err != nil {
			return err
		}
	}
}

// drain handles one locked batch inside a single transaction.
func (r *Relay) drain(ctx context.Context) (drainStats, error) {
	var stats drainStats
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		stats = drainStats{}
		rows, err := r.events.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		stats.fetched = len(rows)
		for _, row := range rows {
			result, err := r.dispatch(ctx, tx, row)
			if err != nil {
				return err
			}
			switch result {
			case outcomePublished:
				stats.published++
			case outcomeRetry:
				stats.retried++
			case outcomeDeadLettered:
				stats.deadLettered++
			}
		}
		return nil
	})
	return stats, err
}

// dispatch publishes one row and records the result on it. The returned error
// is reserved for bookkeeping failures that must abort the batch.
func (r *Relay) dispatch(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (outcome, error) {
	eventType := string(row.EventType)

	resolved, err := r.resolver.Resolve(row)
	if err != nil {
		return outcomeDeadLettered, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonPermanent, err, "")
	}
	topic := resolved.Route.Topic
	logCtx := r.logg.WithFields(ctx, rowFields(row, resolved.Envelope, topic))

	pubErr := r.publish(ctx, topic, messageFor(row, resolved.Envelope))
	if pubErr == nil {
		if err := r.events.MarkPublishedTx(tx, row.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.metrics.IncPublished(eventType)
		r.logg.Info(logCtx, "outbox.event_published")
		return outcomePublished, nil
	}

	if registry.IsPermanent(pubErr) {
		return outcomeDeadLettered, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonPermanent, pubErr, topic)
	}
	if row.AttemptCount+1 >= r.maxAttempts {
		return outcomeDeadLettered, r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, pubErr), topic)
	}

	r.logg.Warn(r.logg.WithFields(logCtx, map[string]any{
		"attempt_count": row.AttemptCount + 1,
		"error":         pubErr.Error(),
	}), "outbox.publish_retry")
	r.metrics.IncFailed(eventType)
	if err := r.events.MarkFailedTx(tx, row.ID, pubErr); err != nil {
		return outcomeRetry, fmt.Errorf("mark failure %s: %w", row.ID, err)
	}
	return outcomeRetry, nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, topic string) error {
	fields := rowFields(row, outbox.Envelope{}, topic)
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	r.logg.Warn(r.logg.WithFields(ctx, fields), "outbox.event_dead_lettered")

	if err := r.deadLetters.InsertTx(tx, outbox.DeadLetter(row, reason, cause, time.Now())); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := r.events.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	r.metrics.IncDeadLettered(string(row.EventType), string(reason))
	return nil
}

func (r *Relay) publish(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub, ok := r.topics[topic]
	if !ok {
		pub = r.newPub(topic)
		if pub != nil {
			r.topics[topic] = pub
		}
	}
	if pub == nil {
		return registry.Permanent(fmt.Errorf("no publisher for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.Permanent(fmt.Errorf("publisher for topic %s returned no result", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

// messageFor carries the stored envelope as-is; consumers route on attributes.
func messageFor(row models.OutboxEvent, envelope outbox.Envelope) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}

func rowFields(row models.OutboxEvent, envelope outbox.Envelope, topic string) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if envelope.EventID != "" {
		fields["event_id"] = envelope.EventID
	}
	if topic != "" {
		fields["topic"] = topic
	}
	if row.LastError != nil {
		fields["last_error"] = *row.LastError
	}
	return fields
}

func (r *Relay) logBatch(ctx context.Context, stats drainStats) {
	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"fetched":       stats.fetched,
		"published":     stats.published,
		"retried":       stats.retried,
		"dead_lettered": stats.deadLettered,
	}), "outbox.batch_drained")
}

func (r *Relay) pause(ctx context.Context, d time.Duration) error {
	d += time.Duration(r.rnd.Int63n(int64(pollJitter)))
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Relay) stopPublishers() {
	for _, pub := range r.topics {
		if stopper, ok := pub.(interface{ Stop() }); ok {
			stopper.Stop()
		}
	}
}

func (r *Relay) gcpPublisher(topic string) publisher {
	p := r.pubsub.Publisher(topic)
	if p == nil {
		return nil
	}
	return gcpPublisher{p}
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
