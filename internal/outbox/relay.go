package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pos-core/internal/database"
	"pos-core/internal/mq"
)

// RelayConfig controls the polling loop
type RelayConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Relay publishes committed outbox messages to the broker.
type Relay struct {
	cfg      RelayConfig
	logger   *zap.Logger
	tx       database.Transactor
	repo     Repository
	producer mq.Producer

	stopChan chan struct{}
}

func NewRelay(cfg RelayConfig, logger *zap.Logger, tx database.Transactor, repo Repository, producer mq.Producer) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Relay{
		cfg:      cfg,
		logger:   logger.Named("relay"),
		tx:       tx,
		repo:     repo,
		producer: producer,
		stopChan: make(chan struct{}),
	}
}

type CleanupFunc func()

// Run starts the loop in the background. The returned func stops it, waiting
// up to five seconds for the current batch before cancelling it.
func (r *Relay) Run(ctx context.Context) CleanupFunc {
	ctx, cancel := context.WithCancel(ctx)

	stoppedChan := make(chan struct{})
	go func() {
		defer close(stoppedChan)
		r.run(ctx)
	}()

	return func() {
		close(r.stopChan)
		select {
		case <-stoppedChan:
		case <-time.After(5 * time.Second):
			cancel()
			<-stoppedChan
		}
		cancel()
	}
}

func (r *Relay) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-time.After(r.cfg.Interval):
			if _, err := r.RelayBatch(ctx); err != nil {
				r.logger.Error("error relaying outbox msgs", zap.Error(err))
			}
		}
	}
}

// RelayBatch publishes one batch and records each outcome. It returns the
// number of messages handled.
func (r *Relay) RelayBatch(ctx context.Context) (int, error) {
	handled := 0
	err := r.tx.WithTx(ctx, func(q database.DBTX) error {
		repo := r.repo.WithDB(q)

		msgs, err := repo.ListUnprocessed(ctx, r.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("list unprocessed outbox msgs: %w", err)
		}
		if len(msgs) == 0 {
			return nil
		}

		r.logger.Info("relaying outbox msgs", zap.Int("count", len(msgs)))

		results := make([]Result, 0, len(msgs))
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for _, msg := range msgs {
			wg.Add(1)
			go func(msg Message) {
				defer wg.Done()

				res := Result{ID: msg.ID}
				err := r.producer.Produce(ctx, mq.ProduceMsg{
					Topic:        msg.Topic,
					Headers:      msg.Headers,
					Payload:      msg.Payload,
					PartitionKey: msg.PartitionKey,
				})
				if err != nil {
					r.logger.Error("error producing message",
						zap.String("outbox_msg_id", msg.ID.String()),
						zap.String("topic", msg.Topic),
						zap.Error(err))
					text := err.Error()
					res.Error = &text
				}

				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}(msg)
		}
		wg.Wait()

		if err := repo.MarkProcessed(ctx, results); err != nil {
			return fmt.Errorf("mark outbox msgs processed: %w", err)
		}
		handled = len(results)
		return nil
	})
	return handled, err
}
